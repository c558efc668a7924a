// Package coords reads bounding boxes from whitespace-delimited coordinate files.
package coords

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/JakeFAU/wigle-openroaming/internal/wigle"
)

// ErrRowOutOfRange is returned when the requested row does not exist.
var ErrRowOutOfRange = errors.New("row out of range")

// ReadRow returns the row-th (0-based) non-blank line of path as a bounding
// box. Columns are min_lat max_lat min_long max_long; extra columns are ignored.
func ReadRow(path string, row int) (wigle.BoundingBox, error) {
	if row < 0 {
		return wigle.BoundingBox{}, fmt.Errorf("%w: row %d is negative", ErrRowOutOfRange, row)
	}
	file, err := os.Open(path)
	if err != nil {
		return wigle.BoundingBox{}, fmt.Errorf("open coordinates %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	index := 0
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if index == row {
			return parseRow(fields, row)
		}
		index++
	}
	if err := scanner.Err(); err != nil {
		return wigle.BoundingBox{}, fmt.Errorf("read coordinates %s: %w", path, err)
	}
	return wigle.BoundingBox{}, fmt.Errorf("%w: row %d requested, %s has %d rows", ErrRowOutOfRange, row, path, index)
}

func parseRow(fields []string, row int) (wigle.BoundingBox, error) {
	if len(fields) < 4 {
		return wigle.BoundingBox{}, fmt.Errorf("row %d has %d columns, want 4", row, len(fields))
	}
	var vals [4]float64
	for i := range vals {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return wigle.BoundingBox{}, fmt.Errorf("row %d column %d: %w", row, i, err)
		}
		vals[i] = v
	}
	return wigle.BoundingBox{
		MinLat: vals[0],
		MaxLat: vals[1],
		MinLon: vals[2],
		MaxLon: vals[3],
	}, nil
}
