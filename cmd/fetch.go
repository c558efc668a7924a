// Package cmd defines and implements the CLI for the wigle-fetch executable.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/wigle-openroaming/internal/coords"
	"github.com/JakeFAU/wigle-openroaming/internal/metrics"
	"github.com/JakeFAU/wigle-openroaming/internal/wigle"
)

// ErrRunIncomplete is returned when the pagination loop stopped before the
// result set was exhausted.
var ErrRunIncomplete = errors.New("run did not complete")

type fetchOptions struct {
	token     string
	csvFile   string
	rowNum    int
	afterDate string

	bbox wigle.BoundingBox
}

func (o *fetchOptions) bind(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&o.token, "token", "", "WiGLE API token (encoded name:token pair)")
	flags.StringVar(&o.csvFile, "csv_file", "", "whitespace separated coordinates file")
	flags.IntVar(&o.rowNum, "row_num", 0, "zero-based row of the coordinates file to fetch")
	flags.StringVar(&o.afterDate, "after_date", "", "only networks updated after this date (YYYYMMDD)")
	_ = cmd.MarkFlagRequired("token")
	_ = cmd.MarkFlagRequired("csv_file")
	_ = cmd.MarkFlagRequired("row_num")
}

// validate checks the flags and resolves the bounding box.
func (o *fetchOptions) validate() error {
	if !wigle.IsValidToken(o.token) {
		return wigle.ErrInvalidToken
	}
	if o.afterDate != "" {
		if err := wigle.ValidateAfterDate(o.afterDate); err != nil {
			return err
		}
	}
	bbox, err := coords.ReadRow(o.csvFile, o.rowNum)
	if err != nil {
		return fmt.Errorf("read coordinates: %w", err)
	}
	o.bbox = bbox
	return nil
}

func runFetch(cmd *cobra.Command, opts *fetchOptions) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.GetLogger()
	cfg := appInstance.GetConfig()

	summary, err := appInstance.GetFetcher().Run(cmd.Context(), wigle.Query{
		Credential: opts.token,
		BBox:       opts.bbox,
		AfterDate:  opts.afterDate,
		RowIndex:   opts.rowNum,
	})
	if err != nil {
		return fmt.Errorf("run fetch: %w", err)
	}

	// The CSV is already on disk, so delivery failures only warn.
	run, err := appInstance.GetArchiver().Archive(context.WithoutCancel(cmd.Context()), summary)
	if err != nil {
		logger.Warn("archive run failed", zap.String("run_id", run.ID), zap.Error(err))
	}
	if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		logger.Warn("write metrics textfile failed", zap.Error(err))
	}

	if !summary.Stop.Succeeded() {
		if summary.Err != nil {
			return fmt.Errorf("%w: %s: %w", ErrRunIncomplete, summary.Stop, summary.Err)
		}
		return fmt.Errorf("%w: %s", ErrRunIncomplete, summary.Stop)
	}
	return nil
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}
