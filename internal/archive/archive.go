// Package archive stores the output of a finished fetch run and announces it.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/wigle-openroaming/internal/wigle"
)

// Config controls Archiver behavior.
type Config struct {
	ContentType string
	BlobPrefix  string
	Topic       string
}

// Archiver hashes a run's CSV, uploads it, records the run and publishes a
// notification. Every collaborator except the ID generator and hasher may be
// nil, in which case that stage is skipped.
type Archiver struct {
	ids       wigle.IDGenerator
	hasher    wigle.Hasher
	blobStore wigle.BlobStore
	runStore  wigle.RunStore
	publisher wigle.Publisher
	cfg       Config
	logger    *zap.Logger
}

// New constructs an Archiver.
func New(
	ids wigle.IDGenerator,
	hasher wigle.Hasher,
	blobStore wigle.BlobStore,
	runStore wigle.RunStore,
	publisher wigle.Publisher,
	cfg Config,
	logger *zap.Logger,
) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "text/csv"
	}
	return &Archiver{
		ids:       ids,
		hasher:    hasher,
		blobStore: blobStore,
		runStore:  runStore,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// Archive persists the run described by summary and returns the stored record.
// The record is returned even when a later stage fails.
func (a *Archiver) Archive(ctx context.Context, summary wigle.Summary) (wigle.RunRecord, error) {
	id, err := a.ids.NewID()
	if err != nil {
		return wigle.RunRecord{}, fmt.Errorf("generate run id: %w", err)
	}
	run := recordFor(id, summary)
	logger := a.logger.With(zap.String("run_id", id))

	data, err := os.ReadFile(summary.OutputPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Warn("run output missing, skipping upload", zap.String("output", summary.OutputPath))
	case err != nil:
		return run, fmt.Errorf("read run output: %w", err)
	default:
		if err := a.persistOutput(ctx, &run, data); err != nil {
			return run, err
		}
	}

	if a.runStore != nil {
		if err := a.runStore.RecordRun(ctx, run); err != nil {
			return run, fmt.Errorf("record run: %w", err)
		}
		logger.Debug("run recorded")
	}

	if err := a.publishRun(ctx, run); err != nil {
		return run, err
	}
	logger.Info("run archived",
		zap.String("blob_uri", run.BlobURI),
		zap.String("hash", run.ContentHash),
		zap.String("stop_reason", string(run.Stop)),
	)
	return run, nil
}

func (a *Archiver) persistOutput(ctx context.Context, run *wigle.RunRecord, data []byte) error {
	hash, err := a.hasher.Hash(data)
	if err != nil {
		return fmt.Errorf("hash output: %w", err)
	}
	run.ContentHash = hash

	if a.blobStore == nil {
		return nil
	}
	uri, err := a.blobStore.PutObject(ctx, a.blobPath(run.ID, run.OutputPath), a.cfg.ContentType, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	run.BlobURI = uri
	return nil
}

func (a *Archiver) publishRun(ctx context.Context, run wigle.RunRecord) error {
	if a.cfg.Topic == "" || a.publisher == nil {
		return nil
	}
	msgID, err := a.publisher.Publish(ctx, a.cfg.Topic, run)
	if err != nil {
		return fmt.Errorf("publish run: %w", err)
	}
	a.logger.Info("run published",
		zap.String("run_id", run.ID),
		zap.String("topic", a.cfg.Topic),
		zap.String("message_id", msgID),
	)
	return nil
}

func (a *Archiver) blobPath(runID, outputPath string) string {
	name := filepath.Base(outputPath)
	prefix := strings.Trim(a.cfg.BlobPrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%s", runID, name)
	}
	return fmt.Sprintf("%s/%s/%s", prefix, runID, name)
}

func recordFor(id string, s wigle.Summary) wigle.RunRecord {
	run := wigle.RunRecord{
		ID:         id,
		RowIndex:   s.Query.RowIndex,
		BBox:       s.Query.BBox,
		AfterDate:  s.AfterDate,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		Seen:       s.State.CurrentCount,
		Total:      s.State.TotalCount,
		Matched:    s.State.Matched,
		Retries:    s.State.Retries,
		Pages:      s.State.Pages,
		Stop:       s.Stop,
		OutputPath: s.OutputPath,
	}
	if s.Err != nil {
		run.ErrorText = s.Err.Error()
	}
	return run
}
