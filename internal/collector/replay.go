package collector

import (
	"context"
	"errors"
	"fmt"
	"segmentd/internal/clock"
	"segmentd/internal/collector/uploader"
	"segmentd/internal/global"
	"segmentd/internal/logctx"
	"segmentd/internal/spool"
)

// Outcome of one spool replay run
type ReplayResult struct {
	Replayed int // batches uploaded and removed from the spool
	Failed   int // batches left in place (unreadable or rejected again)
	Partial  int // failed batches of which some segments were still delivered
	Segments int // segments uploaded, including those of partial batches
}

// Re-sends spooled batches, oldest first, through the configured backend.
// Uploaded files are removed. Failed batches stay for a later run and are never spooled twice.
func Replay(ctx context.Context, cfg Config, dir string) (result ReplayResult, err error) {
	ctx = logctx.AppendCtxTag(ctx, global.NSSpool)

	if dir == "" {
		dir = cfg.SpoolDir
	}
	if dir == "" {
		dir = global.DefaultSpoolDir
	}

	cfg.setDefaults()
	err = cfg.Validate()
	if err != nil {
		return
	}

	store, err := spool.New(dir)
	if err != nil {
		return
	}
	paths, err := store.List()
	if err != nil {
		return
	}
	if len(paths) == 0 {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.InfoLog, "No spooled batches in %s\n", dir)
		return
	}

	backend, err := newBackend(ctx, cfg)
	if err != nil {
		err = fmt.Errorf("failed creating %s upload backend: %w", cfg.Backend, err)
		return
	}
	defer backend.Close()

	upload, err := uploader.New(nil, uploader.Config{
		MaxAttempts:    cfg.MaxAttempts,
		BackoffBase:    cfg.BackoffBase,
		BackoffCap:     cfg.BackoffCap,
		Concurrency:    1,
		RequestTimeout: cfg.RequestTimeout,
	}, backend, nil, clock.New(), nil, nil)
	if err != nil {
		return
	}

	result, err = replayFiles(ctx, store, paths, upload)
	return
}

// Uploads each spooled file in order and removes the fully delivered ones
func replayFiles(ctx context.Context, store *spool.Store, paths []string, upload *uploader.Instance) (result ReplayResult, err error) {
	for _, path := range paths {
		if ctx.Err() != nil {
			err = context.Cause(ctx)
			return
		}

		record, loadErr := spool.Load(path)
		if loadErr != nil {
			result.Failed++
			logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog, "Skipping %v\n", loadErr)
			continue
		}
		batch, batchErr := record.Batch()
		if batchErr != nil {
			result.Failed++
			logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
				"Skipping batch %d from %s: %v\n", record.Sequence, path, batchErr)
			continue
		}

		// A batch counts as replayed only when every segment was stored.
		// Anything less keeps the file so the dropped segments are not lost.
		uploadErr := upload.Upload(ctx, batch)
		if uploadErr != nil {
			result.Failed++
			var discardErr *uploader.DiscardError
			if errors.As(uploadErr, &discardErr) && discardErr.Delivered > 0 {
				result.Partial++
				result.Segments += discardErr.Delivered
			}
			logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
				"Batch %d kept in spool: %v\n", record.Sequence, uploadErr)
			continue
		}

		result.Replayed++
		result.Segments += len(batch.Segments)
		removeErr := store.Remove(path)
		if removeErr != nil {
			logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
				"Batch %d uploaded but not removed: %v\n", record.Sequence, removeErr)
		}
		logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog,
			"Replayed batch %d (%d segments, spooled %s: %s)\n",
			record.Sequence, len(batch.Segments), record.SpooledAt.Format("2006-01-02T15:04:05Z07:00"), record.Reason)
	}
	return
}
