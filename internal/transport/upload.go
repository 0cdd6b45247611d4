package transport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tonylturner/rs485mon/internal/logging"
)

// Report lists what an upload did, as archive names.
type Report struct {
	Stored  []string
	Skipped []string
	Bytes   int64
}

// Upload copies files into d.Dir. A file whose archived copy already has
// the same size is skipped unless opts.Overwrite is set; failed transfers
// are retried opts.RetryAttempts times.
func Upload(ctx context.Context, d *Destination, files []string, opts Options, logger *logging.Logger) (*Report, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	rep := &Report{}
	if err := d.Archive.Prepare(ctx, d.Dir); err != nil {
		return rep, fmt.Errorf("create %s on %s: %w", d.Dir, d.Archive, err)
	}

	for _, local := range files {
		base := filepath.Base(local)
		if err := ValidateRelativePath(d.Dir, base); err != nil {
			return rep, err
		}
		info, err := os.Stat(local)
		if err != nil {
			return rep, err
		}
		name := d.Archive.Join(d.Dir, base)

		if !opts.Overwrite {
			size, ok, err := d.Archive.Size(ctx, name)
			if err != nil {
				return rep, fmt.Errorf("check %s on %s: %w", name, d.Archive, err)
			}
			if ok && size == info.Size() {
				logger.Verbose("%s already archived on %s", base, d.Archive)
				rep.Skipped = append(rep.Skipped, name)
				continue
			}
		}

		n, err := storeWithRetry(ctx, d.Archive, local, name, opts, logger)
		if err != nil {
			return rep, fmt.Errorf("upload %s to %s: %w", local, d.Archive, err)
		}
		logger.Info("Uploaded %s -> %s:%s (%d bytes)", local, d.Archive, name, n)
		rep.Stored = append(rep.Stored, name)
		rep.Bytes += n
	}
	return rep, nil
}

func storeWithRetry(ctx context.Context, a Archive, local, name string, opts Options, logger *logging.Logger) (int64, error) {
	var lastErr error
	for attempt := 0; attempt <= opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			logger.Verbose("retrying %s (attempt %d): %v", local, attempt+1, lastErr)
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(opts.RetryDelay):
			}
		}
		n, err := a.Store(ctx, local, name)
		if err == nil {
			return n, nil
		}
		lastErr = err
	}
	return 0, lastErr
}
