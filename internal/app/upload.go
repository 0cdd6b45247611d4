package app

import (
	"context"
	"fmt"
	"os"

	"github.com/tonylturner/rs485mon/internal/errors"
	"github.com/tonylturner/rs485mon/internal/transport"
)

// UploadOptions copies finished captures to an archive.
type UploadOptions struct {
	Destination string
	Files       []string
	Transport   transport.Options
}

// RunUpload copies opts.Files to opts.Destination.
func RunUpload(ctx context.Context, env Env, opts UploadOptions) (*transport.Report, error) {
	if opts.Destination == "" {
		opts.Destination = env.config().Monitor.UploadTo
	}
	if opts.Destination == "" {
		return nil, fmt.Errorf("no upload destination: pass --to or set monitor.upload_to")
	}
	if len(opts.Files) == 0 {
		return nil, fmt.Errorf("no files to upload")
	}
	for _, f := range opts.Files {
		if _, err := os.Stat(f); err != nil {
			return nil, errors.WrapUploadError(err, opts.Destination)
		}
	}
	if opts.Transport == (transport.Options{}) {
		opts.Transport = transport.DefaultOptions()
	}

	dest, err := transport.ParseWithOptions(opts.Destination, opts.Transport)
	if err != nil {
		return nil, errors.WrapUploadError(err, opts.Destination)
	}
	defer dest.Archive.Close()

	rep, err := transport.Upload(ctx, dest, opts.Files, opts.Transport, env.Logger)
	if err != nil {
		return rep, errors.WrapUploadError(err, opts.Destination)
	}
	return rep, nil
}
