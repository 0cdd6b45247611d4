package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/tonylturner/rs485mon/internal/message"
	"github.com/tonylturner/rs485mon/internal/metrics"
	"github.com/tonylturner/rs485mon/internal/pipeline"
)

// StatsOptions selects the input and report format of the stats command.
type StatsOptions struct {
	Path   string
	Format string // text, csv or json
}

// RunStats reports per-id statistics for a recording or an events CSV
// written by 'monitor --events-csv'.
func RunStats(ctx context.Context, env Env, opts StatsOptions) (*metrics.Summary, error) {
	format := strings.ToLower(opts.Format)
	if format == "" {
		format = "text"
	}
	if format != "text" && format != "csv" && format != "json" {
		return nil, fmt.Errorf("unknown stats format %q (valid: text, csv, json)", opts.Format)
	}

	var summary *metrics.Summary
	var err error
	if strings.HasSuffix(strings.ToLower(opts.Path), ".csv") {
		summary, err = statsFromEvents(opts.Path)
	} else {
		summary, err = statsFromRecording(ctx, env, opts.Path)
	}
	if err != nil {
		return nil, err
	}
	return summary, writeSummary(env.out(), summary, format)
}

func statsFromEvents(path string) (*metrics.Summary, error) {
	events, err := metrics.ReadEventsCSV(path)
	if err != nil {
		return nil, err
	}
	sink := metrics.NewSink()
	for _, e := range events {
		sink.Record(e)
	}
	return sink.GetSummary(), nil
}

func statsFromRecording(ctx context.Context, env Env, path string) (*metrics.Summary, error) {
	reg, err := env.registry()
	if err != nil {
		return nil, err
	}
	sink := metrics.NewSink()
	pipe, err := pipeline.New(pipeline.Options{
		Registry:  reg,
		Logger:    env.Logger,
		Stats:     sink,
		OnMessage: func(message.Message) {},
	})
	if err != nil {
		return nil, err
	}
	if err := decodeFile(ctx, path, reg, pipe, false); err != nil {
		return nil, err
	}
	return sink.GetSummary(), nil
}

func writeSummary(w io.Writer, summary *metrics.Summary, format string) error {
	switch format {
	case "csv":
		return metrics.WriteSummaryCSV(w, summary)
	case "json":
		return metrics.WriteSummaryJSON(w, summary)
	default:
		_, err := io.WriteString(w, metrics.FormatSummary(summary))
		return err
	}
}
