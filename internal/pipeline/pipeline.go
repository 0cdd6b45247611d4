// Package pipeline wires the frame synchronizer, telegram construction, the
// checksum filter and the decoder registry into one byte-to-message path.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tonylturner/rs485mon/internal/framer"
	"github.com/tonylturner/rs485mon/internal/logging"
	"github.com/tonylturner/rs485mon/internal/message"
	"github.com/tonylturner/rs485mon/internal/metrics"
	"github.com/tonylturner/rs485mon/internal/telegram"
)

// ReadChunkSize is the read size used by ReadFrom.
const ReadChunkSize = 256

// EventWriter persists per-frame events. *metrics.Writer implements it.
type EventWriter interface {
	WriteEvent(metrics.Event) error
}

// Options configures a Pipeline. Only Registry and OnMessage are required.
type Options struct {
	Registry *message.Registry
	Logger   *logging.Logger
	Stats    *metrics.Sink
	Events   EventWriter

	// OnMessage receives every accepted message, including Generic.
	OnMessage func(message.Message)
	// OnInvalid receives telegrams whose checksum did not match.
	OnInvalid func(*telegram.Telegram)

	// Now stamps telegrams built from the live stream. Defaults to time.Now.
	Now func() time.Time
}

// Pipeline is single goroutine: Feed, Flush, Process and ReadFrom must not
// be called concurrently.
type Pipeline struct {
	opts      Options
	framer    *framer.Framer
	overflows uint64
}

// New builds a pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("pipeline requires a registry")
	}
	if opts.OnMessage == nil {
		return nil, fmt.Errorf("pipeline requires a message handler")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	p := &Pipeline{opts: opts}
	p.framer = framer.New(p.onFrame)
	return p, nil
}

// Feed pushes raw bus bytes through the synchronizer.
func (p *Pipeline) Feed(chunk []byte) {
	if err := p.framer.Feed(chunk); err != nil {
		p.opts.Logger.Verbose("%v", err)
	}
	p.recordOverflows()
}

// Flush releases the pending block at end of stream.
func (p *Pipeline) Flush() {
	p.framer.Flush()
}

// FramerStats exposes the synchronizer counters.
func (p *Pipeline) FramerStats() framer.Stats {
	return p.framer.Stats()
}

// ReadFrom feeds r until EOF or until ctx is done. The pending block is
// flushed on EOF.
func (p *Pipeline) ReadFrom(ctx context.Context, r io.Reader) error {
	buf := make([]byte, ReadChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			p.Feed(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			p.Flush()
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (p *Pipeline) recordOverflows() {
	st := p.framer.Stats()
	for ; p.overflows < st.Overflows; p.overflows++ {
		p.record(metrics.Event{Timestamp: p.opts.Now(), Outcome: metrics.OutcomeOverflow})
	}
}

func (p *Pipeline) onFrame(raw []byte) {
	p.opts.Logger.LogHex("frame", raw)
	t, err := telegram.NewAt(raw, p.opts.Now())
	if err != nil {
		p.opts.Logger.Verbose("dropping frame %s: %v", telegram.Hex(raw), err)
		p.record(metrics.Event{
			Timestamp: p.opts.Now(),
			Outcome:   metrics.OutcomeMalformed,
			Size:      len(raw),
			Error:     err.Error(),
		})
		return
	}
	p.Process(t)
}

// Process runs an already framed telegram through the checksum filter and
// the registry. It reports whether a message was delivered.
func (p *Pipeline) Process(t *telegram.Telegram) bool {
	ev := metrics.Event{Timestamp: t.Timestamp(), ID: t.ID(), Size: t.PDULen()}

	if !t.Valid() {
		p.opts.Logger.Verbose("checksum mismatch: %s", t)
		ev.Outcome = metrics.OutcomeChecksum
		ev.Error = message.ErrInvalidChecksum.Error()
		p.record(ev)
		if p.opts.OnInvalid != nil {
			p.opts.OnInvalid(t)
		}
		return false
	}

	m, err := p.opts.Registry.Specialize(t)
	if err != nil {
		p.opts.Logger.Error("%s: %v", t, err)
		ev.Outcome = metrics.OutcomeMismatch
		if !errors.Is(err, message.ErrSizeOrIdentityMismatch) {
			ev.Outcome = metrics.OutcomeMalformed
		}
		ev.Error = err.Error()
		p.record(ev)
		return false
	}

	ev.Kind = string(m.Kind())
	ev.Outcome = metrics.OutcomeDecoded
	if m.Kind() == message.KindGeneric {
		ev.Outcome = metrics.OutcomeUnknown
	}
	p.record(ev)
	p.opts.OnMessage(m)
	return true
}

func (p *Pipeline) record(e metrics.Event) {
	p.opts.Stats.Record(e)
	if p.opts.Events == nil {
		return
	}
	if err := p.opts.Events.WriteEvent(e); err != nil {
		p.opts.Logger.Error("write event: %v", err)
	}
}
