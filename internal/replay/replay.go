// Package replay re-emits captured messages with a fixed interval or with
// their original spacing.
package replay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tonylturner/rs485mon/internal/message"
)

// DefaultInterval is the gap between emissions in interval mode.
const DefaultInterval = 5 * time.Millisecond

var (
	ErrNoSubscriber   = errors.New("no subscriber registered for replay")
	ErrAlreadyStarted = errors.New("replay already started")
)

// Mode selects how emissions are paced.
type Mode int

const (
	Interval Mode = iota
	Realtime
)

func (m Mode) String() string {
	if m == Realtime {
		return "realtime"
	}
	return "interval"
}

// Options controls pacing. Speed scales realtime gaps; 2 plays twice as
// fast. Zero values select interval mode with DefaultInterval.
type Options struct {
	Mode     Mode
	Interval time.Duration
	Speed    float64
}

// Player holds the messages of one replay session.
type Player struct {
	opts Options

	mu        sync.Mutex
	messages  []message.Message
	subscribe func(message.Message)
	started   bool

	done     chan struct{}
	doneOnce sync.Once

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an empty player.
func New(opts Options) *Player {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Speed <= 0 {
		opts.Speed = 1
	}
	return &Player{
		opts:  opts,
		done:  make(chan struct{}),
		sleep: sleepContext,
	}
}

// Add appends m. Messages are emitted in the order they were added.
func (p *Player) Add(m message.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, m)
}

// Len is the number of queued messages.
func (p *Player) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

// Subscribe sets the receiver of emissions. It runs on the goroutine that
// called Run.
func (p *Player) Subscribe(fn func(message.Message)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribe = fn
}

// Done is closed exactly once when Run returns after having started.
func (p *Player) Done() <-chan struct{} {
	return p.done
}

// Run emits every message and blocks until the last one is delivered or ctx
// is cancelled. A player can only run once.
func (p *Player) Run(ctx context.Context) error {
	p.mu.Lock()
	fn := p.subscribe
	if fn == nil {
		p.mu.Unlock()
		return ErrNoSubscriber
	}
	if p.started {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	p.started = true
	messages := append([]message.Message(nil), p.messages...)
	p.mu.Unlock()

	defer p.doneOnce.Do(func() { close(p.done) })

	var last time.Time
	for i, m := range messages {
		if err := p.sleep(ctx, p.wait(i, m, last)); err != nil {
			return err
		}
		last = m.Telegram().Timestamp()
		fn(m)
	}
	return nil
}

func (p *Player) wait(i int, m message.Message, last time.Time) time.Duration {
	if p.opts.Mode != Realtime {
		return p.opts.Interval
	}
	ts := m.Telegram().Timestamp()
	if i == 0 || last.IsZero() || ts.IsZero() {
		return 0
	}
	gap := ts.Sub(last)
	if gap <= 0 {
		return 0
	}
	return time.Duration(float64(gap) / p.opts.Speed)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
