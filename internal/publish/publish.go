// Package publish forwards decoded telegrams to consumers outside the
// monitor: a NATS subject tree, a Redis shadow per telegram id and live
// WebSocket clients.
package publish

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tonylturner/rs485mon/internal/config"
	"github.com/tonylturner/rs485mon/internal/logging"
	"github.com/tonylturner/rs485mon/internal/message"
	"github.com/tonylturner/rs485mon/internal/telegram"
)

// Event is the JSON document sent for every decoded telegram.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Kind      string    `json:"kind"`
	Raw       string    `json:"raw"`
	Text      string    `json:"text"`
}

// NewEvent describes m.
func NewEvent(m message.Message) Event {
	t := m.Telegram()
	return Event{
		Timestamp: t.Timestamp(),
		ID:        fmt.Sprintf("%04X", t.ID()),
		Type:      t.Type().String(),
		Kind:      string(m.Kind()),
		Raw:       telegram.Hex(t.Raw()),
		Text:      m.String(),
	}
}

// Publisher delivers events to one target.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Fanout sends each event to every publisher. Failures are logged once per
// target until that target succeeds again, so a dead broker does not flood
// the log at bus rate.
type Fanout struct {
	logger *logging.Logger
	pubs   []named

	mu      sync.Mutex
	failing map[string]bool
	errors  int
	sent    int
}

type named struct {
	name string
	pub  Publisher
}

// NewFanout creates an empty fanout. logger may be nil.
func NewFanout(logger *logging.Logger) *Fanout {
	return &Fanout{logger: logger, failing: make(map[string]bool)}
}

// Add registers p under name, which is used in log lines.
func (f *Fanout) Add(name string, p Publisher) {
	f.pubs = append(f.pubs, named{name: name, pub: p})
}

// Len returns the number of targets.
func (f *Fanout) Len() int { return len(f.pubs) }

// Send publishes m to every target and returns the joined errors.
func (f *Fanout) Send(ctx context.Context, m message.Message) error {
	if len(f.pubs) == 0 {
		return nil
	}
	e := NewEvent(m)
	var errs []error
	for _, n := range f.pubs {
		err := n.pub.Publish(ctx, e)
		f.track(n.name, err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.name, err))
		}
	}
	return stderrors.Join(errs...)
}

func (f *Fanout) track(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		f.sent++
		if f.failing[name] {
			delete(f.failing, name)
			f.logf(logging.LogLevelInfo, "publish to %s recovered", name)
		}
		return
	}
	f.errors++
	if !f.failing[name] {
		f.failing[name] = true
		f.logf(logging.LogLevelError, "publish to %s: %v", name, err)
	}
}

func (f *Fanout) logf(level logging.LogLevel, format string, v ...interface{}) {
	if f.logger == nil {
		return
	}
	if level == logging.LogLevelError {
		f.logger.Error(format, v...)
	} else {
		f.logger.Info(format, v...)
	}
}

// Counts returns successful and failed deliveries.
func (f *Fanout) Counts() (sent, failed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent, f.errors
}

// Close closes every target.
func (f *Fanout) Close() error {
	var errs []error
	for _, n := range f.pubs {
		if err := n.pub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", n.name, err))
		}
	}
	f.pubs = nil
	return stderrors.Join(errs...)
}

// Open connects every target configured in cfg. The returned server is nil
// unless cfg.Listen is set; it must be shut down by the caller.
func Open(ctx context.Context, cfg config.PublishConfig, logger *logging.Logger) (*Fanout, *Server, error) {
	f := NewFanout(logger)
	if cfg.NATSURL != "" {
		n, err := DialNATS(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			return nil, nil, err
		}
		f.Add("nats", n)
		if logger != nil {
			logger.Info("Publishing to NATS %s under %s", cfg.NATSURL, cfg.NATSSubject)
		}
	}
	if cfg.RedisAddr != "" {
		r, err := DialRedis(ctx, cfg.RedisAddr, cfg.RedisPrefix, time.Duration(cfg.RedisTTL)*time.Second)
		if err != nil {
			f.Close()
			return nil, nil, err
		}
		f.Add("redis", r)
		if logger != nil {
			logger.Info("Publishing to Redis %s under %s:*", cfg.RedisAddr, cfg.RedisPrefix)
		}
	}
	var srv *Server
	if cfg.Listen != "" {
		hub := NewHub(logger)
		s, err := Listen(cfg.Listen, hub)
		if err != nil {
			f.Close()
			return nil, nil, err
		}
		f.Add("websocket", hub)
		srv = s
		if logger != nil {
			logger.Info("Serving live telegrams on ws://%s/ws", s.Addr())
		}
	}
	return f, srv, nil
}

func subjectToken(s string) string {
	return strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_").Replace(s)
}
