// Package printer renders decoded messages for the console.
package printer

import (
	"bufio"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tonylturner/rs485mon/internal/message"
)

// Printer is the presentation boundary. Display may be called from the
// pipeline goroutine; implementations synchronise themselves.
type Printer interface {
	Display(m message.Message)
	Flush() error
}

// LogPrinter appends one line per message:
//
//	[  12 ms] B6 6B AA DA ... -> Controller Response: ...
//
// The offset is the time since the previous message.
type LogPrinter struct {
	mu   sync.Mutex
	w    *bufio.Writer
	last time.Time
	n    int
}

func NewLogPrinter(w io.Writer) *LogPrinter {
	return &LogPrinter{w: bufio.NewWriter(w)}
}

func (p *LogPrinter) Display(m message.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ts := m.Telegram().Timestamp()
	var offset time.Duration
	if !p.last.IsZero() && !ts.IsZero() {
		offset = ts.Sub(p.last)
	}
	p.last = ts
	p.n++
	fmt.Fprintf(p.w, "[%4d ms] %s\n", offset.Milliseconds(), message.Detailed(m))
}

// Count is the number of displayed messages.
func (p *LogPrinter) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.n
}

func (p *LogPrinter) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.w.Flush()
}

// Multi fans a message out to several printers.
type Multi []Printer

func (m Multi) Display(msg message.Message) {
	for _, p := range m {
		p.Display(msg)
	}
}

func (m Multi) Flush() error {
	var first error
	for _, p := range m {
		if err := p.Flush(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
