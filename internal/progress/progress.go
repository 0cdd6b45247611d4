// Package progress draws terminal progress for replays and file parsing.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	barWidth         = 40
	defaultThrottle  = 100 * time.Millisecond
	defaultUnitLabel = "telegrams"
)

// Bar is a fixed-total progress bar written to stderr.
type Bar struct {
	mu          sync.Mutex
	total       int64
	current     int64
	unit        string
	description string
	output      io.Writer
	enabled     bool
	startTime   time.Time
	lastUpdate  time.Time
	throttle    time.Duration
	now         func() time.Time
}

// NewBar creates a bar counting telegrams.
func NewBar(total int64, description string) *Bar {
	return &Bar{
		total:       total,
		unit:        defaultUnitLabel,
		description: description,
		output:      os.Stderr,
		enabled:     true,
		startTime:   time.Now(),
		throttle:    defaultThrottle,
		now:         time.Now,
	}
}

// NewByteBar creates a bar counting bytes, rendered in KiB.
func NewByteBar(total int64, description string) *Bar {
	b := NewBar(total, description)
	b.unit = "bytes"
	return b
}

// SetOutput redirects rendering.
func (b *Bar) SetOutput(w io.Writer) {
	b.mu.Lock()
	b.output = w
	b.mu.Unlock()
}

// SetEnabled turns rendering on or off. Counting continues either way.
func (b *Bar) SetEnabled(enabled bool) {
	b.mu.Lock()
	b.enabled = enabled
	b.mu.Unlock()
}

// Add advances the bar by n.
func (b *Bar) Add(n int64) {
	b.mu.Lock()
	b.current += n
	b.render(false)
	b.mu.Unlock()
}

// Increment advances the bar by one.
func (b *Bar) Increment() { b.Add(1) }

// Current returns the count so far.
func (b *Bar) Current() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Finish renders the final state and ends the line. The count is not
// forced to the total so an interrupted replay shows where it stopped.
func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.enabled {
		return
	}
	b.render(true)
	fmt.Fprintln(b.output)
}

func (b *Bar) render(force bool) {
	if !b.enabled {
		return
	}
	now := b.now()
	if !force && now.Sub(b.lastUpdate) < b.throttle && b.current < b.total {
		return
	}
	b.lastUpdate = now

	var percent float64
	if b.total > 0 {
		percent = float64(b.current) / float64(b.total) * 100
	}
	filled := int(float64(barWidth) * percent / 100)
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("=", filled)
	if filled < barWidth {
		bar += ">" + strings.Repeat("-", barWidth-filled-1)
	}

	elapsed := now.Sub(b.startTime)
	out := "\r"
	if b.description != "" {
		out += b.description + " "
	}
	out += fmt.Sprintf("[%s] %s (%.1f%%) | %s", bar, b.amount(), percent, FormatDuration(elapsed))

	if b.current > 0 && b.current < b.total && elapsed > 0 {
		rate := float64(b.current) / elapsed.Seconds()
		eta := time.Duration(float64(b.total-b.current) / rate * float64(time.Second))
		out += " | ETA " + FormatDuration(eta)
	}
	fmt.Fprint(b.output, out)
}

func (b *Bar) amount() string {
	if b.unit == "bytes" {
		return fmt.Sprintf("%d/%d KiB", b.current/1024, b.total/1024)
	}
	return fmt.Sprintf("%d/%d %s", b.current, b.total, b.unit)
}

// Reader advances a bar as bytes are read through it.
type Reader struct {
	r   io.Reader
	bar *Bar
}

// NewReader wraps r.
func NewReader(r io.Reader, bar *Bar) *Reader {
	return &Reader{r: r, bar: bar}
}

func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.bar.Add(int64(n))
	}
	return n, err
}

// FormatDuration formats d for progress output.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
}

// Counter is an open-ended indicator for live monitoring, where no total
// is known.
type Counter struct {
	mu          sync.Mutex
	output      io.Writer
	description string
	interval    time.Duration
	lastUpdate  time.Time
	now         func() time.Time
}

// NewCounter creates a counter redrawn at most once per interval.
func NewCounter(description string, interval time.Duration) *Counter {
	return &Counter{
		output:      os.Stderr,
		description: description,
		interval:    interval,
		now:         time.Now,
	}
}

// SetOutput redirects rendering.
func (c *Counter) SetOutput(w io.Writer) {
	c.mu.Lock()
	c.output = w
	c.mu.Unlock()
}

// Update redraws the line with count and an optional note.
func (c *Counter) Update(count int64, note string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.lastUpdate) < c.interval {
		return
	}
	c.lastUpdate = now

	out := fmt.Sprintf("\r%d telegrams", count)
	if c.description != "" {
		out = fmt.Sprintf("\r%s: %d telegrams", c.description, count)
	}
	if note != "" {
		out += " | " + note
	}
	fmt.Fprint(c.output, out)
}

// Finish ends the line.
func (c *Counter) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.output)
}
