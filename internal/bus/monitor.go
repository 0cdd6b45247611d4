package bus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/tonylturner/rs485mon/internal/logging"
)

const readBufferSize = 256

// Feeder consumes raw bus bytes. *pipeline.Pipeline implements it.
type Feeder interface {
	Feed(chunk []byte)
	Flush()
}

// Monitor reads a port and feeds every chunk to a Feeder. When RawDump is
// set every byte read is copied there before framing.
type Monitor struct {
	Port    Port
	Feeder  Feeder
	RawDump io.Writer
	Logger  *logging.Logger

	mu    sync.Mutex
	bytes uint64
}

// BytesRead is the number of bytes received so far.
func (m *Monitor) BytesRead() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bytes
}

// Run reads until ctx is done or the port fails. The port is closed when
// ctx ends so a blocked read returns. The pending frame is flushed on exit.
func (m *Monitor) Run(ctx context.Context) error {
	if m.Port == nil || m.Feeder == nil {
		return fmt.Errorf("monitor requires a port and a feeder")
	}
	defer m.Feeder.Flush()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			m.Port.Close()
		case <-stop:
		}
	}()

	buf := make([]byte, readBufferSize)
	for {
		n, err := m.Port.Read(buf)
		if n > 0 {
			m.mu.Lock()
			m.bytes += uint64(n)
			m.mu.Unlock()
			if m.RawDump != nil {
				if _, werr := m.RawDump.Write(buf[:n]); werr != nil {
					m.Logger.Error("write raw dump: %v", werr)
					m.RawDump = nil
				}
			}
			m.Feeder.Feed(buf[:n])
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, io.EOF) {
			m.Logger.Verbose("serial port closed")
			return nil
		}
		if err != nil {
			return fmt.Errorf("read serial port: %w", err)
		}
	}
}
