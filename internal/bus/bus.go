// Package bus connects rs485mon to the RS485 adapter through a serial port.
package bus

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"go.bug.st/serial"
)

const (
	DefaultBaudRate    = 9600
	DefaultReadTimeout = 100 * time.Millisecond

	// RawDumpLayout names the raw byte dump written next to a capture.
	RawDumpLayout = "raw_20060102_150405.bin"
)

// Port is the part of a serial port the monitor and simulator use.
type Port interface {
	io.ReadWriteCloser
}

// Config describes the serial line. The bus runs 8N1.
type Config struct {
	Port        string
	BaudRate    int
	ReadTimeout time.Duration
}

// Open opens the serial port described by cfg.
func Open(cfg Config) (Port, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("serial port name is required")
	}
	baud := cfg.BaudRate
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Port, err)
	}
	timeout := cfg.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", cfg.Port, err)
	}
	return port, nil
}

// ListPorts returns the serial ports known to the operating system.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}

// RawDumpName returns the raw dump path for a session started at t.
func RawDumpName(dir string, t time.Time) string {
	return filepath.Join(dir, t.Format(RawDumpLayout))
}
