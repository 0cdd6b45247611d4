// Package framer splits an RS485 byte stream into raw frames.
//
// Frame boundaries are detected retrospectively: a block is only emitted
// once the start marker of the following frame has been seen. Call Flush at
// end of stream to release the last block.
package framer

import (
	"errors"
	"fmt"
)

// MaxBlockLength bounds the internal buffer. The longest legal frame is 39
// bytes, plus two bytes of the following marker.
const MaxBlockLength = 64

// ErrBufferOverflow is returned when a block grows past MaxBlockLength
// without a new start marker. The block is dropped and scanning restarts.
var ErrBufferOverflow = errors.New("frame buffer overflow")

// State of the synchronizer.
type State int

const (
	NoBlock State = iota
	FirstByte
	ReadingBlock
)

func (s State) String() string {
	switch s {
	case NoBlock:
		return "NO_BLOCK"
	case FirstByte:
		return "FIRST_BYTE"
	case ReadingBlock:
		return "READING_BLOCK"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// First and second marker bytes of the REQUEST (C5 5C) and RESPONSE (B6 6B)
// families. Any first byte followed by any second byte confirms a marker.
func isFirstByte(b byte) bool  { return b == 0xC5 || b == 0xB6 }
func isSecondByte(b byte) bool { return b == 0x5C || b == 0x6B }

// Stats counts synchronizer activity.
type Stats struct {
	Frames    uint64
	Overflows uint64
	Discarded uint64
}

// Framer is a single goroutine state machine. onFrame runs synchronously on
// the feeding goroutine and receives a slice it may keep.
type Framer struct {
	state   State
	buf     []byte
	onFrame func([]byte)
	stats   Stats
}

// New creates a framer that hands every finished block to onFrame.
func New(onFrame func(raw []byte)) *Framer {
	return &Framer{
		buf:     make([]byte, 0, MaxBlockLength),
		onFrame: onFrame,
	}
}

// Feed processes one chunk. Chunk boundaries do not influence the output.
// On overflow the remaining bytes are still processed and the first
// overflow error is returned.
func (f *Framer) Feed(chunk []byte) error {
	var firstErr error
	for _, b := range chunk {
		if err := f.step(b); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f *Framer) step(b byte) error {
	switch f.state {
	case NoBlock:
		if isFirstByte(b) {
			f.buf = append(f.buf[:0], b)
			f.state = FirstByte
		} else {
			f.stats.Discarded++
		}
		return nil

	case FirstByte:
		if err := f.append(b); err != nil {
			return err
		}
		switch {
		case isSecondByte(b):
			f.finishBlock()
			f.state = ReadingBlock
		case len(f.buf) == 2:
			// Lone candidate byte that did not become a marker: resync.
			f.stats.Discarded++
			f.buf = f.buf[:0]
			f.state = NoBlock
			if isFirstByte(b) {
				f.buf = append(f.buf, b)
				f.state = FirstByte
			} else {
				f.stats.Discarded++
			}
		case isFirstByte(b):
			// B6 B6 6B: the second B6 may still start the marker.
			f.state = FirstByte
		default:
			f.state = ReadingBlock
		}
		return nil

	case ReadingBlock:
		if err := f.append(b); err != nil {
			return err
		}
		if isFirstByte(b) {
			f.state = FirstByte
		}
		return nil
	}
	return fmt.Errorf("invalid framer state %v", f.state)
}

func (f *Framer) append(b byte) error {
	if len(f.buf) >= MaxBlockLength {
		f.stats.Overflows++
		f.stats.Discarded += uint64(len(f.buf))
		f.buf = f.buf[:0]
		f.state = NoBlock
		// The byte that overflowed may start the next frame.
		if isFirstByte(b) {
			f.buf = append(f.buf, b)
			f.state = FirstByte
		} else {
			f.stats.Discarded++
		}
		return fmt.Errorf("%w: block exceeds %d bytes", ErrBufferOverflow, MaxBlockLength)
	}
	f.buf = append(f.buf, b)
	return nil
}

// finishBlock emits everything before the just confirmed marker and keeps
// the marker as the start of the next block.
func (f *Framer) finishBlock() {
	n := len(f.buf)
	if n > 2 {
		f.emit(f.buf[:n-2])
	}
	marker := [2]byte{f.buf[n-2], f.buf[n-1]}
	f.buf = append(f.buf[:0], marker[0], marker[1])
}

func (f *Framer) emit(block []byte) {
	f.stats.Frames++
	if f.onFrame != nil {
		out := make([]byte, len(block))
		copy(out, block)
		f.onFrame(out)
	}
}

// Flush emits the pending block, if it holds more than a bare marker, and
// resets the synchronizer. Whether the block is a complete frame is decided
// downstream.
func (f *Framer) Flush() {
	if len(f.buf) > 2 {
		f.emit(f.buf)
	}
	f.Reset()
}

// Reset drops buffered bytes and returns to NoBlock.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
	f.state = NoBlock
}

// State returns the current synchronizer state.
func (f *Framer) State() State { return f.state }

// Buffered returns the number of bytes waiting for the next marker.
func (f *Framer) Buffered() int { return len(f.buf) }

// Stats returns a snapshot of the counters.
func (f *Framer) Stats() Stats { return f.stats }
