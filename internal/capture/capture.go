// Package capture persists telegrams in the rs485mon binary capture format.
//
// A capture starts with the 12 byte magic "RS485MONITOR" and a version byte.
// Every record is an int64 little-endian UnixNano timestamp followed by the
// raw frame exactly as it appeared on the bus.
package capture

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"time"

	"github.com/tonylturner/rs485mon/internal/message"
	"github.com/tonylturner/rs485mon/internal/telegram"
)

const (
	Magic   = "RS485MONITOR"
	Version = 1

	// FileNameLayout names capture files inside the output directory.
	FileNameLayout = "20060102_150405_telegram.ssm"
)

var (
	ErrInvalidFormat  = errors.New("invalid file format")
	ErrCorruptCapture = errors.New("end tag not found, file is corrupted")
)

var header = append([]byte(Magic), Version)

// DefaultFileName returns the capture name for a session started at t.
func DefaultFileName(dir string, t time.Time) string {
	return filepath.Join(dir, t.Format(FileNameLayout))
}

// Writer appends records to a capture.
type Writer struct {
	bw     *bufio.Writer
	closer io.Closer
	count  int
}

// NewWriter writes the header immediately.
func NewWriter(w io.Writer) (*Writer, error) {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(header); err != nil {
		return nil, fmt.Errorf("write capture header: %w", err)
	}
	cw := &Writer{bw: bw}
	if c, ok := w.(io.Closer); ok {
		cw.closer = c
	}
	return cw, nil
}

// Create opens path for writing, creating parent directories.
func Create(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create capture directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create capture file: %w", err)
	}
	w, err := NewWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// Push appends t. Telegrams with a checksum mismatch are skipped and
// reported as not written.
func (w *Writer) Push(t *telegram.Telegram) (bool, error) {
	if !t.Valid() {
		return false, nil
	}
	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], uint64(t.Timestamp().UnixNano()))
	if _, err := w.bw.Write(ts[:]); err != nil {
		return false, fmt.Errorf("write record timestamp: %w", err)
	}
	if _, err := w.bw.Write(t.Raw()); err != nil {
		return false, fmt.Errorf("write record frame: %w", err)
	}
	w.count++
	return true, nil
}

// Count is the number of records written.
func (w *Writer) Count() int { return w.count }

func (w *Writer) Flush() error {
	return w.bw.Flush()
}

// Close flushes and closes the underlying writer when it is a Closer.
// Further calls only flush.
func (w *Writer) Close() error {
	err := w.bw.Flush()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
		w.closer = nil
	}
	return err
}

// Reader iterates the records of a capture.
type Reader struct {
	src    io.Reader
	br     *bufio.Reader
	reg    *message.Registry
	closer io.Closer
	// records dropped by Next for a bad checksum
	skipped int
}

// NewReader validates the header. reg decides how records are specialised;
// nil selects the default registry.
func NewReader(r io.Reader, reg *message.Registry) (*Reader, error) {
	if reg == nil {
		reg = message.DefaultRegistry()
	}
	cr := &Reader{src: r, br: bufio.NewReader(r), reg: reg}
	if c, ok := r.(io.Closer); ok {
		cr.closer = c
	}
	if err := cr.readHeader(); err != nil {
		return nil, err
	}
	return cr, nil
}

// Open opens a capture file.
func Open(path string, reg *message.Registry) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture file: %w", err)
	}
	r, err := NewReader(f, reg)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) readHeader() error {
	got := make([]byte, len(header))
	if _, err := io.ReadFull(r.br, got); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if !bytes.Equal(got, header) {
		return ErrInvalidFormat
	}
	return nil
}

// NextTelegram returns the next record as a telegram without
// specialisation. It returns io.EOF at a clean end of file.
func (r *Reader) NextTelegram() (*telegram.Telegram, error) {
	var ts [8]byte
	if _, err := io.ReadFull(r.br, ts[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: truncated timestamp", ErrCorruptCapture)
	}
	stamp := time.Unix(0, int64(binary.LittleEndian.Uint64(ts[:])))

	frame := make([]byte, telegram.HeaderLength, telegram.MaxLength)
	if _, err := io.ReadFull(r.br, frame); err != nil {
		return nil, fmt.Errorf("%w: truncated frame header", ErrCorruptCapture)
	}
	n := int(frame[telegram.HeaderLength-1])
	if n > telegram.MaxPDULength {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCapture, &telegram.InvalidDataLengthError{Length: n})
	}
	frame = frame[:telegram.HeaderLength+n+2]
	if _, err := io.ReadFull(r.br, frame[telegram.HeaderLength:]); err != nil {
		return nil, fmt.Errorf("%w: truncated frame", ErrCorruptCapture)
	}
	if frame[len(frame)-1] != telegram.EndMarker {
		return nil, ErrCorruptCapture
	}

	t, err := telegram.NewAt(frame, stamp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCapture, err)
	}
	return t, nil
}

// Next returns the next specialised message, or io.EOF. Records whose
// checksum does not match are skipped and counted; a decoder rejecting a
// record is still an error.
func (r *Reader) Next() (message.Message, error) {
	for {
		t, err := r.NextTelegram()
		if err != nil {
			return nil, err
		}
		if !t.Valid() {
			r.skipped++
			continue
		}
		return r.reg.Specialize(t)
	}
}

// Skipped is the number of records Next dropped for a bad checksum.
func (r *Reader) Skipped() int { return r.skipped }

// All iterates the remaining records. Iteration stops after the first error,
// which is yielded once. A clean end of file is not an error.
func (r *Reader) All() iter.Seq2[message.Message, error] {
	return func(yield func(message.Message, error) bool) {
		for {
			m, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(m, err) || err != nil {
				return
			}
		}
	}
}

// ReadAll collects every remaining message.
func (r *Reader) ReadAll() ([]message.Message, error) {
	var out []message.Message
	for m, err := range r.All() {
		if err != nil {
			return out, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Reset rewinds to the first record. The source must be an io.Seeker.
func (r *Reader) Reset() error {
	s, ok := r.src.(io.Seeker)
	if !ok {
		return fmt.Errorf("capture source is not seekable")
	}
	if _, err := s.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind capture: %w", err)
	}
	r.br.Reset(r.src)
	r.skipped = 0
	return r.readHeader()
}

func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
