// Package telegram decodes single RS485 bus frames.
//
// Frame layout:
//
//	[type:2][destination:1][source:1][len:1][pdu:len][checksum:1][0x0D]
//
// The checksum is the XOR of the len byte and every PDU byte.
package telegram

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Type is the two byte frame marker.
type Type uint16

const (
	Request  Type = 0xC55C
	Response Type = 0xB66B
)

func (t Type) String() string {
	switch t {
	case Request:
		return "REQUEST"
	case Response:
		return "RESPONSE"
	default:
		return fmt.Sprintf("UNKNOWN(0x%04X)", uint16(t))
	}
}

// Unit identifies a bus participant.
type Unit byte

const (
	ECU              Unit = 0xAA
	EngineController Unit = 0xDA
	Battery          Unit = 0x5A
	Speedometer      Unit = 0xBA
)

func (u Unit) String() string {
	switch u {
	case ECU:
		return "ECU"
	case EngineController:
		return "ENGINE_CONTROLLER"
	case Battery:
		return "BATTERY"
	case Speedometer:
		return "SPEEDOMETER"
	default:
		return fmt.Sprintf("0x%02X", byte(u))
	}
}

const (
	MaxPDULength = 32
	MinLength    = 7
	MaxLength    = MinLength + MaxPDULength
	EndMarker    = 0x0D
	HeaderLength = 5

	posLen = 4
	posPDU = 5
)

var (
	// ErrMalformedFrame is wrapped by every structural decode error.
	ErrMalformedFrame = errors.New("malformed frame")
	ErrTooShort       = fmt.Errorf("%w: raw data is too short", ErrMalformedFrame)
	ErrUnknownType    = fmt.Errorf("%w: unknown telegram type", ErrMalformedFrame)
	ErrMissingEndTag  = fmt.Errorf("%w: raw data does not contain end tag", ErrMalformedFrame)
)

// InvalidDataLengthError reports a len byte above MaxPDULength.
type InvalidDataLengthError struct {
	Length int
}

func (e *InvalidDataLengthError) Error() string {
	return fmt.Sprintf("invalid data len %d, max supported: %d", e.Length, MaxPDULength)
}

func (e *InvalidDataLengthError) Unwrap() error {
	return ErrMalformedFrame
}

// Telegram is a decoded frame. It is immutable once constructed.
type Telegram struct {
	raw       []byte
	typ       Type
	pdu       []byte
	checksum  byte
	valid     bool
	timestamp time.Time
}

// New decodes raw stamped with the current time.
func New(raw []byte) (*Telegram, error) {
	return NewAt(raw, time.Now())
}

// NewAt decodes raw with an explicit timestamp. Bytes after the end marker
// are not part of the telegram.
func NewAt(raw []byte, ts time.Time) (*Telegram, error) {
	if len(raw) < MinLength {
		return nil, ErrTooShort
	}

	typ := Type(binary.BigEndian.Uint16(raw[0:2]))
	if typ != Request && typ != Response {
		return nil, fmt.Errorf("%w: 0x%04X", ErrUnknownType, uint16(typ))
	}

	n := int(raw[posLen])
	if n > MaxPDULength {
		return nil, &InvalidDataLengthError{Length: n}
	}

	end := posPDU + n + 1
	if end >= len(raw) || raw[end] != EndMarker {
		return nil, ErrMissingEndTag
	}

	frame := bytes.Clone(raw[:end+1])
	t := &Telegram{
		raw:       frame,
		typ:       typ,
		pdu:       frame[posPDU : posPDU+n],
		checksum:  frame[posPDU+n],
		timestamp: ts,
	}
	t.valid = Checksum(frame[posLen], t.pdu) == t.checksum
	return t, nil
}

// Checksum folds length and pdu with XOR.
func Checksum(length byte, pdu []byte) byte {
	sum := length
	for _, b := range pdu {
		sum ^= b
	}
	return sum
}

// Encode builds a well formed frame.
func Encode(typ Type, dst, src Unit, pdu []byte) ([]byte, error) {
	if len(pdu) > MaxPDULength {
		return nil, &InvalidDataLengthError{Length: len(pdu)}
	}
	raw := make([]byte, 0, MinLength+len(pdu))
	raw = binary.BigEndian.AppendUint16(raw, uint16(typ))
	raw = append(raw, byte(dst), byte(src), byte(len(pdu)))
	raw = append(raw, pdu...)
	raw = append(raw, Checksum(byte(len(pdu)), pdu), EndMarker)
	return raw, nil
}

func (t *Telegram) Type() Type { return t.typ }

func (t *Telegram) Destination() Unit { return Unit(t.raw[2]) }

func (t *Telegram) Source() Unit { return Unit(t.raw[3]) }

func (t *Telegram) Checksum() byte { return t.checksum }

// Valid reports whether the stored checksum matches the computed one.
func (t *Telegram) Valid() bool { return t.valid }

func (t *Telegram) Timestamp() time.Time { return t.timestamp }

func (t *Telegram) PDULen() int { return len(t.pdu) }

// PDU returns a copy of the payload.
func (t *Telegram) PDU() []byte { return bytes.Clone(t.pdu) }

// Raw returns a copy of the frame bytes, start marker through end marker.
func (t *Telegram) Raw() []byte { return bytes.Clone(t.raw) }

func (t *Telegram) ID() uint16 { return ID(t.Destination(), t.Source()) }

// Byte returns PDU byte i.
func (t *Telegram) Byte(i int) byte { return t.pdu[i] }

// Int8 returns PDU byte i as a signed value.
func (t *Telegram) Int8(i int) int8 { return int8(t.pdu[i]) }

// Uint16 reads a big endian value at PDU offset i.
func (t *Telegram) Uint16(i int) uint16 { return binary.BigEndian.Uint16(t.pdu[i : i+2]) }

// WithTime returns a copy stamped with ts.
func (t *Telegram) WithTime(ts time.Time) *Telegram {
	c := *t
	c.timestamp = ts
	return &c
}

// ID combines destination and source into the registry key.
func ID(dst, src Unit) uint16 {
	return uint16(dst)<<8 | uint16(src)
}

// Equal reports whether both telegrams carry the same bytes and timestamp.
func (t *Telegram) Equal(o *Telegram) bool {
	if t == nil || o == nil {
		return t == o
	}
	return bytes.Equal(t.raw, o.raw) && t.timestamp.Equal(o.timestamp)
}

// String renders the raw bytes as spaced upper case hex.
func (t *Telegram) String() string {
	return Hex(t.raw)
}

// Hex formats b as "B6 6B AA".
func Hex(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b) * 3)
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", v)
	}
	return sb.String()
}
