// Package message promotes generic telegrams to typed bus messages.
package message

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/tonylturner/rs485mon/internal/telegram"
)

// Kind tags a message variant.
type Kind string

const (
	KindGeneric             Kind = "Telegram"
	KindBatteryRequest      Kind = "BatteryRequest"
	KindBatteryResponse     Kind = "BatteryResponse"
	KindControllerRequest   Kind = "ControllerRequest"
	KindControllerResponse  Kind = "ControllerResponse"
	KindSpeedometerRequest  Kind = "SpeedometerRequest"
	KindSpeedometerResponse Kind = "SpeedometerResponse"
	KindBatteryStatus       Kind = "BatteryStatus"
	KindECUStatus           Kind = "ECUStatus"
	KindGSMStatus           Kind = "GSMStatus"
)

// Message is a decoded telegram. Callers switch on the concrete type or on
// Kind.
type Message interface {
	Telegram() *telegram.Telegram
	Kind() Kind
	String() string
}

var (
	// ErrSizeOrIdentityMismatch is matched by SizeError and IdentityError.
	ErrSizeOrIdentityMismatch = errors.New("size or identity mismatch")
	ErrInvalidChecksum        = errors.New("telegram checksum is invalid")
)

// SizeError reports a PDU length that does not match the variant.
type SizeError struct {
	Kind Kind
	Size int
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("Unexpected size of %d", e.Size)
}

func (e *SizeError) Is(target error) bool {
	return target == ErrSizeOrIdentityMismatch
}

// IdentityError reports a destination/source pair that does not match the
// variant.
type IdentityError struct {
	Kind        Kind
	Destination telegram.Unit
	Source      telegram.Unit
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("Not a %s telegram", e.Kind)
}

func (e *IdentityError) Is(target error) bool {
	return target == ErrSizeOrIdentityMismatch
}

// Generic is a telegram without a known layout.
type Generic struct {
	t *telegram.Telegram
}

// NewGeneric wraps t without interpretation.
func NewGeneric(t *telegram.Telegram) *Generic {
	return &Generic{t: t}
}

func (g *Generic) Telegram() *telegram.Telegram { return g.t }
func (g *Generic) Kind() Kind                   { return KindGeneric }
func (g *Generic) String() string               { return g.t.String() }

// base carries the telegram shared by all typed variants.
type base struct {
	t *telegram.Telegram
}

func (b base) Telegram() *telegram.Telegram { return b.t }

// layout is the fixed shape of one variant.
type layout struct {
	kind Kind
	dst  telegram.Unit
	src  telegram.Unit
	size int
}

func (l layout) id() uint16 {
	return telegram.ID(l.dst, l.src)
}

func (l layout) check(t *telegram.Telegram) error {
	if t.PDULen() != l.size {
		return &SizeError{Kind: l.kind, Size: t.PDULen()}
	}
	if t.Destination() != l.dst || t.Source() != l.src {
		return &IdentityError{Kind: l.kind, Destination: t.Destination(), Source: t.Source()}
	}
	return nil
}

// Detailed renders "<hex> -> <decoded>" for typed messages and the bare hex
// for generic ones.
func Detailed(m Message) string {
	if m.Kind() == KindGeneric {
		return m.Telegram().String()
	}
	return m.Telegram().String() + " -> " + m.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
