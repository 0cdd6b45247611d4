package telegram

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

var controllerResponse = []byte{0xB6, 0x6B, 0xAA, 0xDA, 0x0A, 0x02, 0x00, 0x04, 0x00, 0x00, 0x13, 0x00, 0x00, 0x02, 0x01, 0x1C, 0x0D}

func TestNewControllerResponse(t *testing.T) {
	tg, err := New(controllerResponse)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tg.Type() != Response {
		t.Errorf("Type() = %v, want %v", tg.Type(), Response)
	}
	if tg.Destination() != ECU {
		t.Errorf("Destination() = %v, want %v", tg.Destination(), ECU)
	}
	if tg.Source() != EngineController {
		t.Errorf("Source() = %v, want %v", tg.Source(), EngineController)
	}
	if tg.ID() != 0xAADA {
		t.Errorf("ID() = 0x%04X, want 0xAADA", tg.ID())
	}
	if tg.PDULen() != 10 {
		t.Errorf("PDULen() = %d, want 10", tg.PDULen())
	}
	if tg.Checksum() != 0x1C {
		t.Errorf("Checksum() = 0x%02X, want 0x1C", tg.Checksum())
	}
	if !tg.Valid() {
		t.Error("expected valid checksum")
	}
	if !bytes.Equal(tg.Raw(), controllerResponse) {
		t.Errorf("Raw() = % X", tg.Raw())
	}
}

func TestNewCorruptedPDU(t *testing.T) {
	raw := bytes.Clone(controllerResponse)
	raw[6] = 0x10
	tg, err := New(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tg.Valid() {
		t.Error("expected invalid checksum")
	}
}

func TestNewErrors(t *testing.T) {
	tooLong := []byte{0xB6, 0x6B, 0xAA, 0xDA, 0x21}
	tooLong = append(tooLong, make([]byte, 0x21+2)...)

	tests := []struct {
		name    string
		raw     []byte
		wantErr error
	}{
		{
			name:    "too short",
			raw:     []byte{0xB6, 0x6B, 0xAA},
			wantErr: ErrTooShort,
		},
		{
			name:    "unknown type",
			raw:     []byte{0x12, 0x34, 0xAA, 0xDA, 0x00, 0x00, 0x0D},
			wantErr: ErrUnknownType,
		},
		{
			name:    "missing end tag",
			raw:     controllerResponse[:len(controllerResponse)-1],
			wantErr: ErrMissingEndTag,
		},
		{
			name:    "wrong end tag",
			raw:     append(bytes.Clone(controllerResponse[:len(controllerResponse)-1]), 0x0E),
			wantErr: ErrMissingEndTag,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.raw)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrMalformedFrame) {
				t.Errorf("error %v does not wrap ErrMalformedFrame", err)
			}
		})
	}

	t.Run("invalid data length", func(t *testing.T) {
		_, err := New(tooLong)
		var lenErr *InvalidDataLengthError
		if !errors.As(err, &lenErr) {
			t.Fatalf("error = %v, want InvalidDataLengthError", err)
		}
		if lenErr.Length != 0x21 {
			t.Errorf("Length = %d, want 33", lenErr.Length)
		}
		if err.Error() != "invalid data len 33, max supported: 32" {
			t.Errorf("Error() = %q", err.Error())
		}
		if !errors.Is(err, ErrMalformedFrame) {
			t.Error("expected ErrMalformedFrame")
		}
	})
}

func TestNewTrimsTrailingBytes(t *testing.T) {
	raw := append(bytes.Clone(controllerResponse), 0xB6, 0x6B)
	tg, err := New(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(tg.Raw(), controllerResponse) {
		t.Errorf("Raw() = % X, want % X", tg.Raw(), controllerResponse)
	}
}

func TestNewCopiesInput(t *testing.T) {
	raw := bytes.Clone(controllerResponse)
	tg, err := New(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw[5] = 0xFF
	if tg.Byte(0) != 0x02 {
		t.Errorf("telegram shares caller buffer")
	}
	pdu := tg.PDU()
	pdu[0] = 0xFF
	if tg.Byte(0) != 0x02 {
		t.Errorf("PDU() exposes internal buffer")
	}
}

func TestChecksumInvariant(t *testing.T) {
	pdus := [][]byte{
		nil,
		{0x00},
		{0x4D, 0x48, 0x17, 0x00, 0x00, 0x23, 0x00, 0x0B, 0x00, 0x00},
		bytes.Repeat([]byte{0xA5}, MaxPDULength),
	}
	for _, pdu := range pdus {
		raw, err := Encode(Request, Battery, ECU, pdu)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		tg, err := New(raw)
		if err != nil {
			t.Fatalf("New(% X): %v", raw, err)
		}
		if !tg.Valid() {
			t.Errorf("Encode produced invalid frame % X", raw)
		}

		for i := HeaderLength; i < len(raw)-2; i++ {
			broken := bytes.Clone(raw)
			broken[i] ^= 0x01
			tg, err := New(broken)
			if err != nil {
				t.Fatalf("New(% X): %v", broken, err)
			}
			if tg.Valid() {
				t.Errorf("flipped byte %d still valid", i)
			}
		}
	}
}

func TestEncodeTooLong(t *testing.T) {
	_, err := Encode(Request, Battery, ECU, make([]byte, MaxPDULength+1))
	var lenErr *InvalidDataLengthError
	if !errors.As(err, &lenErr) {
		t.Fatalf("error = %v, want InvalidDataLengthError", err)
	}
}

func TestEqual(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	a, _ := NewAt(controllerResponse, ts)
	b, _ := NewAt(controllerResponse, ts)
	c, _ := NewAt(controllerResponse, ts.Add(time.Millisecond))

	if !a.Equal(b) {
		t.Error("expected equal telegrams")
	}
	if a.Equal(c) {
		t.Error("different timestamps must not be equal")
	}
	if !a.Equal(c.WithTime(ts)) {
		t.Error("WithTime should restore equality")
	}
}

func TestString(t *testing.T) {
	tg, _ := New(controllerResponse)
	want := "B6 6B AA DA 0A 02 00 04 00 00 13 00 00 02 01 1C 0D"
	if tg.String() != want {
		t.Errorf("String() = %q, want %q", tg.String(), want)
	}
}

func TestUnitString(t *testing.T) {
	tests := []struct {
		unit Unit
		want string
	}{
		{ECU, "ECU"},
		{EngineController, "ENGINE_CONTROLLER"},
		{Battery, "BATTERY"},
		{Speedometer, "SPEEDOMETER"},
		{Unit(0x11), "0x11"},
	}
	for _, tt := range tests {
		if got := tt.unit.String(); got != tt.want {
			t.Errorf("Unit(0x%02X).String() = %q, want %q", byte(tt.unit), got, tt.want)
		}
	}
}
