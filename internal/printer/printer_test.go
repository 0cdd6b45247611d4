package printer

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/tonylturner/rs485mon/internal/message"
	"github.com/tonylturner/rs485mon/internal/telegram"
)

var controllerResponseRaw = []byte{0xB6, 0x6B, 0xAA, 0xDA, 0x0A, 0x02, 0x00, 0x04, 0x00, 0x00, 0x13, 0x00, 0x00, 0x02, 0x01, 0x1C, 0x0D}

func decoded(t *testing.T, raw []byte, ts time.Time) message.Message {
	t.Helper()
	tg, err := telegram.NewAt(raw, ts)
	if err != nil {
		t.Fatal(err)
	}
	m, err := message.DefaultRegistry().Specialize(tg)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestLogPrinter(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	unknown, err := telegram.Encode(telegram.Request, 0x11, 0x22, []byte{0x01})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	p := NewLogPrinter(&buf)
	p.Display(decoded(t, controllerResponseRaw, base))
	p.Display(decoded(t, unknown, base.Add(12*time.Millisecond)))
	if err := p.Flush(); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	want := []string{
		"[   0 ms] B6 6B AA DA 0A 02 00 04 00 00 13 00 00 02 01 1C 0D -> Controller Response: Mode 2, 0.4A, 0km/h, 19°C, Parking: PARKING_ON",
		"[  12 ms] C5 5C 11 22 01 01 00 0D",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d:\n got %q\nwant %q", i, lines[i], want[i])
		}
	}
	if p.Count() != 2 {
		t.Errorf("Count = %d, want 2", p.Count())
	}
}

func TestMulti(t *testing.T) {
	var a, b bytes.Buffer
	m := Multi{NewLogPrinter(&a), NewLogPrinter(&b)}
	m.Display(decoded(t, controllerResponseRaw, time.Now()))
	if err := m.Flush(); err != nil {
		t.Fatal(err)
	}
	if a.String() == "" || a.String() != b.String() {
		t.Errorf("outputs differ: %q vs %q", a.String(), b.String())
	}
}
