package capture

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"

	"github.com/tonylturner/rs485mon/internal/message"
	"github.com/tonylturner/rs485mon/internal/telegram"
)

var (
	controllerResponseRaw = []byte{0xB6, 0x6B, 0xAA, 0xDA, 0x0A, 0x02, 0x00, 0x04, 0x00, 0x00, 0x13, 0x00, 0x00, 0x02, 0x01, 0x1C, 0x0D}
	batteryRequestRaw     = []byte{0xC5, 0x5C, 0x5A, 0xAA, 0x01, 0x00, 0x01, 0x0D}
)

var base = time.Date(2024, 3, 1, 10, 0, 0, 123456789, time.UTC)

func mustTelegram(t *testing.T, raw []byte, ts time.Time) *telegram.Telegram {
	t.Helper()
	tg, err := telegram.NewAt(raw, ts)
	if err != nil {
		t.Fatalf("telegram.NewAt: %v", err)
	}
	return tg
}

func sample(t *testing.T) []*telegram.Telegram {
	return []*telegram.Telegram{
		mustTelegram(t, controllerResponseRaw, base),
		mustTelegram(t, batteryRequestRaw, base.Add(7*time.Millisecond)),
		mustTelegram(t, controllerResponseRaw, base.Add(20*time.Millisecond)),
	}
}

func writeCapture(t *testing.T, telegrams []*telegram.Telegram) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for _, tg := range telegrams {
		if _, err := w.Push(tg); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	in := sample(t)
	data := writeCapture(t, in)

	if !bytes.HasPrefix(data, []byte("RS485MONITOR\x01")) {
		t.Fatalf("missing header: % X", data[:13])
	}

	r, err := NewReader(bytes.NewReader(data), nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	out, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("read %d messages, want %d", len(out), len(in))
	}
	for i := range in {
		if !out[i].Telegram().Equal(in[i]) {
			t.Errorf("record %d: got %s at %v, want %s at %v", i,
				out[i].Telegram(), out[i].Telegram().Timestamp(), in[i], in[i].Timestamp())
		}
	}
	if out[0].Kind() != message.KindControllerResponse || out[1].Kind() != message.KindBatteryRequest {
		t.Errorf("unexpected kinds %s, %s", out[0].Kind(), out[1].Kind())
	}
}

func TestEmptyCapture(t *testing.T) {
	data := writeCapture(t, nil)
	if len(data) != 13 {
		t.Fatalf("empty capture is %d bytes, want 13", len(data))
	}
	r, err := NewReader(bytes.NewReader(data), nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() error = %v, want io.EOF", err)
	}
}

func TestPushSkipsInvalidChecksum(t *testing.T) {
	bad := bytes.Clone(controllerResponseRaw)
	bad[6] ^= 0xFF
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	ok, err := w.Push(mustTelegram(t, bad, base))
	if err != nil || ok {
		t.Fatalf("Push(invalid) = %v, %v; want false, nil", ok, err)
	}
	if w.Count() != 0 {
		t.Errorf("Count = %d, want 0", w.Count())
	}
	w.Flush()
	if buf.Len() != 13 {
		t.Errorf("capture has %d bytes, want header only", buf.Len())
	}
}

func TestNextSkipsInvalidChecksum(t *testing.T) {
	bad := bytes.Clone(controllerResponseRaw)
	bad[6] = 0x10

	data := writeCapture(t, nil)
	for i, raw := range [][]byte{bad, controllerResponseRaw, bad} {
		var ts [8]byte
		binary.LittleEndian.PutUint64(ts[:], uint64(base.Add(time.Duration(i)*time.Millisecond).UnixNano()))
		data = append(data, ts[:]...)
		data = append(data, raw...)
	}

	r, err := NewReader(bytes.NewReader(data), nil)
	if err != nil {
		t.Fatal(err)
	}
	msgs, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Kind() != message.KindControllerResponse {
		t.Fatalf("got %d messages, want the one controller response", len(msgs))
	}
	if r.Skipped() != 2 {
		t.Errorf("Skipped = %d, want 2", r.Skipped())
	}
}

func TestInvalidHeader(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short", []byte("RS485")},
		{"wrong magic", []byte("RS485MONITOX\x01")},
		{"wrong version", []byte("RS485MONITOR\x02")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(bytes.NewReader(tt.data), nil)
			if !errors.Is(err, ErrInvalidFormat) {
				t.Errorf("error = %v, want ErrInvalidFormat", err)
			}
		})
	}
}

func TestCorruptRecords(t *testing.T) {
	good := writeCapture(t, sample(t)[:1])

	missingEnd := bytes.Clone(good)
	missingEnd[len(missingEnd)-1] = 0x00

	tooLong := bytes.Clone(good)
	tooLong[13+8+4] = 40

	tests := []struct {
		name string
		data []byte
	}{
		{"missing end tag", missingEnd},
		{"truncated timestamp", good[:13+4]},
		{"truncated header", good[:13+8+3]},
		{"truncated frame", good[:len(good)-3]},
		{"length above 32", tooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewReader(bytes.NewReader(tt.data), nil)
			if err != nil {
				t.Fatalf("NewReader: %v", err)
			}
			_, err = r.Next()
			if !errors.Is(err, ErrCorruptCapture) {
				t.Errorf("Next() error = %v, want ErrCorruptCapture", err)
			}
		})
	}
}

func TestAllStopsAtError(t *testing.T) {
	data := writeCapture(t, sample(t))
	data = append(data, 0x01, 0x02)

	r, err := NewReader(bytes.NewReader(data), nil)
	if err != nil {
		t.Fatal(err)
	}
	var n, errs int
	for _, err := range r.All() {
		if err != nil {
			errs++
			continue
		}
		n++
	}
	if n != 3 || errs != 1 {
		t.Errorf("got %d messages and %d errors, want 3 and 1", n, errs)
	}
}

func TestResetAndFile(t *testing.T) {
	dir := t.TempDir()
	path := DefaultFileName(filepath.Join(dir, "nested"), base)
	if filepath.Base(path) != "20240301_100000_telegram.ssm" {
		t.Errorf("DefaultFileName = %s", filepath.Base(path))
	}

	w, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, tg := range sample(t) {
		if _, err := w.Push(tg); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := Open(path, message.LegacyRegistry())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	first, err := r.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if first[0].Kind() != message.KindECUStatus {
		t.Errorf("legacy registry produced %s", first[0].Kind())
	}
	if err := r.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	second, err := r.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != len(first) {
		t.Errorf("after Reset read %d, want %d", len(second), len(first))
	}
}

func TestTimestampEncoding(t *testing.T) {
	data := writeCapture(t, sample(t)[:1])
	got := int64(binary.LittleEndian.Uint64(data[13:21]))
	if got != base.UnixNano() {
		t.Errorf("timestamp = %d, want %d", got, base.UnixNano())
	}
}

func TestPCAPRoundTrip(t *testing.T) {
	in := sample(t)
	var buf bytes.Buffer
	if n, err := ExportPCAP(&buf, in); err != nil || n != len(in) {
		t.Fatalf("ExportPCAP = %d, %v", n, err)
	}
	out, err := ImportPCAP(&buf)
	if err != nil {
		t.Fatalf("ImportPCAP: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("imported %d, want %d", len(out), len(in))
	}
	for i := range in {
		if !bytes.Equal(out[i].Raw(), in[i].Raw()) {
			t.Errorf("packet %d raw mismatch", i)
		}
		if !out[i].Timestamp().Equal(in[i].Timestamp().Truncate(time.Microsecond)) {
			t.Errorf("packet %d timestamp %v, want %v", i, out[i].Timestamp(), in[i].Timestamp())
		}
	}

	msgs, err := Messages(message.DefaultRegistry(), out)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if msgs[1].Kind() != message.KindBatteryRequest {
		t.Errorf("kind = %s", msgs[1].Kind())
	}
}

func TestPCAPSkipsInvalidChecksum(t *testing.T) {
	bad := bytes.Clone(controllerResponseRaw)
	bad[6] ^= 0x10
	in := []*telegram.Telegram{
		mustTelegram(t, bad, base),
		mustTelegram(t, controllerResponseRaw, base.Add(5*time.Millisecond)),
	}

	msgs, err := Messages(message.DefaultRegistry(), in)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("Messages = %d, %v; want 1 message", len(msgs), err)
	}

	var buf bytes.Buffer
	n, err := ExportPCAP(&buf, in)
	if err != nil || n != 1 {
		t.Fatalf("ExportPCAP = %d, %v; want 1", n, err)
	}
	out, err := ImportPCAP(&buf)
	if err != nil {
		t.Fatalf("ImportPCAP: %v", err)
	}
	if len(out) != 1 || !bytes.Equal(out[0].Raw(), controllerResponseRaw) {
		t.Errorf("imported %d telegrams, want only the valid frame", len(out))
	}
}

func TestTelegramLayer(t *testing.T) {
	packet := gopacket.NewPacket(controllerResponseRaw, LayerTypeTelegram, gopacket.Default)
	l, ok := packet.Layer(LayerTypeTelegram).(*TelegramLayer)
	if !ok {
		t.Fatalf("no telegram layer: %v", packet.ErrorLayer())
	}
	if l.Type != telegram.Response || l.Destination != telegram.ECU || l.Source != telegram.EngineController {
		t.Errorf("unexpected header %+v", l)
	}
	if len(l.Payload) != 10 || l.Checksum != 0x1C {
		t.Errorf("payload %d bytes, checksum %02X", len(l.Payload), l.Checksum)
	}

	bad := gopacket.NewPacket([]byte{0x00, 0x01, 0x02}, LayerTypeTelegram, gopacket.Default)
	if bad.ErrorLayer() == nil {
		t.Error("expected decode error for short packet")
	}
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "none.ssm"), nil)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want not exist", err)
	}
}
