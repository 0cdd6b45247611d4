package artifact

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tonylturner/rs485mon/internal/metrics"
)

var start = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func TestNewSession(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "captures")

	s, err := NewSession(dir, start)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	if s.ID() != "20240301_100000" {
		t.Errorf("ID() = %q", s.ID())
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("output dir not created: %v", err)
	}
	want := []string{
		filepath.Join(dir, "session_20240301_100000.json"),
		filepath.Join(dir, "summary_20240301_100000.txt"),
	}
	got := s.Files()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Files() = %v, want %v", got, want)
	}
}

func TestNewSessionInvalidPath(t *testing.T) {
	if _, err := NewSession("/dev/null/impossible", start); err == nil {
		t.Error("expected error for invalid path")
	}
}

func TestSessionFinalize(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSession(dir, start)
	if err != nil {
		t.Fatal(err)
	}
	s.SetBus("/dev/ttyUSB0", 9600, "default")
	s.SetCapture(filepath.Join(dir, "20240301_100000_telegram.ssm"))
	s.SetRawDump(filepath.Join(dir, "raw_20240301_100000.bin"))
	s.SetEventsCSV("/elsewhere/events.csv")

	sink := metrics.NewSink()
	sink.Record(metrics.Event{Timestamp: start, ID: 0xAADA, Kind: "Controller Response", Outcome: metrics.OutcomeDecoded})
	sink.Record(metrics.Event{Timestamp: start.Add(time.Second), ID: 0xAADA, Outcome: metrics.OutcomeChecksum})
	sink.Record(metrics.Event{Outcome: metrics.OutcomeOverflow})

	end := start.Add(90 * time.Second)
	if err := s.Finalize(end, sink.GetSummary(), 4096, errors.New("port lost")); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	data, err := os.ReadFile(s.JSONPath())
	if err != nil {
		t.Fatal(err)
	}
	var md SessionMetadata
	if err := json.Unmarshal(data, &md); err != nil {
		t.Fatal(err)
	}
	if md.Duration != "1m30s" || md.Error != "port lost" {
		t.Errorf("metadata: %+v", md)
	}
	wantStats := SessionStats{BytesRead: 4096, TotalFrames: 2, Decoded: 1, ChecksumErrors: 1, Overflows: 1, IDs: 1}
	if md.Stats != wantStats {
		t.Errorf("stats = %+v, want %+v", md.Stats, wantStats)
	}
	wantPaths := Paths{
		SessionJSON: "session_20240301_100000.json",
		SummaryTxt:  "summary_20240301_100000.txt",
		Capture:     "20240301_100000_telegram.ssm",
		RawDump:     "raw_20240301_100000.bin",
	}
	if md.Artifacts.EventsCSV == "" {
		t.Error("events path missing")
	}
	md.Artifacts.EventsCSV = ""
	if md.Artifacts != wantPaths {
		t.Errorf("artifacts = %+v, want %+v", md.Artifacts, wantPaths)
	}

	summary, err := os.ReadFile(s.SummaryPath())
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"rs485mon Session 20240301_100000", "/dev/ttyUSB0 @ 9600 baud", "Total Frames: 2", "Error: port lost", "Capture:     20240301_100000_telegram.ssm"} {
		if !strings.Contains(string(summary), want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}
}
