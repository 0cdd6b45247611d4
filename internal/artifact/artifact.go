// Package artifact writes the sidecar files that describe a recorded
// monitoring session.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tonylturner/rs485mon/internal/metrics"
)

// SessionIDLayout matches the capture file naming.
const SessionIDLayout = "20060102_150405"

// SessionMetadata is written as session_<id>.json next to the capture.
type SessionMetadata struct {
	SessionID string    `json:"session_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  string    `json:"duration"`

	Port           string `json:"port"`
	BaudRate       int    `json:"baud_rate"`
	DecoderProfile string `json:"decoder_profile"`

	Stats SessionStats `json:"stats"`
	Error string       `json:"error,omitempty"`

	// Paths are relative to the output directory.
	Artifacts Paths `json:"artifacts"`
}

// SessionStats is the frame accounting of one session.
type SessionStats struct {
	BytesRead      uint64 `json:"bytes_read"`
	TotalFrames    int    `json:"total_frames"`
	Decoded        int    `json:"decoded"`
	Unknown        int    `json:"unknown_id"`
	ChecksumErrors int    `json:"checksum_errors"`
	Mismatches     int    `json:"mismatches"`
	Malformed      int    `json:"malformed"`
	Overflows      int    `json:"overflows"`
	IDs            int    `json:"ids"`
}

// Paths lists the files of a session.
type Paths struct {
	SessionJSON string `json:"session_json"`
	SummaryTxt  string `json:"summary_txt,omitempty"`
	Capture     string `json:"capture,omitempty"`
	RawDump     string `json:"raw_dump,omitempty"`
	EventsCSV   string `json:"events_csv,omitempty"`
	EventsJSON  string `json:"events_json,omitempty"`
}

// Session collects metadata while monitoring runs and writes it at the end.
type Session struct {
	outputDir string
	metadata  *SessionMetadata
}

// NewSession prepares the sidecar files of a session started at start.
func NewSession(outputDir string, start time.Time) (*Session, error) {
	if outputDir == "" {
		outputDir = "."
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	id := start.Format(SessionIDLayout)
	s := &Session{
		outputDir: outputDir,
		metadata: &SessionMetadata{
			SessionID: id,
			StartTime: start,
		},
	}
	s.metadata.Artifacts.SessionJSON = filepath.Base(s.JSONPath())
	return s, nil
}

func (s *Session) ID() string { return s.metadata.SessionID }

// Metadata returns the collected metadata.
func (s *Session) Metadata() SessionMetadata { return *s.metadata }

// SetBus records the serial settings.
func (s *Session) SetBus(port string, baud int, profile string) {
	s.metadata.Port = port
	s.metadata.BaudRate = baud
	s.metadata.DecoderProfile = profile
}

func (s *Session) SetCapture(path string)    { s.metadata.Artifacts.Capture = s.rel(path) }
func (s *Session) SetRawDump(path string)    { s.metadata.Artifacts.RawDump = s.rel(path) }
func (s *Session) SetEventsCSV(path string)  { s.metadata.Artifacts.EventsCSV = s.rel(path) }
func (s *Session) SetEventsJSON(path string) { s.metadata.Artifacts.EventsJSON = s.rel(path) }

func (s *Session) rel(path string) string {
	if path == "" {
		return ""
	}
	if r, err := filepath.Rel(s.outputDir, path); err == nil {
		return r
	}
	return path
}

func (s *Session) JSONPath() string {
	return filepath.Join(s.outputDir, fmt.Sprintf("session_%s.json", s.metadata.SessionID))
}

func (s *Session) SummaryPath() string {
	return filepath.Join(s.outputDir, fmt.Sprintf("summary_%s.txt", s.metadata.SessionID))
}

// Files returns the sidecar files written by Finalize.
func (s *Session) Files() []string {
	return []string{s.JSONPath(), s.SummaryPath()}
}

// Finalize stamps the end of the session and writes the summary and the
// session JSON.
func (s *Session) Finalize(end time.Time, summary *metrics.Summary, bytesRead uint64, runErr error) error {
	md := s.metadata
	md.EndTime = end
	md.Duration = end.Sub(md.StartTime).Round(time.Millisecond).String()
	if runErr != nil {
		md.Error = runErr.Error()
	}
	md.Stats = SessionStats{BytesRead: bytesRead}
	if summary != nil {
		md.Stats.TotalFrames = summary.TotalFrames
		md.Stats.Decoded = summary.Decoded
		md.Stats.Unknown = summary.Unknown
		md.Stats.ChecksumErrors = summary.ChecksumErrors
		md.Stats.Mismatches = summary.Mismatches
		md.Stats.Malformed = summary.Malformed
		md.Stats.Overflows = summary.Overflows
		md.Stats.IDs = len(summary.ByID)
	}

	if err := s.writeSummary(summary); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	md.Artifacts.SummaryTxt = filepath.Base(s.SummaryPath())

	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.JSONPath(), data, 0644); err != nil {
		return fmt.Errorf("write session json: %w", err)
	}
	return nil
}

func (s *Session) writeSummary(summary *metrics.Summary) error {
	f, err := os.Create(s.SummaryPath())
	if err != nil {
		return err
	}
	defer f.Close()

	md := s.metadata
	fmt.Fprintf(f, "rs485mon Session %s\n", md.SessionID)
	fmt.Fprintf(f, "=========================\n\n")
	fmt.Fprintf(f, "Start Time: %s\n", md.StartTime.Format(time.RFC3339))
	fmt.Fprintf(f, "End Time:   %s\n", md.EndTime.Format(time.RFC3339))
	fmt.Fprintf(f, "Duration:   %s\n\n", md.Duration)
	fmt.Fprintf(f, "Port:    %s @ %d baud\n", md.Port, md.BaudRate)
	fmt.Fprintf(f, "Profile: %s\n", md.DecoderProfile)
	fmt.Fprintf(f, "Bytes:   %d\n\n", md.Stats.BytesRead)

	if summary != nil {
		fmt.Fprint(f, metrics.FormatSummary(summary))
		fmt.Fprintln(f)
	}
	if md.Error != "" {
		fmt.Fprintf(f, "Error: %s\n\n", md.Error)
	}

	fmt.Fprintf(f, "Artifacts\n")
	fmt.Fprintf(f, "---------\n")
	for _, a := range []struct{ label, path string }{
		{"Capture", md.Artifacts.Capture},
		{"Raw dump", md.Artifacts.RawDump},
		{"Events CSV", md.Artifacts.EventsCSV},
		{"Events JSON", md.Artifacts.EventsJSON},
		{"Session", md.Artifacts.SessionJSON},
	} {
		if a.path != "" {
			fmt.Fprintf(f, "%-12s %s\n", a.label+":", a.path)
		}
	}
	return nil
}
