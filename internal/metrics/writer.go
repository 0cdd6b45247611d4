package metrics

// Event output (CSV/JSON) and summary formatting

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

var eventHeader = []string{"timestamp", "id", "kind", "outcome", "size", "error"}

// Writer streams events to CSV and/or JSON files
type Writer struct {
	csvFile   *os.File
	csvWriter *csv.Writer
	jsonFile  *os.File
	jsonCount int
}

// NewWriter creates a new event writer. Either path may be empty.
func NewWriter(csvPath, jsonPath string) (*Writer, error) {
	w := &Writer{}

	if csvPath != "" {
		file, err := os.Create(csvPath)
		if err != nil {
			return nil, fmt.Errorf("create CSV file: %w", err)
		}
		w.csvFile = file
		w.csvWriter = csv.NewWriter(file)
		if err := w.csvWriter.Write(eventHeader); err != nil {
			file.Close()
			return nil, fmt.Errorf("write CSV header: %w", err)
		}
		w.csvWriter.Flush()
	}

	if jsonPath != "" {
		file, err := os.Create(jsonPath)
		if err != nil {
			if w.csvFile != nil {
				w.csvFile.Close()
			}
			return nil, fmt.Errorf("create JSON file: %w", err)
		}
		w.jsonFile = file
		if _, err := file.WriteString("[\n"); err != nil {
			file.Close()
			if w.csvFile != nil {
				w.csvFile.Close()
			}
			return nil, fmt.Errorf("write JSON start: %w", err)
		}
	}

	return w, nil
}

type jsonEvent struct {
	Timestamp string  `json:"timestamp"`
	ID        string  `json:"id"`
	Kind      string  `json:"kind,omitempty"`
	Outcome   Outcome `json:"outcome"`
	Size      int     `json:"size"`
	Error     string  `json:"error,omitempty"`
}

// WriteEvent writes a single event
func (w *Writer) WriteEvent(e Event) error {
	if w.csvWriter != nil {
		record := []string{
			e.Timestamp.Format(time.RFC3339Nano),
			FormatID(e.ID),
			e.Kind,
			string(e.Outcome),
			strconv.Itoa(e.Size),
			e.Error,
		}
		if err := w.csvWriter.Write(record); err != nil {
			return fmt.Errorf("write CSV record: %w", err)
		}
		w.csvWriter.Flush()
	}

	if w.jsonFile != nil {
		data, err := json.Marshal(jsonEvent{
			Timestamp: e.Timestamp.Format(time.RFC3339Nano),
			ID:        FormatID(e.ID),
			Kind:      e.Kind,
			Outcome:   e.Outcome,
			Size:      e.Size,
			Error:     e.Error,
		})
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		if w.jsonCount > 0 {
			if _, err := w.jsonFile.WriteString(",\n"); err != nil {
				return fmt.Errorf("write JSON comma: %w", err)
			}
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "  ", "  "); err != nil {
			return fmt.Errorf("indent JSON: %w", err)
		}
		if _, err := w.jsonFile.WriteString("  "); err != nil {
			return fmt.Errorf("write JSON: %w", err)
		}
		if _, err := w.jsonFile.Write(buf.Bytes()); err != nil {
			return fmt.Errorf("write JSON: %w", err)
		}
		w.jsonCount++
	}

	return nil
}

// Close closes the writer and flushes all data
func (w *Writer) Close() error {
	var errs []error

	if w.csvWriter != nil {
		w.csvWriter.Flush()
		if err := w.csvWriter.Error(); err != nil {
			errs = append(errs, err)
		}
	}
	if w.csvFile != nil {
		if err := w.csvFile.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if w.jsonFile != nil {
		if _, err := w.jsonFile.WriteString("\n]\n"); err != nil {
			errs = append(errs, err)
		}
		if err := w.jsonFile.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close writer: %v", errs)
	}

	return nil
}

// FormatID renders a telegram id as 0xDDSS.
func FormatID(id uint16) string {
	return fmt.Sprintf("0x%04X", id)
}

// WriteSummaryCSV writes one row per id.
func WriteSummaryCSV(out io.Writer, summary *Summary) error {
	cw := csv.NewWriter(out)
	header := []string{"id", "kind", "count", "errors", "first_seen", "last_seen", "min_gap_ms", "avg_gap_ms", "p50_gap_ms", "p90_gap_ms", "max_gap_ms"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}
	for _, id := range summary.SortedIDs() {
		st := summary.ByID[id]
		record := []string{
			FormatID(id),
			st.Kind,
			strconv.Itoa(st.Count),
			strconv.Itoa(st.Errors),
			formatTime(st.FirstSeen),
			formatTime(st.LastSeen),
			formatMs(st.MinGapMs),
			formatMs(st.AvgGapMs),
			formatMs(st.P50GapMs),
			formatMs(st.P90GapMs),
			formatMs(st.MaxGapMs),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write CSV record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSummaryJSON writes the summary as an indented JSON document.
func WriteSummaryJSON(out io.Writer, summary *Summary) error {
	type idJSON struct {
		ID       string  `json:"id"`
		Kind     string  `json:"kind"`
		Count    int     `json:"count"`
		Errors   int     `json:"errors"`
		MinGapMs float64 `json:"min_gap_ms"`
		AvgGapMs float64 `json:"avg_gap_ms"`
		P50GapMs float64 `json:"p50_gap_ms"`
		P90GapMs float64 `json:"p90_gap_ms"`
		MaxGapMs float64 `json:"max_gap_ms"`
	}
	doc := struct {
		TotalFrames    int      `json:"total_frames"`
		Decoded        int      `json:"decoded"`
		Unknown        int      `json:"unknown_id"`
		ChecksumErrors int      `json:"checksum_errors"`
		Mismatches     int      `json:"mismatches"`
		Malformed      int      `json:"malformed"`
		Overflows      int      `json:"overflows"`
		DurationMs     int64    `json:"duration_ms"`
		IDs            []idJSON `json:"ids"`
	}{
		TotalFrames:    summary.TotalFrames,
		Decoded:        summary.Decoded,
		Unknown:        summary.Unknown,
		ChecksumErrors: summary.ChecksumErrors,
		Mismatches:     summary.Mismatches,
		Malformed:      summary.Malformed,
		Overflows:      summary.Overflows,
		DurationMs:     summary.Duration().Milliseconds(),
		IDs:            []idJSON{},
	}
	for _, id := range summary.SortedIDs() {
		st := summary.ByID[id]
		doc.IDs = append(doc.IDs, idJSON{
			ID:       FormatID(id),
			Kind:     st.Kind,
			Count:    st.Count,
			Errors:   st.Errors,
			MinGapMs: st.MinGapMs,
			AvgGapMs: st.AvgGapMs,
			P50GapMs: st.P50GapMs,
			P90GapMs: st.P90GapMs,
			MaxGapMs: st.MaxGapMs,
		})
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

// formatMs formats a gap for CSV (empty string if 0)
func formatMs(v float64) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%.3f", v)
}

// FormatSummary formats a summary for human-readable output
func FormatSummary(summary *Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Total Frames: %d\n", summary.TotalFrames)
	if summary.TotalFrames > 0 {
		fmt.Fprintf(&b, "Decoded: %d (%.1f%%)\n",
			summary.Decoded, float64(summary.Decoded)/float64(summary.TotalFrames)*100)
	}
	if summary.Unknown > 0 {
		fmt.Fprintf(&b, "Unknown IDs: %d\n", summary.Unknown)
	}
	if summary.ChecksumErrors > 0 {
		fmt.Fprintf(&b, "Checksum Errors: %d\n", summary.ChecksumErrors)
	}
	if summary.Mismatches > 0 {
		fmt.Fprintf(&b, "Size/Identity Mismatches: %d\n", summary.Mismatches)
	}
	if summary.Malformed > 0 {
		fmt.Fprintf(&b, "Malformed Frames: %d\n", summary.Malformed)
	}
	if summary.Overflows > 0 {
		fmt.Fprintf(&b, "Buffer Overflows: %d\n", summary.Overflows)
	}
	if d := summary.Duration(); d > 0 {
		fmt.Fprintf(&b, "Duration: %s\n", d.Round(time.Millisecond))
	}

	if len(summary.ByID) > 0 {
		b.WriteString("\nPer ID:\n")
		fmt.Fprintf(&b, "  %-8s %-20s %8s %8s %10s %10s\n", "ID", "Kind", "Count", "Errors", "Avg Gap", "Max Gap")
		for _, id := range summary.SortedIDs() {
			st := summary.ByID[id]
			fmt.Fprintf(&b, "  %-8s %-20s %8d %8d %8.1fms %8.1fms\n",
				FormatID(id), st.Kind, st.Count, st.Errors, st.AvgGapMs, st.MaxGapMs)
		}
	}

	return b.String()
}
