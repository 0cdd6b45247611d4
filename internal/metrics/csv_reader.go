package metrics

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// ReadEventsCSV reads an event CSV written by Writer.
func ReadEventsCSV(path string) ([]Event, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open events CSV: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}

	colIndex := make(map[string]int, len(header))
	for i, col := range header {
		colIndex[col] = i
	}

	for _, col := range []string{"timestamp", "id", "outcome"} {
		if _, ok := colIndex[col]; !ok {
			return nil, fmt.Errorf("CSV missing required column: %s", col)
		}
	}

	var events []Event
	for row := 2; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV row %d: %w", row, err)
		}

		var e Event
		if v := field(record, colIndex, "timestamp"); v != "" {
			if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
				e.Timestamp = t
			}
		}
		id, err := ParseID(field(record, colIndex, "id"))
		if err != nil {
			return nil, fmt.Errorf("CSV row %d: %w", row, err)
		}
		e.ID = id
		e.Kind = field(record, colIndex, "kind")
		e.Outcome = Outcome(field(record, colIndex, "outcome"))
		if v := field(record, colIndex, "size"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				e.Size = n
			}
		}
		e.Error = field(record, colIndex, "error")

		events = append(events, e)
	}

	if len(events) == 0 {
		return nil, fmt.Errorf("no data rows in CSV file")
	}
	return events, nil
}

func field(record []string, idx map[string]int, name string) string {
	if i, ok := idx[name]; ok && i < len(record) {
		return record[i]
	}
	return ""
}

// ParseID accepts "0xAADA", "AADA" or a decimal id.
func ParseID(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	} else if len(s) == 4 && strings.ContainsAny(strings.ToUpper(s), "ABCDEF") {
		base = 16
	}
	v, err := strconv.ParseUint(s, base, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram id %q", s)
	}
	return uint16(v), nil
}
