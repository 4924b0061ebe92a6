package logging

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"
)

// Entry is a parsed log line with the structured fields Maestro emits.
// Unrecognized attributes are collected in Attrs.
type Entry struct {
	Timestamp    time.Time      `json:"time"`
	Level        string         `json:"level"`
	Message      string         `json:"msg"`
	SupervisorID string         `json:"supervisor_id,omitempty"`
	WorkerID     string         `json:"worker_id,omitempty"`
	Component    string         `json:"component,omitempty"`
	Attrs        map[string]any `json:"attrs,omitempty"`
}

// Filter defines criteria for selecting log entries.
// Zero values mean "no filtering" for the corresponding field.
type Filter struct {
	// Level keeps entries at or above this level (DEBUG < INFO < WARN < ERROR).
	Level string
	// StartTime keeps entries at or after this time.
	StartTime time.Time
	// EndTime keeps entries at or before this time.
	EndTime time.Time
	// WorkerID keeps entries from this specific worker.
	WorkerID string
	// Component keeps entries from this specific component.
	Component string
	// MessageContains keeps entries whose message contains this substring.
	MessageContains string
}

// levelOrder orders log levels for minimum-level filtering.
var levelOrder = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ReadLogs parses the log file at path plus any rotated backups (path.1,
// path.2, ... and their .gz variants), returning entries sorted by
// timestamp. Lines that fail to parse as JSON are skipped.
func ReadLogs(path string) ([]Entry, error) {
	entries, err := readLogFile(path)
	if err != nil {
		return nil, err
	}

	for n := 1; ; n++ {
		backup := fmt.Sprintf("%s.%d", path, n)
		more, err := readLogFile(backup)
		if os.IsNotExist(err) {
			more, err = readLogFile(backup + ".gz")
			if os.IsNotExist(err) {
				break
			}
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, more...)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}

// readLogFile parses a single log file, transparently decompressing .gz.
func readLogFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var reader io.Reader = file
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read compressed log %s: %w", path, err)
		}
		defer zr.Close()
		reader = zr
	}

	var entries []Entry
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry, ok := ParseEntry(line)
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan log file %s: %w", path, err)
	}
	return entries, nil
}

// ParseEntry decodes one JSON log line, routing unknown keys into Attrs.
// The second return is false for lines that are not valid JSON objects.
func ParseEntry(line string) (Entry, bool) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Entry{}, false
	}

	var entry Entry
	for key, value := range raw {
		switch key {
		case "time":
			if s, ok := value.(string); ok {
				if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
					entry.Timestamp = ts
				}
			}
		case "level":
			entry.Level, _ = value.(string)
		case "msg":
			entry.Message, _ = value.(string)
		case "supervisor_id":
			entry.SupervisorID, _ = value.(string)
		case "worker_id":
			entry.WorkerID, _ = value.(string)
		case "component":
			entry.Component, _ = value.(string)
		default:
			if entry.Attrs == nil {
				entry.Attrs = make(map[string]any)
			}
			entry.Attrs[key] = value
		}
	}
	return entry, true
}

// FilterEntries returns the entries matching all criteria in the filter.
func FilterEntries(entries []Entry, filter Filter) []Entry {
	minLevel, filterLevel := levelOrder[strings.ToUpper(filter.Level)]
	if filter.Level == "" {
		filterLevel = false
	}

	var out []Entry
	for _, e := range entries {
		if filterLevel {
			if rank, ok := levelOrder[e.Level]; !ok || rank < minLevel {
				continue
			}
		}
		if !filter.StartTime.IsZero() && e.Timestamp.Before(filter.StartTime) {
			continue
		}
		if !filter.EndTime.IsZero() && e.Timestamp.After(filter.EndTime) {
			continue
		}
		if filter.WorkerID != "" && e.WorkerID != filter.WorkerID {
			continue
		}
		if filter.Component != "" && e.Component != filter.Component {
			continue
		}
		if filter.MessageContains != "" && !strings.Contains(e.Message, filter.MessageContains) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// FormatEntry renders an entry as a single human-readable line.
func FormatEntry(e Entry) string {
	var b strings.Builder
	b.WriteString(e.Timestamp.Format(time.RFC3339))
	b.WriteString(" [")
	b.WriteString(e.Level)
	b.WriteString("]")
	if e.Component != "" {
		b.WriteString(" ")
		b.WriteString(e.Component)
	}
	if e.WorkerID != "" {
		b.WriteString(" worker=")
		b.WriteString(e.WorkerID)
	}
	b.WriteString(" ")
	b.WriteString(e.Message)
	keys := make([]string, 0, len(e.Attrs))
	for key := range e.Attrs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%v", key, e.Attrs[key])
	}
	return b.String()
}
