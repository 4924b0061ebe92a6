package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/Iron-Ham/maestro/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View supervisor logs",
	Long: `View and filter the supervisor's structured log output.

Reads the configured log file including rotated backups. Use flags to
filter and format the output.

Examples:
  # Show last 50 lines
  maestro logs

  # Show all entries at warn or above
  maestro logs --level warn -n 0

  # Follow logs in real-time
  maestro logs -f

  # Show one worker's entries from the last hour
  maestro logs --worker w-3 --since 1h

  # Search for specific patterns
  maestro logs --grep "restart|storm"`,
	RunE: runLogs,
}

var (
	logsFile      string
	logsTail      int
	logsFollow    bool
	logsLevel     string
	logsSince     string
	logsWorker    string
	logsComponent string
	logsGrep      string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().StringVar(&logsFile, "file", "", "Log file to read (default: logging.file)")
	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of lines to show (0 for all)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output (like tail -f)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsWorker, "worker", "", "Filter by worker ID")
	logsCmd.Flags().StringVar(&logsComponent, "component", "", "Filter by component")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Filter logs matching pattern (regex)")
}

// ANSI color codes for terminal output
const (
	colorReset  = "\033[0m"
	colorGray   = "\033[90m"
	colorBlue   = "\033[34m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorCyan   = "\033[36m"
)

// levelColor returns the ANSI color code for a log level
func levelColor(level string) string {
	switch strings.ToUpper(level) {
	case logging.LevelDebug:
		return colorGray
	case logging.LevelInfo:
		return colorBlue
	case logging.LevelWarn:
		return colorYellow
	case logging.LevelError:
		return colorRed
	default:
		return colorReset
	}
}

// levelPriority returns the priority of a log level for filtering
func levelPriority(level string) int {
	switch strings.ToUpper(level) {
	case logging.LevelDebug:
		return 0
	case logging.LevelInfo:
		return 1
	case logging.LevelWarn:
		return 2
	case logging.LevelError:
		return 3
	default:
		return -1
	}
}

// formatLogLine formats an entry for terminal output
func formatLogLine(e logging.Entry) string {
	var sb strings.Builder

	// Timestamp
	sb.WriteString(colorGray)
	sb.WriteString("[")
	sb.WriteString(e.Timestamp.Format("15:04:05.000"))
	sb.WriteString("]")
	sb.WriteString(colorReset)

	// Level with color
	sb.WriteString(" ")
	sb.WriteString(levelColor(e.Level))
	sb.WriteString("[")
	sb.WriteString(strings.ToUpper(e.Level))
	sb.WriteString("]")
	sb.WriteString(colorReset)

	// Message
	sb.WriteString(" ")
	sb.WriteString(e.Message)

	// Context fields
	if e.Component != "" {
		sb.WriteString(" ")
		sb.WriteString(colorCyan)
		sb.WriteString("component=")
		sb.WriteString(e.Component)
		sb.WriteString(colorReset)
	}
	if e.WorkerID != "" {
		sb.WriteString(" ")
		sb.WriteString(colorCyan)
		sb.WriteString("worker=")
		sb.WriteString(e.WorkerID)
		sb.WriteString(colorReset)
	}

	// Remaining attributes, sorted for stable output
	keys := make([]string, 0, len(e.Attrs))
	for key := range e.Attrs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		sb.WriteString(" ")
		sb.WriteString(colorCyan)
		sb.WriteString(key)
		sb.WriteString("=")
		sb.WriteString(colorReset)
		sb.WriteString(fmt.Sprintf("%v", e.Attrs[key]))
	}

	return sb.String()
}

func runLogs(cmd *cobra.Command, args []string) error {
	path := logsFile
	if path == "" {
		path = viper.GetString("logging.file")
	}
	if path == "" {
		return fmt.Errorf("no log file configured; set logging.file or pass --file")
	}

	filter := logging.Filter{
		WorkerID:  logsWorker,
		Component: logsComponent,
	}
	if logsLevel != "" {
		filter.Level = logging.ParseLevel(logsLevel)
	}
	if logsSince != "" {
		duration, err := time.ParseDuration(logsSince)
		if err != nil {
			return fmt.Errorf("invalid duration format: %w", err)
		}
		filter.StartTime = time.Now().Add(-duration)
	}

	var grepRegex *regexp.Regexp
	if logsGrep != "" {
		var err error
		grepRegex, err = regexp.Compile(logsGrep)
		if err != nil {
			return fmt.Errorf("invalid grep pattern: %w", err)
		}
	}

	if logsFollow {
		return followLogs(cmd.OutOrStdout(), path, filter, grepRegex)
	}
	return displayLogs(cmd.OutOrStdout(), path, filter, grepRegex, logsTail)
}

// displayLogs reads the log file plus rotated backups and prints the
// filtered entries
func displayLogs(w io.Writer, path string, filter logging.Filter, grepRegex *regexp.Regexp, tail int) error {
	entries, err := logging.ReadLogs(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintf(w, "No log file at %s\n", path)
			return nil
		}
		return fmt.Errorf("failed to read log file: %w", err)
	}

	entries = logging.FilterEntries(entries, filter)
	if grepRegex != nil {
		matched := make([]logging.Entry, 0, len(entries))
		for _, e := range entries {
			if grepMatches(e, grepRegex) {
				matched = append(matched, e)
			}
		}
		entries = matched
	}

	// Apply tail limit
	if tail > 0 && len(entries) > tail {
		entries = entries[len(entries)-tail:]
	}

	for _, e := range entries {
		fmt.Fprintln(w, formatLogLine(e))
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "No matching log entries found.")
	}
	return nil
}

// followLogs implements tail -f behavior for the log file
func followLogs(w io.Writer, path string, filter logging.Filter, grepRegex *regexp.Regexp) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	// Seek to end of file
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	fmt.Fprintf(w, "Following logs... (Ctrl+C to stop)\n\n")

	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				// No new data, wait briefly and try again
				time.Sleep(100 * time.Millisecond)
				continue
			}
			return fmt.Errorf("error reading log file: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		entry, ok := logging.ParseEntry(line)
		if !ok {
			// Not JSON, display the raw line
			fmt.Fprintln(w, line)
			continue
		}

		if !passesFilters(entry, filter, grepRegex) {
			continue
		}

		fmt.Fprintln(w, formatLogLine(entry))
	}
}

// passesFilters checks one entry against the filter in follow mode, where
// entries arrive one line at a time
func passesFilters(e logging.Entry, filter logging.Filter, grepRegex *regexp.Regexp) bool {
	if filter.Level != "" {
		if min := levelPriority(filter.Level); min >= 0 && levelPriority(e.Level) < min {
			return false
		}
	}
	if !filter.StartTime.IsZero() && e.Timestamp.Before(filter.StartTime) {
		return false
	}
	if filter.WorkerID != "" && e.WorkerID != filter.WorkerID {
		return false
	}
	if filter.Component != "" && e.Component != filter.Component {
		return false
	}
	if grepRegex != nil && !grepMatches(e, grepRegex) {
		return false
	}
	return true
}

// grepMatches searches the message and attribute values
func grepMatches(e logging.Entry, grepRegex *regexp.Regexp) bool {
	searchText := e.Message
	for _, v := range e.Attrs {
		searchText += " " + fmt.Sprintf("%v", v)
	}
	return grepRegex.MatchString(searchText)
}
