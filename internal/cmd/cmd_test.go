package cmd

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Iron-Ham/maestro/internal/logging"
	"github.com/Iron-Ham/maestro/internal/supervisor"
	"github.com/spf13/cobra"
)

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err = root.Execute()
	return buf.String(), err
}

// resetLogsFlags restores logs flag state between executions. Cobra keeps
// parsed flag values across Execute calls within one process.
func resetLogsFlags() {
	logsFile = ""
	logsTail = 50
	logsFollow = false
	logsLevel = ""
	logsSince = ""
	logsWorker = ""
	logsComponent = ""
	logsGrep = ""
}

// resetStatusFlags restores status flag state between executions.
func resetStatusFlags() {
	statusAddr = ""
	statusScaling = false
	statusJSON = false
}

func TestRootCommand(t *testing.T) {
	if rootCmd == nil {
		t.Fatal("rootCmd is nil")
	}

	if rootCmd.Use != "maestro" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "maestro")
	}

	// Check for expected subcommands (compare by Name(), not Use which includes args)
	expectedCmds := []string{"serve", "status", "logs", "version"}
	cmdMap := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}

	for _, expected := range expectedCmds {
		if !cmdMap[expected] {
			t.Errorf("expected subcommand %q not found", expected)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	output, err := executeCommand(rootCmd, "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(output, "maestro version") {
		t.Errorf("version output = %q, want it to contain %q", output, "maestro version")
	}
	if !strings.Contains(output, Version) {
		t.Errorf("version output = %q, want it to contain %q", output, Version)
	}
}

func TestShortCommit(t *testing.T) {
	if got := shortCommit("abcdef1234567890"); got != "abcdef12" {
		t.Errorf("shortCommit() = %q, want %q", got, "abcdef12")
	}
	if got := shortCommit("abc"); got != "abc" {
		t.Errorf("shortCommit() = %q, want %q", got, "abc")
	}
}

// statusFixture builds the pool snapshot served by the stub admin endpoint.
func statusFixture() supervisor.Status {
	started := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	hb := started.Add(90 * time.Second)
	return supervisor.Status{
		Master: supervisor.MasterInfo{
			PID:           4242,
			SupervisorID:  "b2f7c5a0-66aa-4dd1-91fc-0f2e5fca63e1",
			StartedAt:     started,
			UptimeSeconds: 95,
			State:         "running",
		},
		Workers: []supervisor.WorkerStats{
			{
				ID:              "w-1",
				PID:             40001,
				State:           "active",
				Generation:      0,
				StartedAt:       started,
				UptimeSeconds:   95,
				LastHeartbeatAt: &hb,
			},
			{
				ID:            "w-2",
				PID:           40002,
				State:         "draining",
				Generation:    1,
				StartedAt:     started.Add(30 * time.Second),
				UptimeSeconds: 65,
			},
		},
		TotalWorkers:  2,
		TargetWorkers: 2,
		RestartCount:  1,
	}
}

func scalingFixture() supervisor.ScalingStatus {
	return supervisor.ScalingStatus{
		CurrentWorkers:           3,
		TargetWorkers:            3,
		MinWorkers:               2,
		MaxWorkers:               8,
		CooldownRemainingSeconds: 42,
	}
}

// newAdminStub serves canned status payloads the way the admin server would.
func newAdminStub(t *testing.T) (addr string) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(statusFixture())
	})
	mux.HandleFunc("/scaling", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(scalingFixture())
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return strings.TrimPrefix(ts.URL, "http://")
}

func TestStatusCommand(t *testing.T) {
	addr := newAdminStub(t)
	resetStatusFlags()

	output, err := executeCommand(rootCmd, "status", "--addr", addr)
	if err != nil {
		t.Fatalf("status command failed: %v\nOutput: %s", err, output)
	}

	for _, want := range []string{"SUPERVISOR", "running", "b2f7c5a0", "WORKERS", "w-1", "w-2", "draining", "Restarts: 1"} {
		if !strings.Contains(output, want) {
			t.Errorf("status output missing %q:\n%s", want, output)
		}
	}
}

func TestStatusCommand_JSON(t *testing.T) {
	addr := newAdminStub(t)
	resetStatusFlags()

	output, err := executeCommand(rootCmd, "status", "--addr", addr, "--json")
	if err != nil {
		t.Fatalf("status --json failed: %v", err)
	}

	var st supervisor.Status
	if err := json.Unmarshal([]byte(output), &st); err != nil {
		t.Fatalf("status --json output is not valid JSON: %v\n%s", err, output)
	}
	if st.Master.PID != 4242 {
		t.Errorf("Master.PID = %d, want 4242", st.Master.PID)
	}
	if len(st.Workers) != 2 {
		t.Errorf("len(Workers) = %d, want 2", len(st.Workers))
	}
}

func TestStatusCommand_Scaling(t *testing.T) {
	addr := newAdminStub(t)
	resetStatusFlags()

	output, err := executeCommand(rootCmd, "status", "--addr", addr, "--scaling")
	if err != nil {
		t.Fatalf("status --scaling failed: %v\nOutput: %s", err, output)
	}

	for _, want := range []string{"POOL", "3 (target 3, bounds 2-8)", "Cooldown: 42s remaining", "No samples yet.", "No scaling actions yet."} {
		if !strings.Contains(output, want) {
			t.Errorf("scaling output missing %q:\n%s", want, output)
		}
	}
}

func TestStatusCommand_Unreachable(t *testing.T) {
	// Grab a port that nothing is listening on.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	resetStatusFlags()
	_, err = executeCommand(rootCmd, "status", "--addr", addr)
	if err == nil {
		t.Fatal("status against a dead address should fail")
	}
	if !strings.Contains(err.Error(), "cannot reach supervisor") {
		t.Errorf("error = %v, want it to mention the unreachable supervisor", err)
	}
}

// writeLogFixture writes a small JSON-lines log file for the logs command.
func writeLogFixture(t *testing.T) string {
	t.Helper()
	lines := []string{
		`{"time":"2026-01-15T12:00:00Z","level":"INFO","msg":"worker spawned","worker_id":"w-1","component":"supervisor"}`,
		`{"time":"2026-01-15T12:00:05Z","level":"WARN","msg":"worker over soft memory limit","worker_id":"w-2","rss_bytes":629145600}`,
		`{"time":"2026-01-15T12:00:10Z","level":"ERROR","msg":"restart storm detected","window_count":5}`,
	}
	path := filepath.Join(t.TempDir(), "maestro.log")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatalf("failed to write log fixture: %v", err)
	}
	return path
}

func TestLogsCommand(t *testing.T) {
	path := writeLogFixture(t)
	resetLogsFlags()

	output, err := executeCommand(rootCmd, "logs", "--file", path, "-n", "0")
	if err != nil {
		t.Fatalf("logs command failed: %v\nOutput: %s", err, output)
	}

	for _, want := range []string{"worker spawned", "worker over soft memory limit", "restart storm detected"} {
		if !strings.Contains(output, want) {
			t.Errorf("logs output missing %q:\n%s", want, output)
		}
	}
}

func TestLogsCommand_LevelFilter(t *testing.T) {
	path := writeLogFixture(t)
	resetLogsFlags()

	output, err := executeCommand(rootCmd, "logs", "--file", path, "-n", "0", "--level", "warn")
	if err != nil {
		t.Fatalf("logs --level failed: %v", err)
	}

	if strings.Contains(output, "worker spawned") {
		t.Errorf("info entry should be filtered out:\n%s", output)
	}
	for _, want := range []string{"worker over soft memory limit", "restart storm detected"} {
		if !strings.Contains(output, want) {
			t.Errorf("logs output missing %q:\n%s", want, output)
		}
	}
}

func TestLogsCommand_WorkerFilter(t *testing.T) {
	path := writeLogFixture(t)
	resetLogsFlags()

	output, err := executeCommand(rootCmd, "logs", "--file", path, "-n", "0", "--worker", "w-1")
	if err != nil {
		t.Fatalf("logs --worker failed: %v", err)
	}

	if !strings.Contains(output, "worker spawned") {
		t.Errorf("logs output missing the w-1 entry:\n%s", output)
	}
	if strings.Contains(output, "restart storm detected") {
		t.Errorf("entries from other workers should be filtered out:\n%s", output)
	}
}

func TestLogsCommand_Grep(t *testing.T) {
	path := writeLogFixture(t)
	resetLogsFlags()

	output, err := executeCommand(rootCmd, "logs", "--file", path, "-n", "0", "--grep", "storm|spawned")
	if err != nil {
		t.Fatalf("logs --grep failed: %v", err)
	}

	if strings.Contains(output, "worker over soft memory limit") {
		t.Errorf("non-matching entry should be filtered out:\n%s", output)
	}
	for _, want := range []string{"worker spawned", "restart storm detected"} {
		if !strings.Contains(output, want) {
			t.Errorf("logs output missing %q:\n%s", want, output)
		}
	}
}

func TestLogsCommand_Tail(t *testing.T) {
	path := writeLogFixture(t)
	resetLogsFlags()

	output, err := executeCommand(rootCmd, "logs", "--file", path, "-n", "1")
	if err != nil {
		t.Fatalf("logs -n 1 failed: %v", err)
	}

	if strings.Contains(output, "worker spawned") {
		t.Errorf("tail should keep only the newest entry:\n%s", output)
	}
	if !strings.Contains(output, "restart storm detected") {
		t.Errorf("tail should keep the newest entry:\n%s", output)
	}
}

func TestLogsCommand_InvalidGrep(t *testing.T) {
	path := writeLogFixture(t)
	resetLogsFlags()

	_, err := executeCommand(rootCmd, "logs", "--file", path, "--grep", "[invalid")
	if err == nil {
		t.Fatal("logs with a broken regex should fail")
	}
}

func TestLogsCommand_NoFileConfigured(t *testing.T) {
	resetLogsFlags()

	// Clear any configured default so the command has nothing to read.
	t.Setenv("MAESTRO_LOGGING_FILE", "")

	_, err := executeCommand(rootCmd, "logs", "--file", "")
	if err == nil {
		t.Fatal("logs without a file should fail")
	}
	if !strings.Contains(err.Error(), "no log file configured") {
		t.Errorf("error = %v, want it to mention the missing log file", err)
	}
}

func TestFormatLogLine(t *testing.T) {
	e := logging.Entry{
		Timestamp: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
		Level:     "WARN",
		Message:   "worker over soft memory limit",
		WorkerID:  "w-2",
		Component: "health",
		Attrs:     map[string]any{"rss_bytes": 629145600},
	}

	line := formatLogLine(e)
	for _, want := range []string{"[WARN]", "worker over soft memory limit", "component=health", "worker=w-2", "rss_bytes=", "12:00:00"} {
		if !strings.Contains(line, want) {
			t.Errorf("formatted line missing %q: %q", want, line)
		}
	}
}

func TestLevelPriority(t *testing.T) {
	if levelPriority("debug") >= levelPriority("info") {
		t.Error("debug should rank below info")
	}
	if levelPriority("warn") >= levelPriority("error") {
		t.Error("warn should rank below error")
	}
	if levelPriority("bogus") != -1 {
		t.Errorf("levelPriority(bogus) = %d, want -1", levelPriority("bogus"))
	}
}

func TestHeartbeatAge(t *testing.T) {
	if got := heartbeatAge(nil); got != "never" {
		t.Errorf("heartbeatAge(nil) = %q, want %q", got, "never")
	}
	recent := time.Now().Add(-3 * time.Second)
	if got := heartbeatAge(&recent); !strings.HasSuffix(got, " ago") {
		t.Errorf("heartbeatAge() = %q, want an ago suffix", got)
	}
}
