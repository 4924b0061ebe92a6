package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Iron-Ham/maestro/internal/supervisor"
	"github.com/Iron-Ham/maestro/internal/util"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the worker pool status",
	Long: `Display the running supervisor's pool snapshot: supervisor identity and
uptime, every worker with its memory and heartbeat figures, and restart
totals. With --scaling, show recent load samples and scaling actions
instead.

The snapshot is fetched from the admin HTTP endpoint of a supervisor
started with "maestro serve".`,
	RunE: runStatus,
}

var (
	statusAddr    string // Admin endpoint to query
	statusScaling bool   // Show the scaling view instead of workers
	statusJSON    bool   // Output as JSON
)

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "admin address to query (default admin.listen_addr)")
	statusCmd.Flags().BoolVar(&statusScaling, "scaling", false, "show load samples and scaling history")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output status as JSON")
	rootCmd.AddCommand(statusCmd)
}

// State dot colors: green for running, amber for transitional, red for
// trouble.
var (
	stateDotActive   = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	stateDotPending  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	stateDotStopping = lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171"))
	headerStyle      = lipgloss.NewStyle().Bold(true)
)

func runStatus(cmd *cobra.Command, args []string) error {
	addr := statusAddr
	if addr == "" {
		addr = viper.GetString("admin.listen_addr")
	}
	out := cmd.OutOrStdout()

	if statusScaling {
		var st supervisor.ScalingStatus
		if err := fetchJSON(addr, "/scaling", &st); err != nil {
			return err
		}
		if statusJSON {
			return printJSON(out, st)
		}
		printScalingText(out, st)
		return nil
	}

	var st supervisor.Status
	if err := fetchJSON(addr, "/status", &st); err != nil {
		return err
	}
	if statusJSON {
		return printJSON(out, st)
	}
	printStatusText(out, st)
	return nil
}

// fetchJSON queries one admin endpoint and decodes the response into v.
func fetchJSON(addr, path string, v any) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + addr + path)
	if err != nil {
		return fmt.Errorf("cannot reach supervisor at %s (is it running?): %w", addr, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("supervisor returned %s for %s", resp.Status, path)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStatusText(w io.Writer, st supervisor.Status) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("SUPERVISOR"))
	fmt.Fprintln(w, strings.Repeat("─", 50))
	fmt.Fprintf(w, "State: %s %s\n", supervisorDot(st.Master.State), st.Master.State)
	fmt.Fprintf(w, "ID: %s\n", st.Master.SupervisorID)
	fmt.Fprintf(w, "PID: %d\n", st.Master.PID)
	fmt.Fprintf(w, "Uptime: %s\n", util.FormatDuration(time.Duration(st.Master.UptimeSeconds*float64(time.Second))))
	fmt.Fprintf(w, "Workers: %d (target %d)\n", st.TotalWorkers, st.TargetWorkers)
	fmt.Fprintf(w, "Restarts: %d\n", st.RestartCount)
	fmt.Fprintln(w)

	fmt.Fprintln(w, headerStyle.Render("WORKERS"))
	fmt.Fprintln(w, strings.Repeat("─", 50))
	if len(st.Workers) == 0 {
		fmt.Fprintln(w, "No workers running.")
		fmt.Fprintln(w)
		return
	}

	// Styled cells would throw off tabwriter's width accounting, so the
	// table stays plain.
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPID\tSTATE\tGEN\tUPTIME\tRSS\tHEARTBEAT")
	for _, ws := range st.Workers {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%s\t%s\t%s\n",
			util.TruncateString(ws.ID, 20),
			ws.PID,
			ws.State,
			ws.Generation,
			util.FormatDuration(time.Duration(ws.UptimeSeconds*float64(time.Second))),
			util.FormatBytes(ws.Memory.RSSBytes),
			heartbeatAge(ws.LastHeartbeatAt),
		)
	}
	_ = tw.Flush()
	fmt.Fprintln(w)
}

func printScalingText(w io.Writer, st supervisor.ScalingStatus) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("POOL"))
	fmt.Fprintln(w, strings.Repeat("─", 50))
	fmt.Fprintf(w, "Workers: %d (target %d, bounds %d-%d)\n",
		st.CurrentWorkers, st.TargetWorkers, st.MinWorkers, st.MaxWorkers)
	if st.CooldownRemainingSeconds > 0 {
		fmt.Fprintf(w, "Cooldown: %s remaining\n",
			util.FormatDuration(time.Duration(st.CooldownRemainingSeconds*float64(time.Second))))
	} else {
		fmt.Fprintln(w, "Cooldown: none")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, headerStyle.Render("RECENT LOAD"))
	fmt.Fprintln(w, strings.Repeat("─", 50))
	if len(st.RecentLoadAverages) == 0 {
		fmt.Fprintln(w, "No samples yet.")
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tCPU\tMEMORY\tWORKERS")
		for _, s := range st.RecentLoadAverages {
			fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%d\n",
				s.Timestamp.Format("15:04:05"), s.CPULoad, s.MemoryPressure, s.WorkerCount)
		}
		_ = tw.Flush()
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, headerStyle.Render("SCALING ACTIONS"))
	fmt.Fprintln(w, strings.Repeat("─", 50))
	if len(st.RecentScalingActions) == 0 {
		fmt.Fprintln(w, "No scaling actions yet.")
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tACTION\tWORKERS\tREASON")
		for _, a := range st.RecentScalingActions {
			fmt.Fprintf(tw, "%s\t%s\t%d to %d\t%s\n",
				a.Timestamp.Format("15:04:05"), a.Action, a.FromCount, a.ToCount, a.Reason)
		}
		_ = tw.Flush()
	}
	fmt.Fprintln(w)
}

func supervisorDot(state string) string {
	switch state {
	case "running":
		return stateDotActive.Render("●")
	case "draining", "force_killing":
		return stateDotStopping.Render("●")
	default:
		return stateDotPending.Render("●")
	}
}

func heartbeatAge(at *time.Time) string {
	if at == nil {
		return "never"
	}
	return util.FormatDuration(time.Since(*at)) + " ago"
}
