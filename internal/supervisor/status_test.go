package supervisor

import (
	"os"
	"testing"
	"time"

	"github.com/Iron-Ham/maestro/internal/protocol"
)

func TestStatus(t *testing.T) {
	sup, pool, clk := newTestSupervisor(t, testConfig(), moderateSources())
	runSupervisor(t, sup, pool)
	waitFor(t, func() bool { return sup.Registry().Count() == 2 }, "initial workers")

	f1, _ := pool.Get("w-1")
	f1.InjectReady()
	f1.InjectHeartbeat(protocol.Heartbeat{
		Memory: protocol.MemoryUsage{RSSBytes: 32 << 20},
	})
	waitFor(t, func() bool {
		h, ok := sup.Registry().HealthOf("w-1")
		return ok && h.Memory.RSSBytes == 32<<20
	}, "heartbeat recorded")

	clk.Advance(30 * time.Second)

	st := sup.Status()
	if st.Master.PID != os.Getpid() {
		t.Errorf("Master.PID = %d, want %d", st.Master.PID, os.Getpid())
	}
	if st.Master.SupervisorID != sup.ID() {
		t.Errorf("Master.SupervisorID = %q, want %q", st.Master.SupervisorID, sup.ID())
	}
	if st.Master.State != "running" {
		t.Errorf("Master.State = %q, want running", st.Master.State)
	}
	if st.Master.UptimeSeconds != 30 {
		t.Errorf("Master.UptimeSeconds = %v, want 30", st.Master.UptimeSeconds)
	}
	if st.TotalWorkers != 2 || st.TargetWorkers != 2 || st.RestartCount != 0 {
		t.Errorf("counts = %d/%d/%d, want 2/2/0", st.TotalWorkers, st.TargetWorkers, st.RestartCount)
	}
	if len(st.Workers) != 2 {
		t.Fatalf("len(Workers) = %d, want 2", len(st.Workers))
	}

	w1 := st.Workers[0]
	if w1.ID != "w-1" || w1.State != "active" || w1.PID != 1000 {
		t.Errorf("w-1 stats = %s/%s/%d, want w-1/active/1000", w1.ID, w1.State, w1.PID)
	}
	if w1.LastHeartbeatAt == nil {
		t.Error("w-1 LastHeartbeatAt should be set")
	}
	if w1.Memory.RSSBytes != 32<<20 {
		t.Errorf("w-1 RSS = %d, want %d", w1.Memory.RSSBytes, 32<<20)
	}
	if w1.UptimeSeconds != 30 {
		t.Errorf("w-1 UptimeSeconds = %v, want 30", w1.UptimeSeconds)
	}

	w2 := st.Workers[1]
	if w2.ID != "w-2" || w2.State != "starting" {
		t.Errorf("w-2 stats = %s/%s, want w-2/starting", w2.ID, w2.State)
	}
	if w2.LastHeartbeatAt != nil {
		t.Error("w-2 LastHeartbeatAt should be nil before any heartbeat")
	}
}

func TestScalingStatus(t *testing.T) {
	sup, pool, clk := newTestSupervisor(t, testConfig(), moderateSources())
	runSupervisor(t, sup, pool)
	waitFor(t, func() bool { return sup.Registry().Count() == 2 }, "initial workers")

	ss := sup.ScalingStatus()
	if ss.CurrentWorkers != 2 || ss.TargetWorkers != 2 {
		t.Errorf("workers = %d/%d, want 2/2", ss.CurrentWorkers, ss.TargetWorkers)
	}
	if ss.MinWorkers != 2 || ss.MaxWorkers != 4 {
		t.Errorf("bounds = %d/%d, want 2/4", ss.MinWorkers, ss.MaxWorkers)
	}
	if len(ss.RecentLoadAverages) != 0 {
		t.Errorf("RecentLoadAverages = %v, want empty before the first sample", ss.RecentLoadAverages)
	}
	if len(ss.RecentScalingActions) != 0 {
		t.Errorf("RecentScalingActions = %v, want empty", ss.RecentScalingActions)
	}
	if ss.CooldownRemainingSeconds != 0 {
		t.Errorf("CooldownRemainingSeconds = %v, want 0", ss.CooldownRemainingSeconds)
	}

	clk.Advance(30 * time.Second)
	waitFor(t, func() bool {
		return len(sup.ScalingStatus().RecentLoadAverages) == 1
	}, "first load sample")

	s := sup.ScalingStatus().RecentLoadAverages[0]
	if s.CPULoad != 0.5 {
		t.Errorf("CPULoad = %v, want 0.5", s.CPULoad)
	}
	if s.MemoryPressure != 0.5 {
		t.Errorf("MemoryPressure = %v, want 0.5", s.MemoryPressure)
	}
	if s.WorkerCount != 2 {
		t.Errorf("WorkerCount = %v, want 2", s.WorkerCount)
	}
}
