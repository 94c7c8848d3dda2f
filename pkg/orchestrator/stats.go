// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package orchestrator

import (
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/symcc/syz-symcc/pkg/stat"
	"github.com/symcc/syz-symcc/pkg/symcc"
)

// Stats are the execution statistics of the backend.
// Durations are accounted in microseconds.
type Stats struct {
	set *stat.Set

	// Successful executions and the time spent in them.
	total     *stat.Val
	totalTime *stat.Val
	// Time spent in the solver as part of successful executions,
	// meaningful only if at least one execution reported it.
	solverTime    *stat.Val
	solverReports *stat.Val
	// Executions where the target was killed.
	failed     *stat.Val
	failedTime *stat.Val
	// Wall time of every execution.
	execTime *stat.Val

	generated *stat.Val
	queued    *stat.Val
	crashes   *stat.Val
	hangs     *stat.Val
	coverage  atomic.Int64
}

func NewStats(set *stat.Set) *Stats {
	s := &Stats{set: set}
	s.total = set.New("executions", "Successful executions of the backend",
		stat.Console, stat.Rate{}, stat.Prometheus("syz_symcc_executions"))
	s.totalTime = set.New("execution time", "Time in successful executions (us)",
		stat.FormatMicros, stat.Prometheus("syz_symcc_execution_time_us"))
	s.solverTime = set.New("solver time", "Solver time in successful executions (us)",
		stat.FormatMicros, stat.Prometheus("syz_symcc_solver_time_us"))
	s.solverReports = set.New("solver reports", "Successful executions that reported solver time")
	s.failed = set.New("failed executions", "Executions where the target was killed",
		stat.Console, stat.Prometheus("syz_symcc_failed_executions"))
	s.failedTime = set.New("failed time", "Time spent on failed executions (us)",
		stat.FormatMicros, stat.Prometheus("syz_symcc_failed_time_us"))
	s.execTime = set.New("exec time distribution", "Wall time per execution (us)",
		stat.Distribution{}, stat.FormatMicros)
	s.generated = set.New("generated", "Test cases generated by the backend",
		stat.Console, stat.Prometheus("syz_symcc_testcases_generated"))
	s.queued = set.New("queued", "New test cases copied to the queue",
		stat.Console, stat.Prometheus("syz_symcc_testcases_queued"))
	s.crashes = set.New("crashes", "Test cases crashing afl-showmap",
		stat.Console, stat.Prometheus("syz_symcc_crashes"))
	s.hangs = set.New("hangs", "Inputs archived because the target was killed",
		stat.Console, stat.Prometheus("syz_symcc_hangs"))
	set.New("coverage", "Non-zero bytes in the cumulative coverage map",
		stat.Console, stat.Prometheus("syz_symcc_coverage_bytes"),
		func() int { return int(s.coverage.Load()) })
	return s
}

func micros(d time.Duration) int {
	return int(d / time.Microsecond)
}

func fromMicros(v int) time.Duration {
	return time.Duration(v) * time.Microsecond
}

func (s *Stats) AddExecution(res *symcc.Result) {
	s.execTime.Add(micros(res.Time))
	if res.Killed {
		s.failed.Add(1)
		s.failedTime.Add(micros(res.Time))
		return
	}
	s.total.Add(1)
	s.totalTime.Add(micros(res.Time))
	if res.SolverTimeKnown {
		s.solverReports.Add(1)
		s.solverTime.Add(micros(res.SolverTime))
	}
}

func (s *Stats) setCoverage(n int) {
	s.coverage.Store(int64(n))
}

// Log appends a human-readable report to w.
func (s *Stats) Log(w io.Writer) error {
	buf := new(strings.Builder)
	total := s.total.Val()
	totalTime := fromMicros(s.totalTime.Val())
	fmt.Fprintf(buf, "Successful executions: %v\n", total)
	fmt.Fprintf(buf, "Time in successful executions: %vms\n", totalTime.Milliseconds())
	if total > 0 {
		fmt.Fprintf(buf, "Avg time per successful execution: %vms\n",
			(totalTime / time.Duration(total)).Milliseconds())
	}
	if s.solverReports.Val() > 0 {
		solverTime := fromMicros(s.solverTime.Val())
		fmt.Fprintf(buf, "Solver time (successful executions): %vms\n", solverTime.Milliseconds())
		if totalTime >= time.Second {
			share := float64(solverTime.Milliseconds()) / float64(totalTime.Milliseconds()) * 100
			fmt.Fprintf(buf, "Solver time share (successful executions): %.2f%% (-> %.2f%% in execution)\n",
				share, 100-share)
			fmt.Fprintf(buf, "Avg solver time per successful execution: %vms\n",
				(solverTime / time.Duration(total)).Milliseconds())
		}
	}
	failed := s.failed.Val()
	failedTime := fromMicros(s.failedTime.Val())
	fmt.Fprintf(buf, "Failed executions: %v\n", failed)
	fmt.Fprintf(buf, "Time spent on failed executions: %vms\n", failedTime.Milliseconds())
	if failed > 0 {
		fmt.Fprintf(buf, "Avg time in failed executions: %vms\n",
			(failedTime / time.Duration(failed)).Milliseconds())
	}
	p50, ok := s.execTime.Quantile(0.5)
	if ok {
		p90, _ := s.execTime.Quantile(0.9)
		fmt.Fprintf(buf, "Execution time p50/p90: %vms/%vms\n",
			fromMicros(int(p50)).Milliseconds(), fromMicros(int(p90)).Milliseconds())
	}
	fmt.Fprintf(buf, "%v\n", strings.Repeat("-", 80))
	_, err := io.WriteString(w, buf.String())
	return err
}

// Summary is a one-line digest of the console-level metrics.
func (s *Stats) Summary() string {
	var parts []string
	for _, ui := range s.set.Collect(stat.Console) {
		parts = append(parts, fmt.Sprintf("%v: %v", ui.Name, ui.Value))
	}
	return strings.Join(parts, ", ")
}
