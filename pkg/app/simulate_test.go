package app

import (
	"bytes"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestJobSimulation_WorkedExample(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	report, err := JobSimulation{
		Jobs:             DefaultSimulationJobs,
		WorkUnitsPerTick: 10000,
		MaxJobsPerTick:   5,
	}.Run(&out)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Ticks != 3 {
		t.Errorf("ticks = %d, want 3", report.Ticks)
	}
	want := [][]string{{"job1", "job4"}, {"job2"}, {"job3"}}
	if !slices.EqualFunc(report.Completions, want, slices.Equal[[]string]) {
		t.Errorf("completions = %v, want %v", report.Completions, want)
	}
	if !strings.Contains(out.String(), "drained in 3 ticks, order: job1, job4, job2, job3") {
		t.Errorf("output:\n%s", out.String())
	}
}

func TestJobSimulation_RotationUnderCap(t *testing.T) {
	t.Parallel()

	// Three equal jobs, one serviced per tick: each finishes on its own turn.
	report, err := JobSimulation{
		Jobs:             []int{100, 100, 100},
		WorkUnitsPerTick: 100,
		MaxJobsPerTick:   1,
	}.Run(&bytes.Buffer{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := report.Order(); !slices.Equal(got, []string{"job1", "job2", "job3"}) {
		t.Errorf("order = %v", got)
	}
	if report.Ticks != 3 {
		t.Errorf("ticks = %d, want 3", report.Ticks)
	}
}

func TestJobSimulation_Stalls(t *testing.T) {
	t.Parallel()

	_, err := JobSimulation{
		Jobs:             []int{10},
		WorkUnitsPerTick: 100,
		MaxJobsPerTick:   0,
		MaxTicks:         5,
	}.Run(&bytes.Buffer{})
	if !errors.Is(err, ErrSimulationStalled) {
		t.Errorf("err = %v, want ErrSimulationStalled", err)
	}
}

func TestJobSimulation_ProgressBars(t *testing.T) {
	t.Parallel()

	var bars bytes.Buffer
	_, err := JobSimulation{
		Jobs:             []int{300, 500},
		WorkUnitsPerTick: 200,
		MaxJobsPerTick:   2,
		Progress:         &bars,
	}.Run(&bytes.Buffer{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(bars.String(), "job2") {
		t.Errorf("progress output missing bar names: %q", bars.String())
	}
}

func TestParseJobs(t *testing.T) {
	t.Parallel()

	got, err := ParseJobs(" 2400, 3000,7600 ,1000,")
	if err != nil {
		t.Fatalf("ParseJobs: %v", err)
	}
	if !slices.Equal(got, DefaultSimulationJobs) {
		t.Errorf("got %v", got)
	}
	for _, bad := range []string{"", "1,x", "0", "-5"} {
		if _, err := ParseJobs(bad); err == nil {
			t.Errorf("ParseJobs(%q) should fail", bad)
		}
	}
}

func TestDiskSimulation_WorkedExample(t *testing.T) {
	t.Parallel()

	report, err := DiskSimulation{
		Requests: 4,
		Cooldown: 250 * time.Millisecond,
		Deltas:   []time.Duration{time.Millisecond, 210 * time.Millisecond, 200 * time.Millisecond},
		MaxTicks: 3,
	}.Run(&bytes.Buffer{})
	if !errors.Is(err, ErrSimulationStalled) {
		t.Fatalf("err = %v, want a stall after 3 ticks", err)
	}
	if !slices.Equal(report.Fired, []int{1, 0, 1}) {
		t.Errorf("fired = %v, want [1 0 1]", report.Fired)
	}
	if !slices.Equal(report.Queue, []int{3, 3, 2}) {
		t.Errorf("queue = %v, want [3 3 2]", report.Queue)
	}
}

func TestDiskSimulation_Unthrottled(t *testing.T) {
	t.Parallel()

	report, err := DiskSimulation{
		Requests: 4,
		Deltas:   []time.Duration{time.Millisecond},
	}.Run(&bytes.Buffer{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !slices.Equal(report.Fired, []int{4}) {
		t.Errorf("fired = %v, want all four in one tick", report.Fired)
	}
}

func TestDiskSimulation_ReleaseDropsRemaining(t *testing.T) {
	t.Parallel()

	report, err := DiskSimulation{
		Requests:     5,
		Cooldown:     time.Second,
		Deltas:       []time.Duration{time.Second},
		ReleaseAfter: 2,
	}.Run(&bytes.Buffer{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Total() != 2 {
		t.Errorf("fired %d callbacks, want 2 before the release", report.Total())
	}
}
