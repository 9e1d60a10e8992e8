package health

import (
	"fmt"
	"sync"
	"testing"
)

func TestMonitorUpdateAndGet(t *testing.T) {
	monitor := NewMonitor()

	if _, ok := monitor.Get("resolver"); ok {
		t.Error("Get on an empty monitor should report absence")
	}

	// The name passed to Update wins over the one on the status, and a
	// zero timestamp is filled in.
	monitor.Update("resolver", Status{Component: "wrong-name", Status: "healthy"})

	got, ok := monitor.Get("resolver")
	if !ok {
		t.Fatal("component should exist after update")
	}
	if got.Component != "resolver" {
		t.Errorf("got component %q, want resolver", got.Component)
	}
	if got.Timestamp.IsZero() {
		t.Error("Update should stamp a zero timestamp")
	}
}

func TestMonitorConvenienceUpdates(t *testing.T) {
	monitor := NewMonitor()

	monitor.UpdateHealthy("resolver", "ok")
	monitor.UpdateDegraded("channel", "reconnecting")
	monitor.UpdateUnhealthy("hydrator", "all endpoints failed")

	if s, _ := monitor.Get("resolver"); !s.IsHealthy() || s.Message != "ok" {
		t.Errorf("UpdateHealthy: got %+v", s)
	}
	if s, _ := monitor.Get("channel"); !s.IsDegraded() {
		t.Errorf("UpdateDegraded: got %+v", s)
	}
	if s, _ := monitor.Get("hydrator"); !s.IsUnhealthy() {
		t.Errorf("UpdateUnhealthy: got %+v", s)
	}
}

func TestMonitorGetAllIsACopy(t *testing.T) {
	monitor := NewMonitor()
	monitor.UpdateHealthy("resolver", "ok")

	all := monitor.GetAll()
	if len(all) != 1 {
		t.Fatalf("got %d statuses, want 1", len(all))
	}

	delete(all, "resolver")
	if _, ok := monitor.Get("resolver"); !ok {
		t.Error("mutating the GetAll map should not affect the monitor")
	}
}

func TestMonitorRemoveClearCount(t *testing.T) {
	monitor := NewMonitor()
	monitor.UpdateHealthy("resolver", "ok")
	monitor.UpdateHealthy("channel", "ok")

	if monitor.Count() != 2 {
		t.Errorf("got count %d, want 2", monitor.Count())
	}

	monitor.Remove("resolver")
	if _, ok := monitor.Get("resolver"); ok {
		t.Error("removed component should be gone")
	}
	if monitor.Count() != 1 {
		t.Errorf("got count %d after remove, want 1", monitor.Count())
	}

	monitor.Clear()
	if monitor.Count() != 0 {
		t.Errorf("got count %d after clear, want 0", monitor.Count())
	}
}

func TestMonitorListComponentsSorted(t *testing.T) {
	monitor := NewMonitor()
	monitor.UpdateHealthy("resolver", "ok")
	monitor.UpdateHealthy("channel", "ok")
	monitor.UpdateHealthy("hydrator", "ok")

	got := monitor.ListComponents()
	want := []string{"channel", "hydrator", "resolver"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestMonitorAggregateHealthDeterministic(t *testing.T) {
	monitor := NewMonitor()
	monitor.UpdateHealthy("resolver", "ok")
	monitor.UpdateUnhealthy("channel", "reconnect attempts exhausted")
	monitor.UpdateDegraded("hydrator", "one endpoint slow")

	first := monitor.AggregateHealth("canvaskit")
	if !first.IsUnhealthy() {
		t.Errorf("one unhealthy component should make the system unhealthy, got %q", first.Status)
	}

	second := monitor.AggregateHealth("canvaskit")
	if len(first.SubStatuses) != 3 || len(second.SubStatuses) != 3 {
		t.Fatalf("expected 3 sub-statuses, got %d and %d",
			len(first.SubStatuses), len(second.SubStatuses))
	}
	for i := range first.SubStatuses {
		if first.SubStatuses[i].Component != second.SubStatuses[i].Component {
			t.Errorf("sub-status order should be stable across calls: %v vs %v",
				first.SubStatuses[i].Component, second.SubStatuses[i].Component)
		}
	}
	if first.SubStatuses[0].Component != "channel" {
		t.Errorf("sub-statuses should be sorted by name, got %q first",
			first.SubStatuses[0].Component)
	}
}

func TestMonitorAggregateHealthEmpty(t *testing.T) {
	got := NewMonitor().AggregateHealth("canvaskit")
	if !got.IsHealthy() {
		t.Errorf("empty monitor should aggregate healthy, got %q", got.Status)
	}
}

func TestMonitorConcurrentAccess(t *testing.T) {
	monitor := NewMonitor()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := fmt.Sprintf("component-%d", i%4)
			for j := range 50 {
				if j%2 == 0 {
					monitor.UpdateHealthy(name, "ok")
				} else {
					monitor.UpdateDegraded(name, "busy")
				}
				monitor.Get(name)
				monitor.GetAll()
				monitor.AggregateHealth("canvaskit")
			}
		}()
	}
	wg.Wait()

	if monitor.Count() != 4 {
		t.Errorf("got count %d after concurrent updates, want 4", monitor.Count())
	}
}
