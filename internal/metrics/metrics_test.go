package metrics

import (
	"sync"
	"testing"
)

func TestIncRateLimitDrop(t *testing.T) {
	// 重置全局状态
	rl = rateLimitStats{}

	IncRateLimitDrop("")
	IncRateLimitDrop("api")
	IncRateLimitDrop("api")

	total, byPrefix := RateLimitSnapshot()
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if byPrefix["global"] != 1 {
		t.Errorf("empty prefix should count as global, got %d", byPrefix["global"])
	}
	if byPrefix["api"] != 2 {
		t.Errorf("api = %d, want 2", byPrefix["api"])
	}
}

func TestIncAutomationExecution(t *testing.T) {
	// 重置全局状态
	auto = automationStats{}

	IncAutomationExecution("success")
	IncAutomationExecution("success")
	IncAutomationExecution("partial")
	IncAutomationExecution("")

	total, byStatus := AutomationSnapshot()
	if total != 4 {
		t.Errorf("total = %d, want 4", total)
	}
	if byStatus["success"] != 2 {
		t.Errorf("success = %d, want 2", byStatus["success"])
	}
	if byStatus["partial"] != 1 {
		t.Errorf("partial = %d, want 1", byStatus["partial"])
	}
	if byStatus["unknown"] != 1 {
		t.Errorf("empty status should count as unknown, got %d", byStatus["unknown"])
	}
}

func TestIncAutomationExecution_Concurrent(t *testing.T) {
	// 重置全局状态
	auto = automationStats{}

	const goroutines = 50
	const incrementsPerGoroutine = 100

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < incrementsPerGoroutine; j++ {
				IncAutomationExecution("success")
			}
		}()
	}
	wg.Wait()

	total, byStatus := AutomationSnapshot()
	want := uint64(goroutines * incrementsPerGoroutine)
	if total != want {
		t.Errorf("total = %d, want %d", total, want)
	}
	if byStatus["success"] != want {
		t.Errorf("success = %d, want %d", byStatus["success"], want)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	auto = automationStats{}

	IncAutomationExecution("failed")
	_, by := AutomationSnapshot()
	by["failed"] = 999

	_, fresh := AutomationSnapshot()
	if fresh["failed"] != 1 {
		t.Errorf("snapshot mutation leaked into counters: %d", fresh["failed"])
	}
}
