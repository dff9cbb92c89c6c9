package ai

import (
	"context"
	"sort"
	"sync"
)

// Pinger is anything whose reachability can be checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ComponentStatus is the health of one dependency.
type ComponentStatus struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// HealthReport summarises a connectivity check.
type HealthReport struct {
	Healthy    bool              `json:"healthy"`
	Components []ComponentStatus `json:"components"`
}

// CheckHealth pings every component concurrently, each bounded by the
// ping timeout. Nil components are skipped.
func CheckHealth(ctx context.Context, components map[string]Pinger) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		report = HealthReport{Healthy: true}
	)
	for name, c := range components {
		if c == nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			status := ComponentStatus{Name: name, OK: true}
			if err := c.Ping(ctx); err != nil {
				status.OK = false
				status.Error = err.Error()
			}

			mu.Lock()
			defer mu.Unlock()
			report.Components = append(report.Components, status)
			if !status.OK {
				report.Healthy = false
			}
		}()
	}
	wg.Wait()

	sort.Slice(report.Components, func(i, j int) bool {
		return report.Components[i].Name < report.Components[j].Name
	})
	return report
}
