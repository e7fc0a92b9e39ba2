package opt

import (
	"sync"

	"foodsim/internal/metrics"
)

// SearchTotals aggregates the work done by all searches of one kind.
type SearchTotals struct {
	Searches int `json:"searches"`
	Failures int `json:"failures"`
	Created  int `json:"labelsCreated"`
	Popped   int `json:"labelsPopped"`
	Pruned   int `json:"labelsPruned"`
}

var (
	mu     sync.Mutex
	totals = map[string]SearchTotals{}
)

func observe(kind string, st Stats, err error) {
	mu.Lock()
	t := totals[kind]
	t.Searches++
	if err != nil {
		t.Failures++
	}
	t.Created += st.Created
	t.Popped += st.Popped
	t.Pruned += st.Pruned
	totals[kind] = t
	mu.Unlock()

	result := "ok"
	if err != nil {
		result = "no_path"
	}
	metrics.PathSearches.WithLabelValues(kind, result).Inc()
	metrics.PathLabels.WithLabelValues(kind).Observe(float64(st.Created))
}

// Totals returns a copy of the per-kind search totals.
func Totals() map[string]SearchTotals {
	mu.Lock()
	defer mu.Unlock()
	out := make(map[string]SearchTotals, len(totals))
	for k, v := range totals {
		out[k] = v
	}
	return out
}
