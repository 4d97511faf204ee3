package observability

import (
	"maps"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aashrith/task-away-assistant/internal/assistant"
)

type StageStats struct {
	Stage       string  `json:"stage"`
	Samples     int     `json:"samples"`
	LastMS      float64 `json:"last_ms"`
	AvgMS       float64 `json:"avg_ms"`
	P50MS       float64 `json:"p50_ms"`
	P95MS       float64 `json:"p95_ms"`
	P99MS       float64 `json:"p99_ms"`
	TargetP95MS float64 `json:"target_p95_ms,omitempty"`
}

type TurnIndicator struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type TurnStageSnapshot struct {
	GeneratedAt time.Time       `json:"generated_at"`
	WindowSize  int             `json:"window_size"`
	Stages      []StageStats    `json:"stages"`
	Indicators  []TurnIndicator `json:"indicators,omitempty"`
}

// turnStageWindow keeps the last maxSamples latencies per stage in a ring.
type turnStageWindow struct {
	mu         sync.RWMutex
	maxSamples int
	stages     map[string]*ring
	indicators map[string]int
}

type ring struct {
	values []float64
	next   int
	filled bool
	last   float64
}

func (r *ring) push(v float64) {
	r.values[r.next] = v
	r.last = v
	r.next++
	if r.next == len(r.values) {
		r.next = 0
		r.filled = true
	}
}

func (r *ring) sorted() []float64 {
	n := r.next
	if r.filled {
		n = len(r.values)
	}
	out := slices.Clone(r.values[:n])
	slices.Sort(out)
	return out
}

func newTurnStageWindow(maxSamples int) *turnStageWindow {
	if maxSamples <= 0 {
		maxSamples = 256
	}
	return &turnStageWindow{
		maxSamples: maxSamples,
		stages:     make(map[string]*ring),
		indicators: make(map[string]int),
	}
}

func (w *turnStageWindow) Observe(stage string, ms float64) {
	if stage == "" || ms < 0 || math.IsNaN(ms) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	r, ok := w.stages[stage]
	if !ok {
		r = &ring{values: make([]float64, w.maxSamples)}
		w.stages[stage] = r
	}
	r.push(ms)
}

func (w *turnStageWindow) ObserveIndicator(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.indicators[name]++
}

func (w *turnStageWindow) Snapshot() TurnStageSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	stages := make([]StageStats, 0, len(w.stages))
	for _, stage := range slices.Sorted(maps.Keys(w.stages)) {
		samples := w.stages[stage].sorted()
		if len(samples) == 0 {
			continue
		}
		sum := 0.0
		for _, v := range samples {
			sum += v
		}
		stages = append(stages, StageStats{
			Stage:       stage,
			Samples:     len(samples),
			LastMS:      round2(w.stages[stage].last),
			AvgMS:       round2(sum / float64(len(samples))),
			P50MS:       round2(quantile(samples, 0.50)),
			P95MS:       round2(quantile(samples, 0.95)),
			P99MS:       round2(quantile(samples, 0.99)),
			TargetP95MS: stageTargetP95MS(stage),
		})
	}

	var indicators []TurnIndicator
	for _, name := range slices.Sorted(maps.Keys(w.indicators)) {
		indicators = append(indicators, TurnIndicator{Name: name, Count: w.indicators[name]})
	}

	return TurnStageSnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  w.maxSamples,
		Stages:      stages,
		Indicators:  indicators,
	}
}

func (w *turnStageWindow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stages = make(map[string]*ring)
	w.indicators = make(map[string]int)
}

// quantile interpolates linearly between the closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := q * float64(len(sorted)-1)
	lo, hi := int(math.Floor(idx)), int(math.Ceil(idx))
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func stageTargetP95MS(stage string) float64 {
	switch stage {
	case assistant.StageClassify:
		return 1500
	case assistant.StageDispatch:
		return 50
	case assistant.StageTurnTotal:
		return 2000
	default:
		return 0
	}
}
