package tree

import "fmt"

// MetricRequirement is a single (ticker, metric_fn, window) triple that
// must be available before a node can evaluate (spec.md §4.3
// "Requirement Manifest").
type MetricRequirement struct {
	Ticker string
	Fn     MetricFn
	Window int
}

func (r MetricRequirement) key() string {
	return fmt.Sprintf("%s|%s|%d", r.Ticker, r.Fn, r.Window)
}

// Manifest is the pre-computed set of tickers and metric requirements a
// tree needs in order to evaluate, used by the scheduler to pre-fetch
// data through the Market-Data Facade before evaluation.
type Manifest struct {
	Tickers      map[string]bool
	Requirements map[string]MetricRequirement
}

func newManifest() *Manifest {
	return &Manifest{
		Tickers:      make(map[string]bool),
		Requirements: make(map[string]MetricRequirement),
	}
}

// TickerList returns the manifest's tickers as a slice.
func (m *Manifest) TickerList() []string {
	out := make([]string, 0, len(m.Tickers))
	for t := range m.Tickers {
		out = append(out, t)
	}
	return out
}

// BuildManifest computes the Requirement Manifest for an already
// validated tree: parents inherit the union of child requirements.
func BuildManifest(root *Step) *Manifest {
	m := newManifest()
	collect(root, m)
	return m
}

func collect(s *Step, m *Manifest) {
	if s.Kind == KindAsset {
		m.Tickers[s.Ticker] = true
	}

	addSource := func(src Source) {
		if src.IsLiteral() || src.Ticker == "" {
			return
		}
		m.Tickers[src.Ticker] = true
		req := MetricRequirement{Ticker: src.Ticker, Fn: src.MetricFn, Window: src.Window}
		m.Requirements[req.key()] = req
		if src.Benchmark != "" {
			m.Tickers[src.Benchmark] = true
			breq := MetricRequirement{Ticker: src.Benchmark, Fn: src.MetricFn, Window: src.Window}
			m.Requirements[breq.key()] = breq
		}
	}

	if s.Kind == KindIfChild && s.Condition != nil {
		addSource(s.Condition.LHS)
		addSource(s.Condition.RHS)
	}

	if s.Kind == KindFilter {
		for _, c := range s.Children {
			collectAssetsInto(c, func(ticker string) {
				req := MetricRequirement{Ticker: ticker, Fn: s.SortFn, Window: s.SortFnWindow}
				m.Requirements[req.key()] = req
			})
		}
	}

	for _, c := range s.ScreenCriteria {
		if c.Kind == "indicator" {
			// screen indicator requirements are not added to the
			// manifest; the evaluator computes them per candidate
			// ticker from that ticker's snapshot at evaluation time.
			_ = c
		}
	}

	for _, c := range s.Children {
		collect(c, m)
	}
}

// collectAssetsInto walks down to the Asset leaves beneath s (through
// every intermediate step, whatever its kind) and invokes fn with each
// ticker.
func collectAssetsInto(s *Step, fn func(ticker string)) {
	if s.Kind == KindAsset {
		fn(s.Ticker)
		return
	}
	for _, c := range s.Children {
		collectAssetsInto(c, fn)
	}
}
