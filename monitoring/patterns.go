package monitoring

import (
	"regexp"
	"sort"
	"sync"
)

// RecoveryPattern associates an error-message regex with a recovery
// strategy and a learned confidence in that strategy's success rate,
// per spec.md §4.9's adaptive recovery pattern requirement.
type RecoveryPattern struct {
	ID          string
	MatchRegex  string
	Strategy    string
	Confidence  float64
	SuccessRate float64
	Attempts    int

	compiled *regexp.Regexp
}

// PatternRegistry learns which recovery strategy works best for which
// class of error message, using an exponentially weighted moving average
// so recent outcomes dominate the learned rate.
type PatternRegistry struct {
	mu           sync.RWMutex
	patterns     []*RecoveryPattern
	learningRate float64
}

// NewPatternRegistry builds a registry with the given EWMA learning rate
// (0,1]; defaults to 0.2 when out of range.
func NewPatternRegistry(learningRate float64) *PatternRegistry {
	if learningRate <= 0 || learningRate > 1 {
		learningRate = 0.2
	}
	return &PatternRegistry{learningRate: learningRate}
}

// Register adds a pattern. Returns an error if the regex doesn't compile.
func (r *PatternRegistry) Register(p RecoveryPattern) error {
	compiled, err := regexp.Compile(p.MatchRegex)
	if err != nil {
		return err
	}
	p.compiled = compiled
	if p.Confidence == 0 {
		p.Confidence = 0.5
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := p
	r.patterns = append(r.patterns, &stored)
	return nil
}

// Match returns the candidate patterns whose regex matches message,
// ranked by Confidence*SuccessRate descending so the caller can try the
// most promising recovery strategy first.
func (r *PatternRegistry) Match(message string) []RecoveryPattern {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var hits []RecoveryPattern
	for _, p := range r.patterns {
		if p.compiled.MatchString(message) {
			hits = append(hits, *p)
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Confidence*hits[i].SuccessRate > hits[j].Confidence*hits[j].SuccessRate
	})
	return hits
}

// RecordOutcome folds a recovery attempt's outcome into the pattern's
// learned success rate via EWMA: rate = rate + lr*(outcome - rate).
func (r *PatternRegistry) RecordOutcome(id string, succeeded bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.patterns {
		if p.ID != id {
			continue
		}
		outcome := 0.0
		if succeeded {
			outcome = 1.0
		}
		p.Attempts++
		p.SuccessRate += r.learningRate * (outcome - p.SuccessRate)
		return
	}
}

// Snapshot returns a copy of all registered patterns.
func (r *PatternRegistry) Snapshot() []RecoveryPattern {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RecoveryPattern, len(r.patterns))
	for i, p := range r.patterns {
		out[i] = *p
	}
	return out
}
