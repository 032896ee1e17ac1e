// Package scheduler admits requests and resolves a virtual model to a
// concrete target; the retry/failover loop over the Strategy Manager's
// decisions runs in pipeline.Executor, which calls Resolve per attempt.
// Grounded on the teacher's llm/router.go strategy table (tag/cost/QPS/
// health/canary selection) and llm/apikey_pool.go's weighted/priority
// rotation, generalized from per-request GORM table scans over live
// provider rows to pure functions over an in-memory config.Snapshot.
package scheduler

import (
	"math/rand"
	"sort"

	"github.com/rcc-sub005/llmrouter/config"
)

// SelectionInput carries everything a Selector needs besides the virtual
// model's own target list.
type SelectionInput struct {
	Excluded         map[string]bool   // targets already tried this request
	ConnectionCounts map[string]int64  // in-flight count per target id
	HealthScores     map[string]float64 // 0-100 per target id, from monitoring
	RoundRobinCursor func(vmID string) int64 // monotonically increasing per virtual model
}

// Selector picks one eligible target from a virtual model's candidate set.
type Selector interface {
	Select(vm config.VirtualModel, in SelectionInput) (config.Target, bool)
}

// eligible filters out disabled/blacklisted and already-tried targets,
// sorted ascending by ID for deterministic tiebreaking downstream.
func eligible(vm config.VirtualModel, in SelectionInput) []config.Target {
	out := make([]config.Target, 0, len(vm.Targets))
	for _, t := range vm.Targets {
		if t.Status != config.TargetActive {
			continue
		}
		if in.Excluded != nil && in.Excluded[t.ID] {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RoundRobinSelector cycles through eligible targets in ascending-ID order.
type RoundRobinSelector struct{}

func (RoundRobinSelector) Select(vm config.VirtualModel, in SelectionInput) (config.Target, bool) {
	cand := eligible(vm, in)
	if len(cand) == 0 {
		return config.Target{}, false
	}
	var cursor int64
	if in.RoundRobinCursor != nil {
		cursor = in.RoundRobinCursor(vm.ID)
	}
	idx := int(cursor % int64(len(cand)))
	return cand[idx], true
}

// WeightedSelector picks a target with probability proportional to Weight.
// Weight<=0 is treated as 1 so every active target stays reachable.
type WeightedSelector struct {
	Rand *rand.Rand
}

func (s WeightedSelector) Select(vm config.VirtualModel, in SelectionInput) (config.Target, bool) {
	cand := eligible(vm, in)
	if len(cand) == 0 {
		return config.Target{}, false
	}
	total := 0
	for _, t := range cand {
		total += weightOf(t)
	}
	r := s.rand()
	pick := r.Intn(total)
	running := 0
	for _, t := range cand {
		running += weightOf(t)
		if pick < running {
			return t, true
		}
	}
	return cand[len(cand)-1], true
}

func (s WeightedSelector) rand() *rand.Rand {
	if s.Rand != nil {
		return s.Rand
	}
	return rand.New(rand.NewSource(1))
}

func weightOf(t config.Target) int {
	if t.Weight <= 0 {
		return 1
	}
	return t.Weight
}

// PrioritySelector picks the lowest Priority value, tiebroken by ascending ID.
type PrioritySelector struct{}

func (PrioritySelector) Select(vm config.VirtualModel, in SelectionInput) (config.Target, bool) {
	cand := eligible(vm, in)
	if len(cand) == 0 {
		return config.Target{}, false
	}
	best := cand[0]
	for _, t := range cand[1:] {
		if t.Priority < best.Priority {
			best = t
		}
	}
	return best, true
}

// LeastConnectionsSelector picks the target with fewest in-flight requests.
type LeastConnectionsSelector struct{}

func (LeastConnectionsSelector) Select(vm config.VirtualModel, in SelectionInput) (config.Target, bool) {
	cand := eligible(vm, in)
	if len(cand) == 0 {
		return config.Target{}, false
	}
	best := cand[0]
	bestCount := in.ConnectionCounts[best.ID]
	for _, t := range cand[1:] {
		if c := in.ConnectionCounts[t.ID]; c < bestCount {
			best, bestCount = t, c
		}
	}
	return best, true
}

// HealthBasedSelector picks the target with the highest known health
// score, treating an unknown score as neutral (50).
type HealthBasedSelector struct{}

func (HealthBasedSelector) Select(vm config.VirtualModel, in SelectionInput) (config.Target, bool) {
	cand := eligible(vm, in)
	if len(cand) == 0 {
		return config.Target{}, false
	}
	scoreOf := func(id string) float64 {
		if in.HealthScores == nil {
			return 50
		}
		if s, ok := in.HealthScores[id]; ok {
			return s
		}
		return 50
	}
	best := cand[0]
	bestScore := scoreOf(best.ID)
	for _, t := range cand[1:] {
		if s := scoreOf(t.ID); s > bestScore {
			best, bestScore = t, s
		}
	}
	return best, true
}

// RandomSelector picks uniformly among eligible targets.
type RandomSelector struct {
	Rand *rand.Rand
}

func (s RandomSelector) Select(vm config.VirtualModel, in SelectionInput) (config.Target, bool) {
	cand := eligible(vm, in)
	if len(cand) == 0 {
		return config.Target{}, false
	}
	r := s.Rand
	if r == nil {
		r = rand.New(rand.NewSource(1))
	}
	return cand[r.Intn(len(cand))], true
}

// CanarySelector routes CanaryPercent% of traffic to canary-flagged
// targets, falling through to a baseline selector otherwise. Grounded on
// the teacher's canary.go traffic-percentage rollout, generalized from a
// single active deployment row to any target carrying CanaryPercent>0.
type CanarySelector struct {
	Baseline Selector
	Rand     *rand.Rand
}

func (s CanarySelector) Select(vm config.VirtualModel, in SelectionInput) (config.Target, bool) {
	cand := eligible(vm, in)
	var canaries []config.Target
	for _, t := range cand {
		if t.CanaryPercent > 0 {
			canaries = append(canaries, t)
		}
	}
	if len(canaries) == 0 {
		return s.fallback(vm, in)
	}
	r := s.Rand
	if r == nil {
		r = rand.New(rand.NewSource(1))
	}
	roll := r.Intn(100)
	threshold := 0
	for _, t := range canaries {
		threshold += t.CanaryPercent
		if roll < threshold {
			return t, true
		}
	}
	return s.fallback(vm, in)
}

func (s CanarySelector) fallback(vm config.VirtualModel, in SelectionInput) (config.Target, bool) {
	if s.Baseline != nil {
		return s.Baseline.Select(vm, in)
	}
	return PrioritySelector{}.Select(vm, in)
}

// SelectorFor returns the Selector implementing policy.
func SelectorFor(policy config.LoadBalancePolicy) Selector {
	switch policy {
	case config.PolicyRoundRobin:
		return RoundRobinSelector{}
	case config.PolicyWeighted:
		return WeightedSelector{}
	case config.PolicyPriority:
		return PrioritySelector{}
	case config.PolicyLeastConnections:
		return LeastConnectionsSelector{}
	case config.PolicyHealthBased:
		return HealthBasedSelector{}
	case config.PolicyRandom:
		return RandomSelector{}
	case config.PolicyCanary:
		return CanarySelector{Baseline: PrioritySelector{}}
	default:
		return PrioritySelector{}
	}
}
