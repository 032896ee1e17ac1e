package scheduler

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcc-sub005/llmrouter/config"
)

func vmFixture(policy config.LoadBalancePolicy) config.VirtualModel {
	return config.VirtualModel{
		ID:     "vm1",
		Policy: policy,
		Targets: []config.Target{
			{ID: "t1", ProviderID: "p1", ModelID: "m1", Weight: 1, Priority: 2, Status: config.TargetActive},
			{ID: "t2", ProviderID: "p2", ModelID: "m1", Weight: 9, Priority: 1, Status: config.TargetActive},
			{ID: "t3", ProviderID: "p3", ModelID: "m1", Status: config.TargetDisabled},
		},
	}
}

func TestEligible_ExcludesDisabledAndTried(t *testing.T) {
	vm := vmFixture(config.PolicyPriority)
	sel := PrioritySelector{}
	target, ok := sel.Select(vm, SelectionInput{Excluded: map[string]bool{"t2": true}})
	require.True(t, ok)
	assert.Equal(t, "t1", target.ID)
}

func TestPrioritySelector_PicksLowestPriority(t *testing.T) {
	vm := vmFixture(config.PolicyPriority)
	target, ok := PrioritySelector{}.Select(vm, SelectionInput{})
	require.True(t, ok)
	assert.Equal(t, "t2", target.ID)
}

func TestLeastConnectionsSelector_PicksFewestConnections(t *testing.T) {
	vm := vmFixture(config.PolicyLeastConnections)
	target, ok := LeastConnectionsSelector{}.Select(vm, SelectionInput{
		ConnectionCounts: map[string]int64{"t1": 5, "t2": 1},
	})
	require.True(t, ok)
	assert.Equal(t, "t2", target.ID)
}

func TestHealthBasedSelector_PicksHighestScore(t *testing.T) {
	vm := vmFixture(config.PolicyHealthBased)
	target, ok := HealthBasedSelector{}.Select(vm, SelectionInput{
		HealthScores: map[string]float64{"t1": 90, "t2": 20},
	})
	require.True(t, ok)
	assert.Equal(t, "t1", target.ID)
}

func TestRoundRobinSelector_CyclesDeterministically(t *testing.T) {
	vm := vmFixture(config.PolicyRoundRobin)
	var cursor int64
	cursorFn := func(vmID string) int64 {
		v := cursor
		cursor++
		return v
	}
	first, _ := RoundRobinSelector{}.Select(vm, SelectionInput{RoundRobinCursor: cursorFn})
	second, _ := RoundRobinSelector{}.Select(vm, SelectionInput{RoundRobinCursor: cursorFn})
	assert.NotEqual(t, first.ID, second.ID)
}

func TestWeightedSelector_NeverPicksOutsideEligibleSet(t *testing.T) {
	vm := vmFixture(config.PolicyWeighted)
	sel := WeightedSelector{Rand: rand.New(rand.NewSource(42))}
	for i := 0; i < 20; i++ {
		target, ok := sel.Select(vm, SelectionInput{})
		require.True(t, ok)
		assert.Contains(t, []string{"t1", "t2"}, target.ID)
	}
}

func TestCanarySelector_RoutesWithinPercentBudgetOrFallsBack(t *testing.T) {
	vm := config.VirtualModel{
		ID:     "vm1",
		Policy: config.PolicyCanary,
		Targets: []config.Target{
			{ID: "stable", Priority: 1, Status: config.TargetActive},
			{ID: "canary", Priority: 2, Status: config.TargetActive, CanaryPercent: 100},
		},
	}
	sel := CanarySelector{Baseline: PrioritySelector{}, Rand: rand.New(rand.NewSource(1))}
	target, ok := sel.Select(vm, SelectionInput{})
	require.True(t, ok)
	assert.Equal(t, "canary", target.ID, "100%% canary budget always routes to canary")
}

func TestCanarySelector_FallsBackWhenNoCanaryTargets(t *testing.T) {
	vm := vmFixture(config.PolicyCanary)
	sel := CanarySelector{Baseline: PrioritySelector{}}
	target, ok := sel.Select(vm, SelectionInput{})
	require.True(t, ok)
	assert.Equal(t, "t2", target.ID)
}

func TestSelectorFor_UnknownPolicyDefaultsToPriority(t *testing.T) {
	sel := SelectorFor("nonsense")
	_, isPriority := sel.(PrioritySelector)
	assert.True(t, isPriority)
}
