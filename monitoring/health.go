package monitoring

import "math"

// HealthStatus is the status band a health score maps to.
type HealthStatus string

const (
	StatusHealthy  HealthStatus = "healthy"
	StatusDegraded HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// HealthReport is the synchronous snapshot getHealth() returns (spec.md §6).
type HealthReport struct {
	OverallScore    float64
	Status          HealthStatus
	ProviderScores  map[string]float64
	ProviderStatus  map[string]HealthStatus
}

// scoringConfig carries the normalization constants for the deduction
// formulas below. spec.md names the caps (30/20/15) but leaves the exact
// curve unspecified (§9 Open Questions); these are the implementation's
// chosen normalization points (50 errors, 5 seconds), set in the default
// config below.
type scoringConfig struct {
	errorVolumeNorm   float64 // error count at which the volume deduction saturates
	handlingTimeNorm  float64 // seconds at which the handling-time deduction saturates
}

func defaultScoringConfig() scoringConfig {
	return scoringConfig{errorVolumeNorm: 50, handlingTimeNorm: 5}
}

// HealthScorer derives health scores from a RollingSnapshot, following
// spec.md §4.9's exact weights (unlike the teacher's 0-1 banded score).
type HealthScorer struct {
	cfg             scoringConfig
	healthyAt       float64
	degradedAt      float64
}

// NewHealthScorer builds a scorer with the healthy/degraded thresholds
// spec.md names (80/50 by default).
func NewHealthScorer(healthyAt, degradedAt float64) *HealthScorer {
	if healthyAt <= 0 {
		healthyAt = 80
	}
	if degradedAt <= 0 {
		degradedAt = 50
	}
	return &HealthScorer{cfg: defaultScoringConfig(), healthyAt: healthyAt, degradedAt: degradedAt}
}

// Score computes the overall health report from snap.
func (s *HealthScorer) Score(snap RollingSnapshot) HealthReport {
	providerScores := make(map[string]float64, len(snap.ByProvider))
	for target, pm := range snap.ByProvider {
		providerScores[target] = s.providerScore(pm)
	}

	base := 100.0
	base -= s.volumeDeduction(snap.TotalErrors)
	base -= s.recoveryDeduction(snap.RecoveryRate, snap.TotalErrors)
	base -= s.handlingDeduction(snap.AverageHandling.Seconds())
	if base < 0 {
		base = 0
	}

	factor := geometricMeanFraction(providerScores)
	overall := base * factor
	if overall > 100 {
		overall = 100
	}
	if overall < 0 {
		overall = 0
	}

	providerStatus := make(map[string]HealthStatus, len(providerScores))
	for target, score := range providerScores {
		providerStatus[target] = s.statusFor(score)
	}

	return HealthReport{
		OverallScore:   overall,
		Status:         s.statusFor(overall),
		ProviderScores: providerScores,
		ProviderStatus: providerStatus,
	}
}

func (s *HealthScorer) statusFor(score float64) HealthStatus {
	switch {
	case score >= s.healthyAt:
		return StatusHealthy
	case score >= s.degradedAt:
		return StatusDegraded
	default:
		return StatusUnhealthy
	}
}

func (s *HealthScorer) volumeDeduction(totalErrors int) float64 {
	ratio := float64(totalErrors) / s.cfg.errorVolumeNorm
	if ratio > 1 {
		ratio = 1
	}
	return ratio * 30
}

func (s *HealthScorer) recoveryDeduction(recoveryRate float64, totalErrors int) float64 {
	if totalErrors == 0 {
		return 0
	}
	return (1 - recoveryRate) * 20
}

func (s *HealthScorer) handlingDeduction(avgSeconds float64) float64 {
	ratio := avgSeconds / s.cfg.handlingTimeNorm
	if ratio > 1 {
		ratio = 1
	}
	return ratio * 15
}

// providerScore derives a target's own 0-100 score from its consecutive
// errors, retry success rate, and average handling time.
func (s *HealthScorer) providerScore(pm ProviderMetrics) float64 {
	score := 100.0
	consecutivePenalty := math.Min(float64(pm.ConsecutiveErrors)*5, 50)
	score -= consecutivePenalty
	if pm.TotalErrors > 0 {
		score -= (1 - pm.RetrySuccessRate) * 25
	}
	score -= s.handlingDeduction(pm.AverageHandling.Seconds())
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// geometricMeanFraction returns the geometric mean of scores (each 0-100)
// expressed as a fraction in [0,1], so multiplying it against the base
// deduction-adjusted score keeps the result on a 0-100 scale. An empty
// provider set is treated as neutral (factor 1) since there is nothing to
// penalize yet.
func geometricMeanFraction(scores map[string]float64) float64 {
	if len(scores) == 0 {
		return 1
	}
	logSum := 0.0
	for _, v := range scores {
		if v <= 0 {
			return 0
		}
		logSum += math.Log(v / 100)
	}
	return math.Exp(logSum / float64(len(scores)))
}
