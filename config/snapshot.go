package config

import "time"

// LoadBalancePolicy names a target-selection rule for a virtual model.
type LoadBalancePolicy string

const (
	PolicyRoundRobin       LoadBalancePolicy = "round-robin"
	PolicyWeighted         LoadBalancePolicy = "weighted"
	PolicyPriority         LoadBalancePolicy = "priority"
	PolicyLeastConnections LoadBalancePolicy = "least-connections"
	PolicyHealthBased      LoadBalancePolicy = "health-based"
	PolicyRandom           LoadBalancePolicy = "random"
	PolicyCanary           LoadBalancePolicy = "canary"
)

// TargetStatus is the administrative status of a Target.
type TargetStatus string

const (
	TargetActive      TargetStatus = "active"
	TargetDisabled    TargetStatus = "disabled"
	TargetBlacklisted TargetStatus = "blacklisted"
)

// AuthScheme names the Auth Center credential scheme a Provider uses.
type AuthScheme string

const (
	AuthNone             AuthScheme = "none"
	AuthAPIKey           AuthScheme = "api-key"
	AuthBearer           AuthScheme = "bearer"
	AuthOAuthDeviceFlow  AuthScheme = "oauth-device-flow"
)

// ProtocolFamily names the wire shape a Provider speaks natively.
type ProtocolFamily string

const (
	ProtocolOpenAI    ProtocolFamily = "openai"
	ProtocolAnthropic ProtocolFamily = "anthropic"
	ProtocolOpenAICompat ProtocolFamily = "openai-compat"
)

// Target is a (provider, model) pair eligible to serve a virtual model,
// along with the policy attributes the Scheduler's selection rules use.
type Target struct {
	ID         string       `json:"id" yaml:"id"`
	ProviderID string       `json:"provider_id" yaml:"provider_id"`
	ModelID    string       `json:"model_id" yaml:"model_id"`
	Weight     int          `json:"weight" yaml:"weight"`
	Priority   int          `json:"priority" yaml:"priority"`
	Status     TargetStatus `json:"status" yaml:"status"`

	// CanaryPercent, when the virtual model's policy is "canary", is the
	// 0-100 share of traffic this target receives before falling through
	// to the virtual model's baseline policy.
	CanaryPercent int `json:"canary_percent,omitempty" yaml:"canary_percent,omitempty"`
}

// VirtualModel is a named alias resolving to an ordered set of targets via
// a load-balancing policy.
type VirtualModel struct {
	ID           string            `json:"id" yaml:"id"`
	DisplayName  string            `json:"display_name" yaml:"display_name"`
	Capabilities []string          `json:"capabilities" yaml:"capabilities"` // chat/streaming/vision/tools
	Policy       LoadBalancePolicy `json:"policy" yaml:"policy"`
	Targets      []Target          `json:"targets" yaml:"targets"`
}

// HasCapability reports whether the virtual model declares cap.
func (v VirtualModel) HasCapability(cap string) bool {
	for _, c := range v.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// Provider is an upstream service descriptor.
type Provider struct {
	ID                string         `json:"id" yaml:"id"`
	Protocol          ProtocolFamily `json:"protocol" yaml:"protocol"`
	BaseURL           string         `json:"base_url" yaml:"base_url"`
	AuthScheme        AuthScheme     `json:"auth_scheme" yaml:"auth_scheme"`
	SupportsStreaming bool           `json:"supports_streaming" yaml:"supports_streaming"`
	MaxTokensLimit    int            `json:"max_tokens_limit,omitempty" yaml:"max_tokens_limit,omitempty"`
	HealthEndpoint    string         `json:"health_endpoint,omitempty" yaml:"health_endpoint,omitempty"`
	RequestTimeout    time.Duration  `json:"request_timeout,omitempty" yaml:"request_timeout,omitempty"`

	// APIKeys supports a rotating pool of credentials for the api-key /
	// bearer schemes (spec.md expansion over the single-token Token
	// Bundle, grounded on the teacher's apikey_pool.go).
	APIKeys []APIKeyEntry `json:"api_keys,omitempty" yaml:"api_keys,omitempty"`
}

// APIKeyEntry is one credential in a Provider's rotation pool.
type APIKeyEntry struct {
	Key      string `json:"key" yaml:"key"`
	Label    string `json:"label,omitempty" yaml:"label,omitempty"`
	Priority int    `json:"priority" yaml:"priority"`
	Weight   int    `json:"weight" yaml:"weight"`
}

// FieldMapping is one declared rewrite rule in a provider's Mapping Table.
type FieldMapping struct {
	SourceField   string `json:"source_field" yaml:"source_field"`
	TargetField   string `json:"target_field" yaml:"target_field"`
	Transform     string `json:"transform,omitempty" yaml:"transform,omitempty"`
	Required      bool   `json:"required" yaml:"required"`
	DefaultValue  any    `json:"default_value,omitempty" yaml:"default_value,omitempty"`
}

// MappingTable is a per-provider declarative rewrite, loaded once at
// startup and immutable thereafter.
type MappingTable struct {
	ProviderID            string                    `json:"provider_id" yaml:"provider_id"`
	PassThrough           bool                      `json:"pass_through" yaml:"pass_through"`
	PreserveUnknownFields bool                      `json:"preserve_unknown_fields" yaml:"preserve_unknown_fields"`
	RequestMappings       []FieldMapping            `json:"request_mappings" yaml:"request_mappings"`
	ResponseMappings      []FieldMapping            `json:"response_mappings" yaml:"response_mappings"`
	LookupTables          map[string]map[string]any `json:"lookup_tables,omitempty" yaml:"lookup_tables,omitempty"`
}

// CircuitBreakerPolicy carries the per-target thresholds spec.md §4.7 names.
type CircuitBreakerPolicy struct {
	FailureThreshold  int           `json:"failure_threshold" yaml:"failure_threshold"`
	VolumeThreshold   int           `json:"volume_threshold" yaml:"volume_threshold"`
	RecoveryTimeout   time.Duration `json:"recovery_timeout" yaml:"recovery_timeout"`
	SuccessThreshold  int           `json:"success_threshold" yaml:"success_threshold"`
	HalfOpenAttempts  int           `json:"half_open_attempts" yaml:"half_open_attempts"`
	MonitoringWindow  time.Duration `json:"monitoring_window" yaml:"monitoring_window"`
}

// RetryPolicy carries the backoff parameters spec.md §4.7 names.
type RetryPolicy struct {
	MaxAttempts  int           `json:"max_attempts" yaml:"max_attempts"`
	BaseDelay    time.Duration `json:"base_delay" yaml:"base_delay"`
	Multiplier   float64       `json:"multiplier" yaml:"multiplier"`
	MaxDelay     time.Duration `json:"max_delay" yaml:"max_delay"`
}

// FallbackPolicy orders the recovery actions the Fallback strategy tries.
type FallbackPolicy struct {
	Actions []string `json:"actions" yaml:"actions"` // token_refresh | alternative_provider | cached_response | graceful_degradation
}

// MonitoringPolicy carries Monitoring & Health thresholds.
type MonitoringPolicy struct {
	EventRetentionCount    int           `json:"event_retention_count" yaml:"event_retention_count"`
	EventRetentionAge      time.Duration `json:"event_retention_age" yaml:"event_retention_age"`
	HealthyThreshold       float64       `json:"healthy_threshold" yaml:"healthy_threshold"`
	DegradedThreshold      float64       `json:"degraded_threshold" yaml:"degraded_threshold"`
	MinConfidenceThreshold float64       `json:"min_confidence_threshold" yaml:"min_confidence_threshold"`
	LearningRate           float64       `json:"learning_rate" yaml:"learning_rate"`
	AnomalyZScoreThreshold float64       `json:"anomaly_z_score_threshold" yaml:"anomaly_z_score_threshold"`
	EventQueueCapacity     int           `json:"event_queue_capacity" yaml:"event_queue_capacity"`
}

// AuthPolicy carries Auth Center thresholds.
type AuthPolicy struct {
	RefreshThreshold time.Duration `json:"refresh_threshold" yaml:"refresh_threshold"`
	StateDir         string        `json:"state_dir" yaml:"state_dir"`
}

// SchedulerPolicy carries admission/concurrency thresholds.
type SchedulerPolicy struct {
	MaxConcurrency  int           `json:"max_concurrency" yaml:"max_concurrency"`
	QueueWaitDeadline time.Duration `json:"queue_wait_deadline" yaml:"queue_wait_deadline"`
}

// Snapshot is the full, immutable configuration record the core consumes.
// The hosting program builds one, validates it, and swaps it in atomically
// (config.Store); the core never mutates a Snapshot in place.
type Snapshot struct {
	Version       int64                   `json:"version" yaml:"version"`
	VirtualModels map[string]VirtualModel `json:"virtual_models" yaml:"virtual_models"`
	Providers     map[string]Provider     `json:"providers" yaml:"providers"`
	MappingTables map[string]MappingTable `json:"mapping_tables" yaml:"mapping_tables"`

	CircuitBreaker CircuitBreakerPolicy `json:"circuit_breaker" yaml:"circuit_breaker"`
	Retry          RetryPolicy          `json:"retry" yaml:"retry"`
	Fallback       FallbackPolicy       `json:"fallback" yaml:"fallback"`
	Monitoring     MonitoringPolicy     `json:"monitoring" yaml:"monitoring"`
	Auth           AuthPolicy           `json:"auth" yaml:"auth"`
	Scheduler      SchedulerPolicy      `json:"scheduler" yaml:"scheduler"`
}

// Validate checks the invariants §6 requires before a Snapshot is handed
// to the core: every virtual model must resolve to known providers.
func (s *Snapshot) Validate() error {
	for id, vm := range s.VirtualModels {
		if len(vm.Targets) == 0 {
			return &validationError{msg: "virtual model " + id + " has no targets"}
		}
		for _, t := range vm.Targets {
			if _, ok := s.Providers[t.ProviderID]; !ok {
				return &validationError{msg: "virtual model " + id + " references unknown provider " + t.ProviderID}
			}
		}
	}
	return nil
}

type validationError struct{ msg string }

func (e *validationError) Error() string { return e.msg }
