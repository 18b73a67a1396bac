package models

// Health is the liveness and readiness body.
type Health struct {
	Status  HealthStatus   `json:"status"`
	Time    Timestamp      `json:"time"`
	Details map[string]any `json:"details,omitempty"`
}

// ProvidersStatus lists upstream provider health.
type ProvidersStatus struct {
	Status    HealthStatus     `json:"status"`
	Time      Timestamp        `json:"time"`
	Providers []ProviderStatus `json:"providers"`
}

// ProviderStatus is one upstream's circuit and call history.
type ProviderStatus struct {
	Provider            string       `json:"provider"`
	Status              HealthStatus `json:"status"`
	CircuitState        string       `json:"circuit_state"`
	Requests            uint32       `json:"requests"`
	ConsecutiveFailures uint32       `json:"consecutive_failures"`
	LastSuccessAt       *Timestamp   `json:"last_success_at,omitempty"`
	LastFailureAt       *Timestamp   `json:"last_failure_at,omitempty"`
	Message             *string      `json:"message,omitempty"`
}

// FlagList is the body of GET /v1/ops/flags.
type FlagList struct {
	Items []Flag `json:"items"`
}

// Flag is one runtime switch and its current value.
type Flag struct {
	Key       string    `json:"key"`
	Value     any       `json:"value"`
	UpdatedAt Timestamp `json:"updated_at"`
}
