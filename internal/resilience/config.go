package resilience

import "time"

// FromCircuitConfig converts raw config values to a CircuitConfig.
// Zero or negative values keep the defaults.
func FromCircuitConfig(failureThreshold, cooldownSecs, successThreshold int) CircuitConfig {
	cfg := DefaultCircuitConfig()
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if cooldownSecs > 0 {
		cfg.Cooldown = time.Duration(cooldownSecs) * time.Second
	}
	if successThreshold > 0 {
		cfg.SuccessThreshold = successThreshold
	}
	return cfg
}
