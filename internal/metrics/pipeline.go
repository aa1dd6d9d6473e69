package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// circuitStates lists every state the breaker gauge reports, one series each.
var circuitStates = []string{"CLOSED", "OPEN", "HALF_OPEN"}

// PipelineObserver reads the live state of a running pipeline. Nil funcs are skipped.
type PipelineObserver struct {
	// CircuitState returns the breaker state and its consecutive failure count.
	CircuitState func() (state string, failures int)

	// PendingRetries returns the number of scheduled, not yet fired retries.
	PendingRetries func() int
}

// RegisterPipelineGauges registers observable gauges backed by obs:
// <namespace>_circuit_breaker_state (1 for the current state, 0 for the others),
// <namespace>_circuit_breaker_failures and <namespace>_retry_pending.
// Call Unregister on the returned registration to stop observing.
func RegisterPipelineGauges(
	meterProvider metric.MeterProvider,
	namespace string,
	obs PipelineObserver,
) (metric.Registration, error) {
	meter := meterProvider.Meter(namespace)

	stateGauge, err := meter.Int64ObservableGauge(
		fmt.Sprintf("%s_circuit_breaker_state", namespace),
		metric.WithDescription("Current circuit breaker state"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create circuit state gauge: %w", err)
	}

	failuresGauge, err := meter.Int64ObservableGauge(
		fmt.Sprintf("%s_circuit_breaker_failures", namespace),
		metric.WithDescription("Consecutive dispatch failures counted by the circuit breaker"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create circuit failures gauge: %w", err)
	}

	pendingGauge, err := meter.Int64ObservableGauge(
		fmt.Sprintf("%s_retry_pending", namespace),
		metric.WithDescription("Retries scheduled but not yet re-enqueued"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pending retries gauge: %w", err)
	}

	registration, err := meter.RegisterCallback(
		func(_ context.Context, o metric.Observer) error {
			if obs.CircuitState != nil {
				current, failures := obs.CircuitState()
				for _, state := range circuitStates {
					var value int64
					if state == current {
						value = 1
					}
					o.ObserveInt64(stateGauge, value, metric.WithAttributes(attribute.String("state", state)))
				}
				o.ObserveInt64(failuresGauge, int64(failures))
			}
			if obs.PendingRetries != nil {
				o.ObserveInt64(pendingGauge, int64(obs.PendingRetries()))
			}
			return nil
		},
		stateGauge, failuresGauge, pendingGauge,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register pipeline gauges: %w", err)
	}

	return registration, nil
}
