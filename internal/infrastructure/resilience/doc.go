/*
Package resilience provides the circuit breaker guarding calls to the
model provider and the tool broker.

A breaker cycles closed -> open -> half-open. While closed, requests pass
through and outcomes are counted; when ReadyToTrip fires the breaker opens
and rejects immediately with ErrCircuitOpen. After Timeout it admits up to
MaxRequests probes in half-open: enough consecutive successes close it, a
single failure reopens it.

	breaker := resilience.New("model-provider", resilience.Settings{
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	result, err := breaker.Execute(func() (interface{}, error) {
		return client.Call()
	})
*/
package resilience
