/*
Package resilience provides the circuit breaker previewctl uses in front of a
remote preview server.

# Usage

	breaker := resilience.New("preview-server", resilience.Settings{
		MaxRequests: 1,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	err := breaker.Do(ctx, func(ctx context.Context) error {
		return client.call(ctx)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                       [failure]
	                                           v
	                                         Open

Settings.IsFailure decides which errors count. By default a cancelled
context does not; the client additionally ignores 4xx responses, which say
nothing about the server's health.
*/
package resilience
