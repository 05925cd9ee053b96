/*
Package resilience provides a circuit breaker for calls to external services.

The file service depends on one remote collaborator, the session service
that validates credentials. When it fails repeatedly the breaker opens and
requests fail fast with ErrCircuitOpen instead of piling up behind timeouts.

# Usage

	breaker := resilience.New("auth-session", resilience.Settings{
		MaxRequests: 2,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	session, err := resilience.Call(breaker, func() (*Session, error) {
		return client.Fetch(ctx)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                       [failure]
	                                           v
	                                         Open

Errors are classified by Settings.IsSuccessful. By default context
cancellation is not held against the dependency.
*/
package resilience
