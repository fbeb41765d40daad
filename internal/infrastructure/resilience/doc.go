/*
Package resilience provides failure handling for the client's network paths.

# Features

- Three-state circuit breaker (Closed, Open, Half-Open) guarding page fetches
- A single trial call while half-open
- State change callbacks for logging
- Exponential reconnect backoff for the duplex channel

# Usage

	breaker := resilience.New("fetch", resilience.Settings{
		Threshold: 5,
		Cooldown:  30 * time.Second,
	})

	err := breaker.Execute(func() error {
		return fetch(ctx, url)
	})

	backoff := resilience.Backoff{Min: time.Second, Max: 30 * time.Second}
	time.Sleep(backoff.Delay(attempt))

# Pattern

	Closed --[threshold failures]-> Open --[cooldown]-> Half-Open --[success]-> Closed
	                                           |
	                                       [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience
