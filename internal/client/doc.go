/*
Package client is an HTTP client for a running preview server.

Requests go through resty with retryablehttp's retry policy and backoff, a
token bucket limiter and a circuit breaker. Only transport errors and 5xx
answers trip the breaker; a 400 or 413 is the caller's problem.

	c := client.New(client.Options{BaseURL: "http://localhost:8000"}, logger)
	resp, err := c.Preview(ctx, source)

Pipeline adapts the client to host.Pipeline so previewctl can watch a file
locally while the server does the rendering.
*/
package client
