package config

import "time"

// HTTP server timeouts.
//
// Matching and classification are in-process CPU work bounded by taxonomy
// size, so requests complete in milliseconds once warmed up; the read and
// write timeouts only need to cover slow clients, not slow handlers. Index
// rebuilds happen in background jobs, never on the request path.
const (
	// HTTPRead bounds reading the request, including the body.
	HTTPRead = 10 * time.Second

	// HTTPWrite bounds writing the response.
	HTTPWrite = 30 * time.Second

	// HTTPIdle closes keep-alive connections that go quiet.
	HTTPIdle = 120 * time.Second
)
