// Package http implements the HTTP and WebSocket handlers of the tabstat
// service. Handlers are thin: they decode and validate the request, hand it
// to the engine, and render the outcome.
//
// # Request Flow
//
//	HTTP Request → Chi Router → Middleware → Handler → Engine
//	                                             ↓
//	HTTP Response ← Handler ← engine.Response ←─┘
//
// # Error Handling
//
// Every failure is rendered as RFC 7807 problem details by
// errors.ErrorHandler. Engine failures carry the engine status code in the
// "status_code" extension, so HTTP clients see the same code as the CLI's
// exit status.
//
// # Streaming
//
// GET /ws/stats upgrades to a WebSocket. The client sends one StatsRequest;
// the server answers with an "accepted" message, one "progress" message per
// finished chunk, and a final "result" message before closing.
package http
