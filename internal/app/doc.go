// Package app wires the tabstat daemon together: configuration, logging,
// OpenTelemetry, the statistics engine and the HTTP server.
//
// # Initialization Flow
//
//  1. Load configuration from the YAML file and TABSTAT_* environment variables
//  2. Initialize logging and observability
//  3. Create the engine with the configured table options and thread cap
//  4. Set up HTTP handlers and middleware
//  5. Configure and start the HTTP server
//
// # Routes
//
//	POST /api/v1/stats   compute statistics over a file in the data directory or an inline CSV body
//	GET  /api/health     liveness
//	GET  /api/version    build information
//	GET  /ws/stats       the same computation with per-chunk progress over a websocket
//	GET  /metrics        Prometheus exposition, when metrics are enabled
//
// # Graceful Shutdown
//
// Run handles SIGINT and SIGTERM: in-flight requests are drained within
// Server.ShutdownTimeout and telemetry is flushed. The package never calls
// os.Exit; main decides the exit code.
package app
