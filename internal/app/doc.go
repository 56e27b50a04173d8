// Package app wires the demos server together: it loads configuration,
// builds the services and handlers, installs the middleware chain and runs
// the HTTP server until SIGINT or SIGTERM.
//
// # Initialization
//
//	1. Load configuration from environment and config.yaml
//	2. Initialize logging and OpenTelemetry
//	3. Create the service account provider, bit.ly client and metadata cache
//	4. Load meta.yaml and the page templates
//	5. Register routes and middleware
//
// A missing service account or bit.ly configuration is not fatal. The
// endpoints that need them answer 503 until they are configured.
//
// # Graceful Shutdown
//
// Stop drains in-flight requests within Server.ShutdownTimeout, stops the
// metadata cache janitor and flushes OpenTelemetry providers. The app never
// calls os.Exit; main decides the exit code.
package app
