// Package httpserver runs the tenantd HTTP server with graceful shutdown.
//
// Run blocks until its context is cancelled or the process receives SIGINT
// or SIGTERM. Shutdown then stops accepting requests, waits for in-flight
// ones and runs the registered hooks (audit drain, multiplexer drain) in
// order, all within Config.ShutdownTimeout.
package httpserver
