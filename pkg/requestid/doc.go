// Package requestid attaches a correlation id to every request.
//
// Middleware reuses a client supplied X-Request-ID when it is at most 128
// characters of [A-Za-z0-9_-], and generates a UUID otherwise. The id is
// echoed on the response, stored in the context, copied into audit events and
// added to log records through LoggerExtractor.
package requestid
