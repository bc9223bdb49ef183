// Package audit records tenant-scoped mutations asynchronously.
//
// A Capturer builds the request-level Context (actor, origin address, user
// agent, request id) once per request. Each mutation is then passed to
// Recorder.Record together with its company, which stamps both tenant and
// company on the Event and queues it. Recording never blocks the caller and
// never fails the request: a bounded queue feeds a single worker that writes
// batches to a Storage, and events that are rejected, overflow the queue or
// fail to store are handed to a FailureHandler. The default handler logs at
// ERROR with an alert attribute and counts the loss in
// tenantmux_audit_failures_total.
//
// Storages are provided for PostgreSQL (COPY into audit_events), MongoDB and
// OpenSearch (bulk API).
//
//	rec := audit.NewRecorder(audit.NewPostgresStorage(pool, ""), cfg, audit.WithLogger(log))
//	defer rec.Close(shutdownCtx)
//
//	rec.Record(ac, audit.Entry{
//		Action:       "invoice.create",
//		ResourceType: "invoice",
//		ResourceID:   inv.ID.String(),
//		CompanyID:    companyID,
//		After:        inv,
//	})
package audit
