// Package logger builds slog loggers for tenantmux services.
//
// New returns a *slog.Logger configured through options (format, level,
// static attributes, per-environment defaults). Its handler is wrapped by
// ContextHandler, which runs ContextExtractor callbacks on every record so
// request-scoped values such as the request id or the resolved tenant id are
// attached automatically:
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.Env, "tenantd"),
//		logger.WithContextExtractors(
//			requestid.LoggerExtractor(),
//			tenant.LoggerExtractor(),
//		),
//	)
//
// The attribute helpers in attr.go keep key names consistent across packages.
// Address masks connection credentials before they reach any sink, and Alert
// tags records that operational alerting must pick up.
package logger
