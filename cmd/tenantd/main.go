// Command tenantd serves tenant-scoped requests: it resolves the tenant and
// company of every request, leases the tenant's database pool and records
// audit events.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dmitrymomot/tenantmux/pkg/audit"
	"github.com/dmitrymomot/tenantmux/pkg/company"
	"github.com/dmitrymomot/tenantmux/pkg/config"
	"github.com/dmitrymomot/tenantmux/pkg/connmux"
	"github.com/dmitrymomot/tenantmux/pkg/httpserver"
	"github.com/dmitrymomot/tenantmux/pkg/jwt"
	"github.com/dmitrymomot/tenantmux/pkg/logger"
	"github.com/dmitrymomot/tenantmux/pkg/pg"
	"github.com/dmitrymomot/tenantmux/pkg/redis"
	"github.com/dmitrymomot/tenantmux/pkg/requestid"
	"github.com/dmitrymomot/tenantmux/pkg/scope"
	"github.com/dmitrymomot/tenantmux/pkg/tenant"
)

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("tenantd stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return err
	}

	logOpts := []logger.Option{
		logger.WithEnvironment(cfg.Env, "tenantd"),
		logger.WithLevel(cfg.LogLevel),
		logger.WithContextExtractors(
			requestid.LoggerExtractor(),
			tenant.LoggerExtractor(),
			scope.LoggerExtractor(),
		),
	}
	if cfg.LogFormat != "" {
		logOpts = append(logOpts, logger.WithFormat(logger.Format(cfg.LogFormat)))
	}
	log := logger.New(logOpts...)
	slog.SetDefault(log)

	var pgCfg pg.Config
	if err := config.Load(&pgCfg); err != nil {
		return err
	}
	controlPlane, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer controlPlane.Close()

	if cfg.Migrate {
		if err := pg.Migrate(ctx, controlPlane, pgCfg, log); err != nil {
			return err
		}
	}

	probes := map[string]httpserver.Probe{"postgres": pg.Healthcheck(controlPlane)}
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store, err := tenantStore(cfg, controlPlane)
	if err != nil {
		return err
	}

	var dirCfg tenant.DirectoryConfig
	if err := config.Load(&dirCfg); err != nil {
		return err
	}
	dirOpts := []tenant.DirectoryOption{tenant.WithDirectoryLogger(log)}
	if cfg.RedisURL != "" {
		var redisCfg redis.Config
		if err := config.Load(&redisCfg); err != nil {
			return err
		}
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return err
		}
		defer client.Close()
		var cacheOpts []tenant.RedisCacheOption
		if redisCfg.AddressKey != "" {
			sealer, err := tenant.NewAddressSealerFromBase64(redisCfg.AddressKey)
			if err != nil {
				return err
			}
			cacheOpts = append(cacheOpts, tenant.WithAddressSealer(sealer))
		}
		dirOpts = append(dirOpts, tenant.WithSharedCache(tenant.NewRedisCache(client, redisCfg.KeyPrefix, cacheOpts...)))
		probes["redis"] = redis.Healthcheck(client)
	}
	directory := tenant.NewDirectory(store, dirCfg, dirOpts...)
	defer directory.Close()
	registry.MustRegister(directory.PrometheusCollectors()...)

	var tokens *jwt.Service
	var resolverCfg tenant.ResolverConfig
	if err := config.Load(&resolverCfg); err != nil {
		return err
	}
	resolverOpts := []tenant.ResolverOption{tenant.WithResolverLogger(log)}
	if cfg.JWTSigningKey != "" {
		var jwtCfg jwt.Config
		if err := config.Load(&jwtCfg); err != nil {
			return err
		}
		if tokens, err = jwt.New(jwtCfg); err != nil {
			return err
		}
		resolverOpts = append(resolverOpts,
			tenant.WithClaim(jwt.TenantClaim),
			tenant.WithHeaderAuthorizer(jwt.IsCrossTenant),
		)
	}
	resolver, err := tenant.NewResolver(directory, resolverCfg, resolverOpts...)
	if err != nil {
		return err
	}

	var muxCfg connmux.Config
	var poolCfg pg.TenantPoolConfig
	if err := errors.Join(config.Load(&muxCfg), config.Load(&poolCfg)); err != nil {
		return err
	}
	mux := connmux.New(pg.TenantFactory(poolCfg), muxCfg, connmux.WithLogger(log))
	registry.MustRegister(mux.PrometheusCollectors()...)

	var auditCfg audit.Config
	if err := config.Load(&auditCfg); err != nil {
		return err
	}
	storage, closeSink, err := auditStorage(ctx, cfg.AuditSink, controlPlane, probes)
	if err != nil {
		return err
	}
	defer closeSink()
	recorder := audit.NewRecorder(storage, auditCfg, audit.WithLogger(log))
	registry.MustRegister(recorder.PrometheusCollectors()...)

	var scopeCfg scope.Config
	if err := config.Load(&scopeCfg); err != nil {
		return err
	}
	svc := scope.New(resolver, mux, company.NewResolver(company.NewPostgresLister(), company.WithLogger(log)), scopeCfg,
		scope.WithDirectory(directory),
		scope.WithRecorder(recorder),
		scope.WithCapturer(audit.NewCapturer(audit.WithActorExtractor(jwt.Subject))),
		scope.WithServiceLogger(log),
	)

	var srvCfg httpserver.Config
	if err := config.Load(&srvCfg); err != nil {
		return err
	}
	srv := httpserver.New(srvCfg,
		httpserver.WithLogger(log),
		httpserver.WithShutdownHook("audit", recorder.Close),
		httpserver.WithShutdownHook("connmux", mux.Close),
	)

	router := newRouter(routerDeps{
		log:      log,
		scope:    svc,
		tokens:   tokens,
		registry: registry,
		probes:   probes,
		timeout:  cfg.HealthTimeout,
	})

	log.InfoContext(ctx, "tenantd starting",
		slog.String("tenant_store", cfg.TenantStore),
		slog.String("audit_sink", cfg.AuditSink),
		slog.Any("precedence", resolver.Precedence()),
	)
	return srv.Run(ctx, router)
}

func tenantStore(cfg appConfig, db tenant.Querier) (tenant.Store, error) {
	switch cfg.TenantStore {
	case storePostgres:
		return tenant.NewPostgresStore(db), nil
	case storeFile:
		return tenant.LoadFileStore(cfg.TenantFile)
	default:
		return nil, fmt.Errorf("unknown TENANT_STORE %q", cfg.TenantStore)
	}
}
