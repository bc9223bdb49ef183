package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/tenantmux/pkg/audit"
	"github.com/dmitrymomot/tenantmux/pkg/config"
	"github.com/dmitrymomot/tenantmux/pkg/httpserver"
	"github.com/dmitrymomot/tenantmux/pkg/mongo"
	"github.com/dmitrymomot/tenantmux/pkg/opensearch"
	"github.com/dmitrymomot/tenantmux/pkg/s3client"
)

// auditStorage builds the configured audit sink and registers its probe.
// The returned func releases the sink's client.
func auditStorage(ctx context.Context, sink string, controlPlane *pgxpool.Pool, probes map[string]httpserver.Probe) (audit.Storage, func(), error) {
	switch sink {
	case sinkPostgres:
		return audit.NewPostgresStorage(controlPlane, audit.DefaultTable), func() {}, nil

	case sinkMongo:
		var cfg mongo.Config
		if err := config.Load(&cfg); err != nil {
			return nil, nil, err
		}
		client, err := mongo.New(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		probes["mongo"] = mongo.Healthcheck(client)
		return audit.NewMongoStorage(mongo.AuditCollection(client, cfg)), func() {
			_ = client.Disconnect(context.WithoutCancel(ctx))
		}, nil

	case sinkOpenSearch:
		var cfg opensearch.Config
		if err := config.Load(&cfg); err != nil {
			return nil, nil, err
		}
		client, err := opensearch.New(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		probes["opensearch"] = opensearch.Healthcheck(client)
		return audit.NewOpenSearchStorage(client, cfg.AuditIndex), func() {}, nil

	case sinkS3:
		var cfg s3client.Config
		if err := config.Load(&cfg); err != nil {
			return nil, nil, err
		}
		client, err := s3client.New(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		probes["s3"] = s3client.Healthcheck(client, cfg.Bucket)
		return audit.NewS3Storage(client, cfg.Bucket, cfg.AuditPrefix), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown AUDIT_SINK %q", sink)
	}
}
