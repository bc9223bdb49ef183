package tenant_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/tenantmux/pkg/logger"
	"github.com/dmitrymomot/tenantmux/pkg/tenant"
)

func TestContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, ok := tenant.FromContext(ctx)
	assert.False(t, ok)
	id, ok := tenant.IDFromContext(ctx)
	assert.False(t, ok)
	assert.Equal(t, uuid.Nil, id)
	assert.Panics(t, func() { tenant.MustFromContext(ctx) })

	a := acme()
	ctx = tenant.WithTenant(ctx, &a)
	got, ok := tenant.FromContext(ctx)
	assert.True(t, ok)
	assert.Same(t, &a, got)
	id, ok = tenant.IDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, acmeID, id)

	_, ok = tenant.FromContext(tenant.WithTenant(context.Background(), nil))
	assert.False(t, ok)
}

func TestLoggerExtractor(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithContextExtractors(tenant.LoggerExtractor()),
	)

	a := acme()
	log.InfoContext(tenant.WithTenant(context.Background(), &a), "hello")
	assert.Contains(t, buf.String(), acmeID.String())

	buf.Reset()
	log.InfoContext(context.Background(), "hello")
	assert.NotContains(t, buf.String(), "tenant_id")
}
