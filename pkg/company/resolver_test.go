package company_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tenantmux/pkg/company"
	"github.com/dmitrymomot/tenantmux/pkg/connmux"
	"github.com/dmitrymomot/tenantmux/pkg/logger"
)

type mockLister struct {
	mock.Mock
}

func (m *mockLister) ListCompanies(ctx context.Context, conn connmux.Conn, tenantID uuid.UUID) ([]company.Company, error) {
	args := m.Called(ctx, conn, tenantID)
	companies, _ := args.Get(0).([]company.Company)
	return companies, args.Error(1)
}

func (m *mockLister) GetCompany(ctx context.Context, conn connmux.Conn, tenantID, companyID uuid.UUID) (company.Company, error) {
	args := m.Called(ctx, conn, tenantID, companyID)
	c, _ := args.Get(0).(company.Company)
	return c, args.Error(1)
}

type nopConn struct{}

func (nopConn) Close() {}

var (
	tenantID = uuid.MustParse("6f1c7a5e-8f0a-4c1e-9b8e-3b1d2a8c9f10")
	t0       = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

func newCompany(name string, created time.Time) company.Company {
	return company.Company{ID: uuid.New(), TenantID: tenantID, Name: name, CreatedAt: created}
}

func TestResolver_Default(t *testing.T) {
	t.Parallel()

	hq := newCompany("Acme HQ", t0)
	branch := newCompany("Acme Branch", t0.Add(time.Hour))

	t.Run("earliest created wins", func(t *testing.T) {
		t.Parallel()

		lister := &mockLister{}
		lister.On("ListCompanies", mock.Anything, mock.Anything, tenantID).
			Return([]company.Company{branch, hq}, nil).Once()

		r := company.NewResolver(lister, company.WithLogger(logger.Discard()))
		got, err := r.Resolve(context.Background(), nopConn{}, tenantID, uuid.Nil)
		require.NoError(t, err)
		assert.Equal(t, hq.ID, got.ID)
		assert.Equal(t, company.Scope{TenantID: tenantID, CompanyID: hq.ID}, company.ScopeOf(got))
		lister.AssertExpectations(t)
	})

	t.Run("stable after companies are added", func(t *testing.T) {
		t.Parallel()

		lister := &mockLister{}
		lister.On("ListCompanies", mock.Anything, mock.Anything, tenantID).
			Return([]company.Company{hq}, nil).Once()
		lister.On("GetCompany", mock.Anything, mock.Anything, tenantID, hq.ID).Return(hq, nil)

		r := company.NewResolver(lister)
		first, err := r.Default(context.Background(), nopConn{}, tenantID)
		require.NoError(t, err)

		// Even a company back-dated before HQ does not change the default.
		lister.On("ListCompanies", mock.Anything, mock.Anything, tenantID).
			Return([]company.Company{newCompany("Backdated", t0.Add(-time.Hour)), hq}, nil)

		for range 5 {
			got, err := r.Default(context.Background(), nopConn{}, tenantID)
			require.NoError(t, err)
			assert.Equal(t, first.ID, got.ID)
		}
		lister.AssertNumberOfCalls(t, "ListCompanies", 1)
	})

	t.Run("forget re-applies the rule", func(t *testing.T) {
		t.Parallel()

		lister := &mockLister{}
		lister.On("ListCompanies", mock.Anything, mock.Anything, tenantID).
			Return([]company.Company{hq, branch}, nil).Once()
		lister.On("ListCompanies", mock.Anything, mock.Anything, tenantID).
			Return([]company.Company{branch}, nil).Once()

		r := company.NewResolver(lister, company.WithCacheSize(4))
		got, err := r.Default(context.Background(), nopConn{}, tenantID)
		require.NoError(t, err)
		assert.Equal(t, hq.ID, got.ID)

		r.Forget(tenantID)
		got, err = r.Default(context.Background(), nopConn{}, tenantID)
		require.NoError(t, err)
		assert.Equal(t, branch.ID, got.ID)
	})

	t.Run("removed default is re-chosen", func(t *testing.T) {
		t.Parallel()

		lister := &mockLister{}
		lister.On("ListCompanies", mock.Anything, mock.Anything, tenantID).
			Return([]company.Company{hq, branch}, nil).Once()
		lister.On("GetCompany", mock.Anything, mock.Anything, tenantID, hq.ID).
			Return(company.Company{}, company.ErrCompanyNotFound).Once()
		lister.On("ListCompanies", mock.Anything, mock.Anything, tenantID).
			Return([]company.Company{branch}, nil).Once()
		lister.On("GetCompany", mock.Anything, mock.Anything, tenantID, branch.ID).
			Return(company.Company{}, company.ErrCompanyNotFound).Once()
		lister.On("ListCompanies", mock.Anything, mock.Anything, tenantID).
			Return([]company.Company{}, nil).Once()

		r := company.NewResolver(lister, company.WithLogger(logger.Discard()))
		got, err := r.Default(context.Background(), nopConn{}, tenantID)
		require.NoError(t, err)
		assert.Equal(t, hq.ID, got.ID)

		// HQ deleted.
		got, err = r.Default(context.Background(), nopConn{}, tenantID)
		require.NoError(t, err)
		assert.Equal(t, branch.ID, got.ID)

		// Every company deleted.
		_, err = r.Default(context.Background(), nopConn{}, tenantID)
		assert.ErrorIs(t, err, company.ErrNoCompanyProvisioned)
		lister.AssertExpectations(t)
	})

	t.Run("memo check error is returned", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("conn reset")
		lister := &mockLister{}
		lister.On("ListCompanies", mock.Anything, mock.Anything, tenantID).
			Return([]company.Company{hq}, nil).Once()
		lister.On("GetCompany", mock.Anything, mock.Anything, tenantID, hq.ID).
			Return(company.Company{}, boom).Once()

		r := company.NewResolver(lister)
		_, err := r.Default(context.Background(), nopConn{}, tenantID)
		require.NoError(t, err)

		_, err = r.Default(context.Background(), nopConn{}, tenantID)
		assert.ErrorIs(t, err, boom)
		lister.AssertNumberOfCalls(t, "ListCompanies", 1)
	})

	t.Run("no companies", func(t *testing.T) {
		t.Parallel()

		lister := &mockLister{}
		lister.On("ListCompanies", mock.Anything, mock.Anything, tenantID).
			Return([]company.Company{}, nil)

		r := company.NewResolver(lister, company.WithLogger(logger.Discard()))
		_, err := r.Resolve(context.Background(), nopConn{}, tenantID, uuid.Nil)
		assert.ErrorIs(t, err, company.ErrNoCompanyProvisioned)
		assert.NotErrorIs(t, err, company.ErrCompanyNotFound)
	})

	t.Run("lister error", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		lister := &mockLister{}
		lister.On("ListCompanies", mock.Anything, mock.Anything, tenantID).Return(nil, boom)

		r := company.NewResolver(lister)
		_, err := r.Default(context.Background(), nopConn{}, tenantID)
		assert.ErrorIs(t, err, boom)
	})
}

func TestResolver_Explicit(t *testing.T) {
	t.Parallel()

	hq := newCompany("Acme HQ", t0)

	t.Run("belongs to tenant", func(t *testing.T) {
		t.Parallel()

		lister := &mockLister{}
		lister.On("GetCompany", mock.Anything, mock.Anything, tenantID, hq.ID).Return(hq, nil)

		r := company.NewResolver(lister)
		got, err := r.Resolve(context.Background(), nopConn{}, tenantID, hq.ID)
		require.NoError(t, err)
		assert.Equal(t, hq, got)
		lister.AssertNotCalled(t, "ListCompanies", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown company", func(t *testing.T) {
		t.Parallel()

		other := uuid.New()
		lister := &mockLister{}
		lister.On("GetCompany", mock.Anything, mock.Anything, tenantID, other).
			Return(company.Company{}, company.ErrCompanyNotFound)

		r := company.NewResolver(lister)
		_, err := r.Resolve(context.Background(), nopConn{}, tenantID, other)
		assert.ErrorIs(t, err, company.ErrCompanyNotFound)
	})

	t.Run("company of another tenant", func(t *testing.T) {
		t.Parallel()

		foreign := hq
		foreign.TenantID = uuid.New()
		lister := &mockLister{}
		lister.On("GetCompany", mock.Anything, mock.Anything, tenantID, foreign.ID).Return(foreign, nil)

		r := company.NewResolver(lister)
		_, err := r.Resolve(context.Background(), nopConn{}, tenantID, foreign.ID)
		assert.ErrorIs(t, err, company.ErrCompanyNotFound)
	})
}

func TestEarliest(t *testing.T) {
	t.Parallel()

	_, ok := company.Earliest(nil)
	assert.False(t, ok)

	a := company.Company{ID: uuid.MustParse("00000000-0000-0000-0000-00000000000a"), CreatedAt: t0}
	b := company.Company{ID: uuid.MustParse("00000000-0000-0000-0000-00000000000b"), CreatedAt: t0}
	got, ok := company.Earliest([]company.Company{b, a})
	require.True(t, ok)
	assert.Equal(t, a.ID, got.ID, "ties broken by id")
}

func TestParseID(t *testing.T) {
	t.Parallel()

	id, err := company.ParseID("  ")
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, id)

	want := uuid.New()
	id, err = company.ParseID(want.String())
	require.NoError(t, err)
	assert.Equal(t, want, id)

	_, err = company.ParseID("hq")
	assert.ErrorIs(t, err, company.ErrInvalidCompanyID)
}

func TestPostgresLister_RejectsNonQueryHandles(t *testing.T) {
	t.Parallel()

	l := company.NewPostgresLister()
	_, err := l.ListCompanies(context.Background(), nopConn{}, tenantID)
	assert.ErrorIs(t, err, company.ErrUnsupportedConn)
	_, err = l.GetCompany(context.Background(), nopConn{}, tenantID, uuid.New())
	assert.ErrorIs(t, err, company.ErrUnsupportedConn)
}
