package tenant

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// FileStore is a static control-plane store loaded from YAML, for local
// development and tests:
//
//	tenants:
//	  - id: 6f1c7a5e-8f0a-4c1e-9b8e-3b1d2a8c9f10
//	    slug: acme
//	    name: Acme Inc
//	    address: postgres://acme@db:5432/acme
//	    status: active
type FileStore struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*Tenant
	bySlug map[string]*Tenant
}

type fileStoreDocument struct {
	Tenants []Tenant `yaml:"tenants"`
}

// NewFileStore creates a store holding the given tenants.
func NewFileStore(tenants ...Tenant) (*FileStore, error) {
	s := &FileStore{}
	if err := s.Replace(tenants...); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadFileStore reads a YAML tenant directory from path.
func LoadFileStore(path string) (*FileStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tenant file: %w", err)
	}
	defer f.Close()
	return ParseFileStore(f)
}

// ParseFileStore reads a YAML tenant directory from r.
func ParseFileStore(r io.Reader) (*FileStore, error) {
	var doc fileStoreDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode tenant file: %w", err)
	}
	return NewFileStore(doc.Tenants...)
}

// Replace swaps the store's contents. Slugs must be unique.
func (s *FileStore) Replace(tenants ...Tenant) error {
	byID := make(map[uuid.UUID]*Tenant, len(tenants))
	bySlug := make(map[string]*Tenant, len(tenants))
	for i := range tenants {
		t := tenants[i]
		if t.ID == uuid.Nil {
			return fmt.Errorf("tenant %q: missing id", t.Slug)
		}
		slug := strings.ToLower(t.Slug)
		if _, dup := bySlug[slug]; dup && slug != "" {
			return fmt.Errorf("tenant %q: duplicate slug", t.Slug)
		}
		if t.Status == "" {
			t.Status = StatusActive
		}
		byID[t.ID] = &t
		if slug != "" {
			bySlug[slug] = &t
		}
	}

	s.mu.Lock()
	s.byID, s.bySlug = byID, bySlug
	s.mu.Unlock()
	return nil
}

// FindTenant looks a tenant up by UUID or slug.
func (s *FileStore) FindTenant(_ context.Context, identifier string) (*Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var t *Tenant
	if id, err := uuid.Parse(identifier); err == nil {
		t = s.byID[id]
	} else {
		t = s.bySlug[strings.ToLower(identifier)]
	}
	if t == nil {
		return nil, ErrTenantNotFound
	}
	cp := *t
	return &cp, nil
}
