// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opentrusty/tenantry/internal/access"
	"github.com/opentrusty/tenantry/internal/audit"
	"github.com/opentrusty/tenantry/internal/collection"
	"github.com/opentrusty/tenantry/internal/observability/logger"
)

// Service provides tenant management business logic.
// Every operation is gated by the collection's access predicates before any
// validation or storage access happens.
type Service struct {
	repo        Repository
	collection  collection.Collection
	cache       Cache
	cacheTTL    time.Duration
	auditLogger audit.Logger
	now         func() time.Time

	// cacheMu orders cache fills against invalidations; cacheGen counts
	// invalidations so a fill that raced one is dropped.
	cacheMu  sync.Mutex
	cacheGen uint64
}

// NewService creates a new tenant service. cache may be nil.
func NewService(repo Repository, coll collection.Collection, cache Cache, cacheTTL time.Duration, auditLogger audit.Logger) *Service {
	return &Service{
		repo:        repo,
		collection:  coll,
		cache:       cache,
		cacheTTL:    cacheTTL,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// Collection returns the declaration the service enforces
func (s *Service) Collection() collection.Collection {
	return s.collection
}

// Describe returns the admin metadata of the tenants collection
func (s *Service) Describe(ctx context.Context) (collection.Schema, error) {
	if err := s.authorize(ctx, access.OpAdmin); err != nil {
		return collection.Schema{}, err
	}
	return s.collection.Describe(), nil
}

// CreateTenant creates a new tenant
func (s *Service) CreateTenant(ctx context.Context, in CreateInput) (*Tenant, error) {
	if err := s.authorize(ctx, access.OpCreate); err != nil {
		return nil, err
	}

	doc := collection.Document{}
	setText(doc, FieldName, in.Name)
	setText(doc, FieldSlug, in.Slug)
	badDomain := false
	if in.Domain != nil {
		if d := strings.TrimSpace(*in.Domain); d != "" {
			badDomain = !setDomain(doc, d)
		}
	}
	if in.Active != nil {
		doc[FieldActive] = *in.Active
	}

	s.collection.ApplyDefaults(doc)
	if err := s.validate(doc, false, badDomain); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate tenant id: %w", err)
	}

	now := s.now().UTC()
	t := &Tenant{
		ID:        id.String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyDocument(t, doc)

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTenantCreated,
		TenantID: t.ID,
		ActorID:  access.ActorID(ctx),
		Resource: s.collection.Slug,
		Metadata: map[string]any{"slug": t.Slug},
	})

	return t, nil
}

// GetTenant retrieves a tenant by ID
func (s *Service) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	if err := s.authorize(ctx, access.OpRead); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, ErrTenantNotFound
	}
	return s.repo.GetByID(ctx, id)
}

// GetTenantBySlug retrieves a tenant by its slug
func (s *Service) GetTenantBySlug(ctx context.Context, slug string) (*Tenant, error) {
	if err := s.authorize(ctx, access.OpRead); err != nil {
		return nil, err
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, ErrTenantNotFound
	}
	return s.repo.GetBySlug(ctx, slug)
}

// ListTenants lists tenants one page at a time, oldest first
func (s *Service) ListTenants(ctx context.Context, opts ListOptions) (*Page, error) {
	if err := s.authorize(ctx, access.OpRead); err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	page := opts.Page
	if page <= 0 {
		page = 1
	}

	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count tenants: %w", err)
	}
	totalPages := (total + limit - 1) / limit

	// Pages past the end are empty; skipping the query also keeps
	// (page-1)*limit from overflowing.
	docs := []*Tenant{}
	if page == 1 || page <= totalPages {
		docs, err = s.repo.List(ctx, limit, (page-1)*limit)
		if err != nil {
			return nil, fmt.Errorf("failed to list tenants: %w", err)
		}
		if docs == nil {
			docs = []*Tenant{}
		}
	}
	return &Page{
		Docs:        docs,
		TotalDocs:   total,
		Limit:       limit,
		Page:        page,
		TotalPages:  totalPages,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}, nil
}

// UpdateTenant applies a partial update to a tenant
func (s *Service) UpdateTenant(ctx context.Context, id string, in UpdateInput) (*Tenant, error) {
	if err := s.authorize(ctx, access.OpUpdate); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	doc := collection.Document{}
	setText(doc, FieldName, in.Name)
	setText(doc, FieldSlug, in.Slug)
	clearDomain := in.ClearDomain
	badDomain := false
	if in.Domain != nil {
		if d := strings.TrimSpace(*in.Domain); d != "" {
			badDomain = !setDomain(doc, d)
		} else {
			clearDomain = true
		}
	}
	if in.Active != nil {
		doc[FieldActive] = *in.Active
	}

	if err := s.validate(doc, true, badDomain); err != nil {
		return nil, err
	}

	updated := existing.Clone()
	applyDocument(updated, doc)
	if clearDomain {
		updated.Domain = nil
	}

	// updatedAt must advance even when two writes land on the same tick
	updated.UpdatedAt = s.now().UTC()
	if !updated.UpdatedAt.After(existing.UpdatedAt) {
		updated.UpdatedAt = existing.UpdatedAt.Add(time.Microsecond)
	}

	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to update tenant: %w", err)
	}

	s.forget(ctx, existing, updated)

	changed := make([]string, 0, len(doc)+1)
	for k := range doc {
		changed = append(changed, k)
	}
	if clearDomain {
		changed = append(changed, FieldDomain)
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTenantUpdated,
		TenantID: updated.ID,
		ActorID:  access.ActorID(ctx),
		Resource: s.collection.Slug,
		Metadata: map[string]any{"slug": updated.Slug, "fields": changed},
	})

	return updated, nil
}

// DeleteTenant removes a tenant and returns the removed record
func (s *Service) DeleteTenant(ctx context.Context, id string) (*Tenant, error) {
	if err := s.authorize(ctx, access.OpDelete); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to delete tenant: %w", err)
	}

	s.forget(ctx, existing)

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTenantDeleted,
		TenantID: existing.ID,
		ActorID:  access.ActorID(ctx),
		Resource: s.collection.Slug,
		Metadata: map[string]any{"slug": existing.Slug},
	})

	return existing, nil
}

// ResolveDomain finds the active tenant bound to a custom domain.
// host may carry a port and any letter case.
func (s *Service) ResolveDomain(ctx context.Context, host string) (*Tenant, error) {
	if err := s.authorize(ctx, access.OpRead); err != nil {
		return nil, err
	}

	domain := NormalizeHost(host)
	if domain == "" {
		return nil, ErrTenantNotFound
	}

	key := domainKey(domain)
	var gen uint64
	if s.cache != nil {
		if t, ok := s.cache.Get(ctx, key); ok {
			return t, nil
		}
		s.cacheMu.Lock()
		gen = s.cacheGen
		s.cacheMu.Unlock()
	}

	t, err := s.repo.GetByDomain(ctx, domain)
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "domain resolved",
		logger.Host(domain),
		logger.TenantID(t.ID),
		logger.Slug(t.Slug),
	)

	if s.cache != nil {
		s.cacheMu.Lock()
		if s.cacheGen == gen {
			s.cache.Set(ctx, key, t, s.cacheTTL)
		}
		s.cacheMu.Unlock()
	}
	return t, nil
}

// NormalizeHost lowercases host and strips any port.
func NormalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimSuffix(strings.ToLower(host), ".")
}

func (s *Service) authorize(ctx context.Context, op access.Operation) error {
	if err := s.collection.Authorize(ctx, op); err != nil {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeAccessDenied,
			ActorID:  access.ActorID(ctx),
			Resource: s.collection.Slug,
			Metadata: map[string]any{"operation": string(op), "reason": err.Error()},
		})
		return err
	}
	return nil
}

// forget drops cached domain lookups for every given version of a tenant
// and voids fills of lookups that started before it.
func (s *Service) forget(ctx context.Context, versions ...*Tenant) {
	if s.cache == nil {
		return
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cacheGen++
	for _, t := range versions {
		if t.HasDomain() {
			s.cache.Delete(ctx, domainKey(NormalizeHost(*t.Domain)))
		}
	}
}

// validate runs the declaration's checks and adds a domain error when the
// submitted domain is not a bare host name.
func (s *Service) validate(doc collection.Document, partial, badDomain bool) error {
	err := s.collection.ValidateDocument(doc, partial)
	if !badDomain {
		return err
	}
	domainErr := collection.FieldError{Field: FieldDomain, Message: "must be a host name without scheme, path or credentials"}
	var verr *collection.ValidationError
	if errors.As(err, &verr) {
		verr.Errors = append(verr.Errors, domainErr)
		return verr
	}
	if err != nil {
		return err
	}
	return &collection.ValidationError{Collection: s.collection.Slug, Errors: []collection.FieldError{domainErr}}
}

// setDomain stores the normalized form of raw, the same form ResolveDomain
// looks up. It reports false when raw is not a bare host name.
func setDomain(doc collection.Document, raw string) bool {
	host := NormalizeHost(raw)
	if host == "" || strings.Contains(host, ":") || strings.ContainsAny(raw, "/\\@?# \t") {
		doc[FieldDomain] = raw
		return false
	}
	doc[FieldDomain] = host
	return true
}

func domainKey(domain string) string {
	return "domain:" + domain
}

func setText(doc collection.Document, field string, v *string) {
	if v != nil {
		doc[field] = strings.TrimSpace(*v)
	}
}

func applyDocument(t *Tenant, doc collection.Document) {
	if v, ok := doc[FieldName].(string); ok {
		t.Name = v
	}
	if v, ok := doc[FieldSlug].(string); ok {
		t.Slug = v
	}
	if v, ok := doc[FieldDomain].(string); ok {
		t.Domain = &v
	}
	if v, ok := doc[FieldActive].(bool); ok {
		t.Active = v
	}
}
