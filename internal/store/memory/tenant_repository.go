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

// Package memory provides an in-process tenant store for development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/opentrusty/tenantry/internal/tenant"
)

// TenantRepository implements tenant.Repository in memory
type TenantRepository struct {
	mu     sync.RWMutex
	byID   map[string]*tenant.Tenant
	bySlug map[string]string // slug -> id
}

// NewTenantRepository creates an empty repository
func NewTenantRepository() *TenantRepository {
	return &TenantRepository{
		byID:   make(map[string]*tenant.Tenant),
		bySlug: make(map[string]string),
	}
}

// Create stores a new tenant
func (r *TenantRepository) Create(_ context.Context, t *tenant.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bySlug[t.Slug]; exists {
		return tenant.ErrSlugTaken
	}
	r.byID[t.ID] = t.Clone()
	r.bySlug[t.Slug] = t.ID
	return nil
}

// GetByID retrieves a tenant by ID
func (r *TenantRepository) GetByID(_ context.Context, id string) (*tenant.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byID[id]
	if !ok {
		return nil, tenant.ErrTenantNotFound
	}
	return t.Clone(), nil
}

// GetBySlug retrieves a tenant by slug
func (r *TenantRepository) GetBySlug(_ context.Context, slug string) (*tenant.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.bySlug[slug]
	if !ok {
		return nil, tenant.ErrTenantNotFound
	}
	return r.byID[id].Clone(), nil
}

// GetByDomain returns the oldest active tenant bound to domain
func (r *TenantRepository) GetByDomain(_ context.Context, domain string) (*tenant.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *tenant.Tenant
	for _, t := range r.byID {
		if !t.Active || !t.HasDomain() || !strings.EqualFold(*t.Domain, domain) {
			continue
		}
		if found == nil || t.CreatedAt.Before(found.CreatedAt) {
			found = t
		}
	}
	if found == nil {
		return nil, tenant.ErrTenantNotFound
	}
	return found.Clone(), nil
}

// Update replaces a stored tenant
func (r *TenantRepository) Update(_ context.Context, t *tenant.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[t.ID]
	if !ok {
		return tenant.ErrTenantNotFound
	}
	if owner, exists := r.bySlug[t.Slug]; exists && owner != t.ID {
		return tenant.ErrSlugTaken
	}

	delete(r.bySlug, current.Slug)
	r.bySlug[t.Slug] = t.ID
	r.byID[t.ID] = t.Clone()
	return nil
}

// Delete removes a tenant
func (r *TenantRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byID[id]
	if !ok {
		return tenant.ErrTenantNotFound
	}
	delete(r.bySlug, t.Slug)
	delete(r.byID, id)
	return nil
}

// List returns tenants ordered by creation time
func (r *TenantRepository) List(_ context.Context, limit, offset int) ([]*tenant.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*tenant.Tenant, 0, len(r.byID))
	for _, t := range r.byID {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []*tenant.Tenant{}, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	out := make([]*tenant.Tenant, 0, end-offset)
	for _, t := range all[offset:end] {
		out = append(out, t.Clone())
	}
	return out, nil
}

// Count returns the number of stored tenants
func (r *TenantRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID), nil
}
