package tenant

import (
	"time"
)

// Tenant represents a customer or organization partition of the platform
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Domain    *string   `json:"domain,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateInput carries the fields accepted at creation.
// Nil pointers are omitted fields.
type CreateInput struct {
	Name   *string `json:"name"`
	Slug   *string `json:"slug"`
	Domain *string `json:"domain"`
	Active *bool   `json:"active"`
}

// UpdateInput carries a partial update. Nil pointers leave the field as is.
type UpdateInput struct {
	Name        *string `json:"name"`
	Slug        *string `json:"slug"`
	Domain      *string `json:"domain"`
	Active      *bool   `json:"active"`
	ClearDomain bool    `json:"-"`
}

// ListOptions controls page-based listing
type ListOptions struct {
	Limit int
	Page  int
}

// Page is one page of tenants
type Page struct {
	Docs        []*Tenant `json:"docs"`
	TotalDocs   int       `json:"totalDocs"`
	Limit       int       `json:"limit"`
	Page        int       `json:"page"`
	TotalPages  int       `json:"totalPages"`
	HasNextPage bool      `json:"hasNextPage"`
	HasPrevPage bool      `json:"hasPrevPage"`
}

// Paging defaults
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Clone returns a deep copy of t.
func (t *Tenant) Clone() *Tenant {
	c := *t
	if t.Domain != nil {
		d := *t.Domain
		c.Domain = &d
	}
	return &c
}

// HasDomain reports whether a custom domain is bound.
func (t *Tenant) HasDomain() bool {
	return t.Domain != nil && *t.Domain != ""
}
