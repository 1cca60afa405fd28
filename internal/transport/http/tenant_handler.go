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

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/opentrusty/tenantry/internal/collection"
	"github.com/opentrusty/tenantry/internal/tenant"
)

const maxBodyBytes = 1 << 20

// readOnlyKeys are server-managed and ignored when sent by clients
var readOnlyKeys = []string{"id", "createdAt", "updatedAt"}

// CreateTenantRequest represents tenant creation data
type CreateTenantRequest struct {
	Name   string  `json:"name" binding:"required" example:"Acme"`
	Slug   string  `json:"slug" binding:"required" example:"acme"`
	Domain *string `json:"domain,omitempty" example:"acme.example.com"`
	Active *bool   `json:"active,omitempty" example:"true"`
}

// CreateTenant handles tenant creation
// @Summary Create Tenant
// @Description Create a new tenant
// @Tags Tenant
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateTenantRequest true "Tenant Data"
// @Success 201 {object} tenant.Tenant
// @Failure 400 {object} map[string]any
// @Failure 401 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /tenants [post]
func (h *Handler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	doc, err := h.decodeDocument(w, r)
	if err != nil {
		respondDecodeError(w, r, err)
		return
	}

	in := tenant.CreateInput{
		Name:   textField(doc, tenant.FieldName),
		Slug:   textField(doc, tenant.FieldSlug),
		Domain: textField(doc, tenant.FieldDomain),
		Active: checkboxField(doc, tenant.FieldActive),
	}

	t, err := h.tenantService.CreateTenant(r.Context(), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, t)
}

// GetTenant returns a tenant by ID
// @Summary Get Tenant
// @Tags Tenant
// @Produce json
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Success 200 {object} tenant.Tenant
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /tenants/{tenantID} [get]
func (h *Handler) GetTenant(w http.ResponseWriter, r *http.Request) {
	t, err := h.tenantService.GetTenant(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// GetTenantBySlug returns a tenant by slug
// @Summary Get Tenant By Slug
// @Tags Tenant
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Tenant slug"
// @Success 200 {object} tenant.Tenant
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /tenants/slug/{slug} [get]
func (h *Handler) GetTenantBySlug(w http.ResponseWriter, r *http.Request) {
	t, err := h.tenantService.GetTenantBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// ResolveDomain returns the active tenant bound to a custom domain.
// Without a domain parameter the request's own Host is used.
// @Summary Resolve Domain
// @Tags Tenant
// @Produce json
// @Security BearerAuth
// @Param domain query string false "Custom domain"
// @Success 200 {object} tenant.Tenant
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /tenants/resolve [get]
func (h *Handler) ResolveDomain(w http.ResponseWriter, r *http.Request) {
	host := r.URL.Query().Get("domain")
	if host == "" {
		host = r.Host
	}

	t, err := h.tenantService.ResolveDomain(r.Context(), host)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// UpdateTenant applies a partial update. A null domain unbinds it.
// @Summary Update Tenant
// @Tags Tenant
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Param request body map[string]any true "Fields to change"
// @Success 200 {object} tenant.Tenant
// @Failure 400 {object} map[string]any
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /tenants/{tenantID} [patch]
func (h *Handler) UpdateTenant(w http.ResponseWriter, r *http.Request) {
	doc, err := h.decodeDocument(w, r)
	if err != nil {
		respondDecodeError(w, r, err)
		return
	}

	in := tenant.UpdateInput{
		Name:   textField(doc, tenant.FieldName),
		Slug:   textField(doc, tenant.FieldSlug),
		Domain: textField(doc, tenant.FieldDomain),
		Active: checkboxField(doc, tenant.FieldActive),
	}
	if v, ok := doc[tenant.FieldDomain]; ok && v == nil {
		in.ClearDomain = true
	}

	t, err := h.tenantService.UpdateTenant(r.Context(), chi.URLParam(r, "tenantID"), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// DeleteTenant removes a tenant and returns the removed record
// @Summary Delete Tenant
// @Tags Tenant
// @Produce json
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Success 200 {object} tenant.Tenant
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /tenants/{tenantID} [delete]
func (h *Handler) DeleteTenant(w http.ResponseWriter, r *http.Request) {
	t, err := h.tenantService.DeleteTenant(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

var errInvalidBody = errors.New("invalid request body")

// decodeDocument reads a JSON object body and type-checks it against the
// collection's fields. Required fields are left to the service.
func (h *Handler) decodeDocument(w http.ResponseWriter, r *http.Request) (collection.Document, error) {
	var doc collection.Document
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return collection.Document{}, nil
		}
		return nil, errInvalidBody
	}
	if doc == nil {
		return nil, errInvalidBody
	}
	for _, k := range readOnlyKeys {
		delete(doc, k)
	}

	if err := h.tenantService.Collection().ValidateDocument(doc, true); err != nil {
		return nil, err
	}
	return doc, nil
}

func respondDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errInvalidBody) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondServiceError(w, r, err)
}

func textField(doc collection.Document, name string) *string {
	if v, ok := doc[name].(string); ok {
		return &v
	}
	return nil
}

func checkboxField(doc collection.Document, name string) *bool {
	if v, ok := doc[name].(bool); ok {
		return &v
	}
	return nil
}
