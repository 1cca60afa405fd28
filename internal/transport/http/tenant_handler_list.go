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
	"net/http"
	"strconv"

	"github.com/opentrusty/tenantry/internal/tenant"
)

// ListTenants handles listing tenants one page at a time
// @Summary List Tenants
// @Description List tenants, oldest first
// @Tags Tenant
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size (max 100)"
// @Param page query int false "Page number, starting at 1"
// @Success 200 {object} tenant.Page
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /tenants [get]
func (h *Handler) ListTenants(w http.ResponseWriter, r *http.Request) {
	var opts tenant.ListOptions
	var ok bool
	if opts.Limit, ok = queryInt(r, "limit"); !ok {
		respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	if opts.Page, ok = queryInt(r, "page"); !ok {
		respondError(w, http.StatusBadRequest, "page must be a non-negative integer")
		return
	}

	page, err := h.tenantService.ListTenants(r.Context(), opts)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, page)
}

// queryInt reads an optional non-negative integer parameter; zero means unset
func queryInt(r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
