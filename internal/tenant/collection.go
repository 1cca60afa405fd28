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
	"github.com/opentrusty/tenantry/internal/access"
	"github.com/opentrusty/tenantry/internal/collection"
)

// Field names of the tenants collection
const (
	CollectionSlug = "tenants"

	FieldName   = "name"
	FieldSlug   = "slug"
	FieldDomain = "domain"
	FieldActive = "active"
)

// NewCollection declares the tenants collection. The same predicate gates
// every operation, so read and write access are identical.
func NewCollection(pred access.Predicate) collection.Collection {
	return collection.Collection{
		Slug: CollectionSlug,
		Access: collection.Access{
			Admin:  pred,
			Create: pred,
			Delete: pred,
			Read:   pred,
			Update: pred,
		},
		Admin: collection.Admin{
			DefaultColumns: []string{FieldName, FieldSlug, FieldDomain},
			UseAsTitle:     FieldName,
		},
		Fields: []collection.Field{
			{
				Name:     FieldName,
				Type:     collection.FieldText,
				Required: true,
			},
			{
				Name:        FieldSlug,
				Type:        collection.FieldText,
				Required:    true,
				Unique:      true,
				Description: "Unique identifier for the tenant",
			},
			{
				Name:        FieldDomain,
				Type:        collection.FieldText,
				Description: "Custom domain for this tenant (optional)",
			},
			{
				Name:         FieldActive,
				Type:         collection.FieldCheckbox,
				DefaultValue: true,
				Description:  "Whether this tenant is active",
			},
		},
		Timestamps: true,
	}
}
