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

// Package collection holds declarative collection schemas: fields, access
// predicates and admin hints. A Collection is built once at startup and
// treated as read-only afterwards.
package collection

import (
	"context"
	"fmt"

	"github.com/opentrusty/tenantry/internal/access"
)

// FieldType is the semantic type of a field
type FieldType string

// Supported field types
const (
	FieldText     FieldType = "text"
	FieldCheckbox FieldType = "checkbox"
)

// Field declares a single document field
type Field struct {
	Name         string
	Type         FieldType
	Required     bool
	Unique       bool
	DefaultValue any
	Description  string
}

// Access holds one predicate per gated operation
type Access struct {
	Admin  access.Predicate
	Create access.Predicate
	Read   access.Predicate
	Update access.Predicate
	Delete access.Predicate
}

// For returns the predicate gating op.
func (a Access) For(op access.Operation) access.Predicate {
	switch op {
	case access.OpAdmin:
		return a.Admin
	case access.OpCreate:
		return a.Create
	case access.OpRead:
		return a.Read
	case access.OpUpdate:
		return a.Update
	case access.OpDelete:
		return a.Delete
	}
	return nil
}

// Admin holds admin UI hints
type Admin struct {
	DefaultColumns []string
	UseAsTitle     string
}

// Collection is a named, schema-defined resource type
type Collection struct {
	Slug       string
	Access     Access
	Admin      Admin
	Fields     []Field
	Timestamps bool
}

// Validate rejects malformed declarations.
func (c Collection) Validate() error {
	if c.Slug == "" {
		return fmt.Errorf("collection slug is required")
	}
	if len(c.Fields) == 0 {
		return fmt.Errorf("collection %s: at least one field is required", c.Slug)
	}

	seen := make(map[string]bool, len(c.Fields))
	for _, f := range c.Fields {
		if f.Name == "" {
			return fmt.Errorf("collection %s: field name is required", c.Slug)
		}
		if seen[f.Name] {
			return fmt.Errorf("collection %s: duplicate field %q", c.Slug, f.Name)
		}
		seen[f.Name] = true

		switch f.Type {
		case FieldText, FieldCheckbox:
		default:
			return fmt.Errorf("collection %s: field %q has unknown type %q", c.Slug, f.Name, f.Type)
		}
		if f.DefaultValue != nil && !f.accepts(f.DefaultValue) {
			return fmt.Errorf("collection %s: default for field %q is not a %s", c.Slug, f.Name, f.Type)
		}
	}

	for _, col := range c.Admin.DefaultColumns {
		if !seen[col] {
			return fmt.Errorf("collection %s: admin column %q is not a field", c.Slug, col)
		}
	}
	if c.Admin.UseAsTitle != "" && !seen[c.Admin.UseAsTitle] {
		return fmt.Errorf("collection %s: title field %q is not a field", c.Slug, c.Admin.UseAsTitle)
	}

	for _, op := range access.Operations {
		if c.Access.For(op) == nil {
			return fmt.Errorf("collection %s: no access predicate for %s", c.Slug, op)
		}
	}
	return nil
}

// Authorize evaluates the predicate for op against the actor in ctx.
func (c Collection) Authorize(ctx context.Context, op access.Operation) error {
	return access.Check(ctx, c.Access.For(op), op)
}

// Field returns the field named name.
func (c Collection) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// UniqueFields returns the names of fields declared unique.
func (c Collection) UniqueFields() []string {
	var names []string
	for _, f := range c.Fields {
		if f.Unique {
			names = append(names, f.Name)
		}
	}
	return names
}

func (f Field) accepts(v any) bool {
	switch f.Type {
	case FieldText:
		_, ok := v.(string)
		return ok
	case FieldCheckbox:
		_, ok := v.(bool)
		return ok
	}
	return false
}
