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

package collection

import (
	"fmt"
	"strings"
)

// Document is a field-name keyed view of a record. Absent keys are unset fields.
type Document map[string]any

// FieldError describes a single failing field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every field that failed validation
type ValidationError struct {
	Collection string
	Errors     []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return fmt.Sprintf("%s: validation failed: %s", e.Collection, strings.Join(parts, "; "))
}

// ApplyDefaults sets every absent field that declares a default.
func (c Collection) ApplyDefaults(doc Document) {
	for _, f := range c.Fields {
		if f.DefaultValue == nil {
			continue
		}
		if v, ok := doc[f.Name]; !ok || v == nil {
			doc[f.Name] = f.DefaultValue
		}
	}
}

// ValidateDocument type-checks doc against the declared fields.
// With partial set, required fields may be absent but not emptied.
func (c Collection) ValidateDocument(doc Document, partial bool) error {
	var errs []FieldError

	for _, f := range c.Fields {
		v, present := doc[f.Name]
		if present && v != nil && !f.accepts(v) {
			errs = append(errs, FieldError{Field: f.Name, Message: fmt.Sprintf("must be a %s value", f.Type)})
			continue
		}
		if !f.Required {
			continue
		}
		if !present && partial {
			continue
		}
		if isEmpty(v) {
			errs = append(errs, FieldError{Field: f.Name, Message: "this field is required"})
		}
	}

	for key := range doc {
		if _, ok := c.Field(key); !ok {
			errs = append(errs, FieldError{Field: key, Message: "unknown field"})
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Collection: c.Slug, Errors: errs}
	}
	return nil
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	}
	return false
}
