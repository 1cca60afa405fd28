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

// Schema is the JSON view of a collection served to admin clients
type Schema struct {
	Slug       string        `json:"slug"`
	Fields     []FieldSchema `json:"fields"`
	Admin      AdminSchema   `json:"admin"`
	Timestamps bool          `json:"timestamps"`
}

// FieldSchema is the JSON view of a field
type FieldSchema struct {
	Name         string    `json:"name"`
	Type         FieldType `json:"type"`
	Required     bool      `json:"required,omitempty"`
	Unique       bool      `json:"unique,omitempty"`
	DefaultValue any       `json:"defaultValue,omitempty"`
	Description  string    `json:"description,omitempty"`
}

// AdminSchema is the JSON view of admin hints
type AdminSchema struct {
	DefaultColumns []string `json:"defaultColumns"`
	UseAsTitle     string   `json:"useAsTitle"`
}

// Describe returns the admin metadata for c.
func (c Collection) Describe() Schema {
	fields := make([]FieldSchema, len(c.Fields))
	for i, f := range c.Fields {
		fields[i] = FieldSchema{
			Name:         f.Name,
			Type:         f.Type,
			Required:     f.Required,
			Unique:       f.Unique,
			DefaultValue: f.DefaultValue,
			Description:  f.Description,
		}
	}
	return Schema{
		Slug:   c.Slug,
		Fields: fields,
		Admin: AdminSchema{
			DefaultColumns: append([]string(nil), c.Admin.DefaultColumns...),
			UseAsTitle:     c.Admin.UseAsTitle,
		},
		Timestamps: c.Timestamps,
	}
}
