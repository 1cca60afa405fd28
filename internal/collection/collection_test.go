package collection

import (
	"context"
	"testing"

	"github.com/opentrusty/tenantry/internal/access"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allow(context.Context, access.Request) bool { return true }

func sample() Collection {
	return Collection{
		Slug: "things",
		Access: Access{
			Admin:  allow,
			Create: allow,
			Read:   allow,
			Update: allow,
			Delete: allow,
		},
		Admin: Admin{DefaultColumns: []string{"title"}, UseAsTitle: "title"},
		Fields: []Field{
			{Name: "title", Type: FieldText, Required: true},
			{Name: "code", Type: FieldText, Required: true, Unique: true},
			{Name: "note", Type: FieldText},
			{Name: "enabled", Type: FieldCheckbox, DefaultValue: true},
		},
		Timestamps: true,
	}
}

// TestPurpose: Validates that malformed declarations are rejected at load time.
// Scope: Unit Test
// Expected: Each malformation yields an error, the well-formed sample passes.
// Test Case ID: COL-01
func TestCollection_Validate(t *testing.T) {
	require.NoError(t, sample().Validate())

	tests := []struct {
		name   string
		mutate func(c *Collection)
	}{
		{"empty slug", func(c *Collection) { c.Slug = "" }},
		{"no fields", func(c *Collection) { c.Fields = nil }},
		{"unnamed field", func(c *Collection) { c.Fields[0].Name = "" }},
		{"duplicate field", func(c *Collection) { c.Fields[1].Name = "title" }},
		{"unknown type", func(c *Collection) { c.Fields[2].Type = "richText" }},
		{"default of wrong type", func(c *Collection) { c.Fields[3].DefaultValue = "yes" }},
		{"unknown admin column", func(c *Collection) { c.Admin.DefaultColumns = []string{"missing"} }},
		{"unknown title field", func(c *Collection) { c.Admin.UseAsTitle = "missing" }},
		{"missing predicate", func(c *Collection) { c.Access.Delete = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := sample()
			c.Fields = append([]Field(nil), c.Fields...)
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestCollection_ApplyDefaults(t *testing.T) {
	c := sample()

	doc := Document{"title": "a"}
	c.ApplyDefaults(doc)
	assert.Equal(t, true, doc["enabled"])

	doc = Document{"title": "a", "enabled": false}
	c.ApplyDefaults(doc)
	assert.Equal(t, false, doc["enabled"], "explicit value must win over default")

	doc = Document{"enabled": nil}
	c.ApplyDefaults(doc)
	assert.Equal(t, true, doc["enabled"])
}

// TestPurpose: Validates required, type and unknown-field checks for full and partial documents.
// Scope: Unit Test
// Expected: Full validation demands every required field; partial validation only rejects emptied ones.
// Test Case ID: COL-02
func TestCollection_ValidateDocument(t *testing.T) {
	c := sample()

	assert.NoError(t, c.ValidateDocument(Document{"title": "a", "code": "b"}, false))

	err := c.ValidateDocument(Document{"title": "a"}, false)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []FieldError{{Field: "code", Message: "this field is required"}}, verr.Errors)
	assert.Contains(t, err.Error(), "things")

	err = c.ValidateDocument(Document{"title": "   ", "code": ""}, false)
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Errors, 2)

	assert.NoError(t, c.ValidateDocument(Document{"enabled": false}, true))
	assert.Error(t, c.ValidateDocument(Document{"title": ""}, true))

	err = c.ValidateDocument(Document{"title": "a", "code": "b", "enabled": "yes"}, false)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "enabled", verr.Errors[0].Field)

	err = c.ValidateDocument(Document{"title": "a", "code": "b", "color": "red"}, false)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "unknown field", verr.Errors[0].Message)
}

func TestCollection_AuthorizeAndDescribe(t *testing.T) {
	c := sample()
	c.Access.Delete = func(context.Context, access.Request) bool { return false }

	ctx := access.WithActor(context.Background(), &access.Actor{ID: "u"})
	assert.NoError(t, c.Authorize(ctx, access.OpRead))
	assert.ErrorIs(t, c.Authorize(ctx, access.OpDelete), access.ErrForbidden)
	assert.ErrorIs(t, c.Authorize(context.Background(), access.OpDelete), access.ErrUnauthenticated)
	assert.ErrorIs(t, c.Authorize(ctx, access.Operation("publish")), access.ErrForbidden)

	assert.Equal(t, []string{"code"}, c.UniqueFields())

	s := c.Describe()
	assert.Equal(t, "things", s.Slug)
	assert.Len(t, s.Fields, 4)
	assert.Equal(t, "title", s.Admin.UseAsTitle)
	assert.True(t, s.Timestamps)
}
