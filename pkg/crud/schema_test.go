package crud

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karimivahid/crystal-core/pkg/docstore"
)

func TestNewSchemaInjectsTenantAndAudit(t *testing.T) {
	s, err := NewSchema([]docstore.Field{
		{Name: "name", Type: docstore.TypeString, Required: true},
	})
	require.NoError(t, err)

	cid, ok := s.Definition().Field(TenantField)
	require.True(t, ok, "tenant field not injected")
	assert.True(t, cid.Required)
	assert.True(t, cid.Index)

	for _, name := range []string{CreatedAtField, CreatedByField, ModifiedAtField, ModifiedByField} {
		_, ok := s.Definition().Field(name)
		assert.True(t, ok, "audit field %s not injected", name)
	}

	createdBy, _ := s.Definition().Field(CreatedByField)
	assert.True(t, createdBy.Required)
	modifiedBy, _ := s.Definition().Field(ModifiedByField)
	assert.False(t, modifiedBy.Required)
}

func TestNewSchemaToggles(t *testing.T) {
	s, err := NewSchema([]docstore.Field{
		{Name: "name", Type: docstore.TypeString},
	}, WithTenant(false), WithAudit(false))
	require.NoError(t, err)

	_, hasTenant := s.Definition().Field(TenantField)
	assert.False(t, hasTenant)
	_, hasAudit := s.Definition().Field(CreatedAtField)
	assert.False(t, hasAudit)
	assert.False(t, s.TenantScoped())
	assert.False(t, s.Audited())
}

func TestNewSchemaKeepsDeclaredFields(t *testing.T) {
	// A caller declaring cid itself keeps its own definition.
	s, err := NewSchema([]docstore.Field{
		{Name: TenantField, Type: docstore.TypeString, Required: true},
		{Name: "name", Type: docstore.TypeString, Required: true, MaxLength: 20},
	})
	require.NoError(t, err)
	assert.True(t, s.TenantScoped())
}

func TestMarshalStripsInternalFields(t *testing.T) {
	s, err := NewSchema([]docstore.Field{
		{Name: "name", Type: docstore.TypeString, Required: true},
	})
	require.NoError(t, err)

	out := s.Marshal(docstore.Document{
		"_id":  "abc",
		"cid":  "1",
		"name": "visible",
	})

	assert.Equal(t, "abc", out["id"])
	assert.NotContains(t, out, "_id")
	assert.NotContains(t, out, TenantField)
	assert.Equal(t, "visible", out["name"])
}

func TestCreateIndexCarriesLabel(t *testing.T) {
	s, err := NewSchema([]docstore.Field{
		{Name: "email", Type: docstore.TypeString, Required: true},
	})
	require.NoError(t, err)
	s.CreateIndex([]string{TenantField, "email"}, "email")

	indexes := s.Definition().UniqueIndexes()
	require.Len(t, indexes, 1)
	assert.Equal(t, "email", indexes[0].Label)
	assert.Equal(t, []string{TenantField, "email"}, indexes[0].Fields)
}
