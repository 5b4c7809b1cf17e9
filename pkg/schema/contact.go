// Package schema defines the canonical resources registered by the daemon.
package schema

import (
	"github.com/karimivahid/crystal-core/pkg/crud"
	"github.com/karimivahid/crystal-core/pkg/docstore"
)

// ContactFields is the field-definition list of the contacts resource, the
// reference resource every deployment ships with.
func ContactFields() []docstore.Field {
	return []docstore.Field{
		{Name: "name", Type: docstore.TypeString, Required: true, MaxLength: 60},
		{Name: "email", Type: docstore.TypeString, Required: true, MaxLength: 120},
		{Name: "phone", Type: docstore.TypeString, MaxLength: 30},
		{Name: "active", Type: docstore.TypeBool},
	}
}

// NewContactSchema builds the contacts schema: tenant-scoped, audited,
// paginated, with email unique per tenant.
func NewContactSchema() (*crud.Schema, error) {
	s, err := crud.NewSchema(ContactFields())
	if err != nil {
		return nil, err
	}
	s.CreateIndex([]string{crud.TenantField, "email"}, "email")
	s.AddPagination()
	return s, nil
}
