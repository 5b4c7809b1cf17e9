package crud

import (
	"github.com/karimivahid/crystal-core/pkg/docstore"
)

// Reserved field names managed by the CRUD layer.
const (
	TenantField     = "cid"
	CreatedAtField  = "createdAt"
	CreatedByField  = "createdBy"
	ModifiedAtField = "modifiedAt"
	ModifiedByField = "modifiedBy"
)

type schemaOptions struct {
	tenant bool
	audit  bool
}

// Option configures schema construction.
type Option func(*schemaOptions)

// WithTenant toggles tenant-id injection and tenant scoping. Enabled by
// default; disable it for resources that are not multi-tenant.
func WithTenant(enabled bool) Option {
	return func(o *schemaOptions) { o.tenant = enabled }
}

// WithAudit toggles the audit-tracking fields. Enabled by default.
func WithAudit(enabled bool) Option {
	return func(o *schemaOptions) { o.audit = enabled }
}

// Schema binds a field-definition list to the CRUD conventions: a required
// indexed tenant field, audit fields, uniqueness labels and the pagination
// capability. Build one per resource type at startup.
type Schema struct {
	def          *docstore.Schema
	tenantScoped bool
	audited      bool
	paginated    bool
}

// NewSchema augments the given fields with the tenant and audit fields and
// builds the underlying store schema. Fields the caller already declared are
// left as declared.
func NewSchema(fields []docstore.Field, opts ...Option) (*Schema, error) {
	o := schemaOptions{tenant: true, audit: true}
	for _, opt := range opts {
		opt(&o)
	}

	declared := make(map[string]bool, len(fields))
	for _, f := range fields {
		declared[f.Name] = true
	}

	all := make([]docstore.Field, 0, len(fields)+5)
	if o.tenant && !declared[TenantField] {
		all = append(all, docstore.Field{Name: TenantField, Type: docstore.TypeString, Required: true, Index: true})
	}
	all = append(all, fields...)
	if o.audit {
		for _, f := range []docstore.Field{
			{Name: CreatedAtField, Type: docstore.TypeTime, Required: true},
			{Name: CreatedByField, Type: docstore.TypeObject, Required: true},
			{Name: ModifiedAtField, Type: docstore.TypeTime},
			{Name: ModifiedByField, Type: docstore.TypeObject},
		} {
			if !declared[f.Name] {
				all = append(all, f)
			}
		}
	}

	def, err := docstore.NewSchema(all)
	if err != nil {
		return nil, err
	}
	return &Schema{def: def, tenantScoped: o.tenant, audited: o.audit}, nil
}

// CreateIndex declares a uniqueness constraint over the given fields. The
// label is what a duplicate-key error will carry back to the client.
func (s *Schema) CreateIndex(fields []string, label string) {
	s.def.AddUniqueIndex(fields, label)
}

// AddPagination enables the paginated list code path on models built from
// this schema.
func (s *Schema) AddPagination() {
	s.paginated = true
}

// Definition returns the underlying store schema.
func (s *Schema) Definition() *docstore.Schema { return s.def }

// TenantScoped reports whether tenant isolation applies to this schema.
func (s *Schema) TenantScoped() bool { return s.tenantScoped }

// Audited reports whether audit fields are stamped on this schema.
func (s *Schema) Audited() bool { return s.audited }

// Paginated reports whether the paginated list path is enabled.
func (s *Schema) Paginated() bool { return s.paginated }

// Marshal prepares a document for external serialization: the internal
// identifier moves to "id" and the tenant field is dropped. The tenant id is
// implicit from the request context and is never echoed back.
func (s *Schema) Marshal(doc docstore.Document) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	if id, ok := out["_id"]; ok {
		out["id"] = id
		delete(out, "_id")
	}
	delete(out, TenantField)
	return out
}
