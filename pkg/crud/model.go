package crud

import (
	"time"

	"go.uber.org/zap"

	"github.com/karimivahid/crystal-core/pkg/docstore"
)

// Requester identifies who is acting. It is derived once per request from
// trusted transport headers, never from caller-supplied body fields.
type Requester struct {
	CID      string `json:"cid"`
	UID      string `json:"uid"`
	Username string `json:"username"`
}

func (r Requester) identity() map[string]any {
	return map[string]any{"uid": r.UID, "username": r.Username}
}

// Key addresses a single record: its id plus the tenant owning it. CID is
// ignored for schemas built without tenant scoping.
type Key struct {
	ID  string
	CID string
}

// Result is the outcome of a list operation. Total may exceed len(Docs) on
// the paginated path.
type Result struct {
	Docs  []docstore.Document
	Total int
}

// Populate asks FindOne to expand a reference field against another
// collection before returning.
type Populate struct {
	Field      string
	Collection string
}

// Model exposes the five canonical operations over a bound schema and
// collection. Every read and write path carries the tenant id as a mandatory
// structural criterion; that is the isolation guarantee this layer exists to
// provide.
type Model struct {
	name   string
	schema *Schema
	store  docstore.Store
	coll   docstore.Collection
}

// NewModel binds a schema to a named collection on the given store.
func NewModel(store docstore.Store, name string, schema *Schema) *Model {
	return &Model{
		name:   name,
		schema: schema,
		store:  store,
		coll:   store.Collection(name, schema.Definition()),
	}
}

// Name returns the bound collection name.
func (m *Model) Name() string { return m.name }

// Schema returns the schema the model was built from.
func (m *Model) Schema() *Schema { return m.schema }

// FindAll returns every record matching the query, or one page of them when
// a limit is set. Without a limit Total equals the returned count; with one
// it is the full match count reported by the store.
func (m *Model) FindAll(q StrictQuery) (Result, error) {
	if err := m.requireTenant(q.Criteria); err != nil {
		return Result{}, err
	}
	if q.Limit == 0 {
		docs, err := m.coll.Find(q.Criteria, q.Select)
		if err != nil {
			return Result{}, m.translate(err)
		}
		return Result{Docs: docs, Total: len(docs)}, nil
	}
	if !m.schema.Paginated() {
		return Result{}, &BadRequestError{Message: "pagination not enabled for " + m.name}
	}
	docs, total, err := m.coll.Paginate(q.Criteria, q.Select, q.Page, q.Limit)
	if err != nil {
		return Result{}, m.translate(err)
	}
	return Result{Docs: docs, Total: total}, nil
}

// FindOne returns the single matching record. Zero matches is a hard
// NotFound ("Empty Result"), never a nil result; update and delete rely on
// this to short-circuit.
func (m *Model) FindOne(q StrictQuery, populate *Populate) (docstore.Document, error) {
	if err := m.requireTenant(q.Criteria); err != nil {
		return nil, err
	}
	doc, err := m.coll.FindOne(q.Criteria, q.Select)
	if err != nil {
		return nil, m.translate(err)
	}
	if populate != nil {
		target, err := m.store.Lookup(populate.Collection)
		if err != nil {
			return nil, &BadRequestError{Message: "unknown populate collection " + populate.Collection, Err: err}
		}
		if err := docstore.Populate(doc, populate.Field, target); err != nil {
			return nil, m.translate(err)
		}
	}
	return doc, nil
}

// Insert creates a record. Client-supplied id fields are stripped before
// construction so the store always assigns the identifier, and the audit
// fields are stamped with the creator identity.
func (m *Model) Insert(data map[string]any, creator Requester) (docstore.Document, error) {
	stored := make(docstore.Document, len(data)+4)
	for k, v := range data {
		stored[k] = v
	}
	delete(stored, "id")
	delete(stored, "_id")

	if m.schema.Audited() {
		now := time.Now()
		stored[CreatedAtField] = now
		stored[CreatedByField] = creator.identity()
		stored[ModifiedAtField] = now
	}

	doc, err := m.coll.Insert(stored)
	if err != nil {
		zap.S().Debugw("insert rejected", "collection", m.name, "error", err)
		return nil, m.translate(err)
	}
	return doc, nil
}

// Update resolves the record through the tenant-scoped FindOne, merges data
// over it and re-stamps the modification audit fields. Client-supplied id
// and tenant fields in data are discarded.
func (m *Model) Update(key Key, data map[string]any, modifier Requester) error {
	existing, err := m.FindOne(StrictQuery{Criteria: m.keyCriteria(key), Select: docstore.Projection{}}, nil)
	if err != nil {
		return err
	}

	merged := make(docstore.Document, len(existing)+len(data))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range data {
		switch k {
		case "id", "_id", TenantField, CreatedAtField, CreatedByField:
			continue
		}
		merged[k] = v
	}
	if m.schema.Audited() {
		merged[ModifiedAtField] = time.Now()
		merged[ModifiedByField] = modifier.identity()
	}

	id, _ := existing["_id"].(string)
	if err := m.coll.Update(id, merged); err != nil {
		zap.S().Debugw("update rejected", "collection", m.name, "id", id, "error", err)
		return m.translate(err)
	}
	return nil
}

// Del resolves the record through the tenant-scoped FindOne and hard-deletes
// it. Deletion is irreversible.
func (m *Model) Del(key Key) error {
	existing, err := m.FindOne(StrictQuery{Criteria: m.keyCriteria(key), Select: docstore.Projection{}}, nil)
	if err != nil {
		return err
	}
	id, _ := existing["_id"].(string)
	if err := m.coll.Remove(id); err != nil {
		return m.translate(err)
	}
	return nil
}

func (m *Model) keyCriteria(key Key) map[string]any {
	criteria := map[string]any{"_id": key.ID}
	if m.schema.TenantScoped() {
		criteria[TenantField] = key.CID
	}
	return criteria
}

// requireTenant rejects any lookup that would reach the store without a
// tenant criterion on a tenant-scoped schema. The tenant id is a structural
// parameter here, not an optional filter a caller could omit.
func (m *Model) requireTenant(criteria map[string]any) error {
	if !m.schema.TenantScoped() {
		return nil
	}
	if cid, ok := criteria[TenantField]; !ok || cid == nil || cid == "" {
		return &BadRequestError{Message: "missing tenant id in criteria"}
	}
	return nil
}

func (m *Model) translate(err error) error {
	tenantField := ""
	if m.schema.TenantScoped() {
		tenantField = TenantField
	}
	return translateStoreError(err, tenantField)
}
