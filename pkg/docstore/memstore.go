package docstore

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is the embedded thread-safe document engine.
type MemStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
	// Structure: [collection][documentID]document, as loaded by Persistence.LoadAll.
	initial   map[string]map[string]Document
	persister *Persistence
	wg        sync.WaitGroup
}

// NewMemStore initializes a store. It accepts existing data (from LoadAll)
// and a persister; both may be nil for a volatile store.
func NewMemStore(initialData map[string]map[string]Document, p *Persistence) *MemStore {
	if initialData == nil {
		initialData = make(map[string]map[string]Document)
	}
	return &MemStore{
		collections: make(map[string]*memCollection),
		initial:     initialData,
		persister:   p,
	}
}

// Wait waits for all background persistence tasks to complete.
func (m *MemStore) Wait() {
	m.wg.Wait()
}

// Collection binds a schema to a named collection. Documents loaded from disk
// for that name are adopted as-is; they were validated when first written.
func (m *MemStore) Collection(name string, schema *Schema) Collection {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.collections[name]; ok {
		return c
	}
	docs := make(map[string]Document)
	for id, doc := range m.initial[name] {
		docs[id] = doc
	}
	c := &memCollection{name: name, schema: schema, docs: docs, store: m}
	m.collections[name] = c
	return c
}

// Lookup returns an already-bound collection by name.
func (m *MemStore) Lookup(name string) (Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[name]
	if !ok {
		return nil, ErrNoCollection
	}
	return c, nil
}

// Collections returns the names of all bound collections.
func (m *MemStore) Collections() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var list []string
	for name := range m.collections {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}

type memCollection struct {
	mu     sync.RWMutex
	name   string
	schema *Schema
	docs   map[string]Document
	store  *MemStore
}

func (c *memCollection) Name() string { return c.name }

func (c *memCollection) Find(criteria Criteria, project Projection) ([]Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := c.match(criteria)
	for i, doc := range out {
		out[i] = projectDoc(doc, project)
	}
	return out, nil
}

func (c *memCollection) FindOne(criteria Criteria, project Projection) (Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	matches := c.match(criteria)
	if len(matches) == 0 {
		return nil, ErrNoDocument
	}
	return projectDoc(matches[0], project), nil
}

func (c *memCollection) Paginate(criteria Criteria, project Projection, page, limit int) ([]Document, int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	matches := c.match(criteria)
	total := len(matches)

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = total
	}
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	pageDocs := matches[start:end]
	for i, doc := range pageDocs {
		pageDocs[i] = projectDoc(doc, project)
	}
	return pageDocs, total, nil
}

func (c *memCollection) Insert(doc Document) (Document, error) {
	stored := copyDoc(doc)
	delete(stored, "_id")

	c.mu.Lock()
	if errs := c.schema.Validate(stored); len(errs) > 0 {
		c.mu.Unlock()
		return nil, &ValidationFailure{Collection: c.name, Fields: errs}
	}
	if dup := c.findDuplicate(stored, ""); dup != nil {
		c.mu.Unlock()
		return nil, dup
	}
	stored["_id"] = uuid.NewString()
	c.docs[stored["_id"].(string)] = stored
	snapshot := c.snapshot()
	c.mu.Unlock()

	c.persist(snapshot)
	return copyDoc(stored), nil
}

func (c *memCollection) Update(id string, doc Document) error {
	stored := copyDoc(doc)
	stored["_id"] = id

	c.mu.Lock()
	if _, ok := c.docs[id]; !ok {
		c.mu.Unlock()
		return ErrNoDocument
	}
	if errs := c.schema.Validate(stored); len(errs) > 0 {
		c.mu.Unlock()
		return &ValidationFailure{Collection: c.name, Fields: errs}
	}
	if dup := c.findDuplicate(stored, id); dup != nil {
		c.mu.Unlock()
		return dup
	}
	c.docs[id] = stored
	snapshot := c.snapshot()
	c.mu.Unlock()

	c.persist(snapshot)
	return nil
}

func (c *memCollection) Remove(id string) error {
	c.mu.Lock()
	if _, ok := c.docs[id]; !ok {
		c.mu.Unlock()
		return ErrNoDocument
	}
	delete(c.docs, id)
	snapshot := c.snapshot()
	c.mu.Unlock()

	c.persist(snapshot)
	return nil
}

// match returns copies of all matching documents, ordered by id so that
// pagination is stable across calls. Callers must hold at least a read lock.
func (c *memCollection) match(criteria Criteria) []Document {
	ids := make([]string, 0, len(c.docs))
	for id := range c.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []Document
	for _, id := range ids {
		if matchesCriteria(c.docs[id], criteria) {
			out = append(out, copyDoc(c.docs[id]))
		}
	}
	return out
}

// findDuplicate checks every unique index against the candidate document,
// skipping the document with excludeID (the one being updated).
// Callers must hold the write lock.
func (c *memCollection) findDuplicate(candidate Document, excludeID string) *DuplicateKey {
	for _, idx := range c.schema.UniqueIndexes() {
		key, ok := indexKey(idx, candidate)
		if !ok {
			continue
		}
		for id, existing := range c.docs {
			if id == excludeID {
				continue
			}
			existingKey, ok := indexKey(idx, existing)
			if ok && existingKey == key {
				return &DuplicateKey{Collection: c.name, Label: idx.Label, Fields: idx.Fields}
			}
		}
	}
	return nil
}

// snapshot deep-copies the collection's state so it can be saved safely in
// the background. Callers must hold at least a read lock.
func (c *memCollection) snapshot() map[string]Document {
	out := make(map[string]Document, len(c.docs))
	for id, doc := range c.docs {
		out[id] = copyDoc(doc)
	}
	return out
}

func (c *memCollection) persist(snapshot map[string]Document) {
	if c.store == nil || c.store.persister == nil {
		return
	}
	c.store.wg.Add(1)
	go func(name string, data map[string]Document) {
		defer c.store.wg.Done()
		c.store.persister.SaveCollection(name, data)
	}(c.name, snapshot)
}

// Populate replaces a reference field's id value with the referenced
// document. A dangling reference leaves the field untouched.
func Populate(doc Document, field string, from Collection) error {
	id, ok := doc[field].(string)
	if !ok || id == "" {
		return nil
	}
	target, err := from.FindOne(Criteria{"_id": id}, nil)
	if err == ErrNoDocument {
		return nil
	}
	if err != nil {
		return err
	}
	doc[field] = target
	return nil
}

func matchesCriteria(doc Document, criteria Criteria) bool {
	for name, want := range criteria {
		if !valuesEqual(doc[name], want) {
			return false
		}
	}
	return true
}

// valuesEqual compares loosely: documents reloaded from JSON carry float64
// numbers and RFC 3339 time strings, so numeric values are compared after
// coercion and everything else by string form.
func valuesEqual(have, want any) bool {
	if have == nil || want == nil {
		return have == want
	}
	if hf, ok := toFloat(have); ok {
		if wf, ok := toFloat(want); ok {
			return hf == wf
		}
	}
	if hs, ok := have.(string); ok {
		if ws, ok := want.(string); ok {
			return hs == ws
		}
	}
	return fmt.Sprintf("%v", have) == fmt.Sprintf("%v", want)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func projectDoc(doc Document, project Projection) Document {
	if len(project) == 0 {
		return doc
	}
	out := make(Document, len(project)+1)
	if id, ok := doc["_id"]; ok {
		out["_id"] = id
	}
	for name, include := range project {
		if !include {
			continue
		}
		if val, ok := doc[name]; ok {
			out[name] = val
		}
	}
	return out
}

func copyDoc(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		switch nested := v.(type) {
		case map[string]any:
			inner := make(map[string]any, len(nested))
			for nk, nv := range nested {
				inner[nk] = nv
			}
			out[k] = inner
		case Document:
			inner := make(map[string]any, len(nested))
			for nk, nv := range nested {
				inner[nk] = nv
			}
			out[k] = inner
		case time.Time:
			out[k] = nested
		default:
			out[k] = v
		}
	}
	return out
}
