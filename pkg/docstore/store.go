// Package docstore implements the embedded document store backing the CRUD
// layer. Collections hold schema-validated JSON-shaped documents and support
// equality filtering, projection, pagination, unique indexes and relation
// expansion.
package docstore

import "errors"

var (
	// ErrNoDocument is returned when a lookup matches zero documents.
	ErrNoDocument = errors.New("no matching document")
	// ErrNoCollection is returned when a referenced collection does not exist.
	ErrNoCollection = errors.New("collection not found")
)

// Document is a single persisted record. The reserved "_id" key holds the
// store-assigned identifier.
type Document map[string]any

// Criteria is an equality match over document fields. The "_id" key matches
// the document identifier.
type Criteria map[string]any

// Projection selects which fields to return. An empty (or nil) projection
// returns every field.
type Projection map[string]bool

// Store is the primary interface for interacting with the document store.
// The embedded engine implements this contract; a remote driver could too.
type Store interface {
	// Collection binds a schema to a named collection, creating it on first use.
	Collection(name string, schema *Schema) Collection
	// Lookup returns an already-bound collection by name.
	Lookup(name string) (Collection, error)
	// Collections returns the names of all bound collections.
	Collections() []string
	// Wait blocks until all background persistence tasks have completed.
	Wait()
}

// Collection is a set of documents sharing one schema.
type Collection interface {
	// Name returns the collection name.
	Name() string
	// Find returns every document matching the criteria, projected.
	Find(criteria Criteria, project Projection) ([]Document, error)
	// FindOne returns a single matching document or ErrNoDocument.
	FindOne(criteria Criteria, project Projection) (Document, error)
	// Paginate returns one page of matches plus the total match count.
	Paginate(criteria Criteria, project Projection, page, limit int) ([]Document, int, error)
	// Insert validates and stores a new document, assigning its id.
	// Fails with *ValidationFailure or *DuplicateKey.
	Insert(doc Document) (Document, error)
	// Update validates and replaces the document with the given id.
	Update(id string, doc Document) error
	// Remove hard-deletes the document with the given id.
	Remove(id string) error
}
