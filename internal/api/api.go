// Package api wraps CRUD models into gin handlers sharing one request and
// response convention: `{result: ...}` bodies on success, errors deposited on
// the context for the server's error middleware to shape.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/karimivahid/crystal-core/pkg/crud"
	"github.com/karimivahid/crystal-core/pkg/docstore"
)

const requesterKey = "crystal.requester"

// SetRequester stores the authenticated requester on the context. Called by
// the server's requester middleware, never by handlers.
func SetRequester(c *gin.Context, r crud.Requester) {
	c.Set(requesterKey, r)
}

// RequesterFrom returns the requester attached to the context, zero-valued
// when the middleware did not run (non-tenant resources).
func RequesterFrom(c *gin.Context) crud.Requester {
	if v, ok := c.Get(requesterKey); ok {
		if r, ok := v.(crud.Requester); ok {
			return r
		}
	}
	return crud.Requester{}
}

// CrudAPI exposes a model's five operations as HTTP handlers.
type CrudAPI struct {
	model        *crud.Model
	tenantScoped bool
}

// APIOption configures a CrudAPI.
type APIOption func(*CrudAPI)

// WithTenantScope overrides the transport-level tenant enforcement, which
// otherwise follows the model's schema.
func WithTenantScope(enabled bool) APIOption {
	return func(a *CrudAPI) { a.tenantScoped = enabled }
}

// NewCrudAPI wraps a model. Tenant scoping at this boundary mirrors the
// model-layer enforcement by default.
func NewCrudAPI(model *crud.Model, opts ...APIOption) *CrudAPI {
	a := &CrudAPI{model: model, tenantScoped: model.Schema().TenantScoped()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// TenantScoped reports whether this API requires a tenant id per request.
func (a *CrudAPI) TenantScoped() bool { return a.tenantScoped }

// Model returns the wrapped model.
func (a *CrudAPI) Model() *crud.Model { return a.model }

// FindAll handles the list endpoint: query-string filters plus page, limit
// and fields options.
func (a *CrudAPI) FindAll(c *gin.Context) {
	query := crud.Normalize(parseQuery(c.Request.URL.Query()))
	if a.tenantScoped {
		query.Criteria[crud.TenantField] = RequesterFrom(c).CID
	}

	result, err := a.model.FindAll(query)
	if err != nil {
		abortWithError(c, err)
		return
	}

	docs := make([]map[string]any, 0, len(result.Docs))
	for _, doc := range result.Docs {
		docs = append(docs, a.model.Schema().Marshal(doc))
	}
	c.JSON(http.StatusOK, gin.H{"result": gin.H{"docs": docs, "total": result.Total}})
}

// FindByID handles the get-by-id endpoint. The id comes from the query
// parameters; the tenant id always comes from the requester.
func (a *CrudAPI) FindByID(c *gin.Context) {
	criteria := map[string]any{"_id": c.Query("id")}
	if a.tenantScoped {
		criteria[crud.TenantField] = RequesterFrom(c).CID
	}

	doc, err := a.model.FindOne(crud.StrictQuery{Criteria: criteria, Select: docstore.Projection{}}, nil)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": a.model.Schema().Marshal(doc)})
}

// Insert handles the create endpoint. Id fields and audit identity in the
// body are stripped here as well as in the model, and the tenant id is taken
// from the requester, never from the body.
func (a *CrudAPI) Insert(c *gin.Context) {
	body, ok := bindBody(c)
	if !ok {
		return
	}
	delete(body, "id")
	delete(body, "_id")
	delete(body, crud.CreatedByField)
	if a.tenantScoped {
		body[crud.TenantField] = RequesterFrom(c).CID
	}

	doc, err := a.model.Insert(body, RequesterFrom(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": gin.H{"id": doc["_id"]}})
}

// UpdateByID handles the update-by-id endpoint.
func (a *CrudAPI) UpdateByID(c *gin.Context) {
	body, ok := bindBody(c)
	if !ok {
		return
	}
	requester := RequesterFrom(c)
	key := crud.Key{ID: c.Query("id"), CID: requester.CID}
	if err := a.model.Update(key, body, requester); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": true})
}

// Del handles the delete-by-id endpoint. The delete is hard and
// irreversible.
func (a *CrudAPI) Del(c *gin.Context) {
	key := crud.Key{ID: c.Query("id"), CID: RequesterFrom(c).CID}
	if err := a.model.Del(key); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": true})
}

func bindBody(c *gin.Context) (map[string]any, bool) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, &crud.BadRequestError{Message: "Bad Request", Err: err})
		return nil, false
	}
	if body == nil {
		body = make(map[string]any)
	}
	return body, true
}

// abortWithError deposits the failure for the error middleware to shape.
// Handlers never write error bodies themselves.
func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
