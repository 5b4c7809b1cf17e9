// Package server assembles the gin application: request logging, response
// timing, requester derivation from gateway headers, the error middleware
// and the per-resource CRUD routes.
package server

import (
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/karimivahid/crystal-core/internal/api"
	"github.com/karimivahid/crystal-core/pkg/crud"
)

// Options configure the application.
type Options struct {
	Logger *zap.Logger
	// Errors resolves downstream error codes to messages and statuses.
	Errors ErrorTable
	// OnFatal runs when a non-operational failure surfaces. The daemon
	// installs a process shutdown here; serving on from corrupted state is
	// worse than restarting.
	OnFatal func(error)
}

// App is the assembled HTTP application.
type App struct {
	engine *gin.Engine
	opts   Options
}

// New builds the gin engine with the shared middleware chain.
func New(opts Options) *App {
	if opts.Logger == nil {
		opts.Logger = zap.L()
	}
	app := &App{opts: opts}

	engine := gin.New()
	engine.Use(ginzap.Ginzap(opts.Logger, time.RFC3339, true))
	engine.Use(ginzap.RecoveryWithZap(opts.Logger, true))
	engine.Use(responseTime())
	engine.Use(app.errorMiddleware())
	app.engine = engine
	return app
}

// Engine exposes the underlying gin engine for listeners and tests.
func (a *App) Engine() *gin.Engine { return a.engine }

// Mount wires the five CRUD routes for one resource under /api/<name>.
func (a *App) Mount(name string, capi *api.CrudAPI) {
	g := a.engine.Group("/api/" + name)
	g.Use(requesterMiddleware(capi.TenantScoped()))
	g.GET("", capi.FindAll)
	g.GET("/one", capi.FindByID)
	g.POST("", capi.Insert)
	g.PUT("", capi.UpdateByID)
	g.DELETE("", capi.Del)
	a.opts.Logger.Sugar().Infow("mounted resource", "resource", name, "tenantScoped", capi.TenantScoped())
}

// requesterMiddleware derives the requester once per request from the
// gateway headers. A tenant-scoped resource with no x-cid header is not a
// valid request and is rejected before any handler runs.
func requesterMiddleware(tenantScoped bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		requester := crud.Requester{
			CID:      c.GetHeader("x-cid"),
			UID:      c.GetHeader("x-uid"),
			Username: c.GetHeader("x-username"),
		}
		if tenantScoped && requester.CID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "missing x-cid header"})
			return
		}
		api.SetRequester(c, requester)
		c.Next()
	}
}

// errorMiddleware turns failures deposited on the context into the
// structured response shape. Unclassified failures are not representable in
// that shape; they get a generic 500 and trip the fatal hook when flagged
// non-operational.
func (a *App) errorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		if status, body, ok := shapeError(err, a.opts.Errors); ok {
			c.JSON(status, body)
			return
		}

		a.opts.Logger.Sugar().Errorw("unclassified failure", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal Server Error"})
		if !crud.IsOperational(err) && a.opts.OnFatal != nil {
			a.opts.OnFatal(err)
		}
	}
}

// responseTime reports the handling duration to the client. The header has
// to go out before the first body byte, so the writer is wrapped.
func responseTime() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer = &timedWriter{ResponseWriter: c.Writer, start: time.Now()}
		c.Next()
	}
}

type timedWriter struct {
	gin.ResponseWriter
	start   time.Time
	stamped bool
}

func (w *timedWriter) WriteHeader(code int) {
	w.stamp()
	w.ResponseWriter.WriteHeader(code)
}

func (w *timedWriter) Write(b []byte) (int, error) {
	w.stamp()
	return w.ResponseWriter.Write(b)
}

func (w *timedWriter) stamp() {
	if w.stamped {
		return
	}
	w.stamped = true
	w.Header().Set("X-Response-Time", time.Since(w.start).String())
}
