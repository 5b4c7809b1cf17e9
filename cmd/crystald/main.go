package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/heptiolabs/healthcheck"
	"go.elastic.co/ecszap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/karimivahid/crystal-core/internal/api"
	"github.com/karimivahid/crystal-core/internal/server"
	"github.com/karimivahid/crystal-core/internal/vault"
	"github.com/karimivahid/crystal-core/pkg/crud"
	"github.com/karimivahid/crystal-core/pkg/docstore"
	"github.com/karimivahid/crystal-core/pkg/schema"
)

func main() {
	logger := newLogger()
	zap.ReplaceGlobals(logger)
	defer logger.Sync()

	dataDir := envOr("CRYSTAL_DATA_DIR", "./data")
	httpPort := envOr("CRYSTAL_HTTP_PORT", "4001")
	healthPort := envOr("CRYSTAL_HEALTH_PORT", "4002")
	useTLS := os.Getenv("CRYSTAL_DISABLE_TLS") != "true"

	if os.Getenv("LOGGING_LEVEL") != "DEVELOPMENT" {
		gin.SetMode(gin.ReleaseMode)
	}

	persister, err := docstore.NewPersistence(dataDir)
	if err != nil {
		zap.S().Fatalf("Failed to initialize persistence: %v", err)
	}

	initialData, err := persister.LoadAll()
	if err != nil {
		zap.S().Warnf("Could not load existing data: %v", err)
	}
	store := docstore.NewMemStore(initialData, persister)
	zap.S().Infof("Engine started. Loaded %d collections.", len(initialData))

	contactSchema, err := schema.NewContactSchema()
	if err != nil {
		zap.S().Fatalf("Failed to build contact schema: %v", err)
	}
	contactModel := crud.NewModel(store, "contacts", contactSchema)

	// Migrate-and-exit mode: copy every collection to another data
	// directory, then stop. Used for volume moves and offline backups.
	if target := os.Getenv("CRYSTAL_MIGRATE_TO"); target != "" {
		dst, err := docstore.NewPersistence(target)
		if err != nil {
			zap.S().Fatalf("Failed to open migration target: %v", err)
		}
		if err := docstore.Migrate(store, dst); err != nil {
			zap.S().Fatalf("Migration failed: %v", err)
		}
		zap.S().Infof("Migration to %s complete.", target)
		return
	}

	app := server.New(server.Options{
		Logger: logger,
		Errors: server.ErrorTable{
			"auth.expired":   {Message: "Session expired", Status: http.StatusUnauthorized},
			"auth.forbidden": {Message: "Access denied", Status: http.StatusForbidden},
			"request.body":   {Message: "Bad Request", Status: http.StatusBadRequest},
		},
		OnFatal: func(err error) {
			zap.S().Errorf("Non-operational failure, shutting down: %v", err)
			store.Wait()
			logger.Sync()
			os.Exit(1)
		},
	})
	app.Mount("contacts", api.NewCrudAPI(contactModel))

	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(500))
	go func() {
		if err := http.ListenAndServe(":"+healthPort, health); err != nil {
			zap.S().Errorf("Health listener failed: %v", err)
		}
	}()

	srv := &http.Server{Addr: ":" + httpPort, Handler: app.Engine()}
	go func() {
		var err error
		if useTLS {
			cert, certErr := vault.GenerateSelfSignedCert()
			if certErr != nil {
				zap.S().Fatalf("Failed to generate TLS certificate: %v", certErr)
			}
			srv.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
			zap.S().Infof("API listening on :%s (TLS)", httpPort)
			err = srv.ListenAndServeTLS("", "")
		} else {
			zap.S().Infof("API listening on :%s", httpPort)
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			zap.S().Fatalf("HTTP server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	zap.S().Info("Shutdown signal received. Finalizing disk writes...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zap.S().Warnf("Shutdown error: %v", err)
	}
	store.Wait()
	zap.S().Info("Persistence complete. Exiting.")
}

func newLogger() *zap.Logger {
	encoderConfig := ecszap.NewDefaultEncoderConfig()
	var core zapcore.Core
	switch os.Getenv("LOGGING_LEVEL") {
	case "DEVELOPMENT":
		core = ecszap.NewCore(encoderConfig, os.Stdout, zap.DebugLevel)
	default:
		core = ecszap.NewCore(encoderConfig, os.Stdout, zap.InfoLevel)
	}
	return zap.New(core, zap.AddCaller())
}

func envOr(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
