package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/procflow/procql/internal/config"
	"github.com/procflow/procql/internal/db"
	"github.com/procflow/procql/internal/export"
	"github.com/procflow/procql/internal/httpapi"
	"github.com/procflow/procql/internal/middleware"
	"github.com/procflow/procql/internal/repository"
	"github.com/procflow/procql/internal/search"
)

func main() {
	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	dbConfig, err := config.LoadDBConfig(".")
	if err != nil {
		log.Fatalf("Failed to load database config: %v", err)
	}
	serverConfig, err := config.LoadServerConfig(".")
	if err != nil {
		log.Fatalf("Failed to load server config: %v", err)
	}

	// Run migrations before opening the pool
	if err := db.RunMigrations(dbConfig, "./migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Setup database connection
	conn, err := db.NewConnection(ctx, dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	// Create repositories
	taskRepo := repository.NewTaskRepository(conn.Pool)
	instanceRepo := repository.NewProcessInstanceRepository(conn.Pool)
	variableRepo := repository.NewVariableRepository(conn.Pool)
	policyRepo := repository.NewAccessPolicyRepository(conn.Pool)

	// Create services
	searchService := search.NewService(taskRepo, instanceRepo, variableRepo, policyRepo)
	exportService := export.NewService(searchService)

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   serverConfig.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	wrap := func(h http.Handler) http.Handler {
		return corsHandler.Handler(middleware.LoggingMiddleware(middleware.SecurityContextMiddleware(h)))
	}

	http.Handle("/api/", wrap(httpapi.NewHTTPHandler(searchService)))
	http.Handle("/exports/", wrap(export.NewHTTPHandler(exportService)))

	// Create HTTP server
	server := &http.Server{
		Addr:         serverConfig.Addr,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting search server on %s", serverConfig.Addr)
		log.Printf("Search endpoints available under http://localhost%s/api", serverConfig.Addr)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
