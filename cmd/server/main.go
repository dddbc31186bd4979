/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the reserve planner server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Optionally seed the demo account
  4. Create API handler and router
  5. Start notification scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: reserve.db)
           Use ":memory:" for an in-memory database
  -demo    Seed the demo account (demo/demo) with sample entries

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler and close the database
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/reserve.db"

  # Run with in-memory database and demo data
  ./server -db=":memory:" -demo

ENVIRONMENT:
  No environment variables currently. All config via flags.
  Future: DATABASE_URL, PORT, LOG_LEVEL

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/reserve-engine/api"
	"github.com/warp/reserve-engine/planner"
	"github.com/warp/reserve-engine/store/sqlite"
	"github.com/warp/reserve-engine/vault"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "reserve.db", "SQLite database path")
	demo := flag.Bool("demo", false, "seed the demo account with sample entries")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	if *demo {
		if err := seedDemoAccount(store); err != nil {
			log.Fatalf("Failed to seed demo account: %v", err)
		}
	}

	// Initialize handler and router
	handler := api.NewHandler(store, store)
	router := api.NewRouter(handler)

	// Background due-notice refresh for logged-in users
	scheduler := api.NewNotificationScheduler(handler)
	scheduler.Start()
	defer scheduler.Stop()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// seedDemoAccount creates the demo user with sample entries. An account that
// already exists is left untouched so repeated starts don't clobber edits.
func seedDemoAccount(store *sqlite.Store) error {
	if _, err := store.FindUser(planner.DemoUsername); err == nil {
		return nil
	} else if !errors.Is(err, planner.ErrUserNotFound) {
		return err
	}

	hash, err := vault.HashPassword(planner.DemoPassword)
	if err != nil {
		return err
	}
	salt, err := vault.NewSalt()
	if err != nil {
		return err
	}

	u := planner.User{
		Username:     planner.DemoUsername,
		Role:         planner.RoleUser,
		Active:       true,
		PasswordHash: hash,
		EncSalt:      salt,
		EncIters:     vault.DefaultIterations,
		CreatedAt:    time.Now().UTC(),
	}
	if err := store.CreateUser(u); err != nil {
		return err
	}

	key := vault.DeriveKey(planner.DemoPassword, salt, u.EncIters)
	records := planner.DemoRecords(time.Now().Year())
	if err := store.SaveEntries(u.Username, key, records); err != nil {
		return err
	}

	log.Printf("Seeded demo account %q with %d entries", planner.DemoUsername, len(records))
	return nil
}
