package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"fieldsync-agent/internal/adapters/remote"
	"fieldsync-agent/internal/adapters/statestore"
	"fieldsync-agent/internal/api"
	"fieldsync-agent/internal/engine"
	"fieldsync-agent/internal/ports"
)

// main is the application composition root.
// It wires concrete adapters (SQLite or Redis snapshot store, the remote
// task API client) behind ports, hydrates the engine and starts the local
// HTTP server the UI layer talks to.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	port := getEnv("PORT", "8080")
	backend := getEnv("STATE_BACKEND", "sqlite")

	apiBase := os.Getenv("API_BASE_URL")
	if strings.TrimSpace(apiBase) == "" {
		log.Fatal("API_BASE_URL is required")
	}
	apiToken := os.Getenv("API_TOKEN")
	if strings.TrimSpace(apiToken) == "" {
		log.Fatal("API_TOKEN is required")
	}

	taskAPI, err := remote.NewHTTPTaskAPI(apiBase, apiToken)
	if err != nil {
		log.Fatal(err)
	}

	store, cleanup, err := openStateStore(backend)
	if err != nil {
		log.Fatal(err)
	}
	defer cleanup()

	eng := engine.New(store, taskAPI)
	if err := eng.Hydrate(context.Background()); err != nil {
		log.Fatal(err)
	}
	defer eng.Dispose()

	router := api.NewRouter(eng, taskAPI)

	// The write timeout covers handlers that drain the queue inline
	// (connectivity edges, manual sync) against a slow remote API.
	log.Printf("Agent listening addr=:%s backend=%s", port, backend)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	log.Fatal(srv.ListenAndServe())
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func openStateStore(backend string) (ports.StateStore, func(), error) {
	switch backend {
	case "sqlite":
		dbPath := getEnv("DB_PATH", "data/fieldsync.db")
		db, err := openDB(dbPath)
		if err != nil {
			return nil, nil, err
		}
		if err := statestore.InitSchema(db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return statestore.NewSqliteStateStore(db), func() { db.Close() }, nil

	case "redis":
		addr := getEnv("REDIS_ADDR", "localhost:6379")
		deviceID := os.Getenv("DEVICE_ID")
		if strings.TrimSpace(deviceID) == "" {
			return nil, nil, fmt.Errorf("DEVICE_ID is required for the redis backend")
		}
		client := redis.NewClient(&redis.Options{Addr: addr})
		if err := client.Ping(context.Background()).Err(); err != nil {
			return nil, nil, fmt.Errorf("verify redis connection to %q: %w", addr, err)
		}
		return statestore.NewRedisStateStore(client, deviceID), func() { client.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown STATE_BACKEND %q", backend)
	}
}

func openDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("openDB: open sqlite database %q: %w", dbPath, err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("openDB: verify sqlite connection to %q: %w", dbPath, err)
	}

	return db, nil
}
