package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"fieldsync-agent/internal/adapters/statestore"
	"fieldsync-agent/internal/platform/db"
	"fieldsync-agent/internal/platform/obs"
)

// dbtool uploads a device's local engine snapshot into the central fleet-ops
// Postgres archive, so support can inspect a driver's queued actions and
// task state after an incident without the device in hand.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if strings.TrimSpace(databaseURL) == "" {
		log.Fatal("DATABASE_URL is required")
	}
	deviceID := os.Getenv("DEVICE_ID")
	if strings.TrimSpace(deviceID) == "" {
		log.Fatal("DEVICE_ID is required")
	}
	dbPath := getEnv("DB_PATH", "data/fieldsync.db")

	local, err := sql.Open("sqlite", dbPath)
	if err != nil {
		log.Fatalf("open device database %q: %v", dbPath, err)
	}
	defer local.Close()

	archive, err := db.Open(databaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer archive.Close()

	if err := uploadSnapshot(context.Background(), local, archive, deviceID); err != nil {
		log.Fatal(err)
	}
	log.Printf("snapshot archived device=%s", deviceID)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func uploadSnapshot(ctx context.Context, local, archive *sql.DB, deviceID string) (err error) {
	defer obs.Time(ctx, "archive_snapshot")(&err)

	store := statestore.NewSqliteStateStore(local)
	snap, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("upload snapshot: %w", err)
	}

	_, err = archive.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS snapshot_archive (
        id BIGSERIAL PRIMARY KEY,
        device_id TEXT NOT NULL,
        schema_version INT NOT NULL,
        snapshot JSONB NOT NULL,
        archived_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );
	`)
	if err != nil {
		return fmt.Errorf("upload snapshot: create archive table: %w", err)
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("upload snapshot: marshal: %w", err)
	}

	_, err = archive.ExecContext(ctx, `
	INSERT INTO snapshot_archive (device_id, schema_version, snapshot)
    VALUES ($1, $2, $3)
	`, deviceID, snap.SchemaVersion, raw)
	if err != nil {
		return fmt.Errorf("upload snapshot: insert: %w", err)
	}

	return nil
}
