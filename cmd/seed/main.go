// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev account license already exists.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"invoicing-session-control/internal/config"
	"invoicing-session-control/internal/db"
	licenserepo "invoicing-session-control/internal/license/repository"
	sessiondomain "invoicing-session-control/internal/session/domain"
	sessionrepo "invoicing-session-control/internal/session/repository"
)

const (
	devAccountID = "dev-account-001"
	devMaxSeats  = 2
	devMaxUsers  = 5
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	licenses := licenserepo.NewPostgresRepository(conn)
	sessions := sessionrepo.NewPostgresRepository(conn)

	existing, err := licenses.GetByAccount(ctx, devAccountID)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Printf("Seed already applied (%s license exists). Skipping.", devAccountID)
		os.Exit(0)
	}

	now := time.Now().UTC()
	maxSeats := devMaxSeats

	if _, err := conn.ExecContext(ctx,
		`INSERT INTO licenses (account_id, expires_at, max_simultaneous_logins, max_users, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		devAccountID, now.AddDate(1, 0, 0),
		sql.NullInt64{Int64: int64(maxSeats), Valid: true}, devMaxUsers, now,
	); err != nil {
		log.Fatalf("create dev license: %v", err)
	}

	// One live seat and one stale seat, so a fresh login exercises reaping.
	live := &sessiondomain.Session{
		ID:               uuid.New().String(),
		AccountID:        devAccountID,
		DeviceDescriptor: "Chrome on macOS",
		LastActivity:     now,
		CreatedAt:        now,
	}
	if err := sessions.Insert(ctx, live); err != nil {
		log.Fatalf("create live session: %v", err)
	}

	stale := &sessiondomain.Session{
		ID:               uuid.New().String(),
		AccountID:        devAccountID,
		DeviceDescriptor: "Firefox on Windows",
		LastActivity:     now.Add(-30 * time.Minute),
		CreatedAt:        now.Add(-2 * time.Hour),
	}
	if err := sessions.Insert(ctx, stale); err != nil {
		log.Fatalf("create stale session: %v", err)
	}

	log.Println("Seed completed successfully.")
	fmt.Printf("Dev account: %s (%d simultaneous logins)\n", devAccountID, devMaxSeats)
}
