package infrastructure

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"
)

// TimeOperation executes an operation and logs its execution time
func TimeOperation(ctx context.Context, name string, operation func() error) error {
	start := time.Now()
	err := operation()
	slog.DebugContext(ctx, "operation finished", "name", name, "took", time.Since(start), "error", err)
	return err
}

// WithTransaction handles a database transaction and executes the given operation
func WithTransaction(db *sql.DB, ctx context.Context, operation func(*sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Unavailable("begin transaction", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p) // re-throw panic after Rollback
		} else if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				slog.ErrorContext(ctx, "Error while rolling back transaction", "error", rbErr)
			}
		} else if cErr := tx.Commit(); cErr != nil {
			err = Unavailable("commit transaction", cErr)
		}
	}()

	err = operation(tx)
	return err
}

// Detach runs a best-effort task in the background. Its failure is logged
// and discarded; the caller never waits for it.
func Detach(ctx context.Context, name string, task func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				slog.ErrorContext(ctx, "detached task panicked", "task", name, "panic", p)
			}
		}()
		if err := task(ctx); err != nil {
			slog.WarnContext(ctx, "detached task failed", "task", name, "error", err)
		}
	}()
}

func GenerateState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
