package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// TxBeginner starts sqlx transactions. *sqlx.DB satisfies it.
type TxBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// WithTx runs fn inside a transaction, committing on success and rolling back on error or panic.
func WithTx(ctx context.Context, db TxBeginner, fn func(tx *sqlx.Tx) error) (err error) {
	if db == nil {
		return errors.New("transaction provider missing")
	}
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// RetryPolicy bounds whole-unit retries of transactional work.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// Retry re-runs fn while it fails with a transient error, up to policy.Attempts times.
// The backoff grows linearly per attempt and honours ctx cancellation.
func Retry(ctx context.Context, policy RetryPolicy, fn func(attempt int) error) error {
	if policy.Attempts <= 0 {
		policy.Attempts = 1
	}
	var err error
	for attempt := 1; attempt <= policy.Attempts; attempt++ {
		err = fn(attempt)
		if err == nil || !IsTransient(err) || attempt == policy.Attempts {
			return err
		}
		if policy.Backoff > 0 {
			timer := time.NewTimer(time.Duration(attempt) * policy.Backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return err
}

// IsTransient reports whether err is a failure worth retrying as a whole unit:
// serialization failures, deadlocks, lost connections and lock timeouts.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "40", "53", "57":
			return true
		}
		return pqErr.Code == "55P03"
	}
	return false
}
