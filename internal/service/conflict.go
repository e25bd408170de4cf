package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"github.com/noah-isme/fortress-api/internal/observability"
)

const (
	defaultRetryBudget     = 5
	retryInitialInterval   = 10 * time.Millisecond
	retryMaxInterval       = 250 * time.Millisecond
	retryRandomFactor      = 0.5
	retryBackOffMultiplier = 2
)

// Postgres SQLSTATE codes that mean "try again".
var transientPgCodes = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"23505": {}, // unique_violation
	"55P03": {}, // lock_not_available
}

// isTransientConflict reports whether err is a write conflict that a retry can resolve.
func isTransientConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		_, ok := transientPgCodes[pgErr.Code]
		return ok
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return true
		}
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}

	return false
}

func newRetryBackOff() backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retryInitialInterval
	policy.MaxInterval = retryMaxInterval
	policy.RandomizationFactor = retryRandomFactor
	policy.Multiplier = retryBackOffMultiplier
	return policy
}

// retryOnConflict runs op until it succeeds, fails with a non-conflict error, or the
// attempt budget runs out. An exhausted budget is reported as ErrLedgerRetryExhausted.
func retryOnConflict[T any](ctx context.Context, budget uint, operation string, op func() (T, error)) (T, error) {
	if budget == 0 {
		budget = defaultRetryBudget
	}

	attempt := uint(0)
	result, err := backoff.Retry(ctx, func() (T, error) {
		attempt++
		value, err := op()
		if err == nil {
			return value, nil
		}
		if isTransientConflict(err) {
			if attempt < budget {
				observability.ConflictRetriesTotal().WithLabelValues(operation).Inc()
			}
			return value, err
		}
		return value, backoff.Permanent(err)
	}, backoff.WithBackOff(newRetryBackOff()), backoff.WithMaxTries(budget))

	if err == nil {
		return result, nil
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}
	if isTransientConflict(err) {
		observability.ConflictsExhaustedTotal().WithLabelValues(operation).Inc()
		var zero T
		return zero, errors.Join(ErrLedgerRetryExhausted, err)
	}
	return result, err
}
