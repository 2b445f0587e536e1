package store

import (
	"context"
	"errors"
	"time"

	"github.com/libfaes/eventstream/faeserrors"
	"github.com/libfaes/eventstream/model"
	"github.com/sirupsen/logrus"
)

// RetryConfig controls the exponential backoff a ResilientDataStore applies
// to transient failures, mirroring the reconnect backoff the teacher uses
// for its coordinator client.
type RetryConfig struct {
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	MaxAttempts   int // 0 = infinite
}

// DefaultRetryConfig returns sensible defaults: a handful of attempts
// doubling in delay up to five seconds.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		MaxAttempts:   5,
	}
}

// ResilientDataStore decorates a DataStore, retrying Append and Read calls
// that fail with faeserrors.ErrTransientStorage using exponential backoff.
// Non-transient failures (optimistic concurrency conflicts, validation
// errors, contiguity violations) are returned immediately since retrying
// them cannot help.
type ResilientDataStore struct {
	inner  DataStore
	config RetryConfig
	logger *logrus.Entry
}

// NewResilientDataStore wraps inner with retry behavior per config. A nil
// logger falls back to a bare entry over logrus.StandardLogger().
func NewResilientDataStore(inner DataStore, config RetryConfig, logger *logrus.Entry) *ResilientDataStore {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ResilientDataStore{inner: inner, config: config, logger: logger}
}

func (r *ResilientDataStore) retry(ctx context.Context, op string, fn func() error) error {
	delay := r.config.InitialDelay
	attempt := 0
	var lastErr error
	for {
		attempt++
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, faeserrors.ErrTransientStorage) {
			return lastErr
		}
		if r.config.MaxAttempts > 0 && attempt >= r.config.MaxAttempts {
			r.logger.WithFields(logrus.Fields{
				"operation": op,
				"attempts":  attempt,
			}).Warn("resilient data store: giving up after max attempts")
			return lastErr
		}

		r.logger.WithFields(logrus.Fields{
			"operation": op,
			"attempt":   attempt,
			"delay":     delay,
		}).Warn("resilient data store: retrying after transient error")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * r.config.BackoffFactor)
		if delay > r.config.MaxDelay {
			delay = r.config.MaxDelay
		}
	}
}

// Append retries the inner Append on transient failures.
func (r *ResilientDataStore) Append(ctx context.Context, document *model.ObjectDocument, events []model.Event) error {
	return r.retry(ctx, "append", func() error {
		return r.inner.Append(ctx, document, events)
	})
}

// Read retries the inner Read on transient failures.
func (r *ResilientDataStore) Read(ctx context.Context, document *model.ObjectDocument, startVersion int, untilVersion *int) ([]model.Event, error) {
	var out []model.Event
	err := r.retry(ctx, "read", func() error {
		var innerErr error
		out, innerErr = r.inner.Read(ctx, document, startVersion, untilVersion)
		return innerErr
	})
	return out, err
}

// RemoveEventsForFailedCommit delegates to the inner store's Recovery
// implementation, if any, retrying transient failures the same way Append
// and Read do.
func (r *ResilientDataStore) RemoveEventsForFailedCommit(ctx context.Context, document *model.ObjectDocument, fromVersion, toVersion int) (int, error) {
	recovery, ok := r.inner.(Recovery)
	if !ok {
		return 0, faeserrors.ErrNotImplemented
	}
	var removed int
	err := r.retry(ctx, "recover", func() error {
		var innerErr error
		removed, innerErr = recovery.RemoveEventsForFailedCommit(ctx, document, fromVersion, toVersion)
		return innerErr
	})
	return removed, err
}

// Ping delegates to the inner store's Pinger implementation, if any.
func (r *ResilientDataStore) Ping(ctx context.Context) error {
	pinger, ok := r.inner.(Pinger)
	if !ok {
		return nil
	}
	return pinger.Ping(ctx)
}
