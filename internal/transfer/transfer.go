// Package transfer copies catalog items from their owning device to a local
// directory, one item at a time, reporting a per-item outcome.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/mmcdole/camroll/internal/domain"
	"github.com/mmcdole/camroll/internal/identity"
)

// Failure reasons
const (
	ReasonUnknown      = "unknown identity"
	ReasonNoSource     = "no source data"
	ReasonCancelled    = "cancelled"
	ReasonNoBackend    = "owning backend unavailable"
	reasonFetchPrefix  = "fetch failed"
	reasonWritePrefix  = "write failed"
	reasonCreatePrefix = "cannot create destination"
)

// EntryLookup finds catalog entries
type EntryLookup interface {
	Lookup(ctx context.Context, identity string) (domain.MediaEntry, bool, error)
}

// BackendRegistry finds backends by ID
type BackendRegistry interface {
	Backend(id string) (domain.Backend, bool)
}

// Coordinator runs transfers
type Coordinator struct {
	entries  EntryLookup
	backends BackendRegistry
	logger   *slog.Logger

	retries         uint64
	initialInterval time.Duration
	maxInterval     time.Duration
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithRetries sets how many times a failed fetch is retried
func WithRetries(n uint64) Option {
	return func(c *Coordinator) { c.retries = n }
}

// WithMaxInterval caps the wait between retries
func WithMaxInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.maxInterval = d
		}
	}
}

// New creates a Coordinator
func New(entries EntryLookup, backends BackendRegistry, logger *slog.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		entries:         entries,
		backends:        backends,
		logger:          logger,
		retries:         3,
		initialInterval: 500 * time.Millisecond,
		maxInterval:     5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Transfer copies each identity to destination in input order. It never
// rolls back: the result lists what was written and why the rest was not.
// Transferred + len(Failures) always equals len(identities).
func (c *Coordinator) Transfer(ctx context.Context, identities []string, destination string) domain.TransferResult {
	result := domain.TransferResult{
		ID:          uuid.NewString(),
		Destination: destination,
		Requested:   len(identities),
		Failures:    []domain.TransferFailure{},
	}
	logger := c.logger.With("transfer", result.ID)

	if err := makeDestination(destination); err != nil {
		reason := fmt.Sprintf("%s: %v", reasonCreatePrefix, err)
		for _, id := range identities {
			result.Failures = append(result.Failures, domain.TransferFailure{Identity: id, Reason: reason})
		}
		logger.Error("transfer destination unusable", "destination", destination, "error", err)
		return result
	}

	claimed := make(map[string]bool)
	for _, id := range identities {
		if reason := c.one(ctx, id, destination, claimed, logger); reason != "" {
			result.Failures = append(result.Failures, domain.TransferFailure{Identity: id, Reason: reason})
			continue
		}
		result.Transferred++
	}

	logger.Info("transfer finished",
		"requested", result.Requested,
		"transferred", result.Transferred,
		"failed", len(result.Failures))
	return result
}

func makeDestination(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("empty path")
	}
	return os.MkdirAll(dir, 0755)
}

// one transfers a single item and returns a failure reason, or "" on success
func (c *Coordinator) one(ctx context.Context, id, dest string, claimed map[string]bool, logger *slog.Logger) string {
	if ctx.Err() != nil {
		return ReasonCancelled
	}

	entry, ok, err := c.entries.Lookup(ctx, id)
	if err != nil {
		return ReasonCancelled
	}
	if !ok {
		return ReasonUnknown
	}
	if identity.IsSynthetic(id) {
		return ReasonNoSource
	}

	b, ok := c.backends.Backend(entry.OwnerBackendID)
	if !ok {
		return ReasonNoBackend
	}

	img, err := c.fetch(ctx, b, id)
	if err != nil {
		if ctx.Err() != nil {
			return ReasonCancelled
		}
		logger.Warn("transfer fetch failed", "identity", id, "backend", b.ID(), "error", err)
		return fmt.Sprintf("%s: %v", reasonFetchPrefix, err)
	}

	path, err := writeFile(dest, entry.Filename, img.Data, claimed)
	if err != nil {
		logger.Warn("transfer write failed", "identity", id, "error", err)
		return fmt.Sprintf("%s: %v", reasonWritePrefix, err)
	}
	logger.Debug("transferred item", "identity", id, "path", path)
	return ""
}

func (c *Coordinator) fetch(ctx context.Context, b domain.Backend, id string) (*domain.Image, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.initialInterval
	exp.MaxInterval = c.maxInterval
	exp.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, c.retries), ctx)

	var img *domain.Image
	operation := func() error {
		got, err := b.Fetch(ctx, id, domain.ResolutionFull)
		switch {
		case errors.Is(err, domain.ErrInvalidIdentity), errors.Is(err, domain.ErrAccessDenied):
			return backoff.Permanent(err)
		case err != nil:
			return err
		case got == nil || got.Placeholder || len(got.Data) == 0:
			return backoff.Permanent(fmt.Errorf("%w: no image data", domain.ErrFetchFailed))
		}
		img = got
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return img, nil
}

// writeFile writes data under dest atomically, choosing a name that does not
// collide with an existing file or one written earlier in the same batch.
func writeFile(dest, filename string, data []byte, claimed map[string]bool) (string, error) {
	name := filepath.Base(filename)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "", fmt.Errorf("invalid filename %q", filename)
	}

	path := uniquePath(dest, name, claimed)

	tmp, err := os.CreateTemp(dest, ".camroll-*")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", err
	}
	claimed[path] = true
	return path, nil
}

func uniquePath(dest, name string, claimed map[string]bool) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	path := filepath.Join(dest, name)
	for i := 1; taken(path, claimed); i++ {
		path = filepath.Join(dest, fmt.Sprintf("%s_%d%s", stem, i, ext))
	}
	return path
}

func taken(path string, claimed map[string]bool) bool {
	if claimed[path] {
		return true
	}
	_, err := os.Stat(path)
	return err == nil
}
