// Package service is the single entry point the CLI and TUI use to browse,
// preview, and copy device media.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/mmcdole/camroll/internal/catalog"
	"github.com/mmcdole/camroll/internal/domain"
	"github.com/mmcdole/camroll/internal/identity"
	"github.com/mmcdole/camroll/internal/search"
)

const DefaultPageSize = 50

// Resolver is the backend chain as seen by the service
type Resolver interface {
	catalog.Resolver
	Backends() []domain.Backend
	Discover(ctx context.Context) []domain.DeviceDescriptor
}

// Images serves thumbnails and full-size images
type Images interface {
	Get(ctx context.Context, identity string, res domain.Resolution) (*domain.Image, error)
	Prefetch(ctx context.Context, identities []string) error
}

// Transferrer copies items to disk
type Transferrer interface {
	Transfer(ctx context.Context, identities []string, destination string) domain.TransferResult
}

// Status summarises the current catalog
type Status struct {
	State       domain.LoadState
	Source      string
	Total       int
	GeneratedAt time.Time
	Hint        string
	Backends    []string
}

// PhotoService ties the catalog, image provider, and transfer coordinator together.
// Backend errors never escape it; callers see placeholders, empty catalogs,
// and per-item transfer failures instead.
type PhotoService struct {
	resolver Resolver
	catalog  *catalog.Catalog
	images   Images
	transfer Transferrer
	logger   *slog.Logger
}

// NewPhotoService creates a PhotoService
func NewPhotoService(resolver Resolver, cat *catalog.Catalog, images Images, transfer Transferrer, logger *slog.Logger) *PhotoService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PhotoService{
		resolver: resolver,
		catalog:  cat,
		images:   images,
		transfer: transfer,
		logger:   logger,
	}
}

// GetPage returns a page of the catalog, loading it on first use
func (s *PhotoService) GetPage(ctx context.Context, offset, limit int) (domain.Page, error) {
	return s.catalog.GetPage(ctx, offset, limit)
}

// GetThumbnail returns the thumbnail for identity, or a placeholder
func (s *PhotoService) GetThumbnail(ctx context.Context, id string) (*domain.Image, error) {
	return s.images.Get(ctx, id, domain.ResolutionThumbnail)
}

// GetFull returns the full-size image for identity, or a placeholder
func (s *PhotoService) GetFull(ctx context.Context, id string) (*domain.Image, error) {
	return s.images.Get(ctx, id, domain.ResolutionFull)
}

// Prefetch warms the thumbnail cache for every item on page
func (s *PhotoService) Prefetch(ctx context.Context, page domain.Page) error {
	ids := make([]string, len(page.Items))
	for i, e := range page.Items {
		ids[i] = e.Identity
	}
	return s.images.Prefetch(ctx, ids)
}

// Transfer copies identities into destination
func (s *PhotoService) Transfer(ctx context.Context, identities []string, destination string) domain.TransferResult {
	return s.transfer.Transfer(ctx, identities, destination)
}

// Reload re-resolves the catalog in the background
func (s *PhotoService) Reload() {
	s.catalog.Reload()
}

// ReloadAndWait re-resolves the catalog and returns its status
func (s *PhotoService) ReloadAndWait(ctx context.Context) (Status, error) {
	if _, err := s.catalog.ReloadAndWait(ctx); err != nil {
		return Status{}, err
	}
	return s.Status(), nil
}

// Discover runs network discovery on its own
func (s *PhotoService) Discover(ctx context.Context) []domain.DeviceDescriptor {
	return s.resolver.Discover(ctx)
}

// Pair asks each backend in priority order to pair with its device and
// returns the first backend that succeeded. A successful pair triggers a reload.
func (s *PhotoService) Pair(ctx context.Context) (string, bool) {
	for _, b := range s.resolver.Backends() {
		if ctx.Err() != nil {
			return "", false
		}
		if b.Pair(ctx) {
			s.logger.Info("paired device", "backend", b.ID())
			s.catalog.Reload()
			return b.ID(), true
		}
	}
	s.logger.Info("no backend could pair")
	return "", false
}

// Search pages through entries whose filename matches query
func (s *PhotoService) Search(ctx context.Context, query string, offset, limit int, kinds ...search.Kind) (domain.Page, error) {
	cat, err := s.catalog.Current(ctx)
	if err != nil {
		return domain.Page{}, err
	}
	matched := search.Entries(search.Filter(query, cat.Entries(), kinds...))
	filtered := domain.NewCatalog(matched, cat.SourceBackendID, cat.GeneratedAt)
	return catalog.Paginate(filtered, offset, limit), nil
}

// Lookup returns the catalog entry for identity
func (s *PhotoService) Lookup(ctx context.Context, id string) (domain.MediaEntry, error) {
	if err := identity.Validate(id); err != nil {
		return domain.MediaEntry{}, err
	}
	e, ok, err := s.catalog.Lookup(ctx, id)
	if err != nil {
		return domain.MediaEntry{}, err
	}
	if !ok {
		return domain.MediaEntry{}, domain.ErrNotFound
	}
	return e, nil
}

// Status reports the committed catalog without triggering a load
func (s *PhotoService) Status() Status {
	st := Status{State: s.catalog.State(), Source: domain.NoBackend}
	for _, b := range s.resolver.Backends() {
		st.Backends = append(st.Backends, b.ID())
	}
	if cat := s.catalog.Snapshot(); cat != nil {
		st.Source = cat.SourceBackendID
		st.Total = cat.Len()
		st.GeneratedAt = cat.GeneratedAt
		st.Hint = cat.Hint
	}
	return st
}
