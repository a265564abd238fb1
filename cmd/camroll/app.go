package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mmcdole/camroll/internal/adapter"
	"github.com/mmcdole/camroll/internal/adapter/backend"
	"github.com/mmcdole/camroll/internal/adapter/bridge"
	"github.com/mmcdole/camroll/internal/adapter/discovery"
	"github.com/mmcdole/camroll/internal/catalog"
	"github.com/mmcdole/camroll/internal/resolver"
	"github.com/mmcdole/camroll/internal/service"
	"github.com/mmcdole/camroll/internal/store"
	"github.com/mmcdole/camroll/internal/thumbnail"
	"github.com/mmcdole/camroll/internal/transfer"
)

// app holds the wired services for one invocation
type app struct {
	cfg    *adapter.Config
	chain  *resolver.Chain
	thumbs *store.ThumbStore
	photos *service.PhotoService
	viewer *service.ViewerService
	logger *slog.Logger
}

func newApp(cfg *adapter.Config, logger *slog.Logger) (*app, error) {
	backends, err := backend.FromConfig(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create backends: %w", err)
	}

	var probes []discovery.Probe
	if cfg.Discovery.MDNS {
		probes = append(probes, &discovery.MDNSProbe{Service: cfg.Discovery.Service})
	}
	if cfg.Discovery.SSDP {
		probes = append(probes, &discovery.SSDPProbe{})
	}

	chain := resolver.New(backends, logger,
		resolver.WithDiscoverer(discovery.New(logger, probes...), cfg.Discovery.Timeout),
		resolver.WithBackendTimeout(cfg.Resolver.BackendTimeout),
	)
	cat := catalog.New(chain, logger)

	thumbs, err := store.NewThumbStore(cfg.Thumbnails.CacheDir, cfg.Device.UDID)
	if err != nil {
		// A locked or unreadable cache only costs speed
		logger.Warn("thumbnail cache unavailable, using memory", "dir", cfg.Thumbnails.CacheDir, "error", err)
		thumbs, _ = store.NewThumbStore("", "")
	}

	images := thumbnail.New(cat, chain, thumbs, cfg.Thumbnails.Concurrency, logger)
	mover := transfer.New(cat, chain, logger,
		transfer.WithRetries(cfg.Transfer.Retries),
		transfer.WithMaxInterval(cfg.Transfer.MaxInterval),
	)
	photos := service.NewPhotoService(chain, cat, images, mover, logger)
	launcher := adapter.NewLauncher(cfg.Viewer.Command, cfg.Viewer.Args, logger)

	return &app{
		cfg:    cfg,
		chain:  chain,
		thumbs: thumbs,
		photos: photos,
		viewer: service.NewViewerService(photos, launcher, "", logger),
		logger: logger,
	}, nil
}

// deviceUDID returns the UDID of the device a backend is talking to, if any
func (a *app) deviceUDID(backendID string) string {
	b, ok := a.chain.Backend(backendID)
	if !ok {
		return ""
	}
	if d, ok := b.(interface{ UDID() string }); ok {
		return d.UDID()
	}
	return ""
}

// deviceInfo asks the backend that produced the catalog for device details
func (a *app) deviceInfo(ctx context.Context, backendID string) *bridge.DeviceInfo {
	b, ok := a.chain.Backend(backendID)
	if !ok {
		return nil
	}
	d, ok := b.(interface {
		Info(ctx context.Context) (*bridge.DeviceInfo, error)
	})
	if !ok {
		return nil
	}
	info, err := d.Info(ctx)
	if err != nil {
		a.logger.Debug("device info unavailable", "backend", backendID, "error", err)
		return nil
	}
	return info
}

func (a *app) close() {
	if a.thumbs == nil {
		return
	}
	if err := a.thumbs.Close(); err != nil {
		a.logger.Warn("failed to close thumbnail cache", "error", err)
	}
	a.thumbs = nil
}
