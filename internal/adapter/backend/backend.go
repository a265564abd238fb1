// Package backend builds the configured device backends in priority order.
package backend

import (
	"fmt"
	"log/slog"

	"github.com/mmcdole/camroll/internal/adapter"
	"github.com/mmcdole/camroll/internal/adapter/backend/network"
	"github.com/mmcdole/camroll/internal/adapter/backend/platform"
	"github.com/mmcdole/camroll/internal/adapter/backend/synthetic"
	"github.com/mmcdole/camroll/internal/adapter/backend/usb"
	"github.com/mmcdole/camroll/internal/adapter/bridge"
	"github.com/mmcdole/camroll/internal/domain"
)

// New creates a single backend of the given type
func New(kind adapter.BackendType, cfg *adapter.Config, tool *bridge.Client, logger *slog.Logger) (domain.Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("backend config is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("backend", string(kind))

	switch kind {
	case adapter.BackendUSB:
		if tool == nil {
			return nil, fmt.Errorf("usb backend requires a device tool")
		}
		return usb.New(tool, cfg.Device.UDID, cfg.Thumbnails.Size, logger), nil

	case adapter.BackendNetwork:
		if tool == nil {
			return nil, fmt.Errorf("network backend requires a device tool")
		}
		return network.New(tool, cfg.Thumbnails.Size, logger), nil

	case adapter.BackendPlatform:
		var opts []platform.Option
		if !cfg.Platform.VolumeScan {
			opts = append(opts, platform.WithoutVolumeScan())
		}
		return platform.New(cfg.Platform.Roots, cfg.Platform.MaxDepth, cfg.Thumbnails.Size, logger, opts...), nil

	case adapter.BackendSynthetic:
		return synthetic.New(cfg.Synthetic.Count, logger), nil

	default:
		return nil, fmt.Errorf("unknown backend type: %s", kind)
	}
}

// NewToolClient creates the device tool client from config
func NewToolClient(cfg *adapter.Config, logger *slog.Logger) *bridge.Client {
	return bridge.NewClient(cfg.Bridge.Command, cfg.Bridge.Args, logger,
		bridge.WithTimeout(cfg.Bridge.Timeout),
		bridge.WithPairCommand(cfg.Bridge.PairCmd),
	)
}

// FromConfig creates every backend named in resolver.order, in that order,
// followed by the synthetic fallback. Duplicate entries are ignored.
func FromConfig(cfg *adapter.Config, logger *slog.Logger) ([]domain.Backend, error) {
	tool := NewToolClient(cfg, logger)

	var backends []domain.Backend
	for _, kind := range adapter.SyntheticLast(cfg.Resolver.Order) {
		b, err := New(kind, cfg, tool, logger)
		if err != nil {
			return nil, err
		}
		backends = append(backends, b)
	}
	return backends, nil
}
