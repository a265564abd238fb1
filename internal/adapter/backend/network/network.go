// Package network reaches a phone over Wi-Fi using addresses found by discovery.
package network

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mmcdole/camroll/internal/adapter/bridge"
	"github.com/mmcdole/camroll/internal/domain"
)

// ID is the backend identifier
const ID = "network"

// Backend lists and fetches media from a discovered network device
type Backend struct {
	client    *bridge.Client
	thumbSize int
	logger    *slog.Logger

	mu       sync.Mutex
	devices  []domain.DeviceDescriptor
	selected session // chosen by the latest probe
	listed   session // produced the latest listing; serves fetches
}

// session is one reachable device
type session struct {
	client *bridge.Client
	udid   string
}

// New creates a network backend
func New(client *bridge.Client, thumbSize int, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{client: client, thumbSize: thumbSize, logger: logger}
}

func (b *Backend) ID() string { return ID }

// UseDevices keeps the network descriptors from the latest discovery
func (b *Backend) UseDevices(devices []domain.DeviceDescriptor) {
	var network []domain.DeviceDescriptor
	for _, d := range devices {
		if d.Transport == domain.TransportNetwork && d.Address != "" {
			network = append(network, d)
		}
	}
	b.mu.Lock()
	b.devices = network
	b.selected = session{}
	b.mu.Unlock()
}

// Probe tries each discovered device until one answers
func (b *Backend) Probe(ctx context.Context) bool {
	b.mu.Lock()
	devices := append([]domain.DeviceDescriptor(nil), b.devices...)
	b.mu.Unlock()

	for _, d := range devices {
		c := b.client.ForHost(d.Address)
		found, err := c.ListDevices(ctx)
		if err != nil {
			b.logger.Debug("network device did not answer", "device", d.ID, "address", d.Address, "error", err)
			continue
		}
		udid := d.ID
		if len(found) > 0 && found[0].UDID != "" {
			udid = found[0].UDID
		}
		b.mu.Lock()
		b.selected = session{client: c, udid: udid}
		b.mu.Unlock()
		b.logger.Debug("network device selected", "device", d.DisplayName, "address", d.Address)
		return true
	}
	return false
}

// List returns the DCIM contents of the selected device. A successful
// listing makes that device the one later fetches go to.
func (b *Backend) List(ctx context.Context) ([]domain.MediaEntry, error) {
	b.mu.Lock()
	s := b.selected
	b.mu.Unlock()
	if s.client == nil {
		return nil, fmt.Errorf("network: %w: no device selected", domain.ErrBackendUnavailable)
	}

	photos, err := s.client.ListPhotos(ctx, s.udid)
	if err != nil {
		return nil, fmt.Errorf("network list: %w", err)
	}

	b.mu.Lock()
	b.listed = s
	b.mu.Unlock()
	return bridge.Entries(photos, ID), nil
}

// Fetch downloads one item from the device that produced the latest listing,
// which stays valid while discovery and probing pick a new device
func (b *Backend) Fetch(ctx context.Context, id string, res domain.Resolution) (*domain.Image, error) {
	b.mu.Lock()
	s := b.listed
	b.mu.Unlock()
	if s.client == nil {
		return nil, fmt.Errorf("network: %w: nothing listed yet", domain.ErrBackendUnavailable)
	}
	return s.client.FetchImage(ctx, s.udid, id, res, b.thumbSize)
}

// Pair is only possible over USB
func (b *Backend) Pair(ctx context.Context) bool { return false }
