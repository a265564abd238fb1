// Package usb reaches a phone attached by cable through the device tool.
package usb

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mmcdole/camroll/internal/adapter/bridge"
	"github.com/mmcdole/camroll/internal/domain"
)

// ID is the backend identifier
const ID = "usb"

// Backend lists and fetches media over USB
type Backend struct {
	client    *bridge.Client
	preferred string // UDID remembered from a previous pairing
	thumbSize int
	logger    *slog.Logger

	mu     sync.Mutex
	udid   string // chosen by the latest probe
	listed string // produced the latest listing; serves fetches
}

// New creates a USB backend. preferred may be empty.
func New(client *bridge.Client, preferred string, thumbSize int, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{client: client, preferred: preferred, thumbSize: thumbSize, logger: logger}
}

func (b *Backend) ID() string { return ID }

// Probe selects an attached USB device, preferring the remembered one
func (b *Backend) Probe(ctx context.Context) bool {
	devices, err := b.client.ListDevices(ctx)
	if err != nil {
		b.logger.Debug("usb probe failed", "error", err)
		return false
	}

	var chosen string
	for _, d := range devices {
		if d.ConnectionType != "" && !strings.EqualFold(d.ConnectionType, "usb") {
			continue
		}
		if chosen == "" || d.UDID == b.preferred {
			chosen = d.UDID
		}
	}
	if chosen == "" {
		return false
	}

	b.mu.Lock()
	b.udid = chosen
	b.mu.Unlock()
	b.logger.Debug("usb device selected", "udid", chosen)
	return true
}

func (b *Backend) device() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.udid == "" {
		return "", fmt.Errorf("usb: %w: no device selected", domain.ErrBackendUnavailable)
	}
	return b.udid, nil
}

// List returns the DCIM contents of the selected device
func (b *Backend) List(ctx context.Context) ([]domain.MediaEntry, error) {
	udid, err := b.device()
	if err != nil {
		return nil, err
	}
	photos, err := b.client.ListPhotos(ctx, udid)
	if err != nil {
		return nil, fmt.Errorf("usb list: %w", err)
	}

	b.mu.Lock()
	b.listed = udid
	b.mu.Unlock()
	return bridge.Entries(photos, ID), nil
}

// Fetch downloads one item from the device that produced the latest listing,
// even if a later probe selected another one
func (b *Backend) Fetch(ctx context.Context, id string, res domain.Resolution) (*domain.Image, error) {
	b.mu.Lock()
	udid := b.listed
	b.mu.Unlock()
	if udid == "" {
		return nil, fmt.Errorf("usb: %w: nothing listed yet", domain.ErrBackendUnavailable)
	}
	return b.client.FetchImage(ctx, udid, id, res, b.thumbSize)
}

// Pair asks the selected (or only) device to trust this host
func (b *Backend) Pair(ctx context.Context) bool {
	udid, _ := b.device()
	if udid == "" && b.Probe(ctx) {
		udid, _ = b.device()
	}
	if udid == "" {
		udid = b.preferred
	}
	return b.client.Pair(ctx, udid)
}

// UDID returns the selected device, empty before a successful probe
func (b *Backend) UDID() string {
	udid, _ := b.device()
	return udid
}

// Info returns lockdown values for the selected device
func (b *Backend) Info(ctx context.Context) (*bridge.DeviceInfo, error) {
	udid, err := b.device()
	if err != nil {
		return nil, err
	}
	return b.client.DeviceInfo(ctx, udid)
}
