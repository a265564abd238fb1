package domain

import "context"

// Backend is one strategy for reaching device media.
// Implementations: usb, network, platform, synthetic.
type Backend interface {
	// ID returns a stable identifier such as "usb" or "synthetic"
	ID() string

	// Probe reports whether the backend can currently reach a device
	Probe(ctx context.Context) bool

	// List returns every media entry on the device. An empty device is (nil, nil).
	List(ctx context.Context) ([]MediaEntry, error)

	// Fetch returns the image for an identity previously produced by List
	Fetch(ctx context.Context, identity string, res Resolution) (*Image, error)

	// Pair asks the device to trust this host
	Pair(ctx context.Context) bool
}

// DeviceAware backends receive the descriptors found by discovery before each pass
type DeviceAware interface {
	UseDevices(devices []DeviceDescriptor)
}
