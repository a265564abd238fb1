package domain

import (
	"encoding/base64"
	"strings"
	"time"
)

// TransportKind describes how a device is reached
type TransportKind string

const (
	TransportUSB     TransportKind = "usb"
	TransportNetwork TransportKind = "network"
)

// DeviceDescriptor describes a device seen during one discovery cycle
type DeviceDescriptor struct {
	ID          string
	DisplayName string
	Transport   TransportKind
	Address     string // host:port for network devices, empty for USB
}

// MediaEntry is one photo or video in the catalog
type MediaEntry struct {
	Identity       string
	Filename       string
	Folder         string // DCIM sub-folder, e.g. "100APPLE"
	CreatedAt      time.Time
	ModifiedAt     time.Time
	SizeBytes      int64
	Width          int
	Height         int
	OwnerBackendID string
}

// IsVideo reports whether the entry is a video by extension
func (e MediaEntry) IsVideo() bool {
	lower := strings.ToLower(e.Filename)
	return strings.HasSuffix(lower, ".mov") || strings.HasSuffix(lower, ".mp4")
}

// Resolution selects between a preview and the original bytes
type Resolution int

const (
	ResolutionThumbnail Resolution = iota
	ResolutionFull
)

func (r Resolution) String() string {
	if r == ResolutionFull {
		return "full"
	}
	return "thumbnail"
}

// Image is an encoded image payload
type Image struct {
	Data        []byte
	MIMEType    string
	Placeholder bool
}

// DataURL renders the image as a data: URL
func (img *Image) DataURL() string {
	return "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// TransferFailure records why one identity was not transferred
type TransferFailure struct {
	Identity string
	Reason   string
}

// TransferResult summarizes a transfer batch.
// Transferred + len(Failures) always equals Requested.
type TransferResult struct {
	ID          string
	Destination string
	Requested   int
	Transferred int
	Failures    []TransferFailure
}
