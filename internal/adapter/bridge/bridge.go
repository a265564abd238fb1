// Package bridge drives the external device tool that speaks to phones over
// USB or the network. The tool prints one JSON document per invocation and
// reports failures as {"error": "..."}.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/mmcdole/camroll/internal/domain"
)

// RunFunc executes a command and returns its stdout
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Device is one phone reported by the tool
type Device struct {
	UDID           string `json:"udid"`
	ConnectionType string `json:"connection_type"`
}

// DeviceInfo holds lockdown values for one device
type DeviceInfo struct {
	DeviceName     string `json:"DeviceName"`
	ProductType    string `json:"ProductType"`
	ProductVersion string `json:"ProductVersion"`
	UniqueDeviceID string `json:"UniqueDeviceID"`
}

// Photo is one DCIM file on the device
type Photo struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Folder   string `json:"folder"`
	Size     int64  `json:"size,omitempty"`
	Created  int64  `json:"created,omitempty"`  // unix seconds
	Modified int64  `json:"modified,omitempty"` // unix seconds
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

type toolError struct {
	Error   string `json:"error"`
	Install string `json:"install"`
}

type photoList struct {
	Photos []Photo `json:"photos"`
	Total  int     `json:"total"`
}

// Client invokes the device tool
type Client struct {
	command string
	args    []string
	pairCmd string
	host    string
	timeout time.Duration
	run     RunFunc
	logger  *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithRunner replaces process execution, used by tests
func WithRunner(run RunFunc) Option {
	return func(c *Client) { c.run = run }
}

// WithPairCommand sets the pairing tool, e.g. "idevicepair"
func WithPairCommand(cmd string) Option {
	return func(c *Client) { c.pairCmd = cmd }
}

// WithTimeout bounds every invocation
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient creates a Client that runs command with args prepended to every call
func NewClient(command string, args []string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		command: command,
		args:    args,
		timeout: 30 * time.Second,
		run:     execRun,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ForHost returns a copy of the client that reaches the device over the network
func (c *Client) ForHost(address string) *Client {
	cp := *c
	cp.host = address
	return &cp
}

// Host returns the network address, empty for USB
func (c *Client) Host() string {
	return c.host
}

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil && stdout.Len() == 0 {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	// The tool exits non-zero with a JSON error on stdout; let the caller parse it.
	return stdout.Bytes(), nil
}

// invoke runs one tool command and decodes its JSON output into dest
func (c *Client) invoke(ctx context.Context, dest any, fallback error, command string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	full := append([]string{}, c.args...)
	if c.host != "" {
		full = append(full, "--host", c.host)
	}
	full = append(full, command)
	full = append(full, args...)

	c.logger.Debug("invoking device tool", "command", command, "host", c.host)

	out, err := c.run(ctx, c.command, full...)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", command, domain.ErrTimeout)
		}
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w: %v", command, domain.ErrBackendUnavailable, err)
		}
		return fmt.Errorf("%s: %w: %v", command, fallback, err)
	}

	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return fmt.Errorf("%s: %w: empty output", command, fallback)
	}

	if out[0] == '{' {
		var te toolError
		if err := json.Unmarshal(out, &te); err == nil && te.Error != "" {
			return fmt.Errorf("%s: %w: %s", command, classify(te, fallback), te.Error)
		}
	}

	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(out, dest); err != nil {
		return fmt.Errorf("%s: %w: malformed output: %v", command, fallback, err)
	}
	return nil
}

// accessMarkers identify lockdown failures caused by a locked or untrusted device
var accessMarkers = []string{
	"passwordprotected",
	"password protected",
	"notpaired",
	"not paired",
	"pairingdialog",
	"trust",
	"locked",
	"invalidhostid",
	"usermessageprompt",
}

var unavailableMarkers = []string{
	"not installed",
	"no device",
	"device not found",
	"no such device",
	"connection refused",
	"unable to connect",
}

func classify(te toolError, fallback error) error {
	msg := strings.ToLower(te.Error)
	if te.Install != "" {
		return domain.ErrBackendUnavailable
	}
	for _, m := range accessMarkers {
		if strings.Contains(msg, m) {
			return domain.ErrAccessDenied
		}
	}
	for _, m := range unavailableMarkers {
		if strings.Contains(msg, m) {
			return domain.ErrBackendUnavailable
		}
	}
	return fallback
}

// ListDevices returns the attached devices
func (c *Client) ListDevices(ctx context.Context) ([]Device, error) {
	var devices []Device
	if err := c.invoke(ctx, &devices, domain.ErrBackendUnavailable, "list_devices"); err != nil {
		return nil, err
	}
	return devices, nil
}

// DeviceInfo returns lockdown values for udid
func (c *Client) DeviceInfo(ctx context.Context, udid string) (*DeviceInfo, error) {
	var info DeviceInfo
	if err := c.invoke(ctx, &info, domain.ErrBackendUnavailable, "device_info", udid); err != nil {
		return nil, err
	}
	return &info, nil
}

// ListPhotos returns every DCIM file on the device
func (c *Client) ListPhotos(ctx context.Context, udid string) ([]Photo, error) {
	var list photoList
	if err := c.invoke(ctx, &list, domain.ErrBackendUnavailable, "list_photos", udid); err != nil {
		return nil, err
	}
	return list.Photos, nil
}

// GetPhoto downloads one file through a temporary file
func (c *Client) GetPhoto(ctx context.Context, udid, path string) ([]byte, error) {
	tmp, err := os.CreateTemp("", "camroll-*")
	if err != nil {
		return nil, fmt.Errorf("get_photo: %w: %v", domain.ErrFetchFailed, err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := c.invoke(ctx, nil, domain.ErrFetchFailed, "get_photo", udid, path, tmpPath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("get_photo: %w: %v", domain.ErrFetchFailed, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("get_photo: %w: empty file", domain.ErrFetchFailed)
	}
	return data, nil
}

// Pair runs the pairing tool against udid and reports success
func (c *Client) Pair(ctx context.Context, udid string) bool {
	if c.pairCmd == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := []string{"pair"}
	if udid != "" {
		args = []string{"-u", udid, "pair"}
	}
	out, err := c.run(ctx, c.pairCmd, args...)
	if err != nil {
		c.logger.Warn("pairing failed", "udid", udid, "error", err)
		return false
	}
	ok := strings.Contains(string(out), "SUCCESS")
	c.logger.Info("pairing finished", "udid", udid, "success", ok)
	return ok
}
