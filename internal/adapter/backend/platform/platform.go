// Package platform finds phone storage the operating system already exposes
// as a mounted volume with a DCIM folder.
package platform

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mmcdole/camroll/internal/domain"
	"github.com/mmcdole/camroll/internal/identity"
	"github.com/mmcdole/camroll/internal/media"
	"github.com/shirou/gopsutil/v4/disk"
)

// ID is the backend identifier
const ID = "platform"

// MountsFunc returns candidate mount points
type MountsFunc func(ctx context.Context) ([]string, error)

// Backend reads media from DCIM folders on mounted volumes
type Backend struct {
	roots     []string
	mounts    MountsFunc
	maxDepth  int
	thumbSize int
	logger    *slog.Logger

	mu   sync.Mutex
	dcim []string
}

// Option configures a Backend
type Option func(*Backend)

// WithMounts replaces volume enumeration, used by tests
func WithMounts(fn MountsFunc) Option {
	return func(b *Backend) { b.mounts = fn }
}

// WithoutVolumeScan restricts the search to configured roots
func WithoutVolumeScan() Option {
	return func(b *Backend) { b.mounts = nil }
}

// New creates a platform backend searching roots plus every mounted partition
func New(roots []string, maxDepth, thumbSize int, logger *slog.Logger, opts ...Option) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Backend{
		roots:     roots,
		mounts:    partitionMounts,
		maxDepth:  maxDepth,
		thumbSize: thumbSize,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func partitionMounts(ctx context.Context) ([]string, error) {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, err
	}
	mounts := make([]string, 0, len(parts))
	for _, p := range parts {
		mounts = append(mounts, p.Mountpoint)
	}
	return mounts, nil
}

func (b *Backend) ID() string { return ID }

// Probe looks for DCIM folders under roots and mounted volumes
func (b *Backend) Probe(ctx context.Context) bool {
	candidates := append([]string{}, b.roots...)
	if b.mounts != nil {
		mounts, err := b.mounts(ctx)
		if err != nil {
			b.logger.Debug("volume enumeration failed", "error", err)
		}
		candidates = append(candidates, mounts...)
	}

	seen := make(map[string]bool)
	var found []string
	for _, root := range candidates {
		if ctx.Err() != nil {
			break
		}
		dir := dcimDir(root)
		if dir == "" || seen[dir] {
			continue
		}
		seen[dir] = true
		found = append(found, dir)
	}

	b.mu.Lock()
	b.dcim = found
	b.mu.Unlock()

	if len(found) > 0 {
		b.logger.Debug("found DCIM folders", "dirs", found)
	}
	return len(found) > 0
}

// dcimDir returns root/DCIM when it is a directory, or root itself when it is named DCIM
func dcimDir(root string) string {
	if root == "" {
		return ""
	}
	if strings.EqualFold(filepath.Base(root), "DCIM") {
		if fi, err := os.Stat(root); err == nil && fi.IsDir() {
			return filepath.Clean(root)
		}
	}
	for _, name := range []string{"DCIM", "dcim"} {
		p := filepath.Join(root, name)
		if fi, err := os.Stat(p); err == nil && fi.IsDir() {
			return p
		}
	}
	return ""
}

func (b *Backend) dirs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.dcim...)
}

// List walks every DCIM folder found by the last probe
func (b *Backend) List(ctx context.Context) ([]domain.MediaEntry, error) {
	dirs := b.dirs()
	if len(dirs) == 0 {
		return nil, fmt.Errorf("platform: %w: no DCIM folder", domain.ErrBackendUnavailable)
	}

	var entries []domain.MediaEntry
	denied := 0
	for _, dir := range dirs {
		found, err := b.walk(ctx, dir)
		if err != nil {
			if errors.Is(err, fs.ErrPermission) {
				b.logger.Warn("DCIM folder not readable", "dir", dir, "error", err)
				denied++
				continue
			}
			if ctx.Err() != nil {
				return nil, fmt.Errorf("platform: %w", domain.ErrTimeout)
			}
			b.logger.Warn("failed to scan DCIM folder", "dir", dir, "error", err)
			continue
		}
		entries = append(entries, found...)
	}

	if len(entries) == 0 && denied > 0 {
		return nil, fmt.Errorf("platform: %w: DCIM not readable, unlock the device", domain.ErrAccessDenied)
	}
	// Folder then filename, the way the device itself lists DCIM
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Folder != b.Folder {
			return a.Folder < b.Folder
		}
		if a.Filename != b.Filename {
			return a.Filename < b.Filename
		}
		return a.Identity < b.Identity
	})
	return entries, nil
}

func (b *Backend) walk(ctx context.Context, root string) ([]domain.MediaEntry, error) {
	// The root itself must be readable; unreadable sub-folders are skipped.
	if _, err := os.ReadDir(root); err != nil {
		return nil, err
	}

	var entries []domain.MediaEntry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			b.logger.Debug("skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()
		if path != root && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			rel, _ := filepath.Rel(root, path)
			if rel != "." && strings.Count(rel, string(filepath.Separator))+1 > b.maxDepth {
				return filepath.SkipDir
			}
			return nil
		}

		if !media.IsMediaFile(name) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		entry := domain.MediaEntry{
			Identity:       identity.Encode(abs),
			Filename:       name,
			Folder:         filepath.Base(filepath.Dir(path)),
			CreatedAt:      info.ModTime().UTC(),
			ModifiedAt:     info.ModTime().UTC(),
			SizeBytes:      info.Size(),
			OwnerBackendID: ID,
		}
		if w, h, ok := media.FileDimensions(path); ok {
			entry.Width, entry.Height = w, h
		}
		entries = append(entries, entry)
		return nil
	})
	return entries, err
}

// Fetch reads one file, refusing paths outside the probed DCIM folders
func (b *Backend) Fetch(ctx context.Context, id string, res domain.Resolution) (*domain.Image, error) {
	path, err := identity.Decode(id)
	if err != nil {
		return nil, err
	}
	if !b.owns(path) {
		return nil, fmt.Errorf("platform: %w: %s is outside DCIM", domain.ErrFetchFailed, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("platform: %w: %v", domain.ErrAccessDenied, err)
		}
		return nil, fmt.Errorf("platform: %w: %v", domain.ErrFetchFailed, err)
	}

	if res == domain.ResolutionFull {
		return &domain.Image{Data: data, MIMEType: media.MIMEType(path)}, nil
	}
	thumb, err := media.Thumbnail(data, b.thumbSize)
	if err != nil {
		return nil, fmt.Errorf("platform: %w: %v", domain.ErrFetchFailed, err)
	}
	return &domain.Image{Data: thumb, MIMEType: "image/jpeg"}, nil
}

func (b *Backend) owns(path string) bool {
	clean := filepath.Clean(path)
	for _, dir := range b.dirs() {
		abs, err := filepath.Abs(dir)
		if err != nil {
			abs = dir
		}
		rel, err := filepath.Rel(abs, clean)
		if err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
			return true
		}
	}
	return false
}

// Pair is not applicable to mounted volumes
func (b *Backend) Pair(ctx context.Context) bool { return false }
