package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// launcher abstracts the external image viewer (consumer-defined interface)
type launcher interface {
	Open(path string) error
}

// ViewerService opens full-size images in an external viewer
type ViewerService struct {
	photos   *PhotoService
	launcher launcher
	tempDir  string
	logger   *slog.Logger
}

// NewViewerService creates a ViewerService. Images are staged in tempDir,
// or the system temp directory when it is empty.
func NewViewerService(photos *PhotoService, launcher launcher, tempDir string, logger *slog.Logger) *ViewerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ViewerService{
		photos:   photos,
		launcher: launcher,
		tempDir:  tempDir,
		logger:   logger,
	}
}

// Open fetches the full-size image for identity, writes it to a temp file,
// and hands that file to the viewer. It returns the staged path.
func (s *ViewerService) Open(ctx context.Context, id string) (string, error) {
	entry, err := s.photos.Lookup(ctx, id)
	if err != nil {
		return "", err
	}
	img, err := s.photos.GetFull(ctx, id)
	if err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(entry.Filename))
	if img.Placeholder {
		ext = ".svg"
	}

	f, err := os.CreateTemp(s.tempDir, "camroll-*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to stage image: %w", err)
	}
	if _, err := f.Write(img.Data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to stage image: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to stage image: %w", err)
	}

	s.logger.Info("opening image", "identity", id, "filename", entry.Filename, "path", f.Name())
	return f.Name(), s.launcher.Open(f.Name())
}
