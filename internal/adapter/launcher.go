package adapter

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
)

// Launcher opens image files in an external viewer
type Launcher struct {
	command string   // configured viewer command, empty for auto-detection
	args    []string // additional arguments for the viewer
	logger  *slog.Logger

	lookPath func(string) (string, error)
	start    func(name string, args ...string) error
}

// viewerPath is one way to start a viewer. "open-a:" paths go through macOS open -a.
type viewerPath struct {
	path string
}

// viewers maps platform to the viewers to try, in order
var viewers = map[string][]viewerPath{
	"darwin":  {{path: "open-a:Preview"}},
	"linux":   {{path: "eog"}, {path: "gwenview"}, {path: "feh"}, {path: "sxiv"}, {path: "display"}},
	"windows": {{path: "mspaint"}},
}

// NewLauncher creates a Launcher that prefers command when set
func NewLauncher(command string, args []string, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{
		command:  command,
		args:     args,
		logger:   logger,
		lookPath: exec.LookPath,
		start: func(name string, args ...string) error {
			return exec.Command(name, args...).Start()
		},
	}
}

// Open shows the file at path
func (l *Launcher) Open(path string) error {
	// Tier 1: configured viewer
	if l.command != "" {
		l.logger.Info("using configured viewer", "command", l.command, "path", path)
		args := append(append([]string{}, l.args...), path)
		return l.start(l.command, args...)
	}

	// Tier 2: known viewers for this platform
	if name, err := l.detectAndOpen(path); err == nil {
		l.logger.Info("opened with detected viewer", "viewer", name)
		return nil
	}

	// Tier 3: system default handler
	l.logger.Info("no candidate viewers found, using system default")
	return l.openDefault(path)
}

func (l *Launcher) detectAndOpen(path string) (string, error) {
	candidates, ok := viewers[runtime.GOOS]
	if !ok {
		candidates = viewers["linux"]
	}

	for _, vp := range candidates {
		var err error
		if app, ok := strings.CutPrefix(vp.path, "open-a:"); ok {
			err = l.start("open", "-a", app, path)
		} else if _, err = l.lookPath(vp.path); err == nil {
			err = l.start(vp.path, path)
		}
		if err == nil {
			return vp.path, nil
		}
		l.logger.Debug("viewer not available", "path", vp.path, "error", err)
	}

	return "", fmt.Errorf("no candidate viewers found")
}

func (l *Launcher) openDefault(path string) error {
	l.logger.Info("launching with system default", "os", runtime.GOOS, "path", path)
	switch runtime.GOOS {
	case "darwin":
		return l.start("open", path)
	case "windows":
		return l.start("cmd", "/c", "start", "", path)
	default:
		return l.start("xdg-open", path)
	}
}
