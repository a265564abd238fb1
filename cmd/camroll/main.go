package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/camroll/internal/adapter"
	"github.com/mmcdole/camroll/internal/domain"
	"github.com/mmcdole/camroll/internal/media"
	"github.com/mmcdole/camroll/internal/service"
	"github.com/mmcdole/camroll/internal/tui"
	"github.com/mmcdole/camroll/internal/tui/styles"
	"golang.org/x/term"
)

// Version is set at build time via -ldflags
var Version = "dev"

const usageText = `Usage: camroll [-config path] [-v] <command> [args]

Commands:
  browse                     interactive browser (default on a terminal)
  list [-offset N] [-limit N] [-q query]
                             print a page of the camera roll
  devices                    discover network devices
  thumb <identity> <out>     write a thumbnail ("-" for stdout)
  full <identity> <out>      write the full-size image ("-" for stdout)
  open <identity>            open the full-size image in a viewer
  transfer [-all] <dest> [identity...]
                             copy items into a directory
  pair                       pair with the connected device
  status                     resolve the camera roll and report its source
  clear-cache                delete cached thumbnails
`

func main() {
	var (
		showVersion bool
		verbose     bool
		configPath  string
	)
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.BoolVar(&verbose, "v", false, "log to stderr at debug level")
	flag.StringVar(&configPath, "config", "", "config file (default ~/.config/camroll/config.yaml)")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usageText)
		fmt.Fprintln(os.Stderr, "\nFlags:")
		flag.PrintDefaults()
	}
	flag.Parse()

	if showVersion {
		fmt.Printf("camroll %s\n", Version)
		return
	}

	if err := run(configPath, verbose, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, verbose bool, args []string) error {
	cfg, err := adapter.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if verbose {
		cfg.Logging.File = "-"
		cfg.Logging.Level = "debug"
	}

	logger, err := adapter.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = adapter.NullLogger()
	}
	slog.SetDefault(logger)

	logger.Info("starting camroll", "version", Version)

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	command := "list"
	if term.IsTerminal(int(os.Stdout.Fd())) {
		command = "browse"
	}
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	switch command {
	case "browse":
		return a.browse()
	case "list":
		return a.list(ctx, args)
	case "devices":
		return a.devices(ctx)
	case "thumb":
		return a.writeImage(ctx, command, args, a.photos.GetThumbnail)
	case "full":
		return a.writeImage(ctx, command, args, a.photos.GetFull)
	case "open":
		return a.open(ctx, args)
	case "transfer":
		return a.transfer(ctx, args)
	case "pair":
		return a.pair(ctx)
	case "status":
		return a.status(ctx)
	case "clear-cache":
		return a.clearCache()
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) browse() error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("browse needs a terminal; try 'camroll list'")
	}

	model := tui.NewModel(a.photos, a.viewer, 0, defaultDestination())
	p := tea.NewProgram(model, tea.WithAltScreen())

	a.logger.Info("starting TUI")
	if _, err := p.Run(); err != nil {
		a.logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}
	a.logger.Info("shutting down")
	return nil
}

func (a *app) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	offset := fs.Int("offset", 0, "first item")
	limit := fs.Int("limit", service.DefaultPageSize, "items per page")
	query := fs.String("q", "", "fuzzy filename filter")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var page domain.Page
	err := withSpinner("Reading camera roll...", func() error {
		var err error
		if *query != "" {
			page, err = a.photos.Search(ctx, *query, *offset, *limit)
		} else {
			page, err = a.photos.GetPage(ctx, *offset, *limit)
		}
		return err
	})
	if err != nil {
		return err
	}

	a.printSource()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "IDENTITY\tFILENAME\tFOLDER\tCREATED\tSIZE")
	for _, e := range page.Items {
		created := ""
		if !e.CreatedAt.IsZero() {
			created = e.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Identity, e.Filename, e.Folder, created, styles.HumanBytes(e.SizeBytes))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	end := page.Offset + len(page.Items)
	if len(page.Items) == 0 {
		fmt.Fprintf(os.Stderr, "0 of %d items\n", page.Total)
	} else {
		fmt.Fprintf(os.Stderr, "%d-%d of %d items\n", page.Offset+1, end, page.Total)
	}
	return nil
}

func (a *app) devices(ctx context.Context) error {
	var found []domain.DeviceDescriptor
	withSpinner("Discovering devices...", func() error {
		found = a.photos.Discover(ctx)
		return nil
	})
	if len(found) == 0 {
		fmt.Println("No network devices found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTRANSPORT\tADDRESS")
	for _, d := range found {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.ID, d.DisplayName, d.Transport, d.Address)
	}
	return w.Flush()
}

func (a *app) writeImage(ctx context.Context, command string, args []string, get func(context.Context, string) (*domain.Image, error)) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: camroll %s <identity> <out>", command)
	}
	id, out := args[0], args[1]

	var img *domain.Image
	err := withSpinner("Fetching image...", func() error {
		var err error
		img, err = get(ctx, id)
		return err
	})
	if err != nil {
		return err
	}
	if img.Placeholder {
		fmt.Fprintln(os.Stderr, "Image unavailable; wrote placeholder (SVG)")
	}

	if out == "-" {
		_, err = os.Stdout.Write(img.Data)
		return err
	}
	if err := os.WriteFile(out, img.Data, 0644); err != nil {
		return err
	}
	if w, h, ok := media.Dimensions(img.Data); ok {
		fmt.Fprintf(os.Stderr, "%s: %dx%d %s\n", out, w, h, img.MIMEType)
	}
	return nil
}

func (a *app) open(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: camroll open <identity>")
	}
	path, err := a.viewer.Open(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func (a *app) transfer(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("transfer", flag.ContinueOnError)
	all := fs.Bool("all", false, "copy every item in the camera roll")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) == 0 || (!*all && len(rest) < 2) {
		return errors.New("usage: camroll transfer [-all] <dest> [identity...]")
	}
	dest, ids := rest[0], rest[1:]

	if *all {
		head, err := a.photos.GetPage(ctx, 0, 0)
		if err != nil {
			return err
		}
		page, err := a.photos.GetPage(ctx, 0, head.Total)
		if err != nil {
			return err
		}
		ids = nil
		for _, e := range page.Items {
			ids = append(ids, e.Identity)
		}
	}

	var result domain.TransferResult
	withSpinner(fmt.Sprintf("Copying %d items...", len(ids)), func() error {
		result = a.photos.Transfer(ctx, ids, dest)
		return nil
	})

	fmt.Printf("Copied %d of %d to %s\n", result.Transferred, result.Requested, result.Destination)
	for _, f := range result.Failures {
		fmt.Printf("  %s: %s\n", f.Identity, f.Reason)
	}
	if len(result.Failures) > 0 {
		return fmt.Errorf("%d items failed", len(result.Failures))
	}
	return nil
}

func (a *app) pair(ctx context.Context) error {
	fmt.Println("Unlock the device and confirm the trust prompt.")

	var backend string
	var ok bool
	withSpinner("Pairing...", func() error {
		backend, ok = a.photos.Pair(ctx)
		return nil
	})
	if !ok {
		return errors.New("pairing failed")
	}

	if udid := a.deviceUDID(backend); udid != "" {
		if err := adapter.SaveDevice(udid); err != nil {
			a.logger.Warn("failed to remember device", "error", err)
		}
	}
	fmt.Printf("✓ Paired via %s\n", backend)
	return nil
}

func (a *app) status(ctx context.Context) error {
	err := withSpinner("Resolving camera roll...", func() error {
		_, err := a.photos.GetPage(ctx, 0, 0)
		return err
	})
	if err != nil {
		return err
	}

	st := a.photos.Status()
	fmt.Printf("state:     %s\n", st.State)
	fmt.Printf("source:    %s\n", st.Source)
	fmt.Printf("items:     %d\n", st.Total)
	fmt.Printf("resolved:  %s\n", st.GeneratedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("backends:  %s\n", strings.Join(st.Backends, ", "))
	if st.Hint != "" {
		fmt.Printf("hint:      %s\n", st.Hint)
	}
	if info := a.deviceInfo(ctx, st.Source); info != nil {
		fmt.Printf("device:    %s (%s, iOS %s)\n", info.DeviceName, info.ProductType, info.ProductVersion)
	}
	return nil
}

func (a *app) clearCache() error {
	dir := a.cfg.Thumbnails.CacheDir
	if dir == "" {
		dir = adapter.GetCachePath()
	}
	a.close()
	if err := adapter.ClearCache(dir); err != nil {
		return err
	}
	fmt.Printf("Cleared %s\n", dir)
	return nil
}

func (a *app) printSource() {
	st := a.photos.Status()
	fmt.Fprintf(os.Stderr, "source: %s\n", st.Source)
	if st.Hint != "" {
		fmt.Fprintln(os.Stderr, styles.WarningStyle.Render(st.Hint))
	}
}

func defaultDestination() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "camroll"
	}
	return filepath.Join(home, "Pictures", "camroll")
}
