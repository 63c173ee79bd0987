package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"pfp-sticker/internal/batch"
	"pfp-sticker/internal/compose"
	"pfp-sticker/internal/config"
	"pfp-sticker/internal/cutout"
	"pfp-sticker/internal/logging"
	"pfp-sticker/internal/session"
)

func main() {
	// CLI flags
	configFile := flag.String("config", "", "Path to config.json file")
	basePath := flag.String("base", "", "Profile picture to compose onto")
	stickerPath := flag.String("sticker", "", "Sticker image; its background is removed")
	outPath := flag.String("out", compose.DefaultFilename, "Output PNG path")
	flip := flag.Bool("flip", false, "Mirror the sticker (shoulder anchors swap sides)")
	xPct := flag.Float64("x-pct", -1, "Centre the sticker at this fraction of the base width (needs -y-pct)")
	yPct := flag.Float64("y-pct", -1, "Centre the sticker at this fraction of the base height (needs -x-pct)")
	cutoutURL := flag.String("cutout-url", "", "Cutout service base URL (default: in-process)")
	batchDir := flag.String("batch-dir", "", "Compose onto every image in this directory instead of -base")
	movesPath := flag.String("moves", "", "Replay pointer edits from this script before exporting")
	workers := flag.Int("workers", 0, "Number of batch workers (default: NumCPU)")
	outputDir := flag.String("output", "", "Batch output directory (default: composed)")
	logLevel := flag.String("log-level", "", "debug, info, warn or error (default: info)")
	previewPath := flag.String("preview", "", "Also write a display-sized copy of the result here")
	previewSize := flag.Int("preview-size", 512, "Longer side of the -preview image in pixels")
	ov := registerOverrides(flag.CommandLine)

	flag.Parse()

	// Load config
	var cfg config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	// CLI flags override config file
	cfg.Resolve(config.Flags{
		CutoutURL: *cutoutURL,
		OutputDir: *outputDir,
		Workers:   *workers,
		LogLevel:  *logLevel,
	})
	ov.apply(flag.CommandLine, &cfg)

	log, err := logging.New(os.Stderr, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	anchor, ok := compose.ParseAnchor(cfg.DefaultAnchor)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown anchor %q (want one of %v)\n", cfg.DefaultAnchor, compose.Anchors())
		os.Exit(1)
	}
	var point *[2]float64
	if *xPct >= 0 && *yPct >= 0 {
		point = &[2]float64{*xPct, *yPct}
	}

	if *stickerPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -sticker is required.")
		os.Exit(1)
	}
	sticker, err := os.ReadFile(*stickerPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading sticker: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	provider := newProvider(cfg, log)
	opts := cutout.Options{StrokePx: cfg.StrokePx, Shadow: cfg.Shadow}

	if *batchDir != "" {
		os.Exit(runBatch(ctx, cfg, provider, opts, sticker, *batchDir, anchor, point, *flip, log))
	}

	if *basePath == "" {
		fmt.Fprintln(os.Stderr, "Error: -base or -batch-dir is required.")
		os.Exit(1)
	}
	base, err := os.ReadFile(*basePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading base: %v\n", err)
		os.Exit(1)
	}

	var moves []move
	if *movesPath != "" {
		f, err := os.Open(*movesPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening moves: %v\n", err)
			os.Exit(1)
		}
		moves, err = parseMoves(f)
		f.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error in %s: %v\n", *movesPath, err)
			os.Exit(1)
		}
	}

	s := session.New(provider, session.Options{Scale: cfg.DefaultScale, Anchor: anchor, Cutout: opts}, log)
	if err := s.LoadBase(base); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	s.SetStickerSource(sticker)
	if err := s.Compose(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *flip {
		s.ToggleFlip()
	}
	if point != nil {
		s.PlaceAt(point[0], point[1])
	}
	applyMoves(s, moves)

	data, err := s.Export()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*outPath, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", *outPath, err)
		os.Exit(1)
	}

	if *previewPath != "" {
		if err := writePreview(s, *previewPath, *previewSize); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Preview: %s\n", *previewPath)
	}

	snap := s.Snapshot()
	fmt.Printf("Wrote %s (sticker at %d,%d scale %.2f anchor %s flip %v)\n",
		*outPath, snap.Placement.X, snap.Placement.Y, snap.Scale, snap.Anchor, snap.Flip)
}

// writePreview saves the session's display-sized composite as PNG.
func writePreview(s *session.Session, path string, maxSide int) error {
	img, _, err := s.Preview(maxSide)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create preview: %w", err)
	}
	if err := compose.EncodePNG(f, img); err != nil {
		f.Close()
		return fmt.Errorf("write preview: %w", err)
	}
	return f.Close()
}

func newProvider(cfg config.Config, log *slog.Logger) cutout.Provider {
	if cfg.CutoutURL != "" {
		timeout := time.Duration(cfg.RequestTimeoutSec) * time.Second
		return cutout.NewClient(cfg.CutoutURL, &http.Client{Timeout: timeout}, log)
	}
	return cutout.NewLocal(nil, nil, log)
}

func runBatch(ctx context.Context, cfg config.Config, provider cutout.Provider, opts cutout.Options,
	sticker []byte, dir string, anchor compose.Anchor, point *[2]float64, flip bool, log *slog.Logger) int {
	jobs, err := batch.Discover(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if len(jobs) == 0 {
		fmt.Println("No images to compose.")
		return 0
	}

	cut, err := provider.Cutout(ctx, sticker, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cutout: %v\n", err)
		return 1
	}

	fmt.Printf("Images: %d, Workers: %d\n", len(jobs), cfg.Workers)
	fmt.Printf("Output: %s\n", cfg.OutputDir)
	fmt.Println("------------------------------------------------------------")

	start := time.Now()
	results := batch.Run(ctx, batch.Config{
		OutputDir: cfg.OutputDir,
		Sticker:   compose.NewBitmap(cut),
		Scale:     cfg.DefaultScale,
		Anchor:    anchor,
		Flip:      flip,
		Point:     point,
		Workers:   cfg.Workers,
		Logger:    log,
	}, jobs)

	fmt.Println("------------------------------------------------------------")
	fmt.Printf("Done in %.1fs\n", time.Since(start).Seconds())

	failed := batch.Failed(results)
	fmt.Printf("Composed: %d/%d\n", len(results)-failed, len(results))
	if failed > 0 {
		fmt.Printf("\nFailed (%d):\n", failed)
		shown := 0
		for _, r := range results {
			if r.Success {
				continue
			}
			fmt.Printf("  %s: %s\n", r.Name, r.Error)
			if shown++; shown == 20 {
				break
			}
		}
	}

	manifestPath := filepath.Join(cfg.OutputDir, "manifest.json")
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	} else if err := batch.WriteManifest(manifestPath, results); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: manifest write failed: %v\n", err)
	} else {
		fmt.Printf("Manifest: %s\n", manifestPath)
	}

	if failed > 0 {
		return 1
	}
	return 0
}
