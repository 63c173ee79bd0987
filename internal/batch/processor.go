package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"pfp-sticker/internal/compose"
	"pfp-sticker/internal/imageio"
	"pfp-sticker/internal/logging"
)

// Config holds all shared resources for a batch run.
type Config struct {
	OutputDir string
	Sticker   *compose.Bitmap
	Scale     float64
	Anchor    compose.Anchor
	// Flip mirrors the sticker; shoulder anchors swap sides as in the editor.
	Flip bool
	// Point, when set, centres the sticker on (Point[0], Point[1]) as
	// fractions of the base size instead of using Anchor.
	Point   *[2]float64
	Workers int
	Logger  *slog.Logger
}

// Job is one profile picture to compose.
type Job struct {
	Name   string // file name of the source
	Path   string
	Output string // file name written under OutputDir
}

// Result holds the outcome of processing one job.
type Result struct {
	Name      string
	Output    string
	Width     int
	Height    int
	Placement compose.Placement
	Success   bool
	Error     string
}

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
	".tif": true, ".tiff": true, ".webp": true, ".tga": true,
}

// Discover lists the images in dir, sorted by name. Sources sharing a stem
// get the extension folded into their output name.
func Discover(dir string) ([]Job, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("batch: read %s: %w", dir, err)
	}

	var jobs []Job
	used := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !imageExts[ext] {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		out := stem + ".png"
		if used[out] {
			out = stem + "-" + strings.TrimPrefix(ext, ".") + ".png"
		}
		used[out] = true
		jobs = append(jobs, Job{
			Name:   e.Name(),
			Path:   filepath.Join(dir, e.Name()),
			Output: out,
		})
	}
	return jobs, nil
}

// Run composes the sticker onto every job using a worker pool. Jobs not
// started before ctx is cancelled fail with the context error.
func Run(ctx context.Context, cfg Config, jobs []Job) []Result {
	log := logging.OrNop(cfg.Logger)
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	total := len(jobs)
	results := make([]Result, total)
	var processed atomic.Int64

	start := time.Now()

	// Progress reporter
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				p := processed.Load()
				if p > 0 {
					rate := float64(p) / time.Since(start).Seconds()
					log.Info("progress", "done", p, "total", total, "per_sec", fmt.Sprintf("%.1f", rate))
				}
			}
		}
	}()

	// Worker pool
	jobChan := make(chan int, workers*2)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobChan {
				if err := ctx.Err(); err != nil {
					results[idx] = Result{Name: jobs[idx].Name, Output: jobs[idx].Output, Error: err.Error()}
				} else {
					results[idx] = processJob(cfg, jobs[idx])
				}
				if !results[idx].Success {
					log.Warn("compose failed", "name", jobs[idx].Name, "error", results[idx].Error)
				}
				processed.Add(1)
			}
		}()
	}

	// Send work
	for i := range jobs {
		jobChan <- i
	}
	close(jobChan)

	wg.Wait()
	close(done)

	log.Info("batch done", "total", total, "elapsed", time.Since(start).Round(time.Millisecond))
	return results
}

func processJob(cfg Config, job Job) Result {
	res := Result{Name: job.Name, Output: job.Output}
	if cfg.Sticker == nil {
		res.Error = "no sticker"
		return res
	}

	img, err := imageio.Load(job.Path)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	st := compose.NewCompositionState(cfg.Scale, cfg.Anchor)
	st.SetBase(compose.NewBitmap(img))
	st.SetSticker(cfg.Sticker)
	if cfg.Flip {
		st.ToggleFlip()
	}
	if cfg.Point != nil {
		st.PlaceAt(cfg.Point[0], cfg.Point[1])
	}
	st.Render()

	data, err := st.ExportPNG()
	if err != nil {
		res.Error = err.Error()
		return res
	}

	outPath := filepath.Join(cfg.OutputDir, job.Output)
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		res.Error = err.Error()
		return res
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		res.Error = err.Error()
		return res
	}

	res.Width = st.Base().NaturalWidth()
	res.Height = st.Base().NaturalHeight()
	res.Placement = st.Placement()
	res.Success = true
	return res
}
