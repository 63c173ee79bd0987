package main

import (
	"bytes"
	"context"
	"flag"
	"image"
	"image/png"
	"io"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"pfp-sticker/internal/compose"
	"pfp-sticker/internal/config"
	"pfp-sticker/internal/imageio"
	"pfp-sticker/internal/session"
)

func TestOverridesApply(t *testing.T) {
	fromFile := config.Config{DefaultScale: 0.40, DefaultAnchor: "chest", StrokePx: 5, Shadow: true}

	tests := []struct {
		name string
		args []string
		want config.Config
	}{
		{
			name: "no flags keep file values",
			want: fromFile,
		},
		{
			name: "explicit false and zero win",
			args: []string{"-shadow=false", "-stroke=0"},
			want: config.Config{DefaultScale: 0.40, DefaultAnchor: "chest", StrokePx: 0, Shadow: false},
		},
		{
			name: "scale and anchor",
			args: []string{"-scale", "0.25", "-anchor", "lower_left"},
			want: config.Config{DefaultScale: 0.25, DefaultAnchor: "lower_left", StrokePx: 5, Shadow: true},
		},
		{
			name: "negative stroke is zero",
			args: []string{"-stroke=-3"},
			want: config.Config{DefaultScale: 0.40, DefaultAnchor: "chest", StrokePx: 0, Shadow: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("stickerctl", flag.ContinueOnError)
			fs.SetOutput(io.Discard)
			ov := registerOverrides(fs)
			if err := fs.Parse(tt.args); err != nil {
				t.Fatalf("Parse(%v) error = %v", tt.args, err)
			}

			cfg := fromFile
			ov.apply(fs, &cfg)
			if diff := cmp.Diff(tt.want, cfg); diff != "" {
				t.Errorf("apply() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWritePreview(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 1000, 600))); err != nil {
		t.Fatal(err)
	}
	sticker := image.NewNRGBA(image.Rect(0, 0, 20, 10))
	s := session.New(fixedProvider{sticker}, session.Options{Anchor: compose.Chest}, nil)
	if err := s.LoadBase(buf.Bytes()); err != nil {
		t.Fatal(err)
	}
	s.SetStickerSource([]byte("sticker"))
	if err := s.Compose(context.Background()); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "preview.png")
	if err := writePreview(s, path, 250); err != nil {
		t.Fatalf("writePreview() error = %v", err)
	}
	img, err := imageio.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := img.Bounds(), image.Rect(0, 0, 250, 150); got != want {
		t.Errorf("preview bounds = %v, want %v", got, want)
	}
}
