package main

import (
	"flag"

	"pfp-sticker/internal/config"
)

// overrides are the composition flags that replace config file values, but
// only when given on the command line.
type overrides struct {
	scale  *float64
	anchor *string
	stroke *int
	shadow *bool
}

func registerOverrides(fs *flag.FlagSet) *overrides {
	return &overrides{
		scale:  fs.Float64("scale", 0, "Sticker width as a fraction of the base width, 0.20-0.50 (default: 0.30)"),
		anchor: fs.String("anchor", "", "Anchor preset (default: left_shoulder)"),
		stroke: fs.Int("stroke", 0, "Outline width in pixels (default: 0)"),
		shadow: fs.Bool("shadow", false, "Add a drop shadow to the sticker (default: false)"),
	}
}

// apply copies the flags set on fs into cfg.
func (o *overrides) apply(fs *flag.FlagSet, cfg *config.Config) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "scale":
			if *o.scale > 0 {
				cfg.DefaultScale = *o.scale
			}
		case "anchor":
			if *o.anchor != "" {
				cfg.DefaultAnchor = *o.anchor
			}
		case "stroke":
			cfg.StrokePx = max(0, *o.stroke)
		case "shadow":
			cfg.Shadow = *o.shadow
		}
	})
}
