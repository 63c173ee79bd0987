package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"pfp-sticker/internal/compose"
	"pfp-sticker/internal/cutout"
)

const (
	defaultComposeScale = 0.25
	msgEmptyUpload      = "Empty upload"
	msgMissingImages    = "Missing base or sticker image"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// cutout returns the sticker with its background removed and effects applied.
func (s *Server) cutout(c *gin.Context) {
	sticker, err := formFile(c, "sticker")
	if err != nil {
		s.fail(c, err)
		return
	}
	if len(sticker) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgEmptyUpload})
		return
	}

	opts, err := cutoutOptions(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()
	img, err := s.provider.Cutout(ctx, sticker, opts)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.writePNG(c, img)
}

// compose cuts out the sticker and places it on the profile picture in one
// request. x_pct and y_pct, when both given, override the anchor.
func (s *Server) compose(c *gin.Context) {
	base, err := formFile(c, "pfp")
	if err != nil {
		s.fail(c, err)
		return
	}
	sticker, err := formFile(c, "sticker")
	if err != nil {
		s.fail(c, err)
		return
	}
	if len(base) == 0 || len(sticker) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingImages})
		return
	}

	scale, err := formFloat(c, "scale", defaultComposeScale)
	if err != nil {
		s.fail(c, err)
		return
	}
	if scale <= 0 || scale > 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("scale must be in (0, 1], got %g", scale)})
		return
	}
	anchor, ok := compose.ParseAnchor(c.DefaultPostForm("anchor", string(compose.LeftShoulder)))
	if !ok {
		anchor = compose.LeftShoulder
	}
	xPct, hasX, err := optionalFloat(c, "x_pct")
	if err != nil {
		s.fail(c, err)
		return
	}
	yPct, hasY, err := optionalFloat(c, "y_pct")
	if err != nil {
		s.fail(c, err)
		return
	}
	flip, err := formBool(c, "flip", false)
	if err != nil {
		s.fail(c, err)
		return
	}
	opts, err := cutoutOptions(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	baseBmp, err := compose.DecodeBitmap(base)
	if err != nil {
		s.fail(c, err)
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()
	cut, err := s.provider.Cutout(ctx, sticker, opts)
	if err != nil {
		s.fail(c, err)
		return
	}
	st := compose.NewBitmap(cut)

	bw, bh := baseBmp.NaturalWidth(), baseBmp.NaturalHeight()
	var p compose.Placement
	if hasX && hasY {
		p = compose.ResolvePoint(xPct, yPct, bw, bh, st.NaturalWidth(), st.NaturalHeight(), scale)
	} else {
		p = compose.Resolve(anchor, bw, bh, st.NaturalWidth(), st.NaturalHeight(), scale)
	}

	s.writePNG(c, compose.Render(nil, baseBmp, st, p, scale, flip))
}

func (s *Server) writePNG(c *gin.Context, img image.Image) {
	var buf bytes.Buffer
	if err := compose.EncodePNG(&buf, img); err != nil {
		s.log.Error("encode response", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// fail reports err as {"error": msg}. Provider and input errors are 400,
// oversize bodies 413 and provider timeouts 504.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusBadRequest
	msg := err.Error()

	var perr *cutout.ProviderError
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &perr):
		msg = perr.Message
	case errors.As(err, &tooBig):
		status = http.StatusRequestEntityTooLarge
		msg = fmt.Sprintf("upload exceeds %d bytes", tooBig.Limit)
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		msg = "cutout timed out"
	}

	s.log.Warn("request failed", "path", c.Request.URL.Path, "status", status, "error", err)
	c.JSON(status, gin.H{"error": msg})
}

// formFile reads an uploaded file. A missing field yields nil data.
func formFile(c *gin.Context, name string) ([]byte, error) {
	fh, err := c.FormFile(name)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

func cutoutOptions(c *gin.Context) (cutout.Options, error) {
	stroke, err := formInt(c, "stroke_px", 0)
	if err != nil {
		return cutout.Options{}, err
	}
	if stroke < 0 || stroke > cutout.MaxStrokePx {
		return cutout.Options{}, fmt.Errorf("stroke_px must be in [0, %d], got %d", cutout.MaxStrokePx, stroke)
	}
	shadow, err := formBool(c, "shadow", true)
	if err != nil {
		return cutout.Options{}, err
	}
	return cutout.Options{StrokePx: stroke, Shadow: shadow}, nil
}

func formInt(c *gin.Context, name string, def int) (int, error) {
	v, ok := c.GetPostForm(name)
	if !ok || strings.TrimSpace(v) == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", name, v)
	}
	return n, nil
}

func formFloat(c *gin.Context, name string, def float64) (float64, error) {
	f, ok, err := optionalFloat(c, name)
	if !ok {
		return def, err
	}
	return f, err
}

func optionalFloat(c *gin.Context, name string) (float64, bool, error) {
	v, ok := c.GetPostForm(name)
	if !ok || strings.TrimSpace(v) == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false, fmt.Errorf("%s: invalid number %q", name, v)
	}
	return f, true, nil
}

// formBool accepts the usual form spellings: true/false, 1/0, yes/no, on/off.
func formBool(c *gin.Context, name string, def bool) (bool, error) {
	v, ok := c.GetPostForm(name)
	if !ok {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "":
		return def, nil
	case "1", "t", "true", "y", "yes", "on":
		return true, nil
	case "0", "f", "false", "n", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("%s: invalid boolean %q", name, v)
}
