package cutout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"pfp-sticker/internal/imageio"
	"pfp-sticker/internal/logging"
)

// maxResponseBytes caps the cutout image read from the service.
const maxResponseBytes = 64 << 20

// Client calls a remote cutout service's POST /cutout endpoint.
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

// NewClient returns a client for the service at baseURL. A nil httpClient
// means http.DefaultClient; a nil logger is silent.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		log:     logging.OrNop(logger),
	}
}

// Cutout uploads the sticker as multipart form data and decodes the PNG reply.
// Service-side failures come back as *ProviderError.
func (c *Client) Cutout(ctx context.Context, sticker []byte, opts Options) (*image.NRGBA, error) {
	if len(sticker) == 0 {
		return nil, &ProviderError{Status: http.StatusBadRequest, Message: "Empty upload"}
	}

	body, contentType, err := encodeForm(sticker, opts)
	if err != nil {
		return nil, fmt.Errorf("cutout: build request: %w", err)
	}

	url := c.baseURL + "/cutout"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("cutout: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "image/png, application/json")

	c.log.Debug("cutout request", "url", url, "bytes", len(sticker), "stroke_px", opts.StrokePx, "shadow", opts.Shadow)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cutout: post %s: %w", url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("cutout: read response: %w", err)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if resp.StatusCode != http.StatusOK || mediaType == "application/json" {
		perr := errorFromBody(resp.StatusCode, data)
		c.log.Warn("cutout rejected", "status", resp.StatusCode, "error", perr.Message)
		return nil, perr
	}

	img, _, err := imageio.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("cutout: decode response: %w", err)
	}
	c.log.Debug("cutout received", "width", img.Rect.Dx(), "height", img.Rect.Dy())
	return img, nil
}

func encodeForm(sticker []byte, opts Options) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("sticker", "sticker")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(sticker); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("stroke_px", strconv.Itoa(opts.StrokePx)); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("shadow", strconv.FormatBool(opts.Shadow)); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// errorFromBody extracts {"error": "..."} from a failed response, falling
// back to the HTTP status text.
func errorFromBody(status int, data []byte) *ProviderError {
	var payload struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		if payload.Error != "" {
			return &ProviderError{Status: status, Message: payload.Error}
		}
		if payload.Detail != "" {
			return &ProviderError{Status: status, Message: payload.Detail}
		}
	}
	return &ProviderError{
		Status:  status,
		Message: fmt.Sprintf("Cutout failed (%d %s)", status, http.StatusText(status)),
	}
}
