// Package bgremoval isolates the subject of a photo as an alpha mask.
package bgremoval

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/example/winner-card/internal/imageio"
)

// ErrBackgroundRemoval wraps every failure to produce a foreground image.
var ErrBackgroundRemoval = errors.New("background removal failed")

// Remover returns img with the background made transparent. The result has
// the same size as img; its alpha channel is the subject mask.
type Remover interface {
	Remove(ctx context.Context, img image.Image) (*image.NRGBA, error)
}

// RembgClient calls a rembg HTTP server ("rembg s"), POST /api/remove.
type RembgClient struct {
	baseURL    string
	httpClient *http.Client
	model      string
}

// NewRembgClient builds a client. model may be empty for the server default.
func NewRembgClient(baseURL string, timeout time.Duration, model string) *RembgClient {
	return &RembgClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		model:      model,
	}
}

func (c *RembgClient) Remove(ctx context.Context, img image.Image) (*image.NRGBA, error) {
	encoded, err := imageio.EncodePNG(img)
	if err != nil {
		return nil, fmt.Errorf("%w: encode input: %v", ErrBackgroundRemoval, err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "input.png")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackgroundRemoval, err)
	}
	if _, err := part.Write(encoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackgroundRemoval, err)
	}
	if c.model != "" {
		if err := writer.WriteField("model", c.model); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBackgroundRemoval, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackgroundRemoval, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/remove", body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackgroundRemoval, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackgroundRemoval, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d: %s", ErrBackgroundRemoval, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	out, err := imaging.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrBackgroundRemoval, err)
	}
	fg := imaging.Clone(out)
	if fg.Bounds().Size() != img.Bounds().Size() {
		fg = imaging.Resize(fg, img.Bounds().Dx(), img.Bounds().Dy(), imaging.Lanczos)
	}
	return fg, nil
}
