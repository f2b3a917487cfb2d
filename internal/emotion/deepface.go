package emotion

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/example/winner-card/internal/imageio"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNoResult is returned when the service answers without any analysis.
var ErrNoResult = errors.New("emotion service returned no result")

type analyzeRequest struct {
	Img              string   `json:"img"`
	Actions          []string `json:"actions"`
	EnforceDetection bool     `json:"enforce_detection"`
	DetectorBackend  string   `json:"detector_backend,omitempty"`
}

type analyzeResult struct {
	Emotion         map[string]float64 `json:"emotion"`
	DominantEmotion string             `json:"dominant_emotion"`
}

// The DeepFace API has answered with both a bare list and {"results": [...]}.
type analyzeResponse struct {
	Results []analyzeResult `json:"results"`
	Error   string          `json:"error"`
}

// DeepFaceClient calls a DeepFace REST server's /analyze endpoint.
type DeepFaceClient struct {
	baseURL         string
	httpClient      *http.Client
	detectorBackend string
}

// DeepFaceOption customises a DeepFaceClient.
type DeepFaceOption func(*DeepFaceClient)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) DeepFaceOption {
	return func(d *DeepFaceClient) {
		if c != nil {
			d.httpClient = c
		}
	}
}

// WithDetectorBackend selects DeepFace's internal detector ("opencv", "skip", ...).
func WithDetectorBackend(name string) DeepFaceOption {
	return func(d *DeepFaceClient) { d.detectorBackend = name }
}

// NewDeepFaceClient builds a client for the server at baseURL.
func NewDeepFaceClient(baseURL string, timeout time.Duration, opts ...DeepFaceOption) *DeepFaceClient {
	c := &DeepFaceClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Analyze requests the emotion action with enforce_detection disabled.
func (c *DeepFaceClient) Analyze(ctx context.Context, face image.Image) (Distribution, error) {
	encoded, err := imageio.EncodePNG(face)
	if err != nil {
		return nil, fmt.Errorf("encode face crop: %w", err)
	}
	payload, err := json.Marshal(analyzeRequest{
		Img:              "data:image/png;base64," + base64.StdEncoding.EncodeToString(encoded),
		Actions:          []string{"emotion"},
		EnforceDetection: false,
		DetectorBackend:  c.detectorBackend,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepface analyze: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read deepface response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("deepface analyze: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return decodeAnalyzeResponse(body)
}

func decodeAnalyzeResponse(body []byte) (Distribution, error) {
	var results []analyzeResult
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &results); err != nil {
			return nil, fmt.Errorf("decode deepface response: %w", err)
		}
	} else {
		var wrapped analyzeResponse
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, fmt.Errorf("decode deepface response: %w", err)
		}
		if wrapped.Error != "" {
			return nil, fmt.Errorf("deepface analyze: %s", wrapped.Error)
		}
		results = wrapped.Results
	}
	if len(results) == 0 || results[0].Emotion == nil {
		return nil, ErrNoResult
	}
	return Distribution(results[0].Emotion), nil
}
