// Package detector recognises wand gestures by delegating inference to a
// remote TensorFlow Lite serving endpoint. The gesture model is uploaded
// once per session and invoked with the preprocessed trace.
package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"wandbridge/internal/tracker"
	"wandbridge/internal/wand"
)

const (
	// DefaultConfidence is the minimum classifier probability for a
	// detection to count as a cast.
	DefaultConfidence float32 = 0.99

	healthTimeout  = 2 * time.Second
	requestTimeout = 5 * time.Second
)

// Result is a successful spell detection.
type Result struct {
	Spell      wand.Spell
	Index      int
	Confidence float32
}

// Client talks to the inference server.
type Client struct {
	baseURL   string
	modelPath string
	modelName string
	http      *http.Client
	log       *logrus.Entry

	mu       sync.Mutex
	uploaded bool
}

// New creates a detector client. The model file must exist; it is
// uploaded lazily before the first invocation.
func New(baseURL, modelPath string, log *logrus.Entry) (*Client, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("gesture model: %w", err)
	}
	return &Client{
		baseURL:   trimTrailingSlash(baseURL),
		modelPath: modelPath,
		modelName: filepath.Base(modelPath),
		http:      &http.Client{Timeout: requestTimeout},
		log:       log,
	}, nil
}

func trimTrailingSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// Healthy probes the server's health endpoint.
func (c *Client) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.WithError(err).Debug("inference server health check failed")
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// UploadModel pushes the model file to the server. Repeated calls are
// no-ops once an upload has succeeded.
func (c *Client) UploadModel(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.uploaded {
		return nil
	}

	data, err := os.ReadFile(c.modelPath)
	if err != nil {
		return fmt.Errorf("read gesture model: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s", c.baseURL, c.modelName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload gesture model: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upload gesture model: server returned %s", resp.Status)
	}

	c.uploaded = true
	c.log.WithFields(logrus.Fields{
		"model": c.modelName,
		"bytes": len(data),
	}).Info("gesture model uploaded")
	return nil
}

type invokeRequest struct {
	Model string         `json:"model"`
	Input [][]tracePoint `json:"input"`
}

// tracePoint serialises a trace point as the [x, y] pair the model
// expects.
type tracePoint [2]float32

type invokeResponse struct {
	Outputs []struct {
		Data json.RawMessage `json:"data"`
	} `json:"outputs"`
}

// Detect classifies a preprocessed trace. A nil result with a nil error
// means the classifier was not confident enough.
func (c *Client) Detect(ctx context.Context, points []tracker.Point, threshold float32) (*Result, error) {
	if err := c.UploadModel(ctx); err != nil {
		return nil, err
	}

	batch := make([]tracePoint, len(points))
	for i, p := range points {
		batch[i] = tracePoint{p.X, p.Y}
	}
	body, err := json.Marshal(invokeRequest{
		Model: c.modelName,
		Input: [][]tracePoint{batch},
	})
	if err != nil {
		return nil, fmt.Errorf("encode invoke payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/invoke", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build invoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("invoke inference server: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("inference server returned %s", resp.Status)
	}

	var out invokeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode invoke response: %w", err)
	}
	if len(out.Outputs) == 0 {
		return nil, fmt.Errorf("inference server returned no outputs")
	}

	probs, err := decodeProbabilities(out.Outputs[0].Data)
	if err != nil {
		return nil, err
	}
	if len(probs) == 0 {
		return nil, fmt.Errorf("inference server returned empty probabilities")
	}

	bestIndex := 0
	for i, p := range probs {
		if p > probs[bestIndex] {
			bestIndex = i
		}
	}
	best := probs[bestIndex]

	if best < threshold {
		c.log.WithFields(logrus.Fields{
			"index":      bestIndex,
			"confidence": best,
		}).Debug("detection below confidence threshold")
		return nil, nil
	}

	spell, ok := wand.SpellByIndex(bestIndex)
	if !ok {
		return nil, fmt.Errorf("inference server returned unknown class %d", bestIndex)
	}
	return &Result{Spell: spell, Index: bestIndex, Confidence: best}, nil
}

// decodeProbabilities accepts both a flat array and one wrapped in a
// batch dimension.
func decodeProbabilities(raw json.RawMessage) ([]float32, error) {
	var flat []float32
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}
	var batched [][]float32
	if err := json.Unmarshal(raw, &batched); err == nil && len(batched) > 0 {
		return batched[0], nil
	}
	return nil, fmt.Errorf("unexpected probability payload")
}
