package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/gyeh/icdiss/internal/encode"
	"github.com/gyeh/icdiss/internal/model"
)

const defaultTimeout = 60 * time.Second

// HTTPConfig configures the HTTP predictor adapters.
type HTTPConfig struct {
	Endpoint string
	Family   model.Family
	Timeout  time.Duration
}

type httpClient struct {
	client   *http.Client
	endpoint string
	family   model.Family
}

func newHTTPClient(cfg HTTPConfig) (*httpClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint is required", ErrPredictorFailed)
	}
	if _, err := model.ParseFamily(string(cfg.Family)); err != nil {
		return nil, err
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &httpClient{
		client:   &http.Client{Timeout: cfg.Timeout},
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		family:   cfg.Family,
	}, nil
}

func (c *httpClient) post(ctx context.Context, path string, payload, response any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	url := c.endpoint + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPredictorFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status code %d from %s: %s", ErrPredictorFailed,
			resp.StatusCode, url, strings.TrimSpace(string(respBody)))
	}
	if err := json.Unmarshal(respBody, response); err != nil {
		return fmt.Errorf("decode response from %s: %w", url, err)
	}
	return nil
}

type classifyRequest struct {
	Model   string   `json:"model"`
	Rows    int      `json:"rows"`
	Cols    int      `json:"cols"`
	Entries [][2]int `json:"entries"`
}

type classifyResponse struct {
	Scores [][]float64 `json:"scores"`
}

// HTTPClassifier calls a classifier served at <endpoint>/v1/classify.
type HTTPClassifier struct {
	*httpClient
}

// NewHTTPClassifier creates a classifier adapter for a classifier family.
func NewHTTPClassifier(cfg HTTPConfig) (*HTTPClassifier, error) {
	c, err := newHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	if !cfg.Family.Classifier() {
		return nil, fmt.Errorf("%w: %s is not a classifier family", model.ErrUnknownFamily, cfg.Family)
	}
	return &HTTPClassifier{c}, nil
}

// Predict sends the batch's set entries and decides on the returned scores.
func (c *HTTPClassifier) Predict(ctx context.Context, batch encode.Batch) ([][]int, error) {
	rows, cols := batch.Matrix.Dims()
	var resp classifyResponse
	err := c.post(ctx, "/v1/classify", classifyRequest{
		Model:   string(c.family),
		Rows:    rows,
		Cols:    cols,
		Entries: batch.Entries(),
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("classify batch %d: %w", batch.Number, err)
	}

	scores, err := denseScores(resp.Scores, rows)
	if err != nil {
		return nil, fmt.Errorf("classify batch %d: %w", batch.Number, err)
	}
	if c.family.Direct() {
		return Argmax(scores), nil
	}
	return Threshold(scores, IndirectThreshold), nil
}

// denseScores checks a score response is rectangular with the expected row
// count and packs it into a matrix.
func denseScores(scores [][]float64, rows int) (*mat.Dense, error) {
	if len(scores) != rows {
		return nil, fmt.Errorf("%w: %d score rows for %d cases", ErrShapeMismatch, len(scores), rows)
	}
	if rows == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrShapeMismatch)
	}
	cols := len(scores[0])
	if cols == 0 {
		return nil, fmt.Errorf("%w: empty score vector", ErrShapeMismatch)
	}
	flat := make([]float64, 0, rows*cols)
	for i, row := range scores {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d scores, want %d", ErrShapeMismatch, i, len(row), cols)
		}
		flat = append(flat, row...)
	}
	return mat.NewDense(rows, cols, flat), nil
}

type translateRequest struct {
	Model  string   `json:"model"`
	Tokens []string `json:"tokens"`
}

type translateResponse struct {
	Hypotheses [][]string `json:"hypotheses"`
}

// HTTPTranslator calls a translator served at <endpoint>/v1/translate.
type HTTPTranslator struct {
	*httpClient
}

// NewHTTPTranslator creates a translator adapter for a translator family.
func NewHTTPTranslator(cfg HTTPConfig) (*HTTPTranslator, error) {
	c, err := newHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Family.Classifier() {
		return nil, fmt.Errorf("%w: %s is not a translator family", model.ErrUnknownFamily, cfg.Family)
	}
	return &HTTPTranslator{c}, nil
}

// Translate returns the first (best) hypothesis.
func (t *HTTPTranslator) Translate(ctx context.Context, tokens []string) ([]string, error) {
	var resp translateResponse
	if err := t.post(ctx, "/v1/translate", translateRequest{Model: string(t.family), Tokens: tokens}, &resp); err != nil {
		return nil, fmt.Errorf("translate: %w", err)
	}
	if len(resp.Hypotheses) == 0 {
		return nil, ErrNoHypothesis
	}
	return resp.Hypotheses[0], nil
}

// New returns the adapter matching family: exactly one of the results is
// non-nil on success.
func New(cfg HTTPConfig) (Classifier, Translator, error) {
	family, err := model.ParseFamily(string(cfg.Family))
	if err != nil {
		return nil, nil, err
	}
	if family.Classifier() {
		c, err := NewHTTPClassifier(cfg)
		if err != nil {
			return nil, nil, err
		}
		return c, nil, nil
	}
	t, err := NewHTTPTranslator(cfg)
	if err != nil {
		return nil, nil, err
	}
	return nil, t, nil
}
