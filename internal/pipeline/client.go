package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dandi-batch/internal/backoff"
	"dandi-batch/internal/common"
	"dandi-batch/internal/logging"
)

const DefaultBaseURL = "https://dendro.vercel.app"

// Client envia pipelines a la API de Dendro.
type Client struct {
	BaseURL    string
	APIKey     string
	MaxRetries int
	HTTPClient *http.Client
	Backoff    backoff.Policy
	Logger     *zap.Logger

	// newID genera el id de cada envio; reemplazable en tests.
	newID func() string
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption { return func(c *Client) { c.HTTPClient = hc } }
func WithLogger(l *zap.Logger) ClientOption { return func(c *Client) { c.Logger = l } }
func WithRetries(n int, s backoff.Policy) ClientOption {
	return func(c *Client) { c.MaxRetries, c.Backoff = n, s }
}

func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		MaxRetries: 3,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		Backoff:    backoff.Default(),
		newID:      func() string { return uuid.New().String() },
	}
	for _, o := range opts {
		o(c)
	}
	c.Logger = logging.OrNop(c.Logger)
	return c
}

// SubmitResult resume un envio.
type SubmitResult struct {
	SubmissionID     string `json:"submissionId" yaml:"submissionId"`
	PipelineID       string `json:"pipelineId,omitempty" yaml:"pipelineId,omitempty"`
	Status           string `json:"status" yaml:"status"`
	NumImportedFiles int    `json:"numImportedFiles" yaml:"numImportedFiles"`
	NumJobs          int    `json:"numJobs" yaml:"numJobs"`
}

type submitRequest struct {
	SubmissionID string `json:"submissionId"`
	Spec
}

type submitResponse struct {
	PipelineID string `json:"pipelineId"`
	Success    *bool  `json:"success,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Submit envia el pipeline completo. Los reintentos llevan el mismo
// Idempotency-Key para que el servicio no duplique jobs.
func (c *Client) Submit(ctx context.Context, p *Pipeline) (SubmitResult, error) {
	spec := p.Spec()
	if spec.ProjectID == "" {
		return SubmitResult{}, fmt.Errorf("el pipeline no tiene proyecto")
	}
	if len(spec.ImportedFiles) == 0 && len(spec.Jobs) == 0 {
		return SubmitResult{Status: common.SubmitStatusSkipped}, ErrEmpty
	}

	reqBody := submitRequest{SubmissionID: c.newID(), Spec: spec}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("serializando pipeline: %w", err)
	}
	endpoint := fmt.Sprintf("%s/api/client/projects/%s/pipeline", c.BaseURL, url.PathEscape(spec.ProjectID))

	c.Logger.Info("enviando pipeline",
		zap.String("project", spec.ProjectID),
		zap.String("submission", reqBody.SubmissionID),
		zap.Int("imported_files", len(spec.ImportedFiles)),
		zap.Int("jobs", len(spec.Jobs)))

	var res submitResponse
	err = backoff.Retry(ctx, c.MaxRetries, c.Backoff, func(attempt int) error {
		if attempt > 0 {
			c.Logger.Warn("reintentando envio", zap.String("submission", reqBody.SubmissionID), zap.Int("attempt", attempt))
		}
		return c.post(ctx, endpoint, reqBody.SubmissionID, data, &res)
	})
	if err != nil {
		return SubmitResult{SubmissionID: reqBody.SubmissionID}, fmt.Errorf("enviando pipeline a %s: %w", spec.ProjectID, err)
	}
	if res.Success != nil && !*res.Success {
		return SubmitResult{SubmissionID: reqBody.SubmissionID}, fmt.Errorf("dendro rechazo el pipeline: %s", res.Error)
	}

	return SubmitResult{
		SubmissionID:     reqBody.SubmissionID,
		PipelineID:       res.PipelineID,
		Status:           common.SubmitStatusAccepted,
		NumImportedFiles: len(spec.ImportedFiles),
		NumJobs:          len(spec.Jobs),
	}, nil
}

func (c *Client) post(ctx context.Context, endpoint, submissionID string, data []byte, out *submitResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", submissionID)
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return fmt.Errorf("error contactando dendro: %w", err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &common.StatusError{Service: "dendro", URL: endpoint, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		if serr.Temporary() {
			return serr
		}
		return backoff.Permanent(serr)
	}

	if readErr != nil {
		return fmt.Errorf("leyendo respuesta de dendro: %w", readErr)
	}
	*out = submitResponse{}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return backoff.Permanent(fmt.Errorf("respuesta invalida de dendro: %w", err))
	}
	return nil
}
