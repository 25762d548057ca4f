// Package lindi arma las URLs de los indices LINDI publicados por neurosift
// y verifica si existen.
package lindi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"dandi-batch/internal/backoff"
	"dandi-batch/internal/common"
	"dandi-batch/internal/logging"
)

const DefaultBaseURL = "https://lindi.neurosift.org"

// URL devuelve la ubicacion del zarr.json de un asset:
// {base}/dandi/dandisets/{dandiset}/assets/{asset}/zarr.json
func URL(baseURL, dandisetID, assetID string) string {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return fmt.Sprintf("%s/dandi/dandisets/%s/assets/%s/zarr.json",
		strings.TrimRight(baseURL, "/"), url.PathEscape(dandisetID), url.PathEscape(assetID))
}

// Checker verifica la existencia de archivos remotos con peticiones HEAD.
type Checker struct {
	BaseURL    string
	MaxRetries int
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	Backoff    backoff.Policy
	Logger     *zap.Logger
}

type Option func(*Checker)

func WithHTTPClient(hc *http.Client) Option { return func(c *Checker) { c.HTTPClient = hc } }
func WithLogger(l *zap.Logger) Option { return func(c *Checker) { c.Logger = l } }
func WithRetries(n int, s backoff.Policy) Option {
	return func(c *Checker) { c.MaxRetries, c.Backoff = n, s }
}

func WithRateLimit(perSecond float64) Option {
	return func(c *Checker) {
		if perSecond <= 0 {
			c.Limiter = nil
			return
		}
		c.Limiter = rate.NewLimiter(rate.Limit(perSecond), max(1, int(perSecond)))
	}
}

func NewChecker(baseURL string, opts ...Option) *Checker {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Checker{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		MaxRetries: 2,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		Backoff:    backoff.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	c.Logger = logging.OrNop(c.Logger)
	return c
}

// URLFor arma la URL LINDI de un asset usando la base del checker.
func (c *Checker) URLFor(dandisetID, assetID string) string {
	return URL(c.BaseURL, dandisetID, assetID)
}

// Exists hace HEAD sobre u. 200 es true; 404, 403 y 410 son false (S3 responde
// 403 para objetos que no existen). Otros codigos y errores de red se reintentan.
func (c *Checker) Exists(ctx context.Context, u string) (bool, error) {
	var exists bool
	err := backoff.Retry(ctx, c.MaxRetries, c.Backoff, func(attempt int) error {
		if c.Limiter != nil {
			if err := c.Limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, u, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			c.Logger.Debug("HEAD fallo", zap.String("url", u), zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			exists = true
			return nil
		case http.StatusNotFound, http.StatusForbidden, http.StatusGone:
			exists = false
			return nil
		}
		serr := &common.StatusError{Service: "lindi", URL: u, StatusCode: resp.StatusCode}
		if serr.Temporary() {
			return serr
		}
		return backoff.Permanent(serr)
	})
	if err != nil {
		return false, err
	}
	return exists, nil
}
