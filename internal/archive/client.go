// Package archive es el cliente REST del archivo DANDI: busca dandisets y
// recorre sus assets ordenados por ruta.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"dandi-batch/internal/backoff"
	"dandi-batch/internal/common"
	"dandi-batch/internal/logging"
)

var (
	// ErrNotFound indica que el dandiset (o la version) no existe.
	ErrNotFound = errors.New("dandiset no encontrado")
	// ErrStop lo devuelve la funcion de WalkAssets para terminar el recorrido sin error.
	ErrStop = errors.New("recorrido detenido")
)

const DefaultBaseURL = "https://api.dandiarchive.org/api"

// VersionDraft es la version editable de todo dandiset.
const VersionDraft = "draft"

type Client struct {
	BaseURL    string
	PageSize   int
	MaxRetries int
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	Backoff    backoff.Policy
	Logger     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.HTTPClient = hc } }
func WithPageSize(n int) Option { return func(c *Client) { c.PageSize = n } }
func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.Logger = l } }
func WithRetries(n int, s backoff.Policy) Option {
	return func(c *Client) { c.MaxRetries, c.Backoff = n, s }
}

// WithRateLimit limita las peticiones por segundo. 0 desactiva el limite.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.Limiter = nil
			return
		}
		c.Limiter = rate.NewLimiter(rate.Limit(perSecond), max(1, int(perSecond)))
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		PageSize:   100,
		MaxRetries: 3,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Backoff:    backoff.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	c.Logger = logging.OrNop(c.Logger)
	return c
}

type versionInfo struct {
	Version string `json:"version"`
	Name    string `json:"name"`
}

type dandisetResponse struct {
	Identifier                 string       `json:"identifier"`
	MostRecentPublishedVersion *versionInfo `json:"most_recent_published_version"`
	DraftVersion               *versionInfo `json:"draft_version"`
}

type assetPage struct {
	Count   int            `json:"count"`
	Next    *string        `json:"next"`
	Results []common.Asset `json:"results"`
}

// GetDandiset busca el dandiset. Si ds.Version esta vacia se usa la ultima
// version publicada, o draft si nunca se publico.
func (c *Client) GetDandiset(ctx context.Context, ds common.Dandiset) (common.Dandiset, error) {
	var resp dandisetResponse
	if err := c.getJSON(ctx, fmt.Sprintf("%s/dandisets/%s/", c.BaseURL, url.PathEscape(ds.Identifier)), &resp); err != nil {
		return common.Dandiset{}, err
	}

	out := common.Dandiset{Identifier: resp.Identifier, Version: ds.Version}
	if out.Identifier == "" {
		out.Identifier = ds.Identifier
	}
	switch {
	case out.Version != "" && out.Version != VersionDraft:
		// Verificamos que la version exista
		var v versionInfo
		u := fmt.Sprintf("%s/dandisets/%s/versions/%s/info/", c.BaseURL, url.PathEscape(out.Identifier), url.PathEscape(out.Version))
		if err := c.getJSON(ctx, u, &v); err != nil {
			return common.Dandiset{}, err
		}
		out.Name = v.Name
	case out.Version == "" && resp.MostRecentPublishedVersion != nil:
		out.Version = resp.MostRecentPublishedVersion.Version
		out.Name = resp.MostRecentPublishedVersion.Name
	default:
		out.Version = VersionDraft
		if resp.DraftVersion != nil {
			out.Name = resp.DraftVersion.Name
		}
	}
	return out, nil
}

// WalkAssets llama a fn por cada asset de la version, en orden de ruta,
// siguiendo la paginacion. Si fn devuelve ErrStop el recorrido termina sin error.
func (c *Client) WalkAssets(ctx context.Context, ds common.Dandiset, fn func(common.Asset) error) error {
	version := ds.Version
	if version == "" {
		version = VersionDraft
	}
	q := url.Values{}
	q.Set("order", "path")
	q.Set("page_size", strconv.Itoa(c.PageSize))
	next := fmt.Sprintf("%s/dandisets/%s/versions/%s/assets/?%s",
		c.BaseURL, url.PathEscape(ds.Identifier), url.PathEscape(version), q.Encode())

	for page := 1; next != ""; page++ {
		var p assetPage
		if err := c.getJSON(ctx, next, &p); err != nil {
			return fmt.Errorf("pagina %d de assets de %s: %w", page, ds, err)
		}
		c.Logger.Debug("pagina de assets",
			zap.String("dandiset", ds.String()), zap.Int("page", page),
			zap.Int("results", len(p.Results)), zap.Int("count", p.Count))

		for _, a := range p.Results {
			if err := fn(a); err != nil {
				if errors.Is(err, ErrStop) {
					return nil
				}
				return err
			}
		}

		next = ""
		if p.Next != nil {
			next = *p.Next
		}
	}
	return nil
}

// ListAssets junta hasta limit assets (0 = todos).
func (c *Client) ListAssets(ctx context.Context, ds common.Dandiset, limit int) ([]common.Asset, error) {
	var assets []common.Asset
	err := c.WalkAssets(ctx, ds, func(a common.Asset) error {
		assets = append(assets, a)
		if limit > 0 && len(assets) >= limit {
			return ErrStop
		}
		return nil
	})
	return assets, err
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	return backoff.Retry(ctx, c.MaxRetries, c.Backoff, func(attempt int) error {
		if attempt > 0 {
			c.Logger.Warn("reintentando peticion al archivo", zap.String("url", u), zap.Int("attempt", attempt))
		}
		if c.Limiter != nil {
			if err := c.Limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return fmt.Errorf("no se pudo contactar el archivo: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return backoff.Permanent(fmt.Errorf("%w: %s", ErrNotFound, u))
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			serr := &common.StatusError{Service: "dandi", URL: u, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
			if serr.Temporary() {
				return serr
			}
			return backoff.Permanent(serr)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("respuesta invalida de %s: %w", u, err))
		}
		return nil
	})
}
