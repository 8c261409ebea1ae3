// internal/infrastructure/catalogapi/client.go
package catalogapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/clubwear/storefront/internal/config"
	"github.com/clubwear/storefront/internal/domain/product"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"
)

// Client reads products from a remote product service
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[struct{}]
	inflight   singleflight.Group
	log        *logrus.Logger
}

type productEnvelope struct {
	Message string           `json:"message"`
	Product *product.Product `json:"product"`
}

type listEnvelope struct {
	Message  string            `json:"message"`
	Products []product.Product `json:"products"`
}

// NewClient creates a catalog client for cfg.BaseURL
func NewClient(cfg config.CatalogConfig, log *logrus.Logger) *Client {
	failures := uint32(cfg.BreakerFailures)
	if failures == 0 {
		failures = 5
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		breaker: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:    "catalog",
			Timeout: cfg.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			IsSuccessful: func(err error) bool {
				return err == nil ||
					errors.Is(err, product.ErrProductNotFound) ||
					errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.WithFields(logrus.Fields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("Catalog circuit breaker state changed")
			},
		}),
		log: log,
	}
}

// GetProduct fetches a single product. Inactive products are returned as-is.
// Concurrent lookups of the same id share one request that runs detached from
// any single caller; each caller waits on its own context and gets its own copy.
func (c *Client) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	if id == "" {
		return nil, product.ErrProductNotFound
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	shared := context.WithoutCancel(ctx)
	ch := c.inflight.DoChan(id, func() (interface{}, error) {
		var envelope productEnvelope
		if err := c.get(shared, "/products/"+url.PathEscape(id), &envelope); err != nil {
			return nil, err
		}
		if envelope.Product == nil {
			return nil, product.ErrProductNotFound
		}
		return envelope.Product, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*product.Product).Clone(), nil
	}
}

// GetActive fetches a product visible in the storefront
func (c *Client) GetActive(ctx context.Context, id string) (*product.Product, error) {
	p, err := c.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, product.ErrProductNotFound
	}
	return p, nil
}

// List fetches the catalog. The remote service filters by category; search and
// the active flag are applied here.
func (c *Client) List(ctx context.Context, filter product.ListFilter) ([]product.Product, error) {
	path := "/products"
	if filter.Category != "" {
		path += "?" + url.Values{"category": {string(filter.Category)}}.Encode()
	}

	var envelope listEnvelope
	if err := c.get(ctx, path, &envelope); err != nil {
		return nil, err
	}

	search := strings.ToLower(filter.Search)
	products := make([]product.Product, 0, len(envelope.Products))
	for _, p := range envelope.Products {
		if !filter.IncludeInactive && !p.IsActive {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	_, err := c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, c.do(ctx, path, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", product.ErrCatalogUnavailable, err)
	}
	return err
}

func (c *Client) do(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call catalog: %w", err)
	}
	defer resp.Body.Close()

	c.log.WithFields(logrus.Fields{
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	}).Debug("Catalog request")

	if resp.StatusCode == http.StatusNotFound {
		return product.ErrProductNotFound
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("catalog returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode catalog response: %w", err)
	}
	return nil
}
