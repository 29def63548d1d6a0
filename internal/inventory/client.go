// Package inventory implements the product.InventoryClient against the
// external product service's REST API.
package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/retailhub/order-service/internal/domain/product"
)

var _ product.InventoryClient = (*Client)(nil)

// Client talks to the product service over HTTP. It holds no state beyond the
// connection pool of its http.Client.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for the product service at baseURL. A nil
// httpClient falls back to a client with a 10 second timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// productPayload is the wire form of a product in the product service API.
type productPayload struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ManufacturerID string `json:"manufacturerId"`
	Quantity       int    `json:"quantity"`
}

func (p productPayload) toDomain() product.Product {
	return product.Product{
		ID:             p.ID,
		Name:           p.Name,
		ManufacturerID: p.ManufacturerID,
		Quantity:       p.Quantity,
	}
}

// Product fetches a single product. A 404 from the product service maps to
// product.ErrNotFound.
func (c *Client) Product(ctx context.Context, id string) (*product.Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/products/%s", c.baseURL, url.PathEscape(id)), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %s", id)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, product.ErrNotFound
	default:
		return nil, errors.Errorf("get product %s: unexpected status %d", id, resp.StatusCode)
	}

	var payload productPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.Wrapf(err, "decode product %s", id)
	}
	p := payload.toDomain()
	return &p, nil
}

// Products batch-resolves the given IDs in one request. IDs unknown to the
// product service are absent from the result.
func (c *Client) Products(ctx context.Context, ids []string) (map[string]product.Product, error) {
	if len(ids) == 0 {
		return map[string]product.Product{}, nil
	}

	q := url.Values{"ids": []string{strings.Join(ids, ",")}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/products?%s", c.baseURL, q.Encode()), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("get products: unexpected status %d", resp.StatusCode)
	}

	var payloads []productPayload
	if err := json.NewDecoder(resp.Body).Decode(&payloads); err != nil {
		return nil, errors.Wrap(err, "decode products")
	}

	out := make(map[string]product.Product, len(payloads))
	for _, p := range payloads {
		out[p.ID] = p.toDomain()
	}
	return out, nil
}

// SetQuantity replaces a product's available quantity.
func (c *Client) SetQuantity(ctx context.Context, id string, quantity int) error {
	body, err := json.Marshal(struct {
		Quantity int `json:"quantity"`
	}{Quantity: quantity})
	if err != nil {
		return errors.Wrap(err, "encode quantity")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		fmt.Sprintf("%s/api/products/%s/quantity", c.baseURL, url.PathEscape(id)), bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "set quantity of product %s", id)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return product.ErrNotFound
	default:
		return errors.Errorf("set quantity of product %s: unexpected status %d", id, resp.StatusCode)
	}
}
