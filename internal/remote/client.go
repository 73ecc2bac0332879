package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"StoreMirror/internal/catalog"
)

// Error taxonomy surfaced to callers. Everything network- or status-shaped
// folds into ErrUnavailable; the two business failures keep their own
// sentinels so the UI can react per case.
var (
	ErrUnavailable = errors.New("product service unavailable")
	ErrValidation  = errors.New("product rejected")
	ErrNotFound    = errors.New("product not found")
)

const (
	collectionPath = "/products-collection"
	maxErrorBody   = 4 << 10
)

// Client is a thin request/response client for the product service. It
// performs no retries; retry policy belongs to the caller.
type Client struct {
	BaseURL string
	Client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if u, err := url.Parse(baseURL); err == nil && u.Scheme != "" && u.Host != "" {
		baseURL = strings.TrimRight(baseURL, "/")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: timeout},
	}
}

// FetchAll returns the full catalog in server order.
func (c *Client) FetchAll(ctx context.Context) ([]catalog.Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+collectionPath, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		drain(resp.Body)
		return nil, fmt.Errorf("%w: status=%d", ErrUnavailable, resp.StatusCode)
	}

	var products []catalog.Product
	if err := json.NewDecoder(resp.Body).Decode(&products); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	return products, nil
}

// Create posts the product as multipart form data, matching the service's
// upload contract: name, price, description and an optional imageFile part.
func (c *Client) Create(ctx context.Context, p catalog.NewProduct) (catalog.Product, error) {
	body, contentType, err := encodeCreateForm(p)
	if err != nil {
		return catalog.Product{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+collectionPath, body)
	if err != nil {
		return catalog.Product{}, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.Client.Do(req)
	if err != nil {
		return catalog.Product{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return catalog.Product{}, fmt.Errorf("%w: %s", ErrValidation, errorText(resp.Body))
	default:
		drain(resp.Body)
		return catalog.Product{}, fmt.Errorf("%w: status=%d", ErrUnavailable, resp.StatusCode)
	}

	var created catalog.Product
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return catalog.Product{}, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	return created, nil
}

// Delete removes the product by ID.
func (c *Client) Delete(ctx context.Context, id int64) error {
	u := fmt.Sprintf("%s%s/%d", c.BaseURL, collectionPath, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	drain(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("%w: id=%d", ErrNotFound, id)
	default:
		return fmt.Errorf("%w: status=%d", ErrUnavailable, resp.StatusCode)
	}
}

func encodeCreateForm(p catalog.NewProduct) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	if err := mw.WriteField("name", p.Name); err != nil {
		return nil, "", err
	}
	if err := mw.WriteField("price", strconv.FormatFloat(p.Price, 'f', -1, 64)); err != nil {
		return nil, "", err
	}
	if p.Description != "" {
		if err := mw.WriteField("description", p.Description); err != nil {
			return nil, "", err
		}
	}
	if len(p.Image) > 0 {
		name := p.ImageName
		if name == "" {
			name = "upload"
		}
		fw, err := mw.CreateFormFile("imageFile", name)
		if err != nil {
			return nil, "", err
		}
		if _, err := fw.Write(p.Image); err != nil {
			return nil, "", err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return body, mw.FormDataContentType(), nil
}

// errorText pulls a short human-readable reason out of an error response,
// accepting either {"error": "..."} JSON or plain text.
func errorText(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return "invalid input"
	}

	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}

func drain(r io.Reader) {
	_, _ = io.Copy(io.Discard, r)
}
