package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jaller94/andstatus/util"
)

// RateLimitInfo is the last rate-limit snapshot scraped from response
// headers.
type RateLimitInfo struct {
	Remaining int
	Limit     int
}

// Client wraps the HTTP exchange with a remote service: JSON get/post,
// multipart media upload, outbound throttling and the error taxonomy.
type Client struct {
	hc        *http.Client
	limiter   *rate.Limiter
	userAgent string

	mu       sync.Mutex
	lastRate RateLimitInfo
}

func NewClient(timeout time.Duration, requestsPerSec float64, userAgent string) *Client {
	if requestsPerSec <= 0 {
		requestsPerSec = 2
	}
	if userAgent == "" {
		userAgent = util.Name + "/1.0"
	}
	return &Client{
		hc:        &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Limit(requestsPerSec), 1),
		userAgent: userAgent,
	}
}

// LastRateLimit returns the most recent rate-limit snapshot seen on
// any response from this client.
func (c *Client) LastRateLimit() RateLimitInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRate
}

func (c *Client) do(ctx context.Context, req *http.Request) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, ErrHard("request throttled and cancelled", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, ErrHard("request failed", err)
	}
	defer resp.Body.Close()

	c.recordRateLimit(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ErrHard("failed to read response", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &ConnError{Code: StatusNoCredentialsForHost, Host: req.URL.Host,
			Message: fmt.Sprintf("remote returned status %d", resp.StatusCode)}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, &ConnError{Code: StatusBadRequest, Host: req.URL.Host,
			Message: fmt.Sprintf("remote returned status %d", resp.StatusCode), Payload: string(body)}
	default:
		return nil, &ConnError{Code: StatusIOError, Host: req.URL.Host,
			Message: fmt.Sprintf("remote returned status %d", resp.StatusCode)}
	}
}

func (c *Client) recordRateLimit(resp *http.Response) {
	remaining := resp.Header.Get("X-RateLimit-Remaining")
	limit := resp.Header.Get("X-RateLimit-Limit")
	if remaining == "" && limit == "" {
		return
	}
	info := RateLimitInfo{}
	info.Remaining, _ = strconv.Atoi(remaining)
	info.Limit, _ = strconv.Atoi(limit)
	c.mu.Lock()
	c.lastRate = info
	c.mu.Unlock()
}

// GetObject performs a GET and decodes a single JSON object.
func (c *Client) GetObject(ctx context.Context, uri string) (map[string]json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, ErrBadRequest("failed to create request for %s: %v", uri, err)
	}
	body, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, ErrParse("expected a JSON object from "+uri, body, err)
	}
	return obj, nil
}

// GetArray performs a GET and decodes a JSON array of raw items.
func (c *Client) GetArray(ctx context.Context, uri string) ([]json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, ErrBadRequest("failed to create request for %s: %v", uri, err)
	}
	body, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, ErrParse("expected a JSON array from "+uri, body, err)
	}
	return items, nil
}

// PostObject posts a JSON body and decodes the JSON object response.
// A nil payload posts an empty body.
func (c *Client) PostObject(ctx context.Context, uri string, payload interface{}) (map[string]json.RawMessage, error) {
	var reader io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, ErrBadRequest("failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, reader)
	if err != nil {
		return nil, ErrBadRequest("failed to create request for %s: %v", uri, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	body, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return map[string]json.RawMessage{}, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, ErrParse("expected a JSON object from "+uri, body, err)
	}
	return obj, nil
}

// UploadFile posts the bytes behind fileURI as a multipart form part
// named partName and decodes the JSON object response. This is phase
// one of the two-phase media upload.
func (c *Client) UploadFile(ctx context.Context, uri, partName, fileURI string) (map[string]json.RawMessage, error) {
	data, err := readFileURI(fileURI)
	if err != nil {
		return nil, ErrBadRequest("failed to read media '%s': %v", fileURI, err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(partName, filepath.Base(fileURI))
	if err != nil {
		return nil, ErrBadRequest("failed to build multipart form: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, ErrBadRequest("failed to build multipart form: %v", err)
	}
	if err := writer.Close(); err != nil {
		return nil, ErrBadRequest("failed to build multipart form: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, &buf)
	if err != nil {
		return nil, ErrBadRequest("failed to create request for %s: %v", uri, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	body, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, ErrParse("expected a JSON object from media upload", body, err)
	}
	return obj, nil
}

// Download streams the resource at uri into w.
func (c *Client) Download(ctx context.Context, uri string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return ErrBadRequest("failed to create request for %s: %v", uri, err)
	}
	body, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return ErrHard("failed to write downloaded data", err)
	}
	return nil
}

func readFileURI(fileURI string) ([]byte, error) {
	path := strings.TrimPrefix(fileURI, "file://")
	return os.ReadFile(path)
}
