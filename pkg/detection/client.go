// Package detection is a thin client for the external detection service that
// annotates uploaded media and reports per-zone occupancy counts.
package detection

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
	"path"
	"strings"
)

// ErrForeignURL is returned by Download for a file_url outside the service's
// own scheme and host.
var ErrForeignURL = errors.New("file url is not on the detection service host")

// Doer sends HTTP requests. The detection service is unauthenticated, so a
// plain *http.Client is the usual Doer.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Endpoints are the service paths relative to the base URL.
type Endpoints struct {
	Detect     string
	SetZones   string
	LiveCounts string
}

// DefaultEndpoints are the detection service's stock routes.
var DefaultEndpoints = Endpoints{
	Detect:     "/api/detect",
	SetZones:   "/api/set_zones",
	LiveCounts: "/api/live_counts",
}

// StatusError is a non-2xx answer from the service.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("detection service returned %d: %s", e.Status, e.Message)
}

// Detection is one labelled object found in an image.
type Detection struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

// DetectResult describes the annotated media produced for an upload.
type DetectResult struct {
	Message    string      `json:"message"`
	FileURL    string      `json:"file_url"`
	Warning    string      `json:"warning,omitempty"`
	Detections []Detection `json:"detections"`
}

// ZonesAck acknowledges a zone update.
type ZonesAck struct {
	Message   string `json:"message"`
	ZoneCount int    `json:"zone_count"`
}

// Client calls the detection service.
type Client struct {
	baseURL   string
	doer      Doer
	endpoints Endpoints
}

// NewClient builds a client. A nil doer uses http.DefaultClient.
func NewClient(baseURL string, doer Doer) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), doer: doer, endpoints: DefaultEndpoints}
}

// WithEndpoints returns a copy of the client using different paths.
func (c *Client) WithEndpoints(e Endpoints) *Client {
	clone := *c
	clone.endpoints = e
	return &clone
}

// ResolveURL turns a service-relative file_url into an absolute URL.
func (c *Client) ResolveURL(fileURL string) string {
	if strings.HasPrefix(fileURL, "http://") || strings.HasPrefix(fileURL, "https://") {
		return fileURL
	}
	return c.baseURL + "/" + strings.TrimLeft(fileURL, "/")
}

// Detect uploads media as the multipart field "file".
func (c *Client) Detect(ctx context.Context, filename string, media io.Reader) (*DetectResult, error) {
	if filename == "" {
		return nil, errors.New("filename is required")
	}
	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)
	part, err := form.CreateFormFile("file", path.Base(filename))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, media); err != nil {
		return nil, fmt.Errorf("read media: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ResolveURL(c.endpoints.Detect), bytes.NewReader(body.Bytes()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	var out DetectResult
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetZones replaces the zones the service counts occupancy for.
func (c *Client) SetZones(ctx context.Context, zones []Zone) (*ZonesAck, error) {
	for i, z := range zones {
		if err := z.Validate(); err != nil {
			return nil, fmt.Errorf("zone %d: %w", i, err)
		}
	}
	if zones == nil {
		zones = []Zone{}
	}
	payload, err := json.Marshal(map[string][]Zone{"zones": zones})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ResolveURL(c.endpoints.SetZones), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out ZonesAck
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LiveCounts returns the latest occupancy count per zone, in zone order.
func (c *Client) LiveCounts(ctx context.Context) ([]int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ResolveURL(c.endpoints.LiveCounts), nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Counts []int `json:"counts"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	if out.Counts == nil {
		out.Counts = []int{}
	}
	return out.Counts, nil
}

// Download streams a file produced by Detect into w. Only files served by the
// detection service itself are fetched, so headers the Doer attaches never
// reach another host.
func (c *Client) Download(ctx context.Context, fileURL string, w io.Writer) error {
	target := c.ResolveURL(fileURL)
	if !c.sameOrigin(target) {
		return fmt.Errorf("%w: %s", ErrForeignURL, fileURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	resp, err := c.doer.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

func (c *Client) sameOrigin(raw string) bool {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return false
	}
	target, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.EqualFold(base.Scheme, target.Scheme) && strings.EqualFold(base.Host, target.Host)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.doer.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode detection response: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	return &StatusError{Status: resp.StatusCode, Message: msg}
}
