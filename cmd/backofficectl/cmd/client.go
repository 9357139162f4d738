package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xavierca1/firm-backoffice/internal/entity"
	"github.com/xavierca1/firm-backoffice/internal/infra/http/handlers"
	"github.com/xavierca1/firm-backoffice/internal/usecase"
)

// Client calls the admin API.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx answer. Code and Message come from the JSON error body
// when there is one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error (%d %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

func (c *Client) QueueDiagnostics(kind string) (*usecase.QueueDiagnostics, error) {
	var out usecase.QueueDiagnostics
	if err := c.do(http.MethodGet, "/admin/queues/"+kind+"/diagnostics", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ResetStuck(kind string) (*handlers.SweepResponse, error) {
	var out handlers.SweepResponse
	if err := c.do(http.MethodPost, "/admin/queues/"+kind+"/reset-stuck", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RetryFailed(kind string) (*handlers.SweepResponse, error) {
	var out handlers.SweepResponse
	if err := c.do(http.MethodPost, "/admin/queues/"+kind+"/retry-failed", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats sends GET /admin/{domain}/stats.
func (c *Client) Stats(domain, groupBy, sum string, filters url.Values) (*handlers.StatsResponse, error) {
	q := url.Values{}
	for k, v := range filters {
		q[k] = v
	}
	q.Set("group_by", groupBy)
	if sum != "" {
		q.Set("sum", sum)
	}

	var out handlers.StatsResponse
	if err := c.do(http.MethodGet, "/admin/"+strings.Trim(domain, "/")+"/stats?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListLeads(kind string, filters url.Values) ([]entity.Lead, error) {
	path := "/admin/leads/" + kind
	if len(filters) > 0 {
		path += "?" + filters.Encode()
	}
	var out []entity.Lead
	if err := c.do(http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequest(method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Add("Authorization", fmt.Sprintf("Bearer %s", c.Token))
	httpReq.Header.Add("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
		var e handlers.ErrorResponse
		if json.Unmarshal(respBody, &e) == nil && e.Error != "" {
			apiErr.Code = e.Error
			apiErr.Message = e.Message
		}
		return apiErr
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
