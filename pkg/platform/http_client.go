package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-incubator-dashboard/components/dashboard/incubator"
)

// HTTPConfig configures the incubator platform client.
type HTTPConfig struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// HTTPClient reads cohort data from the incubator platform REST API. It
// implements incubator.Source.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

var _ incubator.Source = (*HTTPClient)(nil)

// NewHTTPClient builds a client for the platform API rooted at cfg.BaseURL.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("platform: base url is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  httpClient,
	}, nil
}

func (c *HTTPClient) Summary(ctx context.Context) (incubator.Summary, error) {
	var out incubator.Summary
	err := c.do(ctx, http.MethodGet, "/summary", nil, nil, &out)
	return out, err
}

func (c *HTTPClient) Startups(ctx context.Context, query incubator.StartupQuery) ([]incubator.Startup, error) {
	params := url.Values{}
	setIf(params, "mentor_id", query.MentorID)
	setIf(params, "stage", string(query.Stage))
	var out []incubator.Startup
	err := c.do(ctx, http.MethodGet, "/startups", params, nil, &out)
	return out, err
}

func (c *HTTPClient) Mentors(ctx context.Context) ([]incubator.Mentor, error) {
	var out []incubator.Mentor
	err := c.do(ctx, http.MethodGet, "/mentors", nil, nil, &out)
	return out, err
}

func (c *HTTPClient) Milestones(ctx context.Context, startupID string) ([]incubator.Milestone, error) {
	var out []incubator.Milestone
	err := c.do(ctx, http.MethodGet, "/startups/"+url.PathEscape(startupID)+"/milestones", nil, nil, &out)
	return out, err
}

func (c *HTTPClient) Sessions(ctx context.Context, query incubator.SessionQuery) ([]incubator.Session, error) {
	params := url.Values{}
	setIf(params, "startup_id", query.StartupID)
	setIf(params, "mentor_id", query.MentorID)
	if !query.From.IsZero() {
		params.Set("from", query.From.UTC().Format(time.RFC3339))
	}
	if query.Limit > 0 {
		params.Set("limit", strconv.Itoa(query.Limit))
	}
	var out []incubator.Session
	err := c.do(ctx, http.MethodGet, "/sessions", params, nil, &out)
	return out, err
}

func (c *HTTPClient) Funding(ctx context.Context) ([]incubator.FundingRound, error) {
	var out []incubator.FundingRound
	err := c.do(ctx, http.MethodGet, "/funding", nil, nil, &out)
	return out, err
}

func (c *HTTPClient) Traction(ctx context.Context, startupID string) ([]incubator.TractionPoint, error) {
	var out []incubator.TractionPoint
	err := c.do(ctx, http.MethodGet, "/startups/"+url.PathEscape(startupID)+"/traction", nil, nil, &out)
	return out, err
}

func (c *HTTPClient) Assessments(ctx context.Context, query incubator.AssessmentQuery) ([]incubator.Assessment, error) {
	params := url.Values{}
	setIf(params, "mentor_id", query.MentorID)
	if query.PendingOnly {
		params.Set("pending", "true")
	}
	var out []incubator.Assessment
	err := c.do(ctx, http.MethodGet, "/assessments", params, nil, &out)
	return out, err
}

func (c *HTTPClient) StartupForUser(ctx context.Context, userID string) (incubator.Startup, error) {
	var out incubator.Startup
	err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID)+"/startup", nil, nil, &out)
	return out, err
}

func (c *HTTPClient) MentorForUser(ctx context.Context, userID string) (incubator.Mentor, error) {
	var out incubator.Mentor
	err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID)+"/mentor", nil, nil, &out)
	return out, err
}

// RecordAssessment submits a mentor review.
func (c *HTTPClient) RecordAssessment(ctx context.Context, assessment incubator.Assessment) error {
	return c.do(ctx, http.MethodPost, "/assessments", nil, assessment, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, params url.Values, payload any, target any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("platform: encode payload: %w", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("platform: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("platform: http request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", incubator.ErrNotFound, path)
	}
	if resp.StatusCode >= 300 {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(resp.Body)
		return fmt.Errorf("platform: remote error %d: %s", resp.StatusCode, strings.TrimSpace(buf.String()))
	}
	if target == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("platform: decode response: %w", err)
	}
	return nil
}

func setIf(params url.Values, key, value string) {
	if value != "" {
		params.Set(key, value)
	}
}
