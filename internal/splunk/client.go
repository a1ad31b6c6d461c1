package splunk

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/stellarlinkco/socbot/internal/config"
)

// Client talks to the Splunk management REST API: session login, search
// job creation, status polling and result retrieval. One search turn is
// Search(); the rest are building blocks it uses.
type Client struct {
	baseURL        string
	username       string
	password       string
	requestTimeout time.Duration
	pollInterval   time.Duration
	maxWait        time.Duration
	maxResults     int
	httpClient     *http.Client

	mu         sync.Mutex
	sessionKey string
}

func NewClient(cfg config.SplunkConfig) *Client {
	transport := &http.Transport{
		// Lab deployments run self-signed on 8089; verification is an
		// explicit operator opt-in via SPLUNK_VERIFY_TLS.
		TLSClientConfig: &tls.Config{InsecureSkipVerify: !cfg.VerifyTLS},
	}
	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		username:       cfg.Username,
		password:       cfg.Password,
		requestTimeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		pollInterval:   time.Duration(cfg.PollSeconds * float64(time.Second)),
		maxWait:        time.Duration(cfg.MaxWaitSeconds) * time.Second,
		maxResults:     cfg.MaxResults,
		httpClient: &http.Client{
			Timeout:   time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
			Transport: transport,
		},
	}
}

// Search runs one complete search turn: submit the SPL, wait for the
// job to finish and fetch up to maxResults rows.
func (c *Client) Search(ctx context.Context, spl string) (*Job, error) {
	if err := c.ensureAuth(ctx); err != nil {
		return nil, err
	}

	sid, err := c.createJob(ctx, spl)
	if err != nil {
		return nil, err
	}
	log.Printf("[splunk] job created sid=%s", sid)

	status, err := c.waitUntilDone(ctx, sid)
	if err != nil {
		return nil, err
	}
	if status == StatusFailed {
		return nil, fmt.Errorf("splunk search job %s failed", sid)
	}

	rows, err := c.fetchResults(ctx, sid)
	if err != nil {
		return nil, err
	}

	return &Job{Search: spl, SID: sid, Status: status, Rows: rows}, nil
}

// Login exchanges the username/password for a session key. Callers
// normally rely on ensureAuth instead.
func (c *Client) Login(ctx context.Context) error {
	form := url.Values{
		"username":    {c.username},
		"password":    {c.password},
		"output_mode": {"json"},
	}
	body, err := c.postForm(ctx, "/services/auth/login", form, "")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuth, err)
	}

	var resp loginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("%w: decode login response: %v", ErrProtocol, err)
	}
	if resp.SessionKey == "" {
		return fmt.Errorf("%w: login response without sessionKey", ErrProtocol)
	}

	c.mu.Lock()
	c.sessionKey = resp.SessionKey
	c.mu.Unlock()
	return nil
}

func (c *Client) ensureAuth(ctx context.Context) error {
	c.mu.Lock()
	key := c.sessionKey
	c.mu.Unlock()
	if key != "" {
		return nil
	}
	return c.Login(ctx)
}

func (c *Client) createJob(ctx context.Context, spl string) (string, error) {
	form := url.Values{
		"search":      {spl},
		"output_mode": {"json"},
		"exec_mode":   {"normal"},
	}
	body, err := c.postForm(ctx, "/services/search/jobs", form, c.currentKey())
	if err != nil {
		return "", fmt.Errorf("create search job: %w", err)
	}

	var resp createJobResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: decode job response: %v", ErrProtocol, err)
	}
	if resp.SID == "" {
		return "", fmt.Errorf("%w: job response without sid", ErrProtocol)
	}
	return resp.SID, nil
}

// waitUntilDone polls the job status at pollInterval until the job
// reports done or failed, or the maxWait deadline passes.
func (c *Client) waitUntilDone(ctx context.Context, sid string) (Status, error) {
	deadline := time.Now().Add(c.maxWait)

	for {
		status, err := c.jobStatus(ctx, sid)
		if err != nil {
			return status, err
		}
		if status == StatusDone || status == StatusFailed {
			return status, nil
		}

		if time.Now().After(deadline) {
			return status, fmt.Errorf("%w: sid=%s after %s", ErrTimeout, sid, c.maxWait)
		}

		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *Client) jobStatus(ctx context.Context, sid string) (Status, error) {
	body, err := c.get(ctx, "/services/search/jobs/"+url.PathEscape(sid)+"?output_mode=json", c.currentKey())
	if err != nil {
		return StatusQueued, fmt.Errorf("poll job %s: %w", sid, err)
	}

	var resp jobStatusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return StatusQueued, fmt.Errorf("%w: decode job status: %v", ErrProtocol, err)
	}
	if len(resp.Entry) == 0 {
		return StatusQueued, fmt.Errorf("%w: job status without entry", ErrProtocol)
	}

	content := resp.Entry[0].Content
	switch {
	case content.IsFailed:
		return StatusFailed, nil
	case content.IsDone:
		return StatusDone, nil
	}
	switch strings.ToUpper(content.DispatchState) {
	case "QUEUED", "PARSING":
		return StatusQueued, nil
	default:
		return StatusRunning, nil
	}
}

func (c *Client) fetchResults(ctx context.Context, sid string) ([]Row, error) {
	path := fmt.Sprintf("/services/search/jobs/%s/results?output_mode=json&count=%d", url.PathEscape(sid), c.maxResults)
	body, err := c.get(ctx, path, c.currentKey())
	if err != nil {
		return nil, fmt.Errorf("fetch results for %s: %w", sid, err)
	}

	var resp resultsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode results: %v", ErrProtocol, err)
	}

	rows := resp.Results
	// count= is a request, not a contract; enforce the cap locally.
	if len(rows) > c.maxResults {
		rows = rows[:c.maxResults]
	}
	return rows, nil
}

func (c *Client) currentKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionKey
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, sessionKey string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, sessionKey)
}

func (c *Client) get(ctx context.Context, path string, sessionKey string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.do(req, sessionKey)
}

func (c *Client) do(req *http.Request, sessionKey string) ([]byte, error) {
	if sessionKey != "" {
		req.Header.Set("Authorization", "Splunk "+sessionKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("splunk request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read splunk response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrAuth, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("splunk request failed (%d): %s", resp.StatusCode, truncate(string(body), 300))
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
