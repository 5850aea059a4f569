package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"gymkeeper/internal/app/client/config"
	"gymkeeper/internal/domain/record"
	"gymkeeper/internal/domain/sync"
	"gymkeeper/internal/domain/user"
)

// APIError is a non-2xx response from the server. Sync reads the status
// code to decide whether a failed operation is worth retrying.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server returned status %d", e.Status)
}

type httpClient struct {
	client    *http.Client
	config    *config.Config
	log       *slog.Logger
	baseURL   string
	token     string
	userAgent string
}

func NewHTTPClient(cfg *config.Config, log *slog.Logger) (*httpClient, error) {
	transport := &http.Transport{
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConnsPerHost: 10,
	}

	scheme := "http://"
	if cfg.EnableTLS {
		scheme = "https://"
		if cfg.CACertPath != "" {
			pem, err := os.ReadFile(cfg.CACertPath)
			if err != nil {
				return nil, fmt.Errorf("read ca certificate: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(pem) {
				return nil, fmt.Errorf("no certificates found in %s", cfg.CACertPath)
			}
			transport.TLSClientConfig = &tls.Config{RootCAs: pool}
		}
	}

	client := &http.Client{
		Timeout:   time.Duration(cfg.RequestTimeout) * time.Second,
		Transport: transport,
	}

	return &httpClient{
		client:    client,
		config:    cfg,
		log:       log.With("component", "http_client"),
		baseURL:   scheme + cfg.ServerAddress,
		userAgent: "Gymkeeper-Client/1.0",
	}, nil
}

// SetToken sets the session token attached to subsequent requests.
func (h *httpClient) SetToken(token string) {
	h.token = token
}

// HealthCheck probes the server without authentication.
func (h *httpClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/api/v1/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", h.userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{Status: resp.StatusCode}
	}

	return nil
}

func (h *httpClient) Register(ctx context.Context, login, password string) error {
	req := user.BaseRequest{
		Login:    login,
		Password: password,
	}

	resp, err := h.doRequest(ctx, http.MethodPost, "/api/v1/auth/register", req)
	if err != nil {
		return err
	}

	return h.parseResponse(resp, nil)
}

func (h *httpClient) Login(ctx context.Context, login, password string) (string, error) {
	req := user.BaseRequest{
		Login:    login,
		Password: password,
	}

	resp, err := h.doRequest(ctx, http.MethodPost, "/api/v1/auth/login", req)
	if err != nil {
		return "", err
	}

	var loginResp struct {
		Token string `json:"token"`
	}
	if err := h.parseResponse(resp, &loginResp); err != nil {
		return "", err
	}

	h.SetToken(loginResp.Token)
	return loginResp.Token, nil
}

// CreateRecord uploads a record for the first time. The server treats it
// as an upsert keyed by local_id, so replaying after a lost response is
// safe.
func (h *httpClient) CreateRecord(ctx context.Context, req record.WriteRequest) (int64, error) {
	resp, err := h.doRequest(ctx, http.MethodPost, "/api/v1/records", req)
	if err != nil {
		return 0, err
	}

	var created struct {
		ID int64 `json:"id"`
	}
	if err := h.parseResponse(resp, &created); err != nil {
		return 0, err
	}

	return created.ID, nil
}

func (h *httpClient) UpdateRecord(ctx context.Context, localID string, req record.WriteRequest) (int64, error) {
	resp, err := h.doRequest(ctx, http.MethodPut, "/api/v1/records/"+localID, req)
	if err != nil {
		return 0, err
	}

	var updated struct {
		ID int64 `json:"id"`
	}
	if err := h.parseResponse(resp, &updated); err != nil {
		return 0, err
	}

	return updated.ID, nil
}

func (h *httpClient) GetRecord(ctx context.Context, localID string) (*record.Record, error) {
	resp, err := h.doRequest(ctx, http.MethodGet, "/api/v1/records/"+localID, nil)
	if err != nil {
		return nil, err
	}

	var rec record.Record
	if err := h.parseResponse(resp, &rec); err != nil {
		return nil, err
	}

	return &rec, nil
}

func (h *httpClient) DeleteRecord(ctx context.Context, localID string) error {
	resp, err := h.doRequest(ctx, http.MethodDelete, "/api/v1/records/"+localID, nil)
	if err != nil {
		return err
	}

	return h.parseResponse(resp, nil)
}

// GetChanges pulls records changed on the server after the given
// watermark. A zero since requests everything.
func (h *httpClient) GetChanges(ctx context.Context, since time.Time, limit, offset int) (*sync.GetChangesResponse, error) {
	query := url.Values{}
	if !since.IsZero() {
		query.Set("since", since.Format(time.RFC3339Nano))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		query.Set("offset", strconv.Itoa(offset))
	}

	path := "/api/v1/sync/changes"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	resp, err := h.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var changes sync.GetChangesResponse
	if err := h.parseResponse(resp, &changes); err != nil {
		return nil, err
	}

	return &changes, nil
}

func (h *httpClient) GetSyncStatus(ctx context.Context) (*sync.Status, error) {
	resp, err := h.doRequest(ctx, http.MethodGet, "/api/v1/sync/status", nil)
	if err != nil {
		return nil, err
	}

	var status sync.Status
	if err := h.parseResponse(resp, &status); err != nil {
		return nil, err
	}

	return &status, nil
}

func (h *httpClient) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", h.userAgent)
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	h.log.Debug("sending request", "method", method, "url", req.URL.String())

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	return resp, nil
}

// parseResponse decodes the body into result and turns non-2xx statuses
// into APIError, lifting the detail from problem+json bodies when the
// server sends one.
func (h *httpClient) parseResponse(resp *http.Response, result interface{}) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	h.log.Debug("received response", "status", resp.StatusCode)

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		var problem struct {
			Title  string `json:"title"`
			Detail string `json:"detail"`
		}
		if err := json.Unmarshal(body, &problem); err == nil {
			apiErr.Message = problem.Detail
			if apiErr.Message == "" {
				apiErr.Message = problem.Title
			}
		}
		return apiErr
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}

	return nil
}
