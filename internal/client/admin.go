package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// HTTPClient returns http.Client for the admin API; FSHARE_HTTP_PROXY if set.
func HTTPClient() *http.Client {
	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if s := os.Getenv("FSHARE_HTTP_PROXY"); s != "" {
		if u, err := url.Parse(s); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   10 * time.Second,
		Transport: transport,
	}
}

// NormalizeAPIURL ensures scheme (default http) and drops trailing slash.
func NormalizeAPIURL(s string) string {
	s = strings.TrimRight(strings.TrimSpace(s), "/")
	if s != "" && !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		s = "http://" + s
	}
	return s
}

// ServerStats mirrors GET /api/stats.
type ServerStats struct {
	Sessions      int64  `json:"sessions"`
	Active        int64  `json:"active"`
	AuthFailures  int64  `json:"auth_failures"`
	Transfers     int64  `json:"transfers"`
	FailedXfers   int64  `json:"failed_transfers"`
	BytesSent     uint64 `json:"bytes_sent"`
	BytesReceived uint64 `json:"bytes_received"`
}

// TransferEntry mirrors one GET /api/transfers item.
type TransferEntry struct {
	SessionID  string `json:"session_id"`
	Login      string `json:"login"`
	Direction  string `json:"direction"`
	Name       string `json:"name"`
	TotalSize  uint64 `json:"total_size"`
	BytesMoved uint64 `json:"bytes_moved"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// FetchStats reads server counters (no auth).
func FetchStats(apiURL string) (*ServerStats, error) {
	apiURL = NormalizeAPIURL(apiURL)
	if apiURL == "" {
		return nil, fmt.Errorf("api URL required")
	}
	resp, err := HTTPClient().Get(apiURL + "/api/stats")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stats: %d", resp.StatusCode)
	}
	var out ServerStats
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchTransfers returns newest transfers (Bearer admin); login "" = all.
func FetchTransfers(apiURL, token, login string, limit int) ([]TransferEntry, error) {
	apiURL = NormalizeAPIURL(apiURL)
	if apiURL == "" || token == "" {
		return nil, fmt.Errorf("api URL and admin token required")
	}
	q := url.Values{}
	if login != "" {
		q.Set("login", login)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	u := apiURL + "/api/transfers"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := HTTPClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transfers: %d", resp.StatusCode)
	}
	var out []TransferEntry
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetUser sets login's password, creating the user if missing (Bearer admin).
func SetUser(apiURL, token, login, password string) error {
	body := map[string]string{"login": login, "password": password}
	code, err := adminDo(apiURL, token, http.MethodPut, "/api/users", body)
	if err != nil {
		return err
	}
	if code == http.StatusNotFound {
		code, err = adminDo(apiURL, token, http.MethodPost, "/api/users", body)
		if err != nil {
			return err
		}
	}
	if code != http.StatusNoContent && code != http.StatusCreated {
		return fmt.Errorf("set user: %d", code)
	}
	return nil
}

// DeleteUser removes login from the server's sqlite store (Bearer admin).
func DeleteUser(apiURL, token, login string) error {
	code, err := adminDo(apiURL, token, http.MethodDelete, "/api/users?login="+url.QueryEscape(login), nil)
	if err != nil {
		return err
	}
	if code != http.StatusNoContent {
		return fmt.Errorf("delete user: %d", code)
	}
	return nil
}

// adminDo sends an admin request with opt JSON body and returns the status.
func adminDo(apiURL, token, method, path string, body interface{}) (int, error) {
	apiURL = NormalizeAPIURL(apiURL)
	if apiURL == "" || token == "" {
		return 0, fmt.Errorf("api URL and admin token required")
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, apiURL+path, rd)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := HTTPClient().Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
