package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPClient implements every supporting-list source against one backend.
//
//	GET {base}/tasks               {tasks, taskLists}
//	GET {base}/users?q={query}     [user]
//	GET {base}/notifications       [notification]
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

var (
	_ TaskSource         = (*HTTPClient)(nil)
	_ UserDirectory      = (*HTTPClient)(nil)
	_ NotificationSource = (*HTTPClient)(nil)
)

func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
}

func (c *HTTPClient) FetchTasks(ctx context.Context) (TaskData, error) {
	raw, err := c.get(ctx, "/tasks", nil)
	if err != nil {
		return DecodeTasks(nil), err
	}
	return DecodeTasks(raw), nil
}

func (c *HTTPClient) SearchUsers(ctx context.Context, query string) ([]User, error) {
	raw, err := c.get(ctx, "/users", url.Values{"q": {query}})
	if err != nil {
		return []User{}, err
	}
	return DecodeUsers(raw), nil
}

func (c *HTTPClient) FetchNotifications(ctx context.Context) ([]Notification, error) {
	raw, err := c.get(ctx, "/notifications", nil)
	if err != nil {
		return []Notification{}, err
	}
	return DecodeNotifications(raw), nil
}

func (c *HTTPClient) get(ctx context.Context, path string, query url.Values) (any, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", path, resp.StatusCode)
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		// Malformed payloads degrade to empty lists.
		return nil, nil
	}
	return raw, nil
}
