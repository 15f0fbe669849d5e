package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/claudia-sync/claudia/internal/config"
	"github.com/claudia-sync/claudia/internal/plugin"
)

// RESTClient implements Client against the federation server's admin API.
type RESTClient struct {
	cfg  config.Chat
	http *http.Client
}

// NewRESTClient creates a chat client from the configuration.
func NewRESTClient(cfg config.Chat) *RESTClient {
	return &RESTClient{cfg: cfg, http: &http.Client{Timeout: 30 * time.Second}}
}

func (c *RESTClient) do(method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return plugin.NewBackendError(backendName, method+" "+path, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, c.cfg.BaseURL+path, body)
	if err != nil {
		return plugin.NewBackendError(backendName, method+" "+path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return plugin.NewTransientError(backendName, method+" "+path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= http.StatusInternalServerError:
		return plugin.NewTransientError(backendName, method+" "+path,
			fmt.Errorf("backend returned %s", resp.Status))
	case resp.StatusCode >= http.StatusBadRequest:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return plugin.NewBackendError(backendName, method+" "+path,
			fmt.Errorf("backend returned %s: %s", resp.Status, msg))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return plugin.NewBackendError(backendName, method+" "+path, err)
		}
	}

	return nil
}

// SpaceByID implements Client.
func (c *RESTClient) SpaceByID(id string) (*Space, error) {
	var s Space
	if err := c.do(http.MethodGet, "/spaces/"+url.PathEscape(id), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SpaceByTag implements Client.
func (c *RESTClient) SpaceByTag(tag string) (*Space, error) {
	var spaces []Space
	path := "/spaces?parent=" + url.QueryEscape(c.cfg.ParentSpaceID) + "&tag=" + url.QueryEscape(tag)
	if err := c.do(http.MethodGet, path, nil, &spaces); err != nil {
		return nil, err
	}
	if len(spaces) == 0 {
		return nil, ErrNotFound
	}
	return &spaces[0], nil
}

// CreateSpace implements Client.
func (c *RESTClient) CreateSpace(name, tag string) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	payload := map[string]string{
		"name":   name,
		"tag":    tag,
		"parent": c.cfg.ParentSpaceID,
	}
	if err := c.do(http.MethodPost, "/spaces", payload, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// RenameSpace implements Client.
func (c *RESTClient) RenameSpace(id, name string) error {
	return c.do(http.MethodPut, "/spaces/"+url.PathEscape(id),
		map[string]string{"name": name}, nil)
}

// ArchiveSpace implements Client.
func (c *RESTClient) ArchiveSpace(id string) error {
	return c.do(http.MethodPost, "/spaces/"+url.PathEscape(id)+"/archive", nil, nil)
}
