package sourcehost

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/claudia-sync/claudia/internal/config"
	"github.com/claudia-sync/claudia/internal/plugin"
)

// RESTClient implements Client against the host's token-authenticated API.
type RESTClient struct {
	cfg  config.SourceHost
	http *http.Client
}

// NewRESTClient creates a source-host client from the configuration.
func NewRESTClient(cfg config.SourceHost) *RESTClient {
	transport := http.DefaultTransport
	if !cfg.VerifySSL {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // skipping verifying tls is ok
		}
	}

	return &RESTClient{
		cfg:  cfg,
		http: &http.Client{Transport: transport, Timeout: 30 * time.Second},
	}
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
	req.Header.Set("PRIVATE-TOKEN", c.cfg.Token)
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

// GroupByPath implements Client.
func (c *RESTClient) GroupByPath(path string) (*HostGroup, error) {
	var g struct {
		ID   int    `json:"id"`
		Path string `json:"path"`
		Name string `json:"name"`
	}
	if err := c.do(http.MethodGet, "/groups/"+url.PathEscape(path), nil, &g); err != nil {
		return nil, err
	}
	return &HostGroup{ID: g.ID, Path: g.Path, Name: g.Name}, nil
}

// CreateGroup implements Client.
func (c *RESTClient) CreateGroup(g HostGroup) (int, error) {
	var resp struct {
		ID int `json:"id"`
	}
	payload := map[string]string{"path": g.Path, "name": g.Name}
	if err := c.do(http.MethodPost, "/groups", payload, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// DeleteGroup implements Client.
func (c *RESTClient) DeleteGroup(id int) error {
	return c.do(http.MethodDelete, "/groups/"+strconv.Itoa(id), nil, nil)
}

// UserIDByUsername implements Client.
func (c *RESTClient) UserIDByUsername(username string) (int, error) {
	var users []struct {
		ID int `json:"id"`
	}
	if err := c.do(http.MethodGet, "/users?username="+url.QueryEscape(username), nil, &users); err != nil {
		return 0, err
	}
	if len(users) == 0 {
		return 0, ErrNotFound
	}
	return users[0].ID, nil
}

// GroupMembers implements Client.
func (c *RESTClient) GroupMembers(groupID int) ([]HostMember, error) {
	var raw []struct {
		ID          int    `json:"id"`
		Username    string `json:"username"`
		AccessLevel int    `json:"access_level"`
	}
	if err := c.do(http.MethodGet, "/groups/"+strconv.Itoa(groupID)+"/members", nil, &raw); err != nil {
		return nil, err
	}

	out := make([]HostMember, len(raw))
	for i, m := range raw {
		out[i] = HostMember{UserID: m.ID, Username: m.Username, AccessLevel: m.AccessLevel}
	}
	return out, nil
}

// AddGroupMember implements Client.
func (c *RESTClient) AddGroupMember(groupID, userID, accessLevel int) error {
	payload := map[string]int{"user_id": userID, "access_level": accessLevel}
	return c.do(http.MethodPost, "/groups/"+strconv.Itoa(groupID)+"/members", payload, nil)
}

// RemoveGroupMember implements Client.
func (c *RESTClient) RemoveGroupMember(groupID, userID int) error {
	return c.do(http.MethodDelete,
		"/groups/"+strconv.Itoa(groupID)+"/members/"+strconv.Itoa(userID), nil, nil)
}
