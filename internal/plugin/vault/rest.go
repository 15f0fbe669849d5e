package vault

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

// RESTClient implements Client against the vault's admin API.
type RESTClient struct {
	cfg  config.Vault
	http *http.Client
}

// NewRESTClient creates a vault client from the configuration.
func NewRESTClient(cfg config.Vault) *RESTClient {
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
	req.Header.Set("Authorization", "Bearer "+c.cfg.AdminToken)
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

// OrgByName implements Client.
func (c *RESTClient) OrgByName(name string) (*Org, error) {
	var o Org
	if err := c.do(http.MethodGet, "/organizations?name="+url.QueryEscape(name), nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateOrg implements Client.
func (c *RESTClient) CreateOrg(name string) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(http.MethodPost, "/organizations", map[string]string{"name": name}, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// DeleteOrg implements Client.
func (c *RESTClient) DeleteOrg(id string) error {
	return c.do(http.MethodDelete, "/organizations/"+url.PathEscape(id), nil, nil)
}

// OrgMembers implements Client.
func (c *RESTClient) OrgMembers(orgID string) ([]OrgMember, error) {
	var out []OrgMember
	if err := c.do(http.MethodGet, "/organizations/"+url.PathEscape(orgID)+"/members", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Invite implements Client.
func (c *RESTClient) Invite(orgID, email string) error {
	return c.do(http.MethodPost, "/organizations/"+url.PathEscape(orgID)+"/invites",
		map[string]string{"email": email}, nil)
}

// RemoveMember implements Client.
func (c *RESTClient) RemoveMember(orgID, memberID string) error {
	return c.do(http.MethodDelete,
		"/organizations/"+url.PathEscape(orgID)+"/members/"+url.PathEscape(memberID), nil, nil)
}
