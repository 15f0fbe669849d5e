package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/claudia-sync/claudia/internal/config"
	"github.com/claudia-sync/claudia/internal/plugin"
)

// RESTClient implements Client against the IdP's admin API. The token
// endpoint is discovered from the issuer's OIDC metadata.
type RESTClient struct {
	cfg  config.IDP
	http *http.Client
}

// NewRESTClient creates an IdP client, discovering the token endpoint from
// the configured issuer.
func NewRESTClient(ctx context.Context, cfg config.IDP) (*RESTClient, error) {
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover idp issuer: %w", err)
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     provider.Endpoint().TokenURL,
	}

	return &RESTClient{cfg: cfg, http: cc.Client(ctx)}, nil
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

type idResponse struct {
	ID string `json:"id"`
}

// AccountByID implements Client.
func (c *RESTClient) AccountByID(id string) (*Account, error) {
	var a Account
	if err := c.do(http.MethodGet, "/accounts/"+url.PathEscape(id), nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAccount implements Client.
func (c *RESTClient) CreateAccount(a Account) (string, error) {
	var resp idResponse
	if err := c.do(http.MethodPost, "/accounts", a, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// UpdateAccount implements Client.
func (c *RESTClient) UpdateAccount(id string, a Account) error {
	return c.do(http.MethodPut, "/accounts/"+url.PathEscape(id), a, nil)
}

// DeleteAccount implements Client.
func (c *RESTClient) DeleteAccount(id string) error {
	return c.do(http.MethodDelete, "/accounts/"+url.PathEscape(id), nil, nil)
}

// GroupByName implements Client.
func (c *RESTClient) GroupByName(name string) (*PosixGroup, error) {
	var g PosixGroup
	if err := c.do(http.MethodGet, "/groups?name="+url.QueryEscape(name), nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// CreateGroup implements Client.
func (c *RESTClient) CreateGroup(g PosixGroup) (string, error) {
	var resp idResponse
	if err := c.do(http.MethodPost, "/groups", g, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// DeleteGroup implements Client.
func (c *RESTClient) DeleteGroup(id string) error {
	return c.do(http.MethodDelete, "/groups/"+url.PathEscape(id), nil, nil)
}

// SetGroupMembers implements Client.
func (c *RESTClient) SetGroupMembers(id string, usernames []string) error {
	return c.do(http.MethodPut, "/groups/"+url.PathEscape(id)+"/members",
		map[string][]string{"members": usernames}, nil)
}
