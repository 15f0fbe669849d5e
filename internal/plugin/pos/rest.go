package pos

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/claudia-sync/claudia/internal/config"
	"github.com/claudia-sync/claudia/internal/plugin"
)

// RESTClient implements Client against the point-of-sale admin API.
type RESTClient struct {
	cfg  config.POS
	http *http.Client
}

// NewRESTClient creates a point-of-sale client from the configuration.
func NewRESTClient(cfg config.POS) *RESTClient {
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

func accountPath(number string) string {
	return "/accounts/" + url.PathEscape(number)
}

// AccountByNumber implements Client.
func (c *RESTClient) AccountByNumber(number string) (*Account, error) {
	var a Account
	if err := c.do(http.MethodGet, accountPath(number), nil, &a); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// CreateAccount implements Client.
func (c *RESTClient) CreateAccount(a Account) error {
	return c.do(http.MethodPost, "/accounts", a, nil)
}

// UpdateAccount implements Client.
func (c *RESTClient) UpdateAccount(a Account) error {
	return c.do(http.MethodPut, accountPath(a.Number), a, nil)
}

// Cards implements Client.
func (c *RESTClient) Cards(number string) ([]string, error) {
	var out []struct {
		UID string `json:"uid"`
	}
	if err := c.do(http.MethodGet, accountPath(number)+"/cards", nil, &out); err != nil {
		return nil, err
	}
	uids := make([]string, 0, len(out))
	for _, card := range out {
		uids = append(uids, card.UID)
	}
	return uids, nil
}

// AddCard implements Client.
func (c *RESTClient) AddCard(number, uid string) error {
	return c.do(http.MethodPost, accountPath(number)+"/cards", map[string]string{"uid": uid}, nil)
}

// RemoveCard implements Client.
func (c *RESTClient) RemoveCard(number, uid string) error {
	return c.do(http.MethodDelete, accountPath(number)+"/cards/"+url.PathEscape(uid), nil, nil)
}

// Authorizations implements Client.
func (c *RESTClient) Authorizations(number string) ([]string, error) {
	var out []struct {
		Kind string `json:"kind"`
	}
	if err := c.do(http.MethodGet, accountPath(number)+"/authorizations", nil, &out); err != nil {
		return nil, err
	}
	kinds := make([]string, 0, len(out))
	for _, a := range out {
		kinds = append(kinds, a.Kind)
	}
	return kinds, nil
}

// Grant implements Client.
func (c *RESTClient) Grant(number, kind string) error {
	return c.do(http.MethodPost, accountPath(number)+"/authorizations",
		map[string]string{"kind": kind}, nil)
}

// Revoke implements Client.
func (c *RESTClient) Revoke(number, kind string) error {
	return c.do(http.MethodDelete, accountPath(number)+"/authorizations/"+url.PathEscape(kind), nil, nil)
}
