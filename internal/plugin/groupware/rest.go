package groupware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/claudia-sync/claudia/internal/config"
	"github.com/claudia-sync/claudia/internal/plugin"
)

// RESTClient implements Client against the suite's admin REST API, with a
// client-credentials token source handling authentication.
type RESTClient struct {
	cfg  config.Groupware
	http *http.Client
}

// NewRESTClient creates a groupware client. The context owns the token
// source's refresh requests.
func NewRESTClient(ctx context.Context, cfg config.Groupware) *RESTClient {
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}

	return &RESTClient{cfg: cfg, http: cc.Client(ctx)}
}

func (c *RESTClient) do(method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return plugin.NewBackendError("groupware", method+" "+path, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, c.cfg.BaseURL+path, body)
	if err != nil {
		return plugin.NewBackendError("groupware", method+" "+path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return plugin.NewTransientError("groupware", method+" "+path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= http.StatusInternalServerError:
		return plugin.NewTransientError("groupware", method+" "+path,
			fmt.Errorf("backend returned %s", resp.Status))
	case resp.StatusCode >= http.StatusBadRequest:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return plugin.NewBackendError("groupware", method+" "+path,
			fmt.Errorf("backend returned %s: %s", resp.Status, msg))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return plugin.NewBackendError("groupware", method+" "+path, err)
		}
	}

	return nil
}

type idResponse struct {
	ID string `json:"id"`
}

// UserByID implements Client.
func (c *RESTClient) UserByID(id string) (*User, error) {
	var u User
	if err := c.do(http.MethodGet, "/users/"+url.PathEscape(id), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser implements Client.
func (c *RESTClient) CreateUser(u User, initialPassword string) (string, error) {
	payload := struct {
		User
		Password string `json:"password"`
	}{User: u, Password: initialPassword}

	var resp idResponse
	if err := c.do(http.MethodPost, "/users", payload, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// UpdateUser implements Client.
func (c *RESTClient) UpdateUser(id string, u User) error {
	return c.do(http.MethodPut, "/users/"+url.PathEscape(id), u, nil)
}

// DeleteUser implements Client.
func (c *RESTClient) DeleteUser(id string) error {
	return c.do(http.MethodDelete, "/users/"+url.PathEscape(id), nil, nil)
}

// UserAliases implements Client.
func (c *RESTClient) UserAliases(id string) ([]string, error) {
	var aliases []string
	if err := c.do(http.MethodGet, "/users/"+url.PathEscape(id)+"/aliases", nil, &aliases); err != nil {
		return nil, err
	}
	return aliases, nil
}

// AddUserAlias implements Client.
func (c *RESTClient) AddUserAlias(id, alias string) error {
	return c.do(http.MethodPost, "/users/"+url.PathEscape(id)+"/aliases",
		map[string]string{"alias": alias}, nil)
}

// RemoveUserAlias implements Client.
func (c *RESTClient) RemoveUserAlias(id, alias string) error {
	return c.do(http.MethodDelete,
		"/users/"+url.PathEscape(id)+"/aliases/"+url.PathEscape(alias), nil, nil)
}

// GroupByID implements Client.
func (c *RESTClient) GroupByID(id string) (*GroupObj, error) {
	var g GroupObj
	if err := c.do(http.MethodGet, "/groups/"+url.PathEscape(id), nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// CreateGroup implements Client.
func (c *RESTClient) CreateGroup(g GroupObj) (string, error) {
	var resp idResponse
	if err := c.do(http.MethodPost, "/groups", g, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// UpdateGroup implements Client.
func (c *RESTClient) UpdateGroup(id string, g GroupObj) error {
	return c.do(http.MethodPut, "/groups/"+url.PathEscape(id), g, nil)
}

// DeleteGroup implements Client.
func (c *RESTClient) DeleteGroup(id string) error {
	return c.do(http.MethodDelete, "/groups/"+url.PathEscape(id), nil, nil)
}

// GroupMembers implements Client.
func (c *RESTClient) GroupMembers(id string) ([]GroupMember, error) {
	var out []GroupMember
	if err := c.do(http.MethodGet, "/groups/"+url.PathEscape(id)+"/members", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddGroupMember implements Client.
func (c *RESTClient) AddGroupMember(id, email string) (string, error) {
	var resp idResponse
	if err := c.do(http.MethodPost, "/groups/"+url.PathEscape(id)+"/members",
		map[string]string{"email": email}, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// RemoveGroupMember implements Client.
func (c *RESTClient) RemoveGroupMember(id, memberID string) error {
	return c.do(http.MethodDelete,
		"/groups/"+url.PathEscape(id)+"/members/"+url.PathEscape(memberID), nil, nil)
}

// GroupAliases implements Client.
func (c *RESTClient) GroupAliases(id string) ([]string, error) {
	var aliases []string
	if err := c.do(http.MethodGet, "/groups/"+url.PathEscape(id)+"/aliases", nil, &aliases); err != nil {
		return nil, err
	}
	return aliases, nil
}

// AddGroupAlias implements Client.
func (c *RESTClient) AddGroupAlias(id, alias string) error {
	return c.do(http.MethodPost, "/groups/"+url.PathEscape(id)+"/aliases",
		map[string]string{"alias": alias}, nil)
}

// RemoveGroupAlias implements Client.
func (c *RESTClient) RemoveGroupAlias(id, alias string) error {
	return c.do(http.MethodDelete,
		"/groups/"+url.PathEscape(id)+"/aliases/"+url.PathEscape(alias), nil, nil)
}

// DriveByID implements Client.
func (c *RESTClient) DriveByID(id string) (*Drive, error) {
	var d Drive
	if err := c.do(http.MethodGet, "/drives/"+url.PathEscape(id), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateDrive implements Client.
func (c *RESTClient) CreateDrive(name string) (string, error) {
	var resp idResponse
	if err := c.do(http.MethodPost, "/drives", map[string]string{"name": name}, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// RenameDrive implements Client.
func (c *RESTClient) RenameDrive(id, name string) error {
	return c.do(http.MethodPut, "/drives/"+url.PathEscape(id),
		map[string]string{"name": name}, nil)
}

// DeleteDrive implements Client.
func (c *RESTClient) DeleteDrive(id string) error {
	return c.do(http.MethodDelete, "/drives/"+url.PathEscape(id), nil, nil)
}

// DrivePermissions implements Client.
func (c *RESTClient) DrivePermissions(id string) ([]Permission, error) {
	var out []Permission
	if err := c.do(http.MethodGet, "/drives/"+url.PathEscape(id)+"/permissions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GrantDrivePermission implements Client.
func (c *RESTClient) GrantDrivePermission(driveID, email string) (string, error) {
	var resp idResponse
	if err := c.do(http.MethodPost, "/drives/"+url.PathEscape(driveID)+"/permissions",
		map[string]string{"email": email, "role": "writer"}, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// RevokeDrivePermission implements Client.
func (c *RESTClient) RevokeDrivePermission(driveID, permissionID string) error {
	return c.do(http.MethodDelete,
		"/drives/"+url.PathEscape(driveID)+"/permissions/"+url.PathEscape(permissionID), nil, nil)
}
