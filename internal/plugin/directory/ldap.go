package directory

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog/log"

	"github.com/claudia-sync/claudia/internal/config"
	"github.com/claudia-sync/claudia/internal/plugin"
)

const guidAttr = "entryUUID"

// LDAPClient implements Client over go-ldap. Every operation dials, binds,
// works and closes; the directory is consulted rarely enough that pooling
// is not worth the bookkeeping.
type LDAPClient struct {
	cfg config.Directory
}

// NewLDAPClient creates a directory client from the configuration.
func NewLDAPClient(cfg config.Directory) *LDAPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10
	}

	return &LDAPClient{cfg: cfg}
}

func (c *LDAPClient) connect() (*ldap.Conn, error) {
	hostPort := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))

	ldapURL := "ldap://" + hostPort
	if c.cfg.UseSSL {
		ldapURL = "ldaps://" + hostPort
	}

	var tlsConfig *tls.Config
	if c.cfg.UseSSL || c.cfg.UseTLS {
		tlsConfig = &tls.Config{
			InsecureSkipVerify: c.cfg.SkipVerify, //nolint:gosec // skipping verifying tls is ok
			ServerName:         c.cfg.Host,
		}
	}

	conn, err := ldap.DialURL(ldapURL, ldap.DialWithTLSConfig(tlsConfig))
	if err != nil {
		return nil, plugin.NewTransientError("directory", "connect",
			fmt.Errorf("failed to connect to LDAP server: %w", err))
	}

	if !c.cfg.UseSSL && c.cfg.UseTLS {
		if errStartTLS := conn.StartTLS(tlsConfig); errStartTLS != nil {
			closeConn(conn)
			return nil, plugin.NewTransientError("directory", "starttls",
				fmt.Errorf("failed to start TLS: %w", errStartTLS))
		}
	}

	conn.SetTimeout(time.Duration(c.cfg.Timeout) * time.Second)

	if c.cfg.BindDN != "" {
		if err := conn.Bind(c.cfg.BindDN, c.cfg.BindPass); err != nil {
			closeConn(conn)
			return nil, plugin.NewBackendError("directory", "bind",
				fmt.Errorf("failed to bind with service account: %w", err))
		}
	}

	return conn, nil
}

func closeConn(conn *ldap.Conn) {
	if err := conn.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close LDAP connection")
	}
}

func (c *LDAPClient) peopleDN() string { return c.cfg.PeopleOU + "," + c.cfg.BaseDN }
func (c *LDAPClient) groupsDN() string { return c.cfg.GroupsOU + "," + c.cfg.BaseDN }

var accountAttrs = []string{guidAttr, "uid", "cn", "givenName", "sn", "mail", "loginShell"}

// AccountByGUID implements Client.
func (c *LDAPClient) AccountByGUID(guid string) (*Account, error) {
	entry, err := c.searchOne(c.peopleDN(),
		fmt.Sprintf("(%s=%s)", guidAttr, ldap.EscapeFilter(guid)), accountAttrs)
	if err != nil {
		return nil, err
	}

	return accountFromEntry(entry), nil
}

// CreateAccount implements Client.
func (c *LDAPClient) CreateAccount(a Account, password string) (string, error) {
	conn, err := c.connect()
	if err != nil {
		return "", err
	}
	defer closeConn(conn)

	dn := fmt.Sprintf("uid=%s,%s", a.UID, c.peopleDN())

	add := ldap.NewAddRequest(dn, nil)
	add.Attribute("objectClass", []string{"inetOrgPerson"})
	add.Attribute("uid", []string{a.UID})
	add.Attribute("cn", []string{a.CommonName})
	add.Attribute("givenName", []string{a.GivenName})
	add.Attribute("sn", []string{a.Surname})
	if a.Mail != "" {
		add.Attribute("mail", []string{a.Mail})
	}
	if a.Shell != "" {
		add.Attribute("loginShell", []string{a.Shell})
	}
	add.Attribute("userPassword", []string{password})

	if err := conn.Add(add); err != nil {
		return "", classify("create account", err)
	}

	// The server assigns the GUID at entry creation; read it back.
	entry, err := c.searchOneConn(conn, c.peopleDN(),
		fmt.Sprintf("(uid=%s)", ldap.EscapeFilter(a.UID)), []string{guidAttr})
	if err != nil {
		return "", err
	}

	return entry.GetAttributeValue(guidAttr), nil
}

// UpdateAccount implements Client.
func (c *LDAPClient) UpdateAccount(guid string, a Account) error {
	conn, err := c.connect()
	if err != nil {
		return err
	}
	defer closeConn(conn)

	entry, err := c.searchOneConn(conn, c.peopleDN(),
		fmt.Sprintf("(%s=%s)", guidAttr, ldap.EscapeFilter(guid)), []string{"uid"})
	if err != nil {
		return err
	}

	// A changed uid is a rename; the DN follows the uid while the GUID
	// stays put.
	if cur := entry.GetAttributeValue("uid"); cur != a.UID {
		rename := ldap.NewModifyDNRequest(entry.DN, "uid="+a.UID, true, "")
		if err := conn.ModifyDN(rename); err != nil {
			return classify("rename account", err)
		}
		entry.DN = fmt.Sprintf("uid=%s,%s", a.UID, c.peopleDN())
	}

	mod := ldap.NewModifyRequest(entry.DN, nil)
	mod.Replace("cn", []string{a.CommonName})
	mod.Replace("givenName", []string{a.GivenName})
	mod.Replace("sn", []string{a.Surname})
	mod.Replace("mail", []string{a.Mail})
	if a.Shell != "" {
		mod.Replace("loginShell", []string{a.Shell})
	}

	if err := conn.Modify(mod); err != nil {
		return classify("update account", err)
	}

	return nil
}

// DeleteAccount implements Client.
func (c *LDAPClient) DeleteAccount(guid string) error {
	return c.deleteByGUID(c.peopleDN(), guid, "delete account")
}

var groupAttrs = []string{guidAttr, "cn", "description", "mail"}

// GroupByGUID implements Client.
func (c *LDAPClient) GroupByGUID(guid string) (*Group, error) {
	entry, err := c.searchOne(c.groupsDN(),
		fmt.Sprintf("(%s=%s)", guidAttr, ldap.EscapeFilter(guid)), groupAttrs)
	if err != nil {
		return nil, err
	}

	return groupFromEntry(entry), nil
}

// GroupByCN implements Client.
func (c *LDAPClient) GroupByCN(cn string) (*Group, error) {
	entry, err := c.searchOne(c.groupsDN(),
		fmt.Sprintf("(cn=%s)", ldap.EscapeFilter(cn)), groupAttrs)
	if err != nil {
		return nil, err
	}

	return groupFromEntry(entry), nil
}

// CreateGroup implements Client.
func (c *LDAPClient) CreateGroup(g Group) (string, error) {
	conn, err := c.connect()
	if err != nil {
		return "", err
	}
	defer closeConn(conn)

	dn := fmt.Sprintf("cn=%s,%s", g.CN, c.groupsDN())

	add := ldap.NewAddRequest(dn, nil)
	add.Attribute("objectClass", []string{"groupOfNames"})
	add.Attribute("cn", []string{g.CN})
	if g.Description != "" {
		add.Attribute("description", []string{g.Description})
	}
	if g.Mail != "" {
		add.Attribute("mail", []string{g.Mail})
	}
	// groupOfNames requires at least one member; the service account
	// holds the seat until real members arrive.
	add.Attribute("member", []string{c.cfg.BindDN})

	if err := conn.Add(add); err != nil {
		return "", classify("create group", err)
	}

	entry, err := c.searchOneConn(conn, c.groupsDN(),
		fmt.Sprintf("(cn=%s)", ldap.EscapeFilter(g.CN)), []string{guidAttr})
	if err != nil {
		return "", err
	}

	return entry.GetAttributeValue(guidAttr), nil
}

// UpdateGroup implements Client.
func (c *LDAPClient) UpdateGroup(guid string, g Group) error {
	conn, err := c.connect()
	if err != nil {
		return err
	}
	defer closeConn(conn)

	entry, err := c.searchOneConn(conn, c.groupsDN(),
		fmt.Sprintf("(%s=%s)", guidAttr, ldap.EscapeFilter(guid)), []string{"cn"})
	if err != nil {
		return err
	}

	if cur := entry.GetAttributeValue("cn"); cur != g.CN {
		rename := ldap.NewModifyDNRequest(entry.DN, "cn="+g.CN, true, "")
		if err := conn.ModifyDN(rename); err != nil {
			return classify("rename group", err)
		}
		entry.DN = fmt.Sprintf("cn=%s,%s", g.CN, c.groupsDN())
	}

	mod := ldap.NewModifyRequest(entry.DN, nil)
	mod.Replace("description", []string{g.Description})
	mod.Replace("mail", []string{g.Mail})

	if err := conn.Modify(mod); err != nil {
		return classify("update group", err)
	}

	return nil
}

// DeleteGroup implements Client.
func (c *LDAPClient) DeleteGroup(guid string) error {
	return c.deleteByGUID(c.groupsDN(), guid, "delete group")
}

// MemberOf implements Client.
func (c *LDAPClient) MemberOf(accountGUID string) ([]string, error) {
	conn, err := c.connect()
	if err != nil {
		return nil, err
	}
	defer closeConn(conn)

	entry, err := c.searchOneConn(conn, c.peopleDN(),
		fmt.Sprintf("(%s=%s)", guidAttr, ldap.EscapeFilter(accountGUID)), []string{"uid"})
	if err != nil {
		return nil, err
	}

	req := ldap.NewSearchRequest(
		c.groupsDN(),
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, c.cfg.Timeout, false,
		fmt.Sprintf("(member=%s)", ldap.EscapeFilter(entry.DN)),
		[]string{"cn"},
		nil,
	)

	result, err := conn.Search(req)
	if err != nil {
		return nil, classify("search groups", err)
	}

	groups := make([]string, len(result.Entries))
	for i, e := range result.Entries {
		groups[i] = e.GetAttributeValue("cn")
	}

	return groups, nil
}

// AddMember implements Client.
func (c *LDAPClient) AddMember(groupGUID, accountGUID string) error {
	return c.modifyMember(groupGUID, accountGUID, true)
}

// RemoveMember implements Client.
func (c *LDAPClient) RemoveMember(groupGUID, accountGUID string) error {
	return c.modifyMember(groupGUID, accountGUID, false)
}

func (c *LDAPClient) modifyMember(groupGUID, accountGUID string, add bool) error {
	conn, err := c.connect()
	if err != nil {
		return err
	}
	defer closeConn(conn)

	group, err := c.searchOneConn(conn, c.groupsDN(),
		fmt.Sprintf("(%s=%s)", guidAttr, ldap.EscapeFilter(groupGUID)), []string{"cn"})
	if err != nil {
		return err
	}
	account, err := c.searchOneConn(conn, c.peopleDN(),
		fmt.Sprintf("(%s=%s)", guidAttr, ldap.EscapeFilter(accountGUID)), []string{"uid"})
	if err != nil {
		return err
	}

	mod := ldap.NewModifyRequest(group.DN, nil)
	op := "add member"
	if add {
		mod.Add("member", []string{account.DN})
	} else {
		op = "remove member"
		mod.Delete("member", []string{account.DN})
	}

	if err := conn.Modify(mod); err != nil {
		return classify(op, err)
	}

	return nil
}

func (c *LDAPClient) deleteByGUID(baseDN, guid, op string) error {
	conn, err := c.connect()
	if err != nil {
		return err
	}
	defer closeConn(conn)

	entry, err := c.searchOneConn(conn, baseDN,
		fmt.Sprintf("(%s=%s)", guidAttr, ldap.EscapeFilter(guid)), []string{guidAttr})
	if err != nil {
		return err
	}

	if err := conn.Del(ldap.NewDelRequest(entry.DN, nil)); err != nil {
		return classify(op, err)
	}

	return nil
}

func (c *LDAPClient) searchOne(baseDN, filter string, attrs []string) (*ldap.Entry, error) {
	conn, err := c.connect()
	if err != nil {
		return nil, err
	}
	defer closeConn(conn)

	return c.searchOneConn(conn, baseDN, filter, attrs)
}

func (c *LDAPClient) searchOneConn(conn *ldap.Conn, baseDN, filter string, attrs []string) (*ldap.Entry, error) {
	req := ldap.NewSearchRequest(
		baseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, c.cfg.Timeout, false,
		filter, attrs, nil,
	)

	result, err := conn.Search(req)
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return nil, ErrNotFound
		}
		return nil, classify("search", err)
	}

	switch len(result.Entries) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return result.Entries[0], nil
	default:
		return nil, plugin.NewBackendError("directory", "search",
			errors.New("filter matched multiple entries: "+filter))
	}
}

// classify wraps an LDAP error, marking network-level failures transient so
// the task layer retries them.
func classify(op string, err error) error {
	if ldap.IsErrorWithCode(err, ldap.ErrorNetwork) {
		return plugin.NewTransientError("directory", op, err)
	}

	return plugin.NewBackendError("directory", op, err)
}

func accountFromEntry(entry *ldap.Entry) *Account {
	return &Account{
		GUID:       entry.GetAttributeValue(guidAttr),
		UID:        entry.GetAttributeValue("uid"),
		CommonName: entry.GetAttributeValue("cn"),
		GivenName:  entry.GetAttributeValue("givenName"),
		Surname:    entry.GetAttributeValue("sn"),
		Mail:       entry.GetAttributeValue("mail"),
		Shell:      entry.GetAttributeValue("loginShell"),
	}
}

func groupFromEntry(entry *ldap.Entry) *Group {
	return &Group{
		GUID:        entry.GetAttributeValue(guidAttr),
		CN:          entry.GetAttributeValue("cn"),
		Description: entry.GetAttributeValue("description"),
		Mail:        entry.GetAttributeValue("mail"),
	}
}
