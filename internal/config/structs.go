package config

import (
	"time"

	"github.com/claudia-sync/claudia/internal/logger"
)

// Engine holds the reconciliation engine settings.
type Engine struct {
	// Plugins lists the enabled backend plugins in registration order.
	// Later plugins may depend on earlier ones having materialized accounts.
	Plugins []string `toml:"plugins"`
	// StopOnError aborts the remaining plugin chain and the fan-out of the
	// current mapping when a plugin fails.
	StopOnError bool `toml:"stopOnError"`
	// GracePeriod is the delay between a person mapping becoming unneeded and
	// its backend accounts actually being deleted.
	GracePeriod time.Duration `toml:"gracePeriod"`
	// RetryCeiling is the maximum number of attempts for a verify task that
	// keeps hitting an unavailable backend.
	RetryCeiling uint `toml:"retryCeiling"`
	// CycleTTL bounds how long verification cycle bookkeeping may live.
	CycleTTL time.Duration `toml:"cycleTTL"`
	// Workers is the number of verify task workers the daemon runs.
	Workers int `toml:"workers"`
	// IntegrityInterval is the period of the full consistency sweep.
	IntegrityInterval time.Duration `toml:"integrityInterval"`
	// MetricsListen is the address the Prometheus endpoint binds to.
	// Empty disables the listener.
	MetricsListen string `toml:"metricsListen"`
	// ActiveMembersMapping holds the id of the implicit group mapping every
	// person with a directory account is placed in. Zero disables it.
	ActiveMembersMapping uint `toml:"activeMembersMapping"`
	// WebmastersMapping holds the id of the implicit group mapping for
	// webmasters. Zero disables it.
	WebmastersMapping uint `toml:"webmastersMapping"`
	// MailDomains lists the internal mail domains stripped from aliases.
	MailDomains []string `toml:"mailDomains"`
	// Shells maps shell preference names to login shell paths.
	Shells map[string]string `toml:"shells"`
	// DefaultShell is the shell preference used when a person has none.
	DefaultShell string `toml:"defaultShell"`
}

// Directory holds the LDAP directory backend settings.
type Directory struct {
	Enabled    bool   `toml:"enabled"`
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	UseSSL     bool   `toml:"useSSL"`
	UseTLS     bool   `toml:"useTLS"`
	SkipVerify bool   `toml:"skipVerify"`
	BindDN     string `toml:"bindDN"`
	BindPass   string `toml:"bindPassword"`
	BaseDN     string `toml:"baseDN"`
	PeopleOU   string `toml:"peopleOU"`
	GroupsOU   string `toml:"groupsOU"`
	Timeout    int    `toml:"timeout"`
}

// Groupware holds the groupware suite backend settings.
type Groupware struct {
	Enabled       bool   `toml:"enabled"`
	BaseURL       string `toml:"baseURL" validate:"omitempty,url"`
	TokenURL      string `toml:"tokenURL" validate:"omitempty,url"`
	ClientID      string `toml:"clientID"`
	ClientSecret  string `toml:"clientSecret"`
	PrimaryDomain string `toml:"primaryDomain"`
	AdminEmail    string `toml:"adminEmail" validate:"omitempty,email"`
	// AllowedAliasDomains restricts extra personal alias addresses.
	AllowedAliasDomains []string `toml:"allowedAliasDomains"`
}

// IDP holds the SSO identity provider backend settings.
type IDP struct {
	Enabled      bool   `toml:"enabled"`
	BaseURL      string `toml:"baseURL" validate:"omitempty,url"`
	IssuerURL    string `toml:"issuerURL" validate:"omitempty,url"`
	ClientID     string `toml:"clientID"`
	ClientSecret string `toml:"clientSecret"`
	// PosixGIDBase is added to the mapping id to form the posix gid.
	PosixGIDBase int `toml:"posixGIDBase"`
}

// SourceHost holds the source code host backend settings.
type SourceHost struct {
	Enabled   bool   `toml:"enabled"`
	BaseURL   string `toml:"baseURL" validate:"omitempty,url"`
	Token     string `toml:"token"`
	VerifySSL bool   `toml:"verifySSL"`
}

// Vault holds the secrets vault backend settings.
type Vault struct {
	Enabled    bool   `toml:"enabled"`
	BaseURL    string `toml:"baseURL" validate:"omitempty,url"`
	AdminToken string `toml:"adminToken"`
}

// Chat holds the chat federation backend settings.
type Chat struct {
	Enabled    bool   `toml:"enabled"`
	BaseURL    string `toml:"baseURL" validate:"omitempty,url"`
	UserID     string `toml:"userID"`
	Token      string `toml:"token"`
	Homeserver string `toml:"homeserver"`
	// ParentSpaceID is the space all group spaces are attached under.
	ParentSpaceID string `toml:"parentSpaceID"`
}

// POS holds the point of sale backend settings.
type POS struct {
	Enabled bool   `toml:"enabled"`
	BaseURL string `toml:"baseURL" validate:"omitempty,url"`
	Token   string `toml:"token"`
}

// Config overall data structure.
type Config struct {
	DevMode    bool // enable dev mode for development
	DB         DB
	Log        logger.Log
	Engine     Engine
	Directory  Directory
	Groupware  Groupware
	IDP        IDP
	SourceHost SourceHost
	Vault      Vault
	Chat       Chat
	POS        POS
}
