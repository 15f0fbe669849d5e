// Package pos reconciles person mappings against the point-of-sale system:
// an account keyed by student or employee number, the person's RFID cards,
// and the consumption authorization backing their direct-debit mandate.
package pos

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/claudia-sync/claudia/internal/db/models"
	"github.com/claudia-sync/claudia/internal/plugin"
)

const backendName = "pos"

// AuthorizationConsumption is the authorization kind granted to mandate
// holders.
const AuthorizationConsumption = "consumption"

// ErrNotFound is returned when no account matches the lookup.
var ErrNotFound = errors.New("pos account not found")

// Account is a point-of-sale account.
type Account struct {
	// Number is the student or employee number the account is keyed by.
	Number string
	Name   string
}

// Client is the point-of-sale operation surface the plugin reconciles
// through.
type Client interface {
	AccountByNumber(number string) (*Account, error)
	CreateAccount(a Account) error
	UpdateAccount(a Account) error

	// Cards lists the RFID card UIDs registered on the account.
	Cards(number string) ([]string, error)
	AddCard(number, uid string) error
	RemoveCard(number, uid string) error

	// Authorizations lists the account's active authorization kinds.
	Authorizations(number string) ([]string, error)
	Grant(number, kind string) error
	Revoke(number, kind string) error
}

// consumer is the slice of the person entity the plugin needs. Only real
// persons carry mandate and card data.
type consumer interface {
	RFIDCards() ([]string, error)
	HasConsumptionMandate() bool
	AccountNumber() string
}

// Plugin reconciles point-of-sale accounts. A person with an active mandate
// and a registered card keeps their account synchronized even without an
// ordinary membership; accounts are never deleted, only stripped of cards
// and authorizations, because consumption history hangs off them.
type Plugin struct {
	plugin.Base
	client Client
}

// New creates the point-of-sale plugin over the given client.
func New(client Client) *Plugin {
	return &Plugin{client: client}
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return backendName }

// Reconcile implements plugin.Plugin.
func (p *Plugin) Reconcile(orch plugin.Orchestrator, mp *models.Mapping, fix bool) ([]plugin.Change, error) {
	if mp.Type != models.MappingTypePerson {
		return nil, nil
	}

	l := orch.Ledger()

	ent, err := l.Entity(mp)
	if err != nil {
		// Entity gone; nothing to key the account by.
		return nil, nil //nolint:nilerr
	}

	person, ok := ent.(consumer)
	if !ok || person.AccountNumber() == "" {
		return nil, nil
	}
	number := person.AccountNumber()

	needed, err := l.IsNeeded(mp)
	if err != nil {
		return nil, err
	}

	account, err := p.client.AccountByNumber(number)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	var changes []plugin.Change

	if account == nil {
		if !needed {
			return nil, nil
		}

		changes = append(changes, plugin.NewChange("account", number+" created"))
		if fix {
			if err := p.client.CreateAccount(Account{Number: number, Name: mp.Name}); err != nil {
				return nil, err
			}
			log.Info().Uint("mapping", mp.ID).Str("number", number).Msg("pos account created")
			orch.NotifyAccountCreated(backendName, mp, "")
		} else {
			return changes, nil
		}
	} else if account.Name != mp.Name {
		changes = append(changes, plugin.NewChange("account",
			plugin.FieldChange("name", account.Name, mp.Name)))
		if fix {
			if err := p.client.UpdateAccount(Account{Number: number, Name: mp.Name}); err != nil {
				return nil, err
			}
		}
	}

	cardChanges, err := p.diffCards(person, number, needed, fix)
	if err != nil {
		return nil, err
	}
	changes = append(changes, cardChanges...)

	authChanges, err := p.diffAuthorizations(person, number, needed, fix)
	if err != nil {
		return nil, err
	}
	changes = append(changes, authChanges...)

	return changes, nil
}

func (p *Plugin) diffCards(person consumer, number string, needed, fix bool) ([]plugin.Change, error) {
	var desired []string
	if needed {
		var err error
		desired, err = person.RFIDCards()
		if err != nil {
			return nil, err
		}
	}
	desiredSet := map[string]bool{}
	for _, uid := range desired {
		desiredSet[uid] = true
	}

	actual, err := p.client.Cards(number)
	if err != nil {
		return nil, err
	}
	actualSet := map[string]bool{}
	for _, uid := range actual {
		actualSet[uid] = true
	}

	var items []string

	for _, uid := range actual {
		if desiredSet[uid] {
			continue
		}
		items = append(items, "-"+uid)
		if fix {
			if err := p.client.RemoveCard(number, uid); err != nil {
				return nil, err
			}
		}
	}

	for _, uid := range desired {
		if actualSet[uid] {
			continue
		}
		items = append(items, "+"+uid)
		if fix {
			if err := p.client.AddCard(number, uid); err != nil {
				return nil, err
			}
		}
	}

	if len(items) == 0 {
		return nil, nil
	}

	return []plugin.Change{plugin.NewChange("cards", items...)}, nil
}

func (p *Plugin) diffAuthorizations(person consumer, number string, needed, fix bool) ([]plugin.Change, error) {
	wantConsumption := needed && person.HasConsumptionMandate()

	actual, err := p.client.Authorizations(number)
	if err != nil {
		return nil, err
	}
	hasConsumption := false
	for _, kind := range actual {
		if kind == AuthorizationConsumption {
			hasConsumption = true
		}
	}

	switch {
	case wantConsumption && !hasConsumption:
		if fix {
			if err := p.client.Grant(number, AuthorizationConsumption); err != nil {
				return nil, err
			}
		}
		return []plugin.Change{plugin.NewChange("authorizations", "+" + AuthorizationConsumption)}, nil
	case !wantConsumption && hasConsumption:
		if fix {
			if err := p.client.Revoke(number, AuthorizationConsumption); err != nil {
				return nil, err
			}
		}
		return []plugin.Change{plugin.NewChange("authorizations", "-" + AuthorizationConsumption)}, nil
	default:
		return nil, nil
	}
}
