package directory

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/claudia-sync/claudia/internal/config"
	"github.com/claudia-sync/claudia/internal/db/controller/event"
	"github.com/claudia-sync/claudia/internal/db/models"
	"github.com/claudia-sync/claudia/internal/ledger"
	"github.com/claudia-sync/claudia/internal/mappable"
	"github.com/claudia-sync/claudia/internal/plugin"
	"github.com/claudia-sync/claudia/internal/uniuri"
)

const backendName = "directory"

const initialPasswordLen = 24

// Plugin reconciles directory accounts and groups. Person accounts get a
// grace period before deletion; group objects are removed immediately.
type Plugin struct {
	plugin.Base
	client Client
	engine config.Engine
}

// New creates the directory plugin over the given client.
func New(client Client, engine config.Engine) *Plugin {
	return &Plugin{client: client, engine: engine}
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return backendName }

// Reconcile implements plugin.Plugin.
func (p *Plugin) Reconcile(orch plugin.Orchestrator, mp *models.Mapping, fix bool) ([]plugin.Change, error) {
	l := orch.Ledger()

	needed, err := l.NeedsDirectoryAccount(mp)
	if err != nil {
		return nil, err
	}

	switch {
	case mp.IsPersonType():
		return p.reconcileAccount(orch, mp, needed, fix)
	case mp.IsGroupType() && mp.Type != models.MappingTypeSharedDrive:
		return p.reconcileGroup(orch, mp, needed, fix)
	default:
		// Contacts and shared drives have no directory presence.
		return nil, nil
	}
}

func (p *Plugin) reconcileAccount(orch plugin.Orchestrator, mp *models.Mapping, needed, fix bool) ([]plugin.Change, error) {
	l := orch.Ledger()

	account, err := p.resolveAccount(l, mp, fix)
	if err != nil {
		return nil, err
	}

	var changes []plugin.Change

	if account == nil {
		if !needed {
			return nil, nil
		}

		changes = append(changes, plugin.NewChange("account", mp.ShortName+" created"))
		if fix {
			if err := p.createAccount(orch, mp); err != nil {
				return nil, err
			}
		}
	} else if !needed {
		return changes, p.scheduleAccountDelete(orch, mp, fix)
	}

	// Needed again within the grace period cancels the pending deletion.
	if needed {
		if err := p.unscheduleAccountDelete(orch, mp, fix); err != nil {
			return nil, err
		}
	}

	if account != nil {
		attrChanges, err := p.diffAccount(l, mp, account, fix)
		if err != nil {
			return nil, err
		}
		changes = append(changes, attrChanges...)
	}

	if needed && mp.DirectoryGUID != "" {
		groupChanges, err := p.diffGroups(orch, mp, fix)
		if err != nil {
			return nil, err
		}
		changes = append(changes, groupChanges...)
	}

	return changes, nil
}

// resolveAccount looks the account up by the mapping's GUID slot. A GUID
// that no longer resolves is stale; it is cleared under fix so the next
// pass recreates the account.
func (p *Plugin) resolveAccount(l *ledger.Ledger, mp *models.Mapping, fix bool) (*Account, error) {
	if mp.DirectoryGUID == "" {
		return nil, nil
	}

	account, err := p.client.AccountByGUID(mp.DirectoryGUID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	log.Warn().Uint("mapping", mp.ID).Str("guid", mp.DirectoryGUID).
		Msg("stale directory guid")
	if fix {
		mp.DirectoryGUID = ""
		if err := l.Save(mp); err != nil {
			return nil, err
		}
	}

	return nil, nil
}

func (p *Plugin) createAccount(orch plugin.Orchestrator, mp *models.Mapping) error {
	desired, err := p.desiredAccount(orch.Ledger(), mp)
	if err != nil {
		return err
	}

	password := uniuri.NewLen(initialPasswordLen)

	guid, err := p.client.CreateAccount(*desired, password)
	if err != nil {
		return err
	}

	mp.DirectoryGUID = guid
	if err := orch.Ledger().Save(mp); err != nil {
		return err
	}

	log.Info().Uint("mapping", mp.ID).Str("uid", desired.UID).Msg("directory account created")
	orch.NotifyAccountCreated(backendName, mp, password)

	return nil
}

func (p *Plugin) desiredAccount(l *ledger.Ledger, mp *models.Mapping) (*Account, error) {
	ent, err := l.Entity(mp)
	if err != nil {
		return nil, err
	}

	desired := &Account{
		UID:        mp.ShortName,
		CommonName: mp.Name,
		Mail:       mp.Email,
		Shell:      p.shellPath(ent),
	}

	person, ok := ent.(mappable.Person)
	if !ok {
		return nil, fmt.Errorf("%w: person mapping %d has no person entity",
			plugin.ErrInconsistent, mp.ID)
	}
	desired.GivenName = person.GivenName()
	desired.Surname = person.Surname()

	return desired, nil
}

// shellPath maps the entity's shell preference to a login shell path,
// falling back to the configured default.
func (p *Plugin) shellPath(ent mappable.Entity) string {
	pref := ent.ExtraAttrs()["shell"]
	if pref == "" {
		pref = p.engine.DefaultShell
	}

	return p.engine.Shells[pref]
}

func (p *Plugin) diffAccount(l *ledger.Ledger, mp *models.Mapping, account *Account, fix bool) ([]plugin.Change, error) {
	desired, err := p.desiredAccount(l, mp)
	if err != nil {
		return nil, err
	}

	var items []string
	diff := func(field, cur, want string) {
		if cur != want {
			items = append(items, plugin.FieldChange(field, cur, want))
		}
	}

	diff("uid", account.UID, desired.UID)
	diff("cn", account.CommonName, desired.CommonName)
	diff("givenName", account.GivenName, desired.GivenName)
	diff("sn", account.Surname, desired.Surname)
	diff("mail", account.Mail, desired.Mail)
	if desired.Shell != "" {
		diff("loginShell", account.Shell, desired.Shell)
	}

	if len(items) == 0 {
		return nil, nil
	}

	if fix {
		if err := p.client.UpdateAccount(mp.DirectoryGUID, *desired); err != nil {
			return nil, err
		}
	}

	return []plugin.Change{plugin.NewChange("account", items...)}, nil
}

// diffGroups converges the account's group memberships on the mapping's
// resolved directory-flagged groups. A desired group that has no directory
// object yet is bootstrapped through the orchestrator first.
func (p *Plugin) diffGroups(orch plugin.Orchestrator, mp *models.Mapping, fix bool) ([]plugin.Change, error) {
	l := orch.Ledger()

	groups, err := l.Groups(mp, ledger.SelectDirectory)
	if err != nil {
		return nil, err
	}

	desired := map[string]*models.Mapping{}
	for i := range groups {
		g := groups[i]
		if g.ShortName == "" {
			continue
		}
		needsDir, err := l.NeedsDirectoryAccount(&g)
		if err != nil {
			return nil, err
		}
		if needsDir {
			desired[g.ShortName] = &groups[i]
		}
	}

	actual, err := p.client.MemberOf(mp.DirectoryGUID)
	if err != nil {
		return nil, err
	}
	actualSet := map[string]bool{}
	for _, cn := range actual {
		actualSet[cn] = true
	}

	var items []string

	for _, cn := range actual {
		if desired[cn] != nil {
			continue
		}
		items = append(items, "-"+cn)
		if fix {
			group, err := p.client.GroupByCN(cn)
			if err != nil {
				return nil, err
			}
			if err := p.client.RemoveMember(group.GUID, mp.DirectoryGUID); err != nil {
				return nil, err
			}
		}
	}

	for cn, groupMp := range desired {
		if actualSet[cn] {
			continue
		}
		items = append(items, "+"+cn)
		if !fix {
			continue
		}

		group, err := p.lookupOrBootstrapGroup(orch, groupMp, fix)
		if err != nil {
			return nil, err
		}
		if err := p.client.AddMember(group.GUID, mp.DirectoryGUID); err != nil {
			return nil, err
		}
	}

	if len(items) == 0 {
		return nil, nil
	}

	return []plugin.Change{plugin.NewChange("groups", items...)}, nil
}

// lookupOrBootstrapGroup resolves a group object, running the group
// mapping's own verification first when the object does not exist yet.
func (p *Plugin) lookupOrBootstrapGroup(orch plugin.Orchestrator, groupMp *models.Mapping, fix bool) (*Group, error) {
	if groupMp.DirectoryGUID != "" {
		group, err := p.client.GroupByGUID(groupMp.DirectoryGUID)
		if err == nil {
			return group, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	if err := orch.VerifyNow(groupMp.ID, fix); err != nil {
		return nil, err
	}

	// Re-read the slot the group's own reconcile just filled.
	fresh, err := orch.Ledger().Get(groupMp.ID)
	if err != nil {
		return nil, err
	}
	if fresh.DirectoryGUID == "" {
		return nil, plugin.NewBackendError(backendName, "bootstrap group",
			errors.New("group "+fresh.ShortName+" has no directory object after verification"))
	}

	return p.client.GroupByGUID(fresh.DirectoryGUID)
}

func (p *Plugin) reconcileGroup(orch plugin.Orchestrator, mp *models.Mapping, needed, fix bool) ([]plugin.Change, error) {
	l := orch.Ledger()

	var group *Group
	if mp.DirectoryGUID != "" {
		var err error
		group, err = p.client.GroupByGUID(mp.DirectoryGUID)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				return nil, err
			}
			log.Warn().Uint("mapping", mp.ID).Str("guid", mp.DirectoryGUID).
				Msg("stale directory guid")
			if fix {
				mp.DirectoryGUID = ""
				if err := l.Save(mp); err != nil {
					return nil, err
				}
			}
			group = nil
		}
	}

	desired := Group{CN: mp.ShortName, Description: mp.Name, Mail: mp.Email}

	if group == nil {
		if !needed {
			return nil, nil
		}

		if fix {
			guid, err := p.client.CreateGroup(desired)
			if err != nil {
				return nil, err
			}
			mp.DirectoryGUID = guid
			if err := l.Save(mp); err != nil {
				return nil, err
			}
			log.Info().Uint("mapping", mp.ID).Str("cn", desired.CN).Msg("directory group created")
			orch.NotifyAccountCreated(backendName, mp, "")
		}

		return []plugin.Change{plugin.NewChange("group", mp.ShortName + " created")}, nil
	}

	// Groups have no grace period.
	if !needed {
		if fix {
			if err := p.client.DeleteGroup(mp.DirectoryGUID); err != nil {
				return nil, err
			}
			mp.DirectoryGUID = ""
			if err := l.Save(mp); err != nil {
				return nil, err
			}
			log.Info().Uint("mapping", mp.ID).Str("cn", group.CN).Msg("directory group deleted")
		}

		return []plugin.Change{plugin.NewChange("group", mp.ShortName + " deleted")}, nil
	}

	var items []string
	diff := func(field, cur, want string) {
		if cur != want {
			items = append(items, plugin.FieldChange(field, cur, want))
		}
	}
	diff("cn", group.CN, desired.CN)
	diff("description", group.Description, desired.Description)
	diff("mail", group.Mail, desired.Mail)

	if len(items) == 0 {
		return nil, nil
	}

	if fix {
		if err := p.client.UpdateGroup(mp.DirectoryGUID, desired); err != nil {
			return nil, err
		}
	}

	return []plugin.Change{plugin.NewChange("group", items...)}, nil
}

// scheduleAccountDelete gives a no-longer-needed person account its grace
// period: an event is scheduled instead of deleting right away, so a person
// who returns within the period loses nothing.
func (p *Plugin) scheduleAccountDelete(orch plugin.Orchestrator, mp *models.Mapping, fix bool) error {
	db := orch.Ledger().DB()

	_, err := event.Get(db, models.EventTypeDeleteDirectoryAccount, mp.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, event.ErrEventNotFound) {
		return err
	}

	if !fix {
		return nil
	}

	at := time.Now().Add(p.engine.GracePeriod)
	if _, err := event.Schedule(db, models.EventTypeDeleteDirectoryAccount, mp.ID, at); err != nil {
		return err
	}

	log.Info().Uint("mapping", mp.ID).Str("mapping_name", mp.Name).Time("at", at).
		Msg("directory account deletion scheduled")
	orch.NotifyAccountScheduledDelete(backendName, mp, at)

	return nil
}

func (p *Plugin) unscheduleAccountDelete(orch plugin.Orchestrator, mp *models.Mapping, fix bool) error {
	db := orch.Ledger().DB()

	_, err := event.Get(db, models.EventTypeDeleteDirectoryAccount, mp.ID)
	if errors.Is(err, event.ErrEventNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if !fix {
		return nil
	}

	if err := event.Unschedule(db, models.EventTypeDeleteDirectoryAccount, mp.ID); err != nil {
		return err
	}

	log.Info().Uint("mapping", mp.ID).Str("mapping_name", mp.Name).
		Msg("directory account deletion cancelled")
	orch.NotifyAccountUnscheduledDelete(backendName, mp)

	return nil
}

// ExecuteEvent implements plugin.EventExecutor for the delayed account
// deletion scheduled above.
func (p *Plugin) ExecuteEvent(orch plugin.Orchestrator, ev models.Event, mp *models.Mapping) (bool, error) {
	if ev.Type != models.EventTypeDeleteDirectoryAccount {
		return false, nil
	}

	if mp.DirectoryGUID != "" {
		if err := p.client.DeleteAccount(mp.DirectoryGUID); err != nil && !errors.Is(err, ErrNotFound) {
			return false, err
		}
		mp.DirectoryGUID = ""
		if err := orch.Ledger().Save(mp); err != nil {
			return false, err
		}
	}

	log.Info().Uint("mapping", mp.ID).Str("mapping_name", mp.Name).
		Msg("directory account deleted after grace period")

	return true, nil
}
