package groupware

import (
	"errors"
	"fmt"
	"strings"
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

const backendName = "groupware"

const initialPasswordLen = 24

// Plugin reconciles groupware accounts, mail groups and shared drives.
type Plugin struct {
	plugin.Base
	client Client
	cfg    config.Groupware
	engine config.Engine
}

// New creates the groupware plugin over the given client.
func New(client Client, cfg config.Groupware, engine config.Engine) *Plugin {
	return &Plugin{client: client, cfg: cfg, engine: engine}
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return backendName }

// Reconcile implements plugin.Plugin.
func (p *Plugin) Reconcile(orch plugin.Orchestrator, mp *models.Mapping, fix bool) ([]plugin.Change, error) {
	needed, err := orch.Ledger().NeedsGroupwareAccount(mp)
	if err != nil {
		return nil, err
	}

	switch {
	case mp.IsPersonType():
		return p.reconcileUser(orch, mp, needed, fix)
	case mp.Type == models.MappingTypeSharedDrive:
		return p.reconcileDrive(orch, mp, needed, fix)
	case mp.IsGroupType():
		return p.reconcileGroup(orch, mp, needed, fix)
	default:
		// Contacts appear only as email-keyed members of groups.
		return nil, nil
	}
}

func (p *Plugin) primaryEmail(mp *models.Mapping) string {
	return mp.ShortName + "@" + p.cfg.PrimaryDomain
}

func (p *Plugin) desiredUser(l *ledger.Ledger, mp *models.Mapping) (*User, error) {
	person, ok := entityAsPerson(l, mp)
	if !ok {
		return nil, fmt.Errorf("%w: person mapping %d has no person entity",
			plugin.ErrInconsistent, mp.ID)
	}

	return &User{
		PrimaryEmail: p.primaryEmail(mp),
		GivenName:    person.GivenName(),
		Surname:      person.Surname(),
		Forwarding:   mp.GroupwareForwarding,
	}, nil
}

func entityAsPerson(l *ledger.Ledger, mp *models.Mapping) (mappable.Person, bool) {
	ent, err := l.Entity(mp)
	if err != nil {
		return nil, false
	}
	person, ok := ent.(mappable.Person)
	return person, ok
}

func (p *Plugin) reconcileUser(orch plugin.Orchestrator, mp *models.Mapping, needed, fix bool) ([]plugin.Change, error) {
	l := orch.Ledger()

	exists, err := p.resolveSlot(l, mp, fix, func(id string) error {
		_, err := p.client.UserByID(id)
		return err
	})
	if err != nil {
		return nil, err
	}
	var account *User
	if exists {
		account, err = p.client.UserByID(mp.GroupwareID)
		if err != nil {
			return nil, err
		}
	}

	var changes []plugin.Change

	if account == nil {
		if !needed {
			return nil, nil
		}

		changes = append(changes, plugin.NewChange("account", p.primaryEmail(mp)+" created"))
		if fix {
			desired, err := p.desiredUser(l, mp)
			if err != nil {
				return nil, err
			}

			password := uniuri.NewLen(initialPasswordLen)
			id, err := p.client.CreateUser(*desired, password)
			if err != nil {
				return nil, err
			}

			mp.GroupwareID = id
			if err := l.Save(mp); err != nil {
				return nil, err
			}
			log.Info().Uint("mapping", mp.ID).Str("email", desired.PrimaryEmail).
				Msg("groupware account created")
			orch.NotifyAccountCreated(backendName, mp, password)

			account = desired
			account.ID = id
		}
	} else if !needed {
		return nil, p.scheduleUserDelete(orch, mp, fix)
	}

	if needed {
		if err := p.unscheduleUserDelete(orch, mp, fix); err != nil {
			return nil, err
		}
	}

	if account == nil {
		return changes, nil
	}

	attrChanges, err := p.diffUser(l, mp, account, fix)
	if err != nil {
		return nil, err
	}
	changes = append(changes, attrChanges...)

	aliasChanges, err := p.diffUserAliases(l, mp, fix)
	if err != nil {
		return nil, err
	}
	changes = append(changes, aliasChanges...)

	return changes, nil
}

// resolveSlot probes the mapping's backend-id slot. A stale id is cleared
// under fix so the next pass recreates the object. Reports whether the
// object exists.
func (p *Plugin) resolveSlot(l *ledger.Ledger, mp *models.Mapping, fix bool, probe func(id string) error) (bool, error) {
	if mp.GroupwareID == "" {
		return false, nil
	}

	err := probe(mp.GroupwareID)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}

	log.Warn().Uint("mapping", mp.ID).Str("id", mp.GroupwareID).Msg("stale groupware id")
	if fix {
		mp.GroupwareID = ""
		if err := l.Save(mp); err != nil {
			return false, err
		}
	}

	return false, nil
}

func (p *Plugin) diffUser(l *ledger.Ledger, mp *models.Mapping, account *User, fix bool) ([]plugin.Change, error) {
	desired, err := p.desiredUser(l, mp)
	if err != nil {
		return nil, err
	}

	var items []string
	if account.PrimaryEmail != desired.PrimaryEmail {
		items = append(items, plugin.FieldChange("email", account.PrimaryEmail, desired.PrimaryEmail))
	}
	if account.GivenName != desired.GivenName {
		items = append(items, plugin.FieldChange("givenName", account.GivenName, desired.GivenName))
	}
	if account.Surname != desired.Surname {
		items = append(items, plugin.FieldChange("surname", account.Surname, desired.Surname))
	}
	if account.Forwarding != desired.Forwarding {
		items = append(items, plugin.FieldChange("forwarding",
			fmt.Sprintf("%t", account.Forwarding), fmt.Sprintf("%t", desired.Forwarding)))
	}

	if len(items) == 0 {
		return nil, nil
	}

	if fix {
		if err := p.client.UpdateUser(mp.GroupwareID, *desired); err != nil {
			return nil, err
		}
	}

	return []plugin.Change{plugin.NewChange("account", items...)}, nil
}

func (p *Plugin) diffUserAliases(l *ledger.Ledger, mp *models.Mapping, fix bool) ([]plugin.Change, error) {
	desired, err := l.PersonalAliases(mp)
	if err != nil {
		return nil, err
	}

	actual, err := p.client.UserAliases(mp.GroupwareID)
	if err != nil {
		return nil, err
	}

	return p.diffAliases(desired, actual, fix,
		func(a string) error { return p.client.AddUserAlias(mp.GroupwareID, a) },
		func(a string) error { return p.client.RemoveUserAlias(mp.GroupwareID, a) })
}

// diffAliases converges an actual alias set on the desired one. The primary
// address never appears in either set.
func (p *Plugin) diffAliases(desired, actual []string, fix bool, add, remove func(string) error) ([]plugin.Change, error) {
	desiredSet := map[string]bool{}
	for _, a := range desired {
		desiredSet[strings.ToLower(a)] = true
	}
	actualSet := map[string]bool{}
	for _, a := range actual {
		actualSet[strings.ToLower(a)] = true
	}

	var items []string

	for _, a := range actual {
		if desiredSet[strings.ToLower(a)] {
			continue
		}
		items = append(items, "-"+a)
		if fix {
			if err := remove(a); err != nil {
				return nil, err
			}
		}
	}

	for _, a := range desired {
		if actualSet[strings.ToLower(a)] {
			continue
		}
		items = append(items, "+"+a)
		if fix {
			if err := add(a); err != nil {
				return nil, err
			}
		}
	}

	if len(items) == 0 {
		return nil, nil
	}

	return []plugin.Change{plugin.NewChange("aliases", items...)}, nil
}

func (p *Plugin) reconcileGroup(orch plugin.Orchestrator, mp *models.Mapping, needed, fix bool) ([]plugin.Change, error) {
	l := orch.Ledger()

	exists, err := p.resolveSlot(l, mp, fix, func(id string) error {
		_, err := p.client.GroupByID(id)
		return err
	})
	if err != nil {
		return nil, err
	}

	desired := GroupObj{Email: mp.Email, Name: mp.Name}

	if !exists {
		if !needed {
			return nil, nil
		}

		changes := []plugin.Change{plugin.NewChange("group", mp.Email + " created")}
		if !fix {
			return changes, nil
		}

		id, err := p.client.CreateGroup(desired)
		if err != nil {
			return nil, err
		}
		mp.GroupwareID = id
		if err := l.Save(mp); err != nil {
			return nil, err
		}
		log.Info().Uint("mapping", mp.ID).Str("email", mp.Email).Msg("groupware group created")
		orch.NotifyAccountCreated(backendName, mp, "")

		memberChanges, err := p.diffGroupMembers(l, mp, fix)
		if err != nil {
			return nil, err
		}
		aliasChanges, err := p.diffGroupAliases(l, mp, fix)
		if err != nil {
			return nil, err
		}

		return append(changes, append(memberChanges, aliasChanges...)...), nil
	}

	// Groups have no grace period.
	if !needed {
		if fix {
			if err := p.client.DeleteGroup(mp.GroupwareID); err != nil {
				return nil, err
			}
			mp.GroupwareID = ""
			if err := l.Save(mp); err != nil {
				return nil, err
			}
			log.Info().Uint("mapping", mp.ID).Str("email", mp.Email).Msg("groupware group deleted")
		}

		return []plugin.Change{plugin.NewChange("group", mp.Email + " deleted")}, nil
	}

	var changes []plugin.Change

	group, err := p.client.GroupByID(mp.GroupwareID)
	if err != nil {
		return nil, err
	}
	var items []string
	if group.Email != desired.Email {
		items = append(items, plugin.FieldChange("email", group.Email, desired.Email))
	}
	if group.Name != desired.Name {
		items = append(items, plugin.FieldChange("name", group.Name, desired.Name))
	}
	if len(items) > 0 {
		if fix {
			if err := p.client.UpdateGroup(mp.GroupwareID, desired); err != nil {
				return nil, err
			}
		}
		changes = append(changes, plugin.NewChange("group", items...))
	}

	memberChanges, err := p.diffGroupMembers(l, mp, fix)
	if err != nil {
		return nil, err
	}
	aliasChanges, err := p.diffGroupAliases(l, mp, fix)
	if err != nil {
		return nil, err
	}

	return append(changes, append(memberChanges, aliasChanges...)...), nil
}

// diffGroupMembers converges the backend member list on the mapping's
// mail-selected members. Members are keyed by email; removal uses the
// backend membership id captured from the member listing.
func (p *Plugin) diffGroupMembers(l *ledger.Ledger, mp *models.Mapping, fix bool) ([]plugin.Change, error) {
	memberMappings, err := l.Members(mp, ledger.SelectMail, false)
	if err != nil {
		return nil, err
	}

	desired := map[string]bool{}
	for i := range memberMappings {
		email := memberEmail(p.cfg.PrimaryDomain, &memberMappings[i])
		if email != "" {
			desired[strings.ToLower(email)] = true
		}
	}

	actual, err := p.client.GroupMembers(mp.GroupwareID)
	if err != nil {
		return nil, err
	}
	actualSet := map[string]bool{}
	for _, m := range actual {
		actualSet[strings.ToLower(m.Email)] = true
	}

	var items []string

	for _, m := range actual {
		if desired[strings.ToLower(m.Email)] {
			continue
		}
		items = append(items, "-"+m.Email)
		if fix {
			if err := p.client.RemoveGroupMember(mp.GroupwareID, m.ID); err != nil {
				return nil, err
			}
		}
	}

	for email := range desired {
		if actualSet[email] {
			continue
		}
		items = append(items, "+"+email)
		if fix {
			// The backend assigns the membership id here; it is not stored
			// locally because the member listing supplies it again on the
			// removal path.
			if _, err := p.client.AddGroupMember(mp.GroupwareID, email); err != nil {
				return nil, err
			}
		}
	}

	if len(items) == 0 {
		return nil, nil
	}

	return []plugin.Change{plugin.NewChange("members", items...)}, nil
}

// memberEmail picks the address a member joins groups under: the suite
// address for members with an account, the contact address otherwise.
func memberEmail(primaryDomain string, member *models.Mapping) string {
	if member.IsPersonType() && member.GroupwareID != "" {
		return member.ShortName + "@" + primaryDomain
	}

	return member.Email
}

func (p *Plugin) diffGroupAliases(l *ledger.Ledger, mp *models.Mapping, fix bool) ([]plugin.Change, error) {
	var desired []string
	for _, a := range l.Aliases(mp) {
		if !strings.EqualFold(a, mp.Email) {
			desired = append(desired, a)
		}
	}

	actual, err := p.client.GroupAliases(mp.GroupwareID)
	if err != nil {
		return nil, err
	}

	return p.diffAliases(desired, actual, fix,
		func(a string) error { return p.client.AddGroupAlias(mp.GroupwareID, a) },
		func(a string) error { return p.client.RemoveGroupAlias(mp.GroupwareID, a) })
}

func (p *Plugin) reconcileDrive(orch plugin.Orchestrator, mp *models.Mapping, needed, fix bool) ([]plugin.Change, error) {
	l := orch.Ledger()

	exists, err := p.resolveSlot(l, mp, fix, func(id string) error {
		_, err := p.client.DriveByID(id)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !exists {
		if !needed {
			return nil, nil
		}

		changes := []plugin.Change{plugin.NewChange("drive", mp.Name + " created")}
		if !fix {
			return changes, nil
		}

		id, err := p.client.CreateDrive(mp.Name)
		if err != nil {
			return nil, err
		}
		mp.GroupwareID = id
		if err := l.Save(mp); err != nil {
			return nil, err
		}
		log.Info().Uint("mapping", mp.ID).Str("drive", mp.Name).Msg("shared drive created")
		orch.NotifyAccountCreated(backendName, mp, "")

		permChanges, err := p.diffDrivePermissions(l, mp, fix)
		if err != nil {
			return nil, err
		}

		return append(changes, permChanges...), nil
	}

	if !needed {
		if fix {
			if err := p.client.DeleteDrive(mp.GroupwareID); err != nil {
				return nil, err
			}
			mp.GroupwareID = ""
			if err := l.Save(mp); err != nil {
				return nil, err
			}
			log.Info().Uint("mapping", mp.ID).Str("drive", mp.Name).Msg("shared drive deleted")
		}

		return []plugin.Change{plugin.NewChange("drive", mp.Name + " deleted")}, nil
	}

	var changes []plugin.Change

	drive, err := p.client.DriveByID(mp.GroupwareID)
	if err != nil {
		return nil, err
	}
	if drive.Name != mp.Name {
		if fix {
			if err := p.client.RenameDrive(mp.GroupwareID, mp.Name); err != nil {
				return nil, err
			}
		}
		changes = append(changes, plugin.NewChange("drive",
			plugin.FieldChange("name", drive.Name, mp.Name)))
	}

	permChanges, err := p.diffDrivePermissions(l, mp, fix)
	if err != nil {
		return nil, err
	}

	return append(changes, permChanges...), nil
}

// diffDrivePermissions converges shared-drive access on the drive's
// shared-drive-selected members. Grants are recorded locally with the
// backend permission id; stale backend permissions are revoked, except the
// admin's own standing permission.
func (p *Plugin) diffDrivePermissions(l *ledger.Ledger, mp *models.Mapping, fix bool) ([]plugin.Change, error) {
	memberMappings, err := l.Members(mp, ledger.SelectSharedDrive, false)
	if err != nil {
		return nil, err
	}

	type desiredMember struct {
		mappingID uint
		email     string
	}
	desired := map[string]desiredMember{}
	for i := range memberMappings {
		email := memberEmail(p.cfg.PrimaryDomain, &memberMappings[i])
		if email != "" {
			desired[strings.ToLower(email)] = desiredMember{
				mappingID: memberMappings[i].ID,
				email:     email,
			}
		}
	}

	var local []models.DrivePermission
	if err := l.DB().Where("drive_id = ?", mp.ID).Find(&local).Error; err != nil {
		return nil, err
	}
	localByMember := map[uint]models.DrivePermission{}
	for _, perm := range local {
		localByMember[perm.MemberID] = perm
	}

	actual, err := p.client.DrivePermissions(mp.GroupwareID)
	if err != nil {
		return nil, err
	}
	actualByEmail := map[string]Permission{}
	knownPermIDs := map[string]bool{}
	for _, perm := range actual {
		actualByEmail[strings.ToLower(perm.Email)] = perm
	}
	for _, perm := range local {
		knownPermIDs[perm.PermissionID] = true
	}

	var items []string

	// Revoke locally known grants whose member fell out of the drive.
	for _, perm := range local {
		var stillWanted bool
		for _, d := range desired {
			if d.mappingID == perm.MemberID {
				stillWanted = true
				break
			}
		}
		if stillWanted {
			continue
		}

		items = append(items, "-member "+perm.PermissionID)
		if fix {
			if err := p.client.RevokeDrivePermission(mp.GroupwareID, perm.PermissionID); err != nil && !errors.Is(err, ErrNotFound) {
				return nil, err
			}
			if err := l.DB().Delete(&models.DrivePermission{}, perm.ID).Error; err != nil {
				return nil, err
			}
		}
	}

	// Revoke stale backend permissions nothing local accounts for, but
	// never the admin's standing permission.
	for _, perm := range actual {
		if knownPermIDs[perm.ID] {
			continue
		}
		if desired[strings.ToLower(perm.Email)].email != "" {
			continue
		}
		if strings.EqualFold(perm.Email, p.cfg.AdminEmail) {
			continue
		}

		items = append(items, "-stale "+perm.Email)
		if fix {
			if err := p.client.RevokeDrivePermission(mp.GroupwareID, perm.ID); err != nil {
				return nil, err
			}
		}
	}

	for email, d := range desired {
		if _, ok := actualByEmail[email]; ok {
			// Adopt a grant made outside the ledger.
			if _, known := localByMember[d.mappingID]; !known && fix {
				record := models.DrivePermission{
					DriveID:      mp.ID,
					MemberID:     d.mappingID,
					PermissionID: actualByEmail[email].ID,
				}
				if err := l.DB().Create(&record).Error; err != nil {
					return nil, err
				}
			}
			continue
		}

		items = append(items, "+"+d.email)
		if fix {
			permID, err := p.client.GrantDrivePermission(mp.GroupwareID, d.email)
			if err != nil {
				return nil, err
			}
			record := models.DrivePermission{DriveID: mp.ID, MemberID: d.mappingID, PermissionID: permID}
			if err := l.DB().Create(&record).Error; err != nil {
				return nil, err
			}
		}
	}

	if len(items) == 0 {
		return nil, nil
	}

	return []plugin.Change{plugin.NewChange("permissions", items...)}, nil
}

func (p *Plugin) scheduleUserDelete(orch plugin.Orchestrator, mp *models.Mapping, fix bool) error {
	db := orch.Ledger().DB()

	_, err := event.Get(db, models.EventTypeDeleteGroupwareAccount, mp.ID)
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
	if _, err := event.Schedule(db, models.EventTypeDeleteGroupwareAccount, mp.ID, at); err != nil {
		return err
	}

	log.Info().Uint("mapping", mp.ID).Str("mapping_name", mp.Name).Time("at", at).
		Msg("groupware account deletion scheduled")
	orch.NotifyAccountScheduledDelete(backendName, mp, at)

	return nil
}

func (p *Plugin) unscheduleUserDelete(orch plugin.Orchestrator, mp *models.Mapping, fix bool) error {
	db := orch.Ledger().DB()

	_, err := event.Get(db, models.EventTypeDeleteGroupwareAccount, mp.ID)
	if errors.Is(err, event.ErrEventNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if !fix {
		return nil
	}

	if err := event.Unschedule(db, models.EventTypeDeleteGroupwareAccount, mp.ID); err != nil {
		return err
	}

	log.Info().Uint("mapping", mp.ID).Str("mapping_name", mp.Name).
		Msg("groupware account deletion cancelled")
	orch.NotifyAccountUnscheduledDelete(backendName, mp)

	return nil
}

// ExecuteEvent implements plugin.EventExecutor for the delayed account
// deletion scheduled above.
func (p *Plugin) ExecuteEvent(orch plugin.Orchestrator, ev models.Event, mp *models.Mapping) (bool, error) {
	if ev.Type != models.EventTypeDeleteGroupwareAccount {
		return false, nil
	}

	if mp.GroupwareID != "" {
		if err := p.client.DeleteUser(mp.GroupwareID); err != nil && !errors.Is(err, ErrNotFound) {
			return false, err
		}
		mp.GroupwareID = ""
		if err := orch.Ledger().Save(mp); err != nil {
			return false, err
		}
	}

	log.Info().Uint("mapping", mp.ID).Str("mapping_name", mp.Name).
		Msg("groupware account deleted after grace period")

	return true, nil
}
