package groupware

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/claudia-sync/claudia/internal/config"
	"github.com/claudia-sync/claudia/internal/db/controller/event"
	"github.com/claudia-sync/claudia/internal/db/controller/membership"
	"github.com/claudia-sync/claudia/internal/db/models"
	"github.com/claudia-sync/claudia/internal/engine"
	"github.com/claudia-sync/claudia/internal/engine/cycle"
	"github.com/claudia-sync/claudia/internal/engine/queue"
	"github.com/claudia-sync/claudia/internal/ledger"
	"github.com/claudia-sync/claudia/internal/mappable"
	"github.com/claudia-sync/claudia/internal/members"
	"github.com/claudia-sync/claudia/internal/plugin"
)

type fakeMember struct {
	id    string
	email string
}

// fakeClient is an in-memory groupware suite.
type fakeClient struct {
	seq     int
	users   map[string]*User
	aliases map[string][]string

	groups       map[string]*GroupObj
	groupMembers map[string][]fakeMember
	groupAliases map[string][]string

	drives      map[string]string
	permissions map[string][]Permission
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		users:        map[string]*User{},
		aliases:      map[string][]string{},
		groups:       map[string]*GroupObj{},
		groupMembers: map[string][]fakeMember{},
		groupAliases: map[string][]string{},
		drives:       map[string]string{},
		permissions:  map[string][]Permission{},
	}
}

func (f *fakeClient) nextID() string {
	f.seq++
	return fmt.Sprintf("gw-%04d", f.seq)
}

func (f *fakeClient) UserByID(id string) (*User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeClient) CreateUser(u User, _ string) (string, error) {
	id := f.nextID()
	u.ID = id
	f.users[id] = &u
	return id, nil
}

func (f *fakeClient) UpdateUser(id string, u User) error {
	if _, ok := f.users[id]; !ok {
		return ErrNotFound
	}
	u.ID = id
	f.users[id] = &u
	return nil
}

func (f *fakeClient) DeleteUser(id string) error {
	if _, ok := f.users[id]; !ok {
		return ErrNotFound
	}
	delete(f.users, id)
	delete(f.aliases, id)
	return nil
}

func (f *fakeClient) UserAliases(id string) ([]string, error) { return f.aliases[id], nil }

func (f *fakeClient) AddUserAlias(id, alias string) error {
	f.aliases[id] = append(f.aliases[id], alias)
	return nil
}

func (f *fakeClient) RemoveUserAlias(id, alias string) error {
	f.aliases[id] = removeString(f.aliases[id], alias)
	return nil
}

func (f *fakeClient) GroupByID(id string) (*GroupObj, error) {
	g, ok := f.groups[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (f *fakeClient) CreateGroup(g GroupObj) (string, error) {
	id := f.nextID()
	g.ID = id
	f.groups[id] = &g
	return id, nil
}

func (f *fakeClient) UpdateGroup(id string, g GroupObj) error {
	if _, ok := f.groups[id]; !ok {
		return ErrNotFound
	}
	g.ID = id
	f.groups[id] = &g
	return nil
}

func (f *fakeClient) DeleteGroup(id string) error {
	if _, ok := f.groups[id]; !ok {
		return ErrNotFound
	}
	delete(f.groups, id)
	delete(f.groupMembers, id)
	delete(f.groupAliases, id)
	return nil
}

func (f *fakeClient) GroupMembers(id string) ([]GroupMember, error) {
	var out []GroupMember
	for _, m := range f.groupMembers[id] {
		out = append(out, GroupMember{ID: m.id, Email: m.email})
	}
	return out, nil
}

func (f *fakeClient) AddGroupMember(id, email string) (string, error) {
	memberID := f.nextID()
	f.groupMembers[id] = append(f.groupMembers[id], fakeMember{id: memberID, email: email})
	return memberID, nil
}

func (f *fakeClient) RemoveGroupMember(id, memberID string) error {
	cur := f.groupMembers[id]
	for i, m := range cur {
		if m.id == memberID {
			f.groupMembers[id] = append(cur[:i:i], cur[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (f *fakeClient) GroupAliases(id string) ([]string, error) { return f.groupAliases[id], nil }

func (f *fakeClient) AddGroupAlias(id, alias string) error {
	f.groupAliases[id] = append(f.groupAliases[id], alias)
	return nil
}

func (f *fakeClient) RemoveGroupAlias(id, alias string) error {
	f.groupAliases[id] = removeString(f.groupAliases[id], alias)
	return nil
}

func (f *fakeClient) DriveByID(id string) (*Drive, error) {
	name, ok := f.drives[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &Drive{ID: id, Name: name}, nil
}

func (f *fakeClient) CreateDrive(name string) (string, error) {
	id := f.nextID()
	f.drives[id] = name
	return id, nil
}

func (f *fakeClient) RenameDrive(id, name string) error {
	if _, ok := f.drives[id]; !ok {
		return ErrNotFound
	}
	f.drives[id] = name
	return nil
}

func (f *fakeClient) DeleteDrive(id string) error {
	if _, ok := f.drives[id]; !ok {
		return ErrNotFound
	}
	delete(f.drives, id)
	delete(f.permissions, id)
	return nil
}

func (f *fakeClient) DrivePermissions(id string) ([]Permission, error) { return f.permissions[id], nil }

func (f *fakeClient) GrantDrivePermission(driveID, email string) (string, error) {
	permID := f.nextID()
	f.permissions[driveID] = append(f.permissions[driveID],
		Permission{ID: permID, Email: email, Role: "writer"})
	return permID, nil
}

func (f *fakeClient) RevokeDrivePermission(driveID, permissionID string) error {
	cur := f.permissions[driveID]
	for i, p := range cur {
		if p.ID == permissionID {
			f.permissions[driveID] = append(cur[:i:i], cur[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func removeString(in []string, s string) []string {
	var out []string
	for _, v := range in {
		if !strings.EqualFold(v, s) {
			out = append(out, v)
		}
	}
	return out
}

func setupTestGroupware(t *testing.T) (*engine.Engine, *fakeClient, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to create test database")
	require.NoError(t, db.AutoMigrate(members.AdminModels()...), "failed to migrate test database")
	require.NoError(t, db.AutoMigrate(models.All()...), "failed to migrate test database")

	registry := mappable.NewRegistry()
	require.NoError(t, members.RegisterAll(registry, db, db))

	engineCfg := config.Engine{
		MailDomains:  []string{"example.net", "example.com"},
		GracePeriod:  30 * 24 * time.Hour,
		RetryCeiling: 3,
		CycleTTL:     time.Hour,
	}
	gwCfg := config.Groupware{
		PrimaryDomain: "example.net",
		AdminEmail:    "admin@example.net",
	}

	client := newFakeClient()
	l := ledger.New(db, registry, engineCfg)
	q := queue.New(db, cycle.NewStore(db, engineCfg.CycleTTL), engineCfg.RetryCeiling)
	e := engine.New(l, q, []plugin.Plugin{New(client, gwCfg, engineCfg)}, engineCfg)

	return e, client, db
}

func runMapping(t *testing.T, e *engine.Engine, mappingID uint, fix bool) {
	t.Helper()
	cycleID, err := e.TriggerMapping(mappingID, fix)
	require.NoError(t, err)
	require.NoError(t, e.RunCycle(cycleID))
}

func wrapPerson(t *testing.T, e *engine.Engine, db *gorm.DB, p members.Person) *models.Mapping {
	t.Helper()
	require.NoError(t, db.Create(&p).Error)
	ent, err := e.Ledger().Registry().Resolve(models.MappingTypePerson, p.ID)
	require.NoError(t, err)
	mp, err := e.Ledger().Wrap(ent)
	require.NoError(t, err)
	return mp
}

func TestUserAccountLifecycle(t *testing.T) {
	e, client, db := setupTestGroupware(t)

	mp := wrapPerson(t, e, db, members.Person{
		Username: "jdoe", FirstName: "Jane", LastName: "Doe", Member: true,
	})

	runMapping(t, e, mp.ID, true)

	mp, err := e.Ledger().Get(mp.ID)
	require.NoError(t, err)
	require.NotEmpty(t, mp.GroupwareID)

	user, err := client.UserByID(mp.GroupwareID)
	require.NoError(t, err)
	assert.Equal(t, "jdoe@example.net", user.PrimaryEmail)
	assert.Equal(t, "Jane", user.GivenName)

	// Personal aliases replicated over every internal domain.
	aliases, err := client.UserAliases(mp.GroupwareID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"jane.doe@example.net", "jane.doe@example.com"}, aliases)

	// Leaving schedules deletion; the account survives the grace period.
	require.NoError(t, db.Model(&members.Person{}).Where("username = ?", "jdoe").
		Update("member", false).Error)
	runMapping(t, e, mp.ID, true)

	_, err = client.UserByID(mp.GroupwareID)
	require.NoError(t, err)
	_, err = event.Get(db, models.EventTypeDeleteGroupwareAccount, mp.ID)
	require.NoError(t, err)

	require.NoError(t, e.ExecuteDueEvents(time.Now().Add(31*24*time.Hour)))
	assert.Empty(t, client.users)
}

func TestForwardingFlag(t *testing.T) {
	e, client, db := setupTestGroupware(t)

	mp := wrapPerson(t, e, db, members.Person{
		Username: "jdoe", FirstName: "Jane", LastName: "Doe", Member: true,
	})
	runMapping(t, e, mp.ID, true)

	mp, err := e.Ledger().Get(mp.ID)
	require.NoError(t, err)
	user, err := client.UserByID(mp.GroupwareID)
	require.NoError(t, err)
	require.False(t, user.Forwarding)

	mp.GroupwareForwarding = true
	require.NoError(t, e.Ledger().Save(mp))
	runMapping(t, e, mp.ID, true)

	user, err = client.UserByID(mp.GroupwareID)
	require.NoError(t, err)
	assert.True(t, user.Forwarding)
}

func TestGroupMembersKeyedByEmail(t *testing.T) {
	e, client, db := setupTestGroupware(t)

	person := wrapPerson(t, e, db, members.Person{
		Username: "jdoe", FirstName: "Jane", LastName: "Doe", Email: "private@elsewhere.org", Member: true,
	})
	// The person needs an account first so the group adds the suite address.
	runMapping(t, e, person.ID, true)

	require.NoError(t, db.Create(&models.Contact{
		Name: "External Advisor", Email: "advisor@partner.example", Active: true,
	}).Error)
	contactEnt, err := e.Ledger().Registry().Resolve(models.MappingTypeContact, 1)
	require.NoError(t, err)
	contact, err := e.Ledger().Wrap(contactEnt)
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.ExtraGroup{
		Name: "Advisory Board", ShortName: "advisory", Email: "advisory@example.net", Active: true,
	}).Error)
	groupEnt, err := e.Ledger().Registry().Resolve(models.MappingTypeExtraGroup, 1)
	require.NoError(t, err)
	group, err := e.Ledger().Wrap(groupEnt)
	require.NoError(t, err)

	_, err = membership.Create(db, group.ID, person.ID, membership.Flags{Mail: true})
	require.NoError(t, err)
	_, err = membership.Create(db, group.ID, contact.ID, membership.Flags{Mail: true})
	require.NoError(t, err)

	runMapping(t, e, group.ID, true)

	group, err = e.Ledger().Get(group.ID)
	require.NoError(t, err)
	require.NotEmpty(t, group.GroupwareID)

	got, err := client.GroupMembers(group.GroupwareID)
	require.NoError(t, err)
	emails := make([]string, len(got))
	for i, m := range got {
		emails[i] = m.Email
	}
	assert.ElementsMatch(t, []string{"jdoe@example.net", "advisor@partner.example"}, emails)

	// Removing the contact edge removes the member via its backend id.
	require.NoError(t, membership.Delete(db, group.ID, contact.ID))
	runMapping(t, e, group.ID, true)

	got, err = client.GroupMembers(group.GroupwareID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "jdoe@example.net", got[0].Email)
}

func TestGroupAliases(t *testing.T) {
	e, client, db := setupTestGroupware(t)

	require.NoError(t, db.Create(&models.ExtraGroup{
		Name: "Alias Target", ShortName: "target", Email: "target@example.net", Active: true,
	}).Error)
	ent, err := e.Ledger().Registry().Resolve(models.MappingTypeExtraGroup, 1)
	require.NoError(t, err)
	mp, err := e.Ledger().Wrap(ent)
	require.NoError(t, err)

	runMapping(t, e, mp.ID, true)

	mp, err = e.Ledger().Get(mp.ID)
	require.NoError(t, err)
	aliases, err := client.GroupAliases(mp.GroupwareID)
	require.NoError(t, err)
	// The primary address itself is not an alias.
	assert.ElementsMatch(t, []string{"target@example.com"}, aliases)
}

func TestSharedDrivePermissions(t *testing.T) {
	e, client, db := setupTestGroupware(t)

	person := wrapPerson(t, e, db, members.Person{
		Username: "jdoe", FirstName: "Jane", LastName: "Doe", Member: true,
	})
	runMapping(t, e, person.ID, true)

	require.NoError(t, db.Create(&models.SharedDrive{Name: "Archive", Active: true}).Error)
	driveEnt, err := e.Ledger().Registry().Resolve(models.MappingTypeSharedDrive, 1)
	require.NoError(t, err)
	drive, err := e.Ledger().Wrap(driveEnt)
	require.NoError(t, err)

	_, err = membership.Create(db, drive.ID, person.ID, membership.Flags{SharedDrive: true})
	require.NoError(t, err)

	runMapping(t, e, drive.ID, true)

	drive, err = e.Ledger().Get(drive.ID)
	require.NoError(t, err)
	require.NotEmpty(t, drive.GroupwareID)

	// A permission was granted and recorded locally.
	perms, err := client.DrivePermissions(drive.GroupwareID)
	require.NoError(t, err)
	require.Len(t, perms, 1)
	assert.Equal(t, "jdoe@example.net", perms[0].Email)

	var record models.DrivePermission
	require.NoError(t, db.Where("drive_id = ? AND member_id = ?", drive.ID, person.ID).
		First(&record).Error)
	assert.Equal(t, perms[0].ID, record.PermissionID)

	// A stale backend permission is revoked, the admin's is spared.
	_, err = client.GrantDrivePermission(drive.GroupwareID, "stranger@example.net")
	require.NoError(t, err)
	_, err = client.GrantDrivePermission(drive.GroupwareID, "admin@example.net")
	require.NoError(t, err)

	runMapping(t, e, drive.ID, true)

	perms, err = client.DrivePermissions(drive.GroupwareID)
	require.NoError(t, err)
	emails := make([]string, len(perms))
	for i, p := range perms {
		emails[i] = p.Email
	}
	assert.ElementsMatch(t, []string{"jdoe@example.net", "admin@example.net"}, emails)

	// Dropping the member revokes by the stored permission id.
	require.NoError(t, membership.Delete(db, drive.ID, person.ID))
	runMapping(t, e, drive.ID, true)

	perms, err = client.DrivePermissions(drive.GroupwareID)
	require.NoError(t, err)
	emails = emails[:0]
	for _, p := range perms {
		emails = append(emails, p.Email)
	}
	assert.ElementsMatch(t, []string{"admin@example.net"}, emails)

	var count int64
	require.NoError(t, db.Model(&models.DrivePermission{}).Where("drive_id = ?", drive.ID).
		Count(&count).Error)
	assert.Zero(t, count)
}

func TestExtraPersonalAliases(t *testing.T) {
	e, client, db := setupTestGroupware(t)

	mp := wrapPerson(t, e, db, members.Person{
		Username: "jdoe", FirstName: "Jane", LastName: "Doe", Member: true,
	})
	runMapping(t, e, mp.ID, true)

	require.NoError(t, db.Create(&models.ExtraPersonalAlias{
		MappingID: mp.ID, Alias: "webmaster@example.net",
	}).Error)

	runMapping(t, e, mp.ID, true)

	mp, err := e.Ledger().Get(mp.ID)
	require.NoError(t, err)
	aliases, err := client.UserAliases(mp.GroupwareID)
	require.NoError(t, err)
	assert.Contains(t, aliases, "webmaster@example.net")
}
