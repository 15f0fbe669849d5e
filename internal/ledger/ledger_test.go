package ledger

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/claudia-sync/claudia/internal/config"
	"github.com/claudia-sync/claudia/internal/db/controller/membership"
	"github.com/claudia-sync/claudia/internal/db/models"
	"github.com/claudia-sync/claudia/internal/mappable"
	"github.com/claudia-sync/claudia/internal/members"
)

// setupTestLedger creates an in-memory database with the administration and
// ledger tables and a fully registered ledger over it.
func setupTestLedger(t *testing.T, cfg config.Engine) (*Ledger, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to create test database")

	require.NoError(t, db.AutoMigrate(members.AdminModels()...), "failed to migrate test database")
	require.NoError(t, db.AutoMigrate(models.All()...), "failed to migrate test database")

	registry := mappable.NewRegistry()
	require.NoError(t, members.RegisterAll(registry, db, db))

	if len(cfg.MailDomains) == 0 {
		cfg.MailDomains = []string{"example.net", "example.com"}
	}

	return New(db, registry, cfg), db
}

func seedTestPerson(t *testing.T, db *gorm.DB, p members.Person) members.Person {
	t.Helper()
	require.NoError(t, db.Create(&p).Error, "failed to seed test data")
	return p
}

func TestFindCreateWrap(t *testing.T) {
	l, db := setupTestLedger(t, config.Engine{})

	p := seedTestPerson(t, db, members.Person{Username: "jdoe", FirstName: "Jane", LastName: "Doe", Member: true})

	source, err := l.Registry().Source(models.MappingTypePerson)
	require.NoError(t, err)
	ent, err := source.ByID(p.ID)
	require.NoError(t, err)

	_, err = l.Find(ent)
	require.ErrorIs(t, err, ErrMappingNotFound)

	created, err := l.Create(ent)
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "Jane Doe", created.Name)
	assert.Equal(t, "jdoe", created.ShortName)
	assert.False(t, created.Active, "new mappings start inactive")

	_, err = l.Create(ent)
	require.ErrorIs(t, err, ErrMappingExists)

	found, err := l.Find(ent)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	wrapped, err := l.Wrap(ent)
	require.NoError(t, err)
	assert.Equal(t, created.ID, wrapped.ID)

	// A second person never shares a mapping.
	other := seedTestPerson(t, db, members.Person{Username: "other", FirstName: "Other", LastName: "Person"})
	otherEnt, err := source.ByID(other.ID)
	require.NoError(t, err)

	otherMp, err := l.Wrap(otherEnt)
	require.NoError(t, err)
	assert.NotEqual(t, created.ID, otherMp.ID)
}

func TestIsNeeded(t *testing.T) {
	l, db := setupTestLedger(t, config.Engine{})

	p := seedTestPerson(t, db, members.Person{Username: "jdoe", FirstName: "Jane", LastName: "Doe"})

	source, err := l.Registry().Source(models.MappingTypePerson)
	require.NoError(t, err)
	ent, err := source.ByID(p.ID)
	require.NoError(t, err)

	mp, err := l.Wrap(ent)
	require.NoError(t, err)

	needed, err := l.IsNeeded(mp)
	require.NoError(t, err)
	assert.False(t, needed, "inactive unconnected person is not needed")

	// A manual edge into a group makes the person needed.
	require.NoError(t, db.Create(&models.ExtraGroup{Name: "Admins", ShortName: "admins", Active: true}).Error)
	groupEnt, err := l.Registry().Resolve(models.MappingTypeExtraGroup, 1)
	require.NoError(t, err)
	groupMp, err := l.Wrap(groupEnt)
	require.NoError(t, err)

	_, err = membership.Create(db, groupMp.ID, mp.ID, membership.Flags{Directory: true})
	require.NoError(t, err)

	needed, err = l.IsNeeded(mp)
	require.NoError(t, err)
	assert.True(t, needed)

	// The group side also counts its manual members.
	require.NoError(t, db.Model(&models.ExtraGroup{}).Where("id = ?", 1).Update("active", false).Error)
	needed, err = l.IsNeeded(groupMp)
	require.NoError(t, err)
	assert.True(t, needed, "inactive group with manual members stays needed")
}

func TestGroupsSelection(t *testing.T) {
	l, db := setupTestLedger(t, config.Engine{})

	p := seedTestPerson(t, db, members.Person{Username: "jdoe", FirstName: "Jane", LastName: "Doe", Member: true})
	ent, err := l.Registry().Resolve(models.MappingTypePerson, p.ID)
	require.NoError(t, err)
	mp, err := l.Wrap(ent)
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.ExtraGroup{Name: "Mail Only", ShortName: "mailonly", Active: true}).Error)
	require.NoError(t, db.Create(&models.SharedDrive{Name: "Archive", Active: true}).Error)

	mailEnt, err := l.Registry().Resolve(models.MappingTypeExtraGroup, 1)
	require.NoError(t, err)
	mailMp, err := l.Wrap(mailEnt)
	require.NoError(t, err)

	driveEnt, err := l.Registry().Resolve(models.MappingTypeSharedDrive, 1)
	require.NoError(t, err)
	driveMp, err := l.Wrap(driveEnt)
	require.NoError(t, err)

	_, err = membership.Create(db, mailMp.ID, mp.ID, membership.Flags{Mail: true})
	require.NoError(t, err)
	_, err = membership.Create(db, driveMp.ID, mp.ID, membership.Flags{SharedDrive: true})
	require.NoError(t, err)

	all, err := l.Groups(mp, SelectAll)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mail, err := l.Groups(mp, SelectMail)
	require.NoError(t, err)
	require.Len(t, mail, 1)
	assert.Equal(t, mailMp.ID, mail[0].ID)

	drive, err := l.Groups(mp, SelectSharedDrive)
	require.NoError(t, err)
	require.Len(t, drive, 1)
	assert.Equal(t, driveMp.ID, drive[0].ID)

	dir, err := l.Groups(mp, SelectDirectory)
	require.NoError(t, err)
	assert.Empty(t, dir)
}

func TestImplicitGroups(t *testing.T) {
	l, db := setupTestLedger(t, config.Engine{})

	// Seed the implicit groups first so their mapping ids are known.
	require.NoError(t, db.Create(&models.ExtraGroup{Name: "Active Members", ShortName: "activemembers", Active: true}).Error)
	require.NoError(t, db.Create(&models.ExtraGroup{Name: "Webmasters", ShortName: "webmasters", Active: true}).Error)

	activeEnt, err := l.Registry().Resolve(models.MappingTypeExtraGroup, 1)
	require.NoError(t, err)
	activeMp, err := l.Wrap(activeEnt)
	require.NoError(t, err)

	webEnt, err := l.Registry().Resolve(models.MappingTypeExtraGroup, 2)
	require.NoError(t, err)
	webMp, err := l.Wrap(webEnt)
	require.NoError(t, err)

	l.cfg.ActiveMembersMapping = activeMp.ID
	l.cfg.WebmastersMapping = webMp.ID

	p := seedTestPerson(t, db, members.Person{Username: "jdoe", FirstName: "Jane", LastName: "Doe", Member: true, Webmaster: true})
	ent, err := l.Registry().Resolve(models.MappingTypePerson, p.ID)
	require.NoError(t, err)
	mp, err := l.Wrap(ent)
	require.NoError(t, err)

	groups, err := l.Groups(mp, SelectDirectory)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, activeMp.ID, groups[0].ID)
	assert.Equal(t, webMp.ID, groups[1].ID)

	// The implicit group's member list is the inverse computation.
	implicit, err := l.Members(activeMp, SelectDirectory, false)
	require.NoError(t, err)
	require.Len(t, implicit, 1)
	assert.Equal(t, mp.ID, implicit[0].ID)

	// A person without a short name has no directory account and stays out.
	noShort := seedTestPerson(t, db, members.Person{FirstName: "No", LastName: "Short", Member: true})
	noShortEnt, err := l.Registry().Resolve(models.MappingTypePerson, noShort.ID)
	require.NoError(t, err)
	_, err = l.Wrap(noShortEnt)
	require.NoError(t, err)

	implicit, err = l.Members(activeMp, SelectDirectory, false)
	require.NoError(t, err)
	assert.Len(t, implicit, 1)
}

func TestAccountPredicates(t *testing.T) {
	l, db := setupTestLedger(t, config.Engine{})

	require.NoError(t, db.Create(&models.Contact{Name: "Vendor", Email: "v@vendor.example", Active: true}).Error)
	require.NoError(t, db.Create(&models.SharedDrive{Name: "Archive", Active: true}).Error)
	require.NoError(t, db.Create(&models.AliasGroup{Name: "Alumni", Email: "alumni@example.net", Active: true}).Error)

	contactEnt, err := l.Registry().Resolve(models.MappingTypeContact, 1)
	require.NoError(t, err)
	contactMp, err := l.Wrap(contactEnt)
	require.NoError(t, err)

	driveEnt, err := l.Registry().Resolve(models.MappingTypeSharedDrive, 1)
	require.NoError(t, err)
	driveMp, err := l.Wrap(driveEnt)
	require.NoError(t, err)

	aliasEnt, err := l.Registry().Resolve(models.MappingTypeAliasGroup, 1)
	require.NoError(t, err)
	aliasMp, err := l.Wrap(aliasEnt)
	require.NoError(t, err)

	needsDir, err := l.NeedsDirectoryAccount(contactMp)
	require.NoError(t, err)
	assert.False(t, needsDir)

	needsDir, err = l.NeedsDirectoryAccount(driveMp)
	require.NoError(t, err)
	assert.False(t, needsDir)

	needsGw, err := l.NeedsGroupwareAccount(contactMp)
	require.NoError(t, err)
	assert.False(t, needsGw)

	needsGw, err = l.NeedsGroupwareAccount(driveMp)
	require.NoError(t, err)
	assert.True(t, needsGw)

	needsGw, err = l.NeedsGroupwareAccount(aliasMp)
	require.NoError(t, err)
	assert.True(t, needsGw)
}

func TestAliases(t *testing.T) {
	l, _ := setupTestLedger(t, config.Engine{MailDomains: []string{"example.net", "example.com"}})

	testCases := []struct {
		name  string
		email string
		want  []string
	}{
		{
			name:  "internal address",
			email: "board@example.net",
			want:  []string{"board@example.net", "board@example.com"},
		},
		{
			name:  "external address",
			email: "board@elsewhere.example",
			want:  nil,
		},
		{
			name:  "no address",
			email: "",
			want:  nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mp := &models.Mapping{Email: tc.email}
			assert.Equal(t, tc.want, l.Aliases(mp))
		})
	}
}

func TestPersonalAliases(t *testing.T) {
	l, db := setupTestLedger(t, config.Engine{MailDomains: []string{"example.net"}})

	p := seedTestPerson(t, db, members.Person{Username: "jdoe", FirstName: "Jane", LastName: "Doe", Member: true})
	ent, err := l.Registry().Resolve(models.MappingTypePerson, p.ID)
	require.NoError(t, err)
	mp, err := l.Wrap(ent)
	require.NoError(t, err)

	aliases, err := l.PersonalAliases(mp)
	require.NoError(t, err)
	assert.Equal(t, []string{"jane.doe@example.net"}, aliases)

	require.NoError(t, db.Create(&models.ExtraPersonalAlias{MappingID: mp.ID, Alias: "webmaster@example.net"}).Error)

	aliases, err = l.PersonalAliases(mp)
	require.NoError(t, err)
	assert.Equal(t, []string{"jane.doe@example.net", "webmaster@example.net"}, aliases)
}

func TestCheckBasics(t *testing.T) {
	l, db := setupTestLedger(t, config.Engine{})

	p := seedTestPerson(t, db, members.Person{Username: "jdoe", FirstName: "Jane", LastName: "Doe", Email: "jane@example.net", Member: true})
	ent, err := l.Registry().Resolve(models.MappingTypePerson, p.ID)
	require.NoError(t, err)
	mp, err := l.Wrap(ent)
	require.NoError(t, err)

	// In sync, nothing to report.
	changes, err := l.CheckBasics(mp, true)
	require.NoError(t, err)
	assert.Empty(t, changes)

	// The person marries; dry run reports but does not persist.
	require.NoError(t, db.Model(&members.Person{}).Where("id = ?", p.ID).Update("last_name", "Doe-Smith").Error)

	changes, err = l.CheckBasics(mp, false)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "name", changes[0].Field)
	assert.Equal(t, "Jane Doe", changes[0].Old)
	assert.Equal(t, "Jane Doe-Smith", changes[0].New)

	stored, err := l.Get(mp.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", stored.Name, "dry run must not persist")

	// With fixes the mapping row follows the entity.
	changes, err = l.CheckBasics(mp, true)
	require.NoError(t, err)
	require.Len(t, changes, 1)

	stored, err = l.Get(mp.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe-Smith", stored.Name)

	// Idempotent: a second fixed run reports nothing.
	changes, err = l.CheckBasics(stored, true)
	require.NoError(t, err)
	assert.Empty(t, changes)
}
