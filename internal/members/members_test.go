package members

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/claudia-sync/claudia/internal/db/models"
	"github.com/claudia-sync/claudia/internal/mappable"
)

// setupTestDB creates an in-memory SQLite database with both the member
// administration tables and the ledger tables.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to create test database")

	err = db.AutoMigrate(AdminModels()...)
	require.NoError(t, err, "failed to migrate test database")

	err = db.AutoMigrate(models.All()...)
	require.NoError(t, err, "failed to migrate test database")

	return db
}

func seedPerson(t *testing.T, db *gorm.DB, p Person) Person {
	t.Helper()
	require.NoError(t, db.Create(&p).Error, "failed to seed test data")
	return p
}

func TestPersonEntity(t *testing.T) {
	db := setupTestDB(t)

	p := seedPerson(t, db, Person{
		Username:  "jdoe",
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     "jane@example.net",
		Member:    true,
		Shell:     "zsh",
		Webmaster: true,
	})

	source := NewPersonSource(db)
	ent, err := source.ByID(p.ID)
	require.NoError(t, err)

	assert.Equal(t, "Jane Doe", ent.Name())
	assert.Equal(t, "jdoe", ent.ShortName())
	assert.Equal(t, models.MappingTypePerson, ent.MappableType())
	assert.True(t, ent.IsPerson())
	assert.False(t, ent.IsGroup())
	assert.Equal(t, "zsh", ent.ExtraAttrs()["shell"])
	assert.Equal(t, "true", ent.ExtraAttrs()["webmaster"])

	needed, err := ent.Needed()
	require.NoError(t, err)
	assert.True(t, needed)

	person, ok := ent.(mappable.Person)
	require.True(t, ok)
	assert.Equal(t, "Jane", person.GivenName())
	assert.Equal(t, []string{"jane.doe"}, person.PersonalAliases())

	_, err = source.ByID(p.ID + 100)
	require.ErrorIs(t, err, mappable.ErrEntityNotFound)
}

func TestPersonNeededMandateCase(t *testing.T) {
	db := setupTestDB(t)

	// Not a member, no groups, but an active mandate with a registered card.
	p := seedPerson(t, db, Person{
		Username:           "former",
		FirstName:          "Former",
		LastName:           "Member",
		ConsumptionMandate: true,
	})

	source := NewPersonSource(db)

	ent, err := source.ByID(p.ID)
	require.NoError(t, err)

	needed, err := ent.Needed()
	require.NoError(t, err)
	assert.False(t, needed, "mandate without cards should not keep the person needed")

	require.NoError(t, db.Create(&RFIDCard{PersonID: p.ID, UID: "04A2B3C4"}).Error)

	needed, err = ent.Needed()
	require.NoError(t, err)
	assert.True(t, needed, "mandate plus card keeps the person needed")

	// Without the mandate the card alone does not count.
	require.NoError(t, db.Model(&Person{}).Where("id = ?", p.ID).Update("consumption_mandate", false).Error)

	ent, err = source.ByID(p.ID)
	require.NoError(t, err)

	needed, err = ent.Needed()
	require.NoError(t, err)
	assert.False(t, needed)
}

func TestCommitteeMembers(t *testing.T) {
	db := setupTestDB(t)

	current := seedPerson(t, db, Person{Username: "current", FirstName: "Current", LastName: "Member", Member: true})
	former := seedPerson(t, db, Person{Username: "former", FirstName: "Former", LastName: "Member"})

	committee := Committee{Name: "Board", Abbreviation: "board", Email: "board@example.net", Founded: time.Now().Add(-24 * time.Hour)}
	require.NoError(t, db.Create(&committee).Error)

	past := time.Now().Add(-time.Hour)
	require.NoError(t, db.Create(&CommitteeMember{
		CommitteeID: committee.ID, PersonID: current.ID, BeginDate: time.Now().Add(-48 * time.Hour),
	}).Error)
	require.NoError(t, db.Create(&CommitteeMember{
		CommitteeID: committee.ID, PersonID: former.ID, BeginDate: time.Now().Add(-48 * time.Hour), EndDate: &past,
	}).Error)

	source := NewCommitteeSource(db)
	ent, err := source.ByID(committee.ID)
	require.NoError(t, err)
	assert.True(t, ent.IsGroup())
	assert.Equal(t, "board", ent.ShortName())

	seated, err := ent.Members(false)
	require.NoError(t, err)
	require.Len(t, seated, 1)
	assert.Equal(t, "Current Member", seated[0].Name())

	all, err := ent.Members(true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCommitteeAbolished(t *testing.T) {
	db := setupTestDB(t)

	when := time.Now()
	committee := Committee{Name: "Old Committee", Abbreviation: "old", Abolished: &when}
	require.NoError(t, db.Create(&committee).Error)

	ent, err := NewCommitteeSource(db).ByID(committee.ID)
	require.NoError(t, err)
	assert.False(t, ent.Active())

	needed, err := ent.Needed()
	require.NoError(t, err)
	assert.False(t, needed, "abolished committee without members is not needed")
}

func TestPersonGroups(t *testing.T) {
	db := setupTestDB(t)

	p := seedPerson(t, db, Person{Username: "jdoe", FirstName: "Jane", LastName: "Doe", Member: true})

	committee := Committee{Name: "Board", Abbreviation: "board"}
	require.NoError(t, db.Create(&committee).Error)
	require.NoError(t, db.Create(&CommitteeMember{
		CommitteeID: committee.ID, PersonID: p.ID, BeginDate: time.Now().Add(-time.Hour),
	}).Error)

	generation := DoGroupGeneration{Name: "Dodo 2026", Year: 2026, Active: true}
	require.NoError(t, db.Create(&generation).Error)
	require.NoError(t, db.Create(&DoGroupParticipant{GenerationID: generation.ID, PersonID: p.ID}).Error)

	ent, err := NewPersonSource(db).ByID(p.ID)
	require.NoError(t, err)

	groups, err := ent.Groups()
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "Board", groups[0].Name())
	assert.Equal(t, "Dodo 2026", groups[1].Name())
}

func TestAliasPart(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want string
	}{
		{name: "simple", in: "Jane", want: "jane"},
		{name: "spaces collapsed", in: "van der Berg", want: "vanderberg"},
		{name: "hyphen collapsed", in: "Smith-Jones", want: "smithjones"},
		{name: "digits kept", in: "R2D2", want: "r2d2"},
		{name: "empty", in: "", want: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, aliasPart(tc.in))
		})
	}
}

func TestLedgerEntitySources(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.Create(&models.ExtraGroup{Name: "Admins", ShortName: "admins", Active: true, Sourcehost: true}).Error)
	require.NoError(t, db.Create(&models.Contact{Name: "Printer Vendor", Email: "support@vendor.example", Active: true}).Error)
	require.NoError(t, db.Create(&models.SharedDrive{Name: "Archive", Active: true}).Error)
	require.NoError(t, db.Create(&models.AliasGroup{Name: "Alumni", Email: "alumni@example.net", Active: true}).Error)

	group, err := NewExtraGroupSource(db).ByID(1)
	require.NoError(t, err)
	assert.True(t, group.IsGroup())
	assert.Equal(t, "true", group.ExtraAttrs()["sourcehost"])

	contact, err := NewContactSource(db).ByID(1)
	require.NoError(t, err)
	assert.True(t, contact.IsContact())
	assert.False(t, contact.IsGroup())

	drive, err := NewSharedDriveSource(db).ByID(1)
	require.NoError(t, err)
	assert.True(t, drive.IsSharedDrive())
	assert.True(t, drive.IsGroup())

	alias, err := NewAliasGroupSource(db).ByID(1)
	require.NoError(t, err)
	assert.True(t, alias.IsGroup())
	assert.Equal(t, "alumni@example.net", alias.Email())
}

func TestRegisterAll(t *testing.T) {
	db := setupTestDB(t)

	registry := mappable.NewRegistry()
	require.NoError(t, RegisterAll(registry, db, db))
	assert.Len(t, registry.Types(), 8)
	assert.Equal(t, models.MappingTypePerson, registry.Types()[0])
}
