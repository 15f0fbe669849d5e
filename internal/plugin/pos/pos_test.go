package pos

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/claudia-sync/claudia/internal/config"
	"github.com/claudia-sync/claudia/internal/db/models"
	"github.com/claudia-sync/claudia/internal/engine"
	"github.com/claudia-sync/claudia/internal/engine/cycle"
	"github.com/claudia-sync/claudia/internal/engine/queue"
	"github.com/claudia-sync/claudia/internal/ledger"
	"github.com/claudia-sync/claudia/internal/mappable"
	"github.com/claudia-sync/claudia/internal/members"
	"github.com/claudia-sync/claudia/internal/plugin"
)

// fakeClient is an in-memory point-of-sale backend.
type fakeClient struct {
	accounts map[string]*Account
	cards    map[string]map[string]bool
	auths    map[string]map[string]bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		accounts: map[string]*Account{},
		cards:    map[string]map[string]bool{},
		auths:    map[string]map[string]bool{},
	}
}

func (f *fakeClient) AccountByNumber(number string) (*Account, error) {
	a, ok := f.accounts[number]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeClient) CreateAccount(a Account) error {
	f.accounts[a.Number] = &a
	f.cards[a.Number] = map[string]bool{}
	f.auths[a.Number] = map[string]bool{}
	return nil
}

func (f *fakeClient) UpdateAccount(a Account) error {
	if _, ok := f.accounts[a.Number]; !ok {
		return ErrNotFound
	}
	f.accounts[a.Number] = &a
	return nil
}

func (f *fakeClient) Cards(number string) ([]string, error) {
	var out []string
	for uid := range f.cards[number] {
		out = append(out, uid)
	}
	return out, nil
}

func (f *fakeClient) AddCard(number, uid string) error {
	f.cards[number][uid] = true
	return nil
}

func (f *fakeClient) RemoveCard(number, uid string) error {
	delete(f.cards[number], uid)
	return nil
}

func (f *fakeClient) Authorizations(number string) ([]string, error) {
	var out []string
	for kind := range f.auths[number] {
		out = append(out, kind)
	}
	return out, nil
}

func (f *fakeClient) Grant(number, kind string) error {
	f.auths[number][kind] = true
	return nil
}

func (f *fakeClient) Revoke(number, kind string) error {
	delete(f.auths[number], kind)
	return nil
}

func setupTestPOS(t *testing.T) (*engine.Engine, *fakeClient, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to create test database")
	require.NoError(t, db.AutoMigrate(members.AdminModels()...), "failed to migrate test database")
	require.NoError(t, db.AutoMigrate(models.All()...), "failed to migrate test database")

	registry := mappable.NewRegistry()
	require.NoError(t, members.RegisterAll(registry, db, db))

	engineCfg := config.Engine{
		MailDomains:  []string{"example.net"},
		GracePeriod:  30 * 24 * time.Hour,
		RetryCeiling: 3,
		CycleTTL:     time.Hour,
	}

	client := newFakeClient()
	l := ledger.New(db, registry, engineCfg)
	q := queue.New(db, cycle.NewStore(db, engineCfg.CycleTTL), engineCfg.RetryCeiling)
	e := engine.New(l, q, []plugin.Plugin{New(client)}, engineCfg)

	return e, client, db
}

func runMapping(t *testing.T, e *engine.Engine, mappingID uint, fix bool) {
	t.Helper()
	cycleID, err := e.TriggerMapping(mappingID, fix)
	require.NoError(t, err)
	require.NoError(t, e.RunCycle(cycleID))
}

func wrapPerson(t *testing.T, e *engine.Engine, personID uint) *models.Mapping {
	t.Helper()
	ent, err := e.Ledger().Registry().Resolve(models.MappingTypePerson, personID)
	require.NoError(t, err)
	mp, err := e.Ledger().Wrap(ent)
	require.NoError(t, err)
	return mp
}

// A non-member with an active mandate and a registered card still gets a
// synchronized account with the consumption authorization.
func TestMandateAndCardKeepPersonSynchronized(t *testing.T) {
	e, client, db := setupTestPOS(t)

	p := members.Person{
		Username: "jdoe", FirstName: "Jane", LastName: "Doe",
		StudentNumber: "s1234567", ConsumptionMandate: true,
	}
	require.NoError(t, db.Create(&p).Error)
	require.NoError(t, db.Create(&members.RFIDCard{PersonID: p.ID, UID: "04A2B3C4"}).Error)

	mp := wrapPerson(t, e, p.ID)
	runMapping(t, e, mp.ID, true)

	mp, err := e.Ledger().Get(mp.ID)
	require.NoError(t, err)
	assert.True(t, mp.Active)

	account, err := client.AccountByNumber("s1234567")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", account.Name)

	cards, err := client.Cards("s1234567")
	require.NoError(t, err)
	assert.Equal(t, []string{"04A2B3C4"}, cards)

	auths, err := client.Authorizations("s1234567")
	require.NoError(t, err)
	assert.Equal(t, []string{AuthorizationConsumption}, auths)
}

// Without a mandate no consumption authorization is granted, but the
// account and cards are still synchronized for an active member.
func TestMemberWithoutMandateGetsNoAuthorization(t *testing.T) {
	e, client, db := setupTestPOS(t)

	p := members.Person{
		Username: "jdoe", FirstName: "Jane", LastName: "Doe",
		EmployeeNumber: "e0042", Member: true,
	}
	require.NoError(t, db.Create(&p).Error)
	require.NoError(t, db.Create(&members.RFIDCard{PersonID: p.ID, UID: "04FFEE00"}).Error)

	mp := wrapPerson(t, e, p.ID)
	runMapping(t, e, mp.ID, true)

	cards, err := client.Cards("e0042")
	require.NoError(t, err)
	assert.Equal(t, []string{"04FFEE00"}, cards)

	auths, err := client.Authorizations("e0042")
	require.NoError(t, err)
	assert.Empty(t, auths)
}

// When the person is no longer needed their cards and authorization are
// removed, but the account itself stays for the consumption history.
func TestDeactivationStripsCardsButKeepsAccount(t *testing.T) {
	e, client, db := setupTestPOS(t)

	p := members.Person{
		Username: "jdoe", FirstName: "Jane", LastName: "Doe",
		StudentNumber: "s1234567", Member: true, ConsumptionMandate: true,
	}
	require.NoError(t, db.Create(&p).Error)
	require.NoError(t, db.Create(&members.RFIDCard{PersonID: p.ID, UID: "04A2B3C4"}).Error)

	mp := wrapPerson(t, e, p.ID)
	runMapping(t, e, mp.ID, true)

	require.NoError(t, db.Model(&members.Person{}).Where("id = ?", p.ID).
		Updates(map[string]any{"member": false, "consumption_mandate": false}).Error)
	runMapping(t, e, mp.ID, true)

	mp, err := e.Ledger().Get(mp.ID)
	require.NoError(t, err)
	assert.False(t, mp.Active)

	_, err = client.AccountByNumber("s1234567")
	require.NoError(t, err, "account must survive deactivation")

	cards, err := client.Cards("s1234567")
	require.NoError(t, err)
	assert.Empty(t, cards)

	auths, err := client.Authorizations("s1234567")
	require.NoError(t, err)
	assert.Empty(t, auths)
}

// A person without a student or employee number is skipped entirely.
func TestPersonWithoutNumberIsSkipped(t *testing.T) {
	e, client, db := setupTestPOS(t)

	p := members.Person{Username: "jdoe", FirstName: "Jane", LastName: "Doe", Member: true}
	require.NoError(t, db.Create(&p).Error)

	mp := wrapPerson(t, e, p.ID)
	runMapping(t, e, mp.ID, true)

	assert.Empty(t, client.accounts)
}

// A dry run reports the pending work without touching the backend; a
// repeated fixing run reports nothing.
func TestReconcileIsIdempotentAndDryRunPure(t *testing.T) {
	e, client, db := setupTestPOS(t)

	p := members.Person{
		Username: "jdoe", FirstName: "Jane", LastName: "Doe",
		StudentNumber: "s1234567", Member: true, ConsumptionMandate: true,
	}
	require.NoError(t, db.Create(&p).Error)
	require.NoError(t, db.Create(&members.RFIDCard{PersonID: p.ID, UID: "04A2B3C4"}).Error)

	mp := wrapPerson(t, e, p.ID)
	runMapping(t, e, mp.ID, false)
	assert.Empty(t, client.accounts, "dry run must not create anything")

	runMapping(t, e, mp.ID, true)

	plug := New(client)
	changes, err := plug.Reconcile(e, mp, true)
	require.NoError(t, err)
	assert.Empty(t, changes)
}
