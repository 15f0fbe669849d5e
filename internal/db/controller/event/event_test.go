package event

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/claudia-sync/claudia/internal/db/models"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to create test database")

	err = db.AutoMigrate(&models.Mapping{}, &models.Event{})
	require.NoError(t, err, "failed to migrate test database")

	return db
}

// seedMapping inserts a mapping to own events under test.
func seedMapping(t *testing.T, db *gorm.DB) *models.Mapping {
	t.Helper()

	mp := &models.Mapping{Type: models.MappingTypePerson, ExternalRef: 1, Name: "Test Person"}
	require.NoError(t, db.Create(mp).Error, "failed to seed test data")

	return mp
}

func TestSchedule(t *testing.T) {
	db := setupTestDB(t)
	mp := seedMapping(t, db)

	executeAt := time.Now().Add(30 * 24 * time.Hour)

	testCases := []struct {
		name          string
		dbParam       *gorm.DB
		preSchedule   bool
		expectedError error
	}{
		{
			name:          "nil database",
			dbParam:       nil,
			expectedError: ErrDBNil,
		},
		{
			name:    "successful schedule",
			dbParam: db,
		},
		{
			name:          "already scheduled",
			dbParam:       db,
			preSchedule:   true,
			expectedError: ErrEventAlreadyScheduled,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.dbParam != nil {
				tc.dbParam.Exec("DELETE FROM events")
			}

			if tc.preSchedule {
				_, err := Schedule(tc.dbParam, models.EventTypeDeleteDirectoryAccount, mp.ID, executeAt)
				require.NoError(t, err)
			}

			ev, err := Schedule(tc.dbParam, models.EventTypeDeleteDirectoryAccount, mp.ID, executeAt)

			if tc.expectedError != nil {
				require.Error(t, err)
				require.ErrorIs(t, err, tc.expectedError)
				assert.Nil(t, ev)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, ev)
				assert.NotZero(t, ev.ID)
				assert.Equal(t, mp.ID, ev.MappingID)
				assert.WithinDuration(t, executeAt, ev.ExecuteAt, time.Second)
			}
		})
	}
}

func TestScheduleDifferentTypesSameMapping(t *testing.T) {
	db := setupTestDB(t)
	mp := seedMapping(t, db)
	executeAt := time.Now().Add(time.Hour)

	_, err := Schedule(db, models.EventTypeDeleteDirectoryAccount, mp.ID, executeAt)
	require.NoError(t, err)

	// A different event type for the same mapping is allowed.
	_, err = Schedule(db, models.EventTypeDeleteGroupwareAccount, mp.ID, executeAt)
	require.NoError(t, err)

	events, err := ForMapping(db, mp.ID)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestUnschedule(t *testing.T) {
	db := setupTestDB(t)
	mp := seedMapping(t, db)

	testCases := []struct {
		name          string
		dbParam       *gorm.DB
		preSchedule   bool
		expectedError error
	}{
		{
			name:          "nil database",
			dbParam:       nil,
			expectedError: ErrDBNil,
		},
		{
			name:          "event not found",
			dbParam:       db,
			expectedError: ErrEventNotFound,
		},
		{
			name:        "successful unschedule",
			dbParam:     db,
			preSchedule: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.dbParam != nil {
				tc.dbParam.Exec("DELETE FROM events")
			}

			if tc.preSchedule {
				_, err := Schedule(tc.dbParam, models.EventTypeDeleteDirectoryAccount, mp.ID, time.Now().Add(time.Hour))
				require.NoError(t, err)
			}

			err := Unschedule(tc.dbParam, models.EventTypeDeleteDirectoryAccount, mp.ID)

			if tc.expectedError != nil {
				require.Error(t, err)
				require.ErrorIs(t, err, tc.expectedError)
			} else {
				require.NoError(t, err)

				_, err = Get(tc.dbParam, models.EventTypeDeleteDirectoryAccount, mp.ID)
				require.ErrorIs(t, err, ErrEventNotFound)
			}
		})
	}
}

func TestDue(t *testing.T) {
	db := setupTestDB(t)
	mp := seedMapping(t, db)

	now := time.Now()

	_, err := Schedule(db, models.EventTypeDeleteDirectoryAccount, mp.ID, now.Add(-time.Hour))
	require.NoError(t, err)
	_, err = Schedule(db, models.EventTypeDeleteGroupwareAccount, mp.ID, now.Add(time.Hour))
	require.NoError(t, err)

	due, err := Due(db, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, models.EventTypeDeleteDirectoryAccount, due[0].Type)

	// Once the later event is due too, both are returned in execution order.
	due, err = Due(db, now.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, models.EventTypeDeleteDirectoryAccount, due[0].Type)
	assert.Equal(t, models.EventTypeDeleteGroupwareAccount, due[1].Type)
}

func TestDelete(t *testing.T) {
	db := setupTestDB(t)
	mp := seedMapping(t, db)

	ev, err := Schedule(db, models.EventTypeDeleteDirectoryAccount, mp.ID, time.Now())
	require.NoError(t, err)

	require.NoError(t, Delete(db, ev.ID))
	require.ErrorIs(t, Delete(db, ev.ID), ErrEventNotFound)
	require.ErrorIs(t, Delete(nil, ev.ID), ErrDBNil)
}
