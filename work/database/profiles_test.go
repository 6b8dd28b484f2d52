package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamview/work/types"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *DB, email string) *types.User {
	t.Helper()
	user, err := db.CreateUser(email, "$2a$10$fakehashfakehashfakehash")
	require.NoError(t, err)
	return user
}

func createTestProfile(t *testing.T, db *DB, userID int64, name string) *types.Profile {
	t.Helper()
	p, err := db.CreateProfile(&types.Profile{
		UserID:       userID,
		Name:         name,
		IPTVURL:      "http://provider.example.com",
		IPTVUsername: "u",
		IPTVPassword: "p",
	})
	require.NoError(t, err)
	return p
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	db := openTestDB(t)

	createTestUser(t, db, "user@example.com")
	_, err := db.CreateUser("user@example.com", "hash")
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestGetUserByEmailNotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := db.GetUserByEmail("missing@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestCreateProfileStartsInactive(t *testing.T) {
	db := openTestDB(t)
	user := createTestUser(t, db, "user@example.com")

	p := createTestProfile(t, db, user.ID, "Home")
	assert.False(t, p.IsActive)
	assert.Equal(t, user.ID, p.UserID)
}

func TestSetActiveProfileSingleActive(t *testing.T) {
	db := openTestDB(t)
	user := createTestUser(t, db, "user@example.com")

	first := createTestProfile(t, db, user.ID, "First")
	second := createTestProfile(t, db, user.ID, "Second")

	_, err := db.SetActiveProfile(first.ID, user.ID)
	require.NoError(t, err)

	// Activating the second must deactivate the first in the same step.
	activated, err := db.SetActiveProfile(second.ID, user.ID)
	require.NoError(t, err)
	assert.True(t, activated.IsActive)

	profiles, err := db.ListProfilesByUser(user.ID)
	require.NoError(t, err)

	activeCount := 0
	for _, p := range profiles {
		if p.IsActive {
			activeCount++
			assert.Equal(t, second.ID, p.ID)
		}
	}
	assert.Equal(t, 1, activeCount)
}

func TestSetActiveProfileOwnershipFailureNoMutation(t *testing.T) {
	db := openTestDB(t)
	owner := createTestUser(t, db, "owner@example.com")
	intruder := createTestUser(t, db, "intruder@example.com")

	p := createTestProfile(t, db, owner.ID, "Owned")
	_, err := db.SetActiveProfile(p.ID, owner.ID)
	require.NoError(t, err)

	// The intruder targets a profile they do not own.
	_, err = db.SetActiveProfile(p.ID, intruder.ID)
	assert.ErrorIs(t, err, ErrProfileNotFound)

	// The owner's active profile must be untouched by the failed attempt.
	active, err := db.GetActiveProfileForUser(owner.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, p.ID, active.ID)
	assert.True(t, active.IsActive)
}

func TestSetActiveProfileUnknownID(t *testing.T) {
	db := openTestDB(t)
	user := createTestUser(t, db, "user@example.com")
	existing := createTestProfile(t, db, user.ID, "Existing")
	_, err := db.SetActiveProfile(existing.ID, user.ID)
	require.NoError(t, err)

	// A rolled-back activation must leave the current one standing.
	_, err = db.SetActiveProfile(99999, user.ID)
	assert.ErrorIs(t, err, ErrProfileNotFound)

	active, err := db.GetActiveProfileForUser(user.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, existing.ID, active.ID)
}

func TestDeleteActiveProfileRefused(t *testing.T) {
	db := openTestDB(t)
	user := createTestUser(t, db, "user@example.com")

	p := createTestProfile(t, db, user.ID, "Active")
	_, err := db.SetActiveProfile(p.ID, user.ID)
	require.NoError(t, err)

	err = db.DeleteProfile(p.ID, user.ID)
	assert.ErrorIs(t, err, ErrProfileActive)

	// Still there.
	got, err := db.GetProfile(p.ID, user.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
}

func TestDeleteInactiveProfile(t *testing.T) {
	db := openTestDB(t)
	user := createTestUser(t, db, "user@example.com")

	p := createTestProfile(t, db, user.ID, "Spare")
	require.NoError(t, db.DeleteProfile(p.ID, user.ID))

	_, err := db.GetProfile(p.ID, user.ID)
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestDeleteProfileOwnership(t *testing.T) {
	db := openTestDB(t)
	owner := createTestUser(t, db, "owner@example.com")
	intruder := createTestUser(t, db, "intruder@example.com")

	p := createTestProfile(t, db, owner.ID, "Owned")

	err := db.DeleteProfile(p.ID, intruder.ID)
	assert.ErrorIs(t, err, ErrProfileNotFound)

	_, err = db.GetProfile(p.ID, owner.ID)
	assert.NoError(t, err)
}

func TestClearActiveProfile(t *testing.T) {
	db := openTestDB(t)
	user := createTestUser(t, db, "user@example.com")

	p := createTestProfile(t, db, user.ID, "Home")
	_, err := db.SetActiveProfile(p.ID, user.ID)
	require.NoError(t, err)

	require.NoError(t, db.ClearActiveProfile(user.ID))

	active, err := db.GetActiveProfileForUser(user.ID)
	require.NoError(t, err)
	assert.Nil(t, active)

	// Clearing again is a no-op, not an error.
	assert.NoError(t, db.ClearActiveProfile(user.ID))
}

func TestGetActiveProfileNoneActive(t *testing.T) {
	db := openTestDB(t)
	user := createTestUser(t, db, "user@example.com")
	createTestProfile(t, db, user.ID, "Inactive")

	active, err := db.GetActiveProfileForUser(user.ID)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestUpdateProfileOwnership(t *testing.T) {
	db := openTestDB(t)
	owner := createTestUser(t, db, "owner@example.com")
	intruder := createTestUser(t, db, "intruder@example.com")

	p := createTestProfile(t, db, owner.ID, "Original")

	p.UserID = intruder.ID
	p.Name = "Hijacked"
	_, err := db.UpdateProfile(p)
	assert.ErrorIs(t, err, ErrProfileNotFound)

	unchanged, err := db.GetProfile(p.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "Original", unchanged.Name)
}
