package service

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rogue-Bear-Innovations/foodshare-back/internal/db"
)

func TestFollowSelf(t *testing.T) {
	conn := newTestDB(t)
	svc := NewFollowService(conn, testLogger())

	alice := seedUser(t, conn, "alice")

	_, err := svc.Follow(alice.ID, alice.ID)
	assert.True(t, errors.Is(err, ErrSelfFollow))
}

func TestFollowDuplicate(t *testing.T) {
	conn := newTestDB(t)
	svc := NewFollowService(conn, testLogger())

	alice := seedUser(t, conn, "alice")
	bob := seedUser(t, conn, "bob")

	_, err := svc.Follow(alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = svc.Follow(alice.ID, bob.ID)
	conflictErr := &ConflictError{}
	assert.True(t, errors.As(err, &conflictErr))

	following, err := svc.IsFollowing(alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, following)
}

func TestFollowUnknownTarget(t *testing.T) {
	conn := newTestDB(t)
	svc := NewFollowService(conn, testLogger())

	alice := seedUser(t, conn, "alice")

	_, err := svc.Follow(alice.ID, 424242)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestUnfollowAbsentEdge(t *testing.T) {
	conn := newTestDB(t)
	svc := NewFollowService(conn, testLogger())

	alice := seedUser(t, conn, "alice")
	bob := seedUser(t, conn, "bob")

	err := svc.Unfollow(alice.ID, bob.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = svc.Follow(alice.ID, bob.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Unfollow(alice.ID, bob.ID))

	following, err := svc.IsFollowing(alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, following)
}

func TestListFollowingWithRecipesLimit(t *testing.T) {
	conn := newTestDB(t)
	svc := NewFollowService(conn, testLogger())

	alice := seedUser(t, conn, "alice")
	bob := seedUser(t, conn, "bob")
	sugar := seedIngredient(t, conn, "Sugar", "g")

	recipes := make([]*db.Recipe, 3)
	for i, name := range []string{"Pie", "Jam", "Soup"} {
		recipes[i] = seedRecipe(t, conn, bob, name, map[*db.Ingredient]int{sugar: 10})
	}

	_, err := svc.Follow(alice.ID, bob.ID)
	require.NoError(t, err)

	entries, err := svc.ListFollowing(alice.ID, nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, bob.ID, entries[0].User.ID)
	assert.EqualValues(t, 3, entries[0].RecipesCount)
	require.Len(t, entries[0].Recipes, 3)
	// Newest first.
	assert.Equal(t, recipes[2].ID, entries[0].Recipes[0].ID)

	limit := 2
	entries, err = svc.ListFollowing(alice.ID, &limit)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Len(t, entries[0].Recipes, 2)
	assert.EqualValues(t, 3, entries[0].RecipesCount)
	assert.Equal(t, recipes[2].ID, entries[0].Recipes[0].ID)
	assert.Equal(t, recipes[1].ID, entries[0].Recipes[1].ID)
}

func TestListFollowingEmpty(t *testing.T) {
	conn := newTestDB(t)
	svc := NewFollowService(conn, testLogger())

	alice := seedUser(t, conn, "alice")

	entries, err := svc.ListFollowing(alice.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
