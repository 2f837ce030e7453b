package main

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfile_Found(t *testing.T) {
	env := newTestEnv(t)
	env.profiles.profiles["b1"] = Profile{
		ID:          "b1",
		DisplayName: "Nova",
		Role:        "booster",
		Bio:         "Diamond rank coach",
		AvatarURL:   "https://cdn.example.com/b1.png",
	}

	rec := env.do(http.MethodGet, "/profiles/b1", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"id": "b1",
		"display_name": "Nova",
		"role": "booster",
		"bio": "Diamond rank coach",
		"avatar_url": "https://cdn.example.com/b1.png"
	}`, rec.Body.String())
}

func TestProfile_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/profiles/ghost", nil, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBalance(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.balances["u1"] = Balance{Amount: 4200, Currency: "usd"}

	rec := env.do(http.MethodGet, "/balance", nil, map[string]string{testUserHeader: "u1"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"balance":4200,"currency":"usd"}`, rec.Body.String())
}

func TestBalance_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/balance", nil, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChatToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/chat/token", nil, map[string]string{testUserHeader: "u1"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":"u1","token":"token-u1"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(http.MethodGet, "/stripe/verify-deposit", nil, nil)

	rec := env.do(http.MethodGet, "/metrics", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "boostify_deposit_classifications_total")
}

func TestDaoProfileStore_FindProfile(t *testing.T) {
	app := newTestApp(t)
	store := newDaoProfileStore(app)
	updateTestRecord(t, app, "users", pbBoosterID, map[string]any{
		"role":         "booster",
		"display_name": "Nova",
		"bio":          "Diamond rank coach",
	})

	profile, err := store.FindProfile(pbBoosterID)

	require.NoError(t, err)
	assert.Equal(t, Profile{ID: pbBoosterID, DisplayName: "Nova", Role: "booster", Bio: "Diamond rank coach"}, profile)

	_, err = store.FindProfile("missing")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestDaoProfileStore_SkipsDeletedUsers(t *testing.T) {
	app := newTestApp(t)
	store := newDaoProfileStore(app)
	updateTestRecord(t, app, "users", pbBoosterID, map[string]any{"is_deleted": true})

	_, err := store.FindProfile(pbBoosterID)

	assert.ErrorIs(t, err, ErrProfileNotFound)
}
