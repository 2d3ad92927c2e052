package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rogue-Bear-Innovations/foodshare-back/internal/service"
)

func TestParseRecipesLimit(t *testing.T) {
	limit, err := ParseRecipesLimit("")
	require.NoError(t, err)
	assert.Nil(t, limit)

	limit, err = ParseRecipesLimit("3")
	require.NoError(t, err)
	require.NotNil(t, limit)
	assert.Equal(t, 3, *limit)

	for _, raw := range []string{"abc", "0", "-1", "2.5"} {
		_, err := ParseRecipesLimit(raw)
		assert.Error(t, err, raw)
	}
}

func TestIsPublic(t *testing.T) {
	assert.True(t, IsPublic(http.MethodGet, "/ping"))
	assert.True(t, IsPublic(http.MethodPost, "/auth/register"))
	assert.True(t, IsPublic(http.MethodGet, "/recipe"))
	assert.True(t, IsPublic(http.MethodGet, "/recipe/:id"))
	assert.True(t, IsPublic(http.MethodGet, "/tag/:id"))

	assert.False(t, IsPublic(http.MethodPost, "/recipe"))
	assert.False(t, IsPublic(http.MethodGet, "/recipe/download_shopping_cart"))
	assert.False(t, IsPublic(http.MethodGet, "/user/subscriptions"))
	assert.False(t, IsPublic(http.MethodPost, "/recipe/:id/favorite"))
}

func TestGetAndParseParamNamesTheParam(t *testing.T) {
	e := echo.New()
	newCtx := func() echo.Context {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		return e.NewContext(req, httptest.NewRecorder())
	}

	c := newCtx()
	c.SetParamNames("user_id")
	c.SetParamValues("abc")
	_, err := GetAndParseParam(c, "user_id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'user_id'")

	_, err = GetParam(newCtx(), "recipe_id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'recipe_id'")
}

func TestServiceErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{&service.ValidationError{Field: "cooking_time", Detail: "out of range"}, http.StatusBadRequest},
		{&service.ConflictError{Detail: "already favorited"}, http.StatusBadRequest},
		{service.ErrSelfFollow, http.StatusBadRequest},
		{service.ErrPermission, http.StatusForbidden},
		{service.ErrNotFound, http.StatusNotFound},
	}

	e := echo.New()
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		require.NoError(t, serviceError(c, tc.err))
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		assert.Contains(t, rec.Body.String(), "detail")
	}
}
