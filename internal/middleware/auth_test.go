package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/roamly/tour-booking/internal/apperror"
	"github.com/roamly/tour-booking/internal/model"
	"github.com/roamly/tour-booking/internal/repository"
	"github.com/roamly/tour-booking/internal/utils"
)

const testSecret = "test-secret"

// fakeLoader serves a single user by id.
type fakeLoader struct {
	user model.User
}

func (f *fakeLoader) GetByID(_ context.Context, id primitive.ObjectID) (model.User, error) {
	if id == f.user.ID {
		return f.user, nil
	}
	return model.User{}, repository.ErrNotFound
}

func testUser() model.User {
	return model.User{
		ID:     primitive.NewObjectID(),
		Name:   "Ada",
		Email:  "ada@example.com",
		Role:   model.RoleUser,
		Active: true,
	}
}

func invoke(mw echo.MiddlewareFunc, req *http.Request) (echo.Context, error) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	err := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)
	return c, err
}

func TestProtectBearerHeader(t *testing.T) {
	user := testUser()
	tok, err := utils.NewAccessToken(testSecret, user.ID.Hex(), 15)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)

	c, err := invoke(Protect(testSecret, &fakeLoader{user: user}), req)
	require.NoError(t, err)

	got, ok := CurrentUser(c)
	require.True(t, ok)
	assert.Equal(t, user.ID, got.ID)
}

func TestProtectCookie(t *testing.T) {
	user := testUser()
	tok, err := utils.NewAccessToken(testSecret, user.ID.Hex(), 15)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AuthCookie, Value: tok.Token})

	_, err = invoke(Protect(testSecret, &fakeLoader{user: user}), req)
	assert.NoError(t, err)
}

func TestProtectMissingToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	_, err := invoke(Protect(testSecret, &fakeLoader{user: testUser()}), req)
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusUnauthorized, appErr.Code)
}

func TestProtectTamperedToken(t *testing.T) {
	user := testUser()
	tok, err := utils.NewAccessToken("other-secret", user.ID.Hex(), 15)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)

	_, err = invoke(Protect(testSecret, &fakeLoader{user: user}), req)
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusUnauthorized, appErr.Code)
	assert.Equal(t, "invalid token, please log in again", appErr.Message)
}

func TestProtectDeletedUser(t *testing.T) {
	user := testUser()
	tok, err := utils.NewAccessToken(testSecret, primitive.NewObjectID().Hex(), 15)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)

	_, err = invoke(Protect(testSecret, &fakeLoader{user: user}), req)
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusUnauthorized, appErr.Code)
	assert.Equal(t, "the user belonging to this token no longer exists", appErr.Message)
}

func TestProtectStaleTokenAfterPasswordChange(t *testing.T) {
	user := testUser()
	tok, err := utils.NewAccessToken(testSecret, user.ID.Hex(), 15)
	require.NoError(t, err)
	user.PasswordChangedAt = time.Now().UTC().Add(time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)

	_, err = invoke(Protect(testSecret, &fakeLoader{user: user}), req)
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusUnauthorized, appErr.Code)
	assert.Equal(t, "user recently changed password, please log in again", appErr.Message)
}

func TestOptionalAuthContinuesWithoutToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	c, err := invoke(OptionalAuth(testSecret, &fakeLoader{user: testUser()}), req)
	require.NoError(t, err)
	_, ok := CurrentUser(c)
	assert.False(t, ok)
}

func TestOptionalAuthAttachesUser(t *testing.T) {
	user := testUser()
	tok, err := utils.NewAccessToken(testSecret, user.ID.Hex(), 15)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AuthCookie, Value: tok.Token})

	c, err := invoke(OptionalAuth(testSecret, &fakeLoader{user: user}), req)
	require.NoError(t, err)
	got, ok := CurrentUser(c)
	require.True(t, ok)
	assert.Equal(t, user.Email, got.Email)
}

func TestRequireRoles(t *testing.T) {
	allowed := Roles(model.RoleAdmin, model.RoleLeadGuide)

	e := echo.New()
	run := func(user *model.User) error {
		req := httptest.NewRequest(http.MethodDelete, "/", nil)
		c := e.NewContext(req, httptest.NewRecorder())
		if user != nil {
			AttachUser(c, *user)
		}
		return RequireRoles(allowed)(func(c echo.Context) error {
			return c.NoContent(http.StatusNoContent)
		})(c)
	}

	t.Run("no user", func(t *testing.T) {
		var appErr *apperror.Error
		require.ErrorAs(t, run(nil), &appErr)
		assert.Equal(t, http.StatusUnauthorized, appErr.Code)
	})

	t.Run("role not allowed", func(t *testing.T) {
		user := testUser()
		var appErr *apperror.Error
		require.ErrorAs(t, run(&user), &appErr)
		assert.Equal(t, http.StatusForbidden, appErr.Code)
	})

	t.Run("role allowed", func(t *testing.T) {
		user := testUser()
		user.Role = model.RoleLeadGuide
		assert.NoError(t, run(&user))
	})
}
