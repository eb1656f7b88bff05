package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/roamly/tour-booking/internal/apperror"
	"github.com/roamly/tour-booking/internal/config"
	"github.com/roamly/tour-booking/internal/middleware"
	"github.com/roamly/tour-booking/internal/model"
	"github.com/roamly/tour-booking/internal/repository"
	"github.com/roamly/tour-booking/internal/utils"
)

func testCfg() config.Config {
	return config.Config{
		Env:           "test",
		JWTSecret:     "test-secret",
		JWTTTLMin:     15,
		CookieTTLDays: 1,
		BcryptCost:    4, // minimum cost keeps the suite fast
	}
}

// fakeUserStore is an in-memory UserStore.
type fakeUserStore struct {
	users map[primitive.ObjectID]*model.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[primitive.ObjectID]*model.User{}}
}

func (s *fakeUserStore) Create(_ context.Context, u *model.User) error {
	for _, existing := range s.users {
		if existing.Email == strings.ToLower(u.Email) {
			return errors.New("duplicate email")
		}
	}
	u.ID = primitive.NewObjectID()
	u.Email = strings.ToLower(u.Email)
	u.Active = true
	u.CreatedAt = time.Now().UTC()
	clone := *u
	s.users[u.ID] = &clone
	return nil
}

func (s *fakeUserStore) GetByID(_ context.Context, id primitive.ObjectID) (model.User, error) {
	if u, ok := s.users[id]; ok {
		return *u, nil
	}
	return model.User{}, repository.ErrNotFound
}

func (s *fakeUserStore) GetByEmail(_ context.Context, email string) (model.User, error) {
	for _, u := range s.users {
		if u.Email == strings.ToLower(email) {
			return *u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (s *fakeUserStore) GetByResetToken(_ context.Context, tokenHash string) (model.User, error) {
	for _, u := range s.users {
		if u.PasswordResetToken == tokenHash && u.PasswordResetExpires.After(time.Now().UTC()) {
			return *u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (s *fakeUserStore) UpdatePassword(_ context.Context, id primitive.ObjectID, hash string) error {
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Password = hash
	u.PasswordChangedAt = time.Now().UTC().Add(-time.Second)
	u.PasswordResetToken = ""
	u.PasswordResetExpires = time.Time{}
	return nil
}

func (s *fakeUserStore) SetResetToken(_ context.Context, id primitive.ObjectID, tokenHash string, expires time.Time) error {
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordResetToken = tokenHash
	u.PasswordResetExpires = expires
	return nil
}

func (s *fakeUserStore) ClearResetTokenIf(_ context.Context, id primitive.ObjectID, tokenHash string) error {
	u, ok := s.users[id]
	if ok && u.PasswordResetToken == tokenHash {
		u.PasswordResetToken = ""
		u.PasswordResetExpires = time.Time{}
	}
	return nil
}

func (s *fakeUserStore) seed(t *testing.T, email, password string) model.User {
	t.Helper()
	hash, err := utils.HashPassword(password, 4)
	require.NoError(t, err)
	u := model.User{Name: "Ada", Email: email, Role: model.RoleUser, Password: hash}
	require.NoError(t, s.Create(context.Background(), &u))
	return u
}

// fakeSender records outgoing mail and can be told to fail.
type fakeSender struct {
	sent []string // bodies, in order
	err  error
}

func (s *fakeSender) Send(_, _, body string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, body)
	return nil
}

func newAuthContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSignup(t *testing.T) {
	store := newFakeUserStore()
	h := NewAuthHandler(testCfg(), store, &fakeSender{})

	c, rec := newAuthContext(http.MethodPost, "/api/v1/users/signup",
		`{"name":"Ada","email":"Ada@Example.com","password":"pass1234","passwordConfirm":"pass1234"}`)
	require.NoError(t, h.Signup(c))

	assert.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.NotEmpty(t, body["token"])

	user := body["data"].(map[string]interface{})["user"].(map[string]interface{})
	assert.Equal(t, "user", user["role"]) // role defaults when omitted
	assert.NotContains(t, user, "password")
	assert.NotContains(t, user, "passwordConfirm")

	// the stored credential is a hash, never the plaintext
	stored, err := store.GetByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "pass1234", stored.Password)
	assert.True(t, utils.VerifyPassword(stored.Password, "pass1234"))
}

func TestSignupPasswordMismatch(t *testing.T) {
	h := NewAuthHandler(testCfg(), newFakeUserStore(), &fakeSender{})

	c, _ := newAuthContext(http.MethodPost, "/api/v1/users/signup",
		`{"name":"Ada","email":"ada@example.com","password":"pass1234","passwordConfirm":"different"}`)
	assert.Error(t, h.Signup(c))
}

func TestLogin(t *testing.T) {
	store := newFakeUserStore()
	store.seed(t, "ada@example.com", "pass1234")
	h := NewAuthHandler(testCfg(), store, &fakeSender{})

	c, rec := newAuthContext(http.MethodPost, "/api/v1/users/login",
		`{"email":"ada@example.com","password":"pass1234"}`)
	require.NoError(t, h.Login(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decodeBody(t, rec)["token"])

	// the token also travels as an http-only cookie
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, middleware.AuthCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
}

func TestLoginGenericFailure(t *testing.T) {
	store := newFakeUserStore()
	store.seed(t, "ada@example.com", "pass1234")
	h := NewAuthHandler(testCfg(), store, &fakeSender{})

	// wrong password and unknown email must be indistinguishable
	for _, body := range []string{
		`{"email":"ada@example.com","password":"wrong"}`,
		`{"email":"nobody@example.com","password":"pass1234"}`,
	} {
		c, _ := newAuthContext(http.MethodPost, "/api/v1/users/login", body)
		err := h.Login(c)
		var appErr *apperror.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, http.StatusUnauthorized, appErr.Code)
		assert.Equal(t, "incorrect email or password", appErr.Message)
	}
}

func TestLoginMissingCredentials(t *testing.T) {
	h := NewAuthHandler(testCfg(), newFakeUserStore(), &fakeSender{})

	c, _ := newAuthContext(http.MethodPost, "/api/v1/users/login", `{"email":"ada@example.com"}`)
	err := h.Login(c)
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusBadRequest, appErr.Code)
}

func TestForgotPassword(t *testing.T) {
	store := newFakeUserStore()
	user := store.seed(t, "ada@example.com", "pass1234")
	mail := &fakeSender{}
	h := NewAuthHandler(testCfg(), store, mail)

	c, rec := newAuthContext(http.MethodPost, "/api/v1/users/forgot-password",
		`{"email":"ada@example.com"}`)
	require.NoError(t, h.ForgotPassword(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, mail.sent, 1)

	// the mailed URL carries the raw token; the store only ever sees its hash
	stored := store.users[user.ID]
	assert.NotEmpty(t, stored.PasswordResetToken)
	assert.NotContains(t, mail.sent[0], stored.PasswordResetToken)
	raw := mail.sent[0][strings.LastIndex(mail.sent[0], "/")+1 : strings.Index(mail.sent[0], ".\n")]
	assert.Equal(t, utils.HashResetRaw(raw), stored.PasswordResetToken)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	h := NewAuthHandler(testCfg(), newFakeUserStore(), &fakeSender{})

	c, _ := newAuthContext(http.MethodPost, "/api/v1/users/forgot-password",
		`{"email":"nobody@example.com"}`)
	err := h.ForgotPassword(c)
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusNotFound, appErr.Code)
}

func TestForgotPasswordDeliveryFailure(t *testing.T) {
	store := newFakeUserStore()
	user := store.seed(t, "ada@example.com", "pass1234")
	h := NewAuthHandler(testCfg(), store, &fakeSender{err: errors.New("smtp down")})

	c, _ := newAuthContext(http.MethodPost, "/api/v1/users/forgot-password",
		`{"email":"ada@example.com"}`)
	err := h.ForgotPassword(c)
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusInternalServerError, appErr.Code)
	assert.True(t, appErr.Operational)

	// the half-issued token is rolled back
	assert.Empty(t, store.users[user.ID].PasswordResetToken)
}

func TestResetPassword(t *testing.T) {
	store := newFakeUserStore()
	user := store.seed(t, "ada@example.com", "pass1234")
	h := NewAuthHandler(testCfg(), store, &fakeSender{})

	token, err := utils.NewResetToken()
	require.NoError(t, err)
	require.NoError(t, store.SetResetToken(context.Background(), user.ID, token.Hash, token.Exp))

	c, rec := newAuthContext(http.MethodPatch, "/", `{"password":"newpass123","passwordConfirm":"newpass123"}`)
	c.SetParamNames("token")
	c.SetParamValues(token.Raw)
	require.NoError(t, h.ResetPassword(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decodeBody(t, rec)["token"])

	stored := store.users[user.ID]
	assert.True(t, utils.VerifyPassword(stored.Password, "newpass123"))
	assert.Empty(t, stored.PasswordResetToken)
}

func TestResetPasswordInvalidToken(t *testing.T) {
	store := newFakeUserStore()
	store.seed(t, "ada@example.com", "pass1234")
	h := NewAuthHandler(testCfg(), store, &fakeSender{})

	c, _ := newAuthContext(http.MethodPatch, "/", `{"password":"newpass123","passwordConfirm":"newpass123"}`)
	c.SetParamNames("token")
	c.SetParamValues("bogus")
	err := h.ResetPassword(c)
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusBadRequest, appErr.Code)
	assert.Equal(t, "token is invalid or has expired", appErr.Message)
}

func TestResetPasswordExpiredToken(t *testing.T) {
	store := newFakeUserStore()
	user := store.seed(t, "ada@example.com", "pass1234")
	h := NewAuthHandler(testCfg(), store, &fakeSender{})

	token, err := utils.NewResetToken()
	require.NoError(t, err)
	expired := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, store.SetResetToken(context.Background(), user.ID, token.Hash, expired))

	c, _ := newAuthContext(http.MethodPatch, "/", `{"password":"newpass123","passwordConfirm":"newpass123"}`)
	c.SetParamNames("token")
	c.SetParamValues(token.Raw)
	err = h.ResetPassword(c)
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusBadRequest, appErr.Code)
}

func TestUpdatePassword(t *testing.T) {
	store := newFakeUserStore()
	user := store.seed(t, "ada@example.com", "pass1234")
	h := NewAuthHandler(testCfg(), store, &fakeSender{})

	c, rec := newAuthContext(http.MethodPatch, "/api/v1/users/update-my-password",
		`{"passwordCurrent":"pass1234","password":"newpass123","passwordConfirm":"newpass123"}`)
	middleware.AttachUser(c, user)
	require.NoError(t, h.UpdatePassword(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, utils.VerifyPassword(store.users[user.ID].Password, "newpass123"))
}

func TestUpdatePasswordWrongCurrent(t *testing.T) {
	store := newFakeUserStore()
	user := store.seed(t, "ada@example.com", "pass1234")
	h := NewAuthHandler(testCfg(), store, &fakeSender{})

	c, _ := newAuthContext(http.MethodPatch, "/api/v1/users/update-my-password",
		`{"passwordCurrent":"wrong","password":"newpass123","passwordConfirm":"newpass123"}`)
	middleware.AttachUser(c, user)
	err := h.UpdatePassword(c)
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusUnauthorized, appErr.Code)
	assert.Equal(t, "your current password is wrong", appErr.Message)

	// the stored credential is untouched
	assert.True(t, utils.VerifyPassword(store.users[user.ID].Password, "pass1234"))
}

func TestLogout(t *testing.T) {
	h := NewAuthHandler(testCfg(), newFakeUserStore(), &fakeSender{})

	c, rec := newAuthContext(http.MethodGet, "/api/v1/users/logout", "")
	require.NoError(t, h.Logout(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, "loggedout", cookies[0].Value)
}
