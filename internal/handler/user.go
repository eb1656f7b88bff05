package handler

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/roamly/tour-booking/internal/apperror"
	"github.com/roamly/tour-booking/internal/middleware"
	"github.com/roamly/tour-booking/internal/model"
	"github.com/roamly/tour-booking/internal/repository"
)

// UserHandler exposes account self-service for the logged-in user and the
// admin-only user CRUD built on the generic factory.
type UserHandler struct {
	Users *repository.UserRepo

	desc    *Descriptor[model.User]
	meAllow FieldSet
}

func NewUserHandler(users *repository.UserRepo) *UserHandler {
	if users == nil {
		panic("nil repository passed to NewUserHandler")
	}
	h := &UserHandler{Users: users}
	h.desc = &Descriptor[model.User]{
		Coll:         users.Coll,
		BaseFilter:   repository.ActiveFilter,
		UpdateFields: AllowFields[model.User]("name", "email", "photo", "role"),
		PreSave: []TransformStage[model.User]{
			{Name: "email", Apply: userEmail},
		},
	}
	h.meAllow = AllowFields[model.User]("name", "email")
	return h
}

// Admin CRUD from the factory. Passwords are never writable through these
// routes; the auth endpoints own every password mutation.

func (h *UserHandler) GetAllUsers(c echo.Context) error { return GetAll(h.desc)(c) }
func (h *UserHandler) GetUser(c echo.Context) error     { return GetOne(h.desc)(c) }
func (h *UserHandler) UpdateUser(c echo.Context) error  { return UpdateOne(h.desc)(c) }

// DeleteUser soft-deletes the account; the document stays for referential
// integrity of reviews and bookings.
func (h *UserHandler) DeleteUser(c echo.Context) error {
	id, err := parseObjectID(c.Param("id"))
	if err != nil {
		return err
	}
	if err := h.Users.Deactivate(c.Request().Context(), id); err != nil {
		if err == repository.ErrNotFound {
			return apperror.NotFound("no document found with that ID")
		}
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// CreateUser deliberately refuses: accounts are only created through
// signup so passwords always pass through the hashing flow.
func (h *UserHandler) CreateUser(c echo.Context) error {
	return apperror.New(http.StatusInternalServerError, "this route is not defined, please use /signup instead")
}

// GetMe rewrites the id parameter to the current user and reuses the
// generic read-one handler.
func (h *UserHandler) GetMe(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return apperror.Unauthorized("you are not logged in, please log in to get access")
	}
	c.SetParamNames("id")
	c.SetParamValues(user.ID.Hex())
	return GetOne(h.desc)(c)
}

// UpdateMe updates the caller's own non-sensitive fields. Password fields
// are rejected outright and everything outside the allow-list is dropped.
func (h *UserHandler) UpdateMe(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return apperror.Unauthorized("you are not logged in, please log in to get access")
	}

	var body map[string]json.RawMessage
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
		return apperror.BadRequest("invalid request body")
	}
	if _, ok := body["password"]; ok {
		return apperror.BadRequest("this route is not for password updates, please use /update-my-password")
	}
	if _, ok := body["passwordConfirm"]; ok {
		return apperror.BadRequest("this route is not for password updates, please use /update-my-password")
	}

	fields := bson.M{}
	for key, raw := range h.meAllow.Filter(body) {
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return apperror.BadRequest("invalid value for field " + key)
		}
		fields[key] = v
	}
	if len(fields) == 0 {
		return apperror.BadRequest("nothing to update")
	}

	updated, err := h.Users.UpdateProfile(c.Request().Context(), user.ID, fields)
	if err != nil {
		if err == repository.ErrNotFound {
			return apperror.NotFound("no document found with that ID")
		}
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status": "success",
		"data":   echo.Map{"user": updated},
	})
}

// userEmail keeps the stored email lowercase on every admin write, matching
// the normalization applied on signup and lookup.
func userEmail(_ echo.Context, u *model.User) error {
	u.Email = model.NormalizeEmail(u.Email)
	return nil
}

// DeleteMe soft-deletes the caller's account.
func (h *UserHandler) DeleteMe(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return apperror.Unauthorized("you are not logged in, please log in to get access")
	}
	if err := h.Users.Deactivate(c.Request().Context(), user.ID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
