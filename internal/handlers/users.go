package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"example.com/daily-budget/backend/internal/auth"
	"example.com/daily-budget/backend/internal/models"
	"example.com/daily-budget/backend/internal/repository"
)

const (
	defaultUsersLimit = 50
	maxUsersLimit     = 200
)

// UserHandler управляет учетными записями сотрудников.
type UserHandler struct {
	Users  UserStore
	Tokens TokenStore
}

func NewUserHandler(users UserStore, tokens TokenStore) *UserHandler {
	return &UserHandler{Users: users, Tokens: tokens}
}

type UpdateUserRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=2,max=100"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Role     *string `json:"role" validate:"omitempty,oneof=admin manager"`
	IsActive *bool   `json:"isActive"`
}

type SetUserPasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

type UserListResponse struct {
	Users      []models.User      `json:"users"`
	Pagination PaginationResponse `json:"pagination"`
}

// List возвращает страницу сотрудников с фильтрами search, role и status.
func (h *UserHandler) List(c echo.Context) error {
	page, pageNumber, err := parsePagination(c, defaultUsersLimit, maxUsersLimit)
	if err != nil {
		return badRequest(c, err.Error())
	}

	filter := repository.UserFilter{Search: strings.TrimSpace(c.QueryParam("search"))}
	if raw := strings.ToLower(strings.TrimSpace(c.QueryParam("role"))); raw != "" {
		role := models.UserRole(raw)
		if role != models.UserRoleAdmin && role != models.UserRoleManager {
			return badRequest(c, "invalid role")
		}
		filter.Role = &role
	}
	switch strings.ToLower(strings.TrimSpace(c.QueryParam("status"))) {
	case "":
	case "active":
		active := true
		filter.Active = &active
	case "inactive":
		active := false
		filter.Active = &active
	default:
		return badRequest(c, "invalid status")
	}

	users, total, err := h.Users.List(c.Request().Context(), filter, page)
	if err != nil {
		return serverError(c, err)
	}
	if users == nil {
		users = []models.User{}
	}

	return c.JSON(http.StatusOK, UserListResponse{
		Users:      users,
		Pagination: paginationResponse(page, pageNumber, total),
	})
}

func (h *UserHandler) Get(c echo.Context) error {
	user, err := h.loadUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// Update меняет имя и email; роль и активность меняет только администратор,
// и не для собственной учетной записи.
func (h *UserHandler) Update(c echo.Context) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	user, err := h.loadUser(c)
	if err != nil {
		return err
	}

	self := principal.IsAdmin() && principal.ID == user.ID
	isAdmin := principal.HasRole(models.UserRoleAdmin)
	if !self && !isAdmin {
		return forbidden(c)
	}

	var req UpdateUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	var update repository.UserUpdate
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		update.Name = &name
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		update.Email = &email
	}
	if req.Role != nil || req.IsActive != nil {
		if !isAdmin || self {
			return forbidden(c)
		}
		if req.Role != nil {
			role := models.UserRole(*req.Role)
			update.Role = &role
		}
		update.IsActive = req.IsActive
	}

	ctx := c.Request().Context()
	updated, err := h.Users.Update(ctx, user.ID, update)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return notFound(c, "user not found")
		case errors.Is(err, repository.ErrConflict):
			return conflict(c, "email already in use")
		default:
			return serverError(c, err)
		}
	}

	if req.IsActive != nil && !*req.IsActive {
		if err := h.Tokens.RevokeAllForSubject(ctx, string(auth.KindAdmin), updated.ID); err != nil {
			return serverError(c, err)
		}
	}

	return c.JSON(http.StatusOK, updated)
}

// ChangePassword: сотрудник меняет свой пароль, подтверждая текущий;
// администратор задает новый пароль другому сотруднику без подтверждения.
func (h *UserHandler) ChangePassword(c echo.Context) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	user, err := h.loadUser(c)
	if err != nil {
		return err
	}

	self := principal.IsAdmin() && principal.ID == user.ID
	if !self && !principal.HasRole(models.UserRoleAdmin) {
		return forbidden(c)
	}

	var req SetUserPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if self {
		if req.CurrentPassword == "" {
			return fieldsError(map[string]string{"currentPassword": "is required"})
		}
		if auth.ComparePassword(user.PasswordHash, req.CurrentPassword) != nil {
			return badRequest(c, "current password is incorrect")
		}
	}

	passwordHash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return serverError(c, err)
	}

	ctx := c.Request().Context()
	if err := h.Users.UpdatePassword(ctx, user.ID, passwordHash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "user not found")
		}
		return serverError(c, err)
	}
	if err := h.Tokens.RevokeAllForSubject(ctx, string(auth.KindAdmin), user.ID); err != nil {
		return serverError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "password changed"})
}

func (h *UserHandler) loadUser(c echo.Context) (models.User, error) {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return models.User{}, echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}

	user, err := h.Users.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.User{}, echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return models.User{}, err
	}
	return user, nil
}
