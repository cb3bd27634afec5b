package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"example.com/daily-budget/backend/internal/auth"
	"example.com/daily-budget/backend/internal/models"
	"example.com/daily-budget/backend/internal/repository"
)

type AuthHandler struct {
	Users        UserStore
	Clients      ClientStore
	Tokens       TokenStore
	Settings     SettingsStore
	TokenManager *auth.TokenManager
}

// NewAuthHandler создает обработчик авторизации сотрудников и клиентов.
func NewAuthHandler(users UserStore, clients ClientStore, tokens TokenStore, settings SettingsStore, manager *auth.TokenManager) *AuthHandler {
	return &AuthHandler{
		Users:        users,
		Clients:      clients,
		Tokens:       tokens,
		Settings:     settings,
		TokenManager: manager,
	}
}

type RegisterRequest struct {
	Name     string  `json:"name" validate:"required,min=2,max=100"`
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=6"`
	Role     string  `json:"role" validate:"omitempty,oneof=client admin manager"`
	CPF      string  `json:"cpf" validate:"omitempty,cpf"`
	Phone    *string `json:"phone" validate:"omitempty,phone"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type UpdateProfileRequest struct {
	Name    string  `json:"name" validate:"required,min=2,max=100"`
	Email   string  `json:"email" validate:"required,email"`
	Phone   *string `json:"phone" validate:"omitempty,phone"`
	Address *string `json:"address" validate:"omitempty,max=255"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

// AuthResponse содержит либо user (сотрудник), либо client, в зависимости от type.
type AuthResponse struct {
	Message      string         `json:"message"`
	Token        string         `json:"token"`
	RefreshToken string         `json:"refreshToken"`
	Type         auth.Kind      `json:"type"`
	User         *models.User   `json:"user,omitempty"`
	Client       *models.Client `json:"client,omitempty"`
}

type ProfileResponse struct {
	Type   auth.Kind      `json:"type"`
	User   *models.User   `json:"user,omitempty"`
	Client *models.Client `json:"client,omitempty"`
}

// account объединяет сотрудника и клиента для выдачи токенов.
type account struct {
	principal auth.Principal
	user      *models.User
	client    *models.Client
}

// Register регистрирует клиента или сотрудника и выдает токены.
func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	caller, authenticated := auth.PrincipalFromContext(c)
	callerIsAdmin := authenticated && caller.HasRole(models.UserRoleAdmin)

	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role == "" {
		role = string(auth.KindClient)
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	name := strings.TrimSpace(req.Name)

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return serverError(c, err)
	}

	var acc account
	if role == string(auth.KindClient) {
		if !callerIsAdmin {
			settings, err := h.Settings.Get(ctx)
			if err != nil {
				return serverError(c, err)
			}
			if !settings.AllowRegistration {
				return forbidden(c)
			}
		}
		if req.CPF == "" {
			return fieldsError(map[string]string{"cpf": "is required"})
		}

		client, err := h.Clients.Create(ctx, repository.ClientInput{
			Name:     name,
			Email:    email,
			CPF:      req.CPF,
			Phone:    req.Phone,
			Status:   models.ClientStatusActive,
			IsActive: true,
		}, passwordHash)
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return conflict(c, "client already exists")
			}
			return serverError(c, err)
		}
		acc = account{principal: auth.ClientPrincipal(client), client: &client}
	} else {
		if !callerIsAdmin {
			return forbidden(c)
		}

		user, err := h.Users.Create(ctx, name, email, passwordHash, models.UserRole(role))
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return conflict(c, "user already exists")
			}
			return serverError(c, err)
		}
		acc = account{principal: auth.AdminPrincipal(user), user: &user}
	}

	response, err := h.issueTokens(ctx, acc, "registration successful")
	if err != nil {
		return serverError(c, err)
	}

	return c.JSON(http.StatusCreated, response)
}

// Login ищет сотрудника, затем клиента по email и выдает токены.
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	acc, err := h.authenticate(ctx, strings.ToLower(strings.TrimSpace(req.Email)), req.Password)
	if err != nil {
		switch {
		case errors.Is(err, errInvalidCredentials):
			return unauthorized(c)
		case errors.Is(err, errInactiveAccount):
			return c.JSON(http.StatusForbidden, map[string]string{"error": "account is inactive"})
		default:
			return serverError(c, err)
		}
	}

	response, err := h.issueTokens(ctx, acc, "login successful")
	if err != nil {
		return serverError(c, err)
	}

	return c.JSON(http.StatusOK, response)
}

// Refresh обновляет токены по refresh-токену с ротацией.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	claims, err := h.TokenManager.ParseRefreshToken(req.RefreshToken)
	if err != nil {
		return unauthorized(c)
	}

	refreshID, err := claims.TokenID()
	if err != nil {
		return unauthorized(c)
	}

	principal, err := claims.Principal()
	if err != nil {
		return unauthorized(c)
	}

	ctx := c.Request().Context()
	storedToken, err := h.Tokens.GetByID(ctx, refreshID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return unauthorized(c)
		}
		return serverError(c, err)
	}

	if storedToken.RevokedAt != nil || time.Now().After(storedToken.ExpiresAt) {
		return unauthorized(c)
	}

	if storedToken.SubjectID != principal.ID || storedToken.SubjectKind != string(principal.Kind) {
		return unauthorized(c)
	}

	if !auth.CompareTokenHash(storedToken.TokenHash, req.RefreshToken) {
		return unauthorized(c)
	}

	acc, err := h.loadAccount(ctx, principal)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, errInactiveAccount) {
			return unauthorized(c)
		}
		return serverError(c, err)
	}

	newRefreshID := uuid.New()
	pair, err := h.TokenManager.NewTokenPair(acc.principal, newRefreshID)
	if err != nil {
		return serverError(c, err)
	}

	newToken := models.RefreshToken{
		ID:          newRefreshID,
		SubjectID:   acc.principal.ID,
		SubjectKind: string(acc.principal.Kind),
		TokenHash:   auth.HashToken(pair.RefreshToken),
		ExpiresAt:   pair.RefreshExpiresAt,
	}

	if err := h.Tokens.Rotate(ctx, storedToken.ID, newToken); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return unauthorized(c)
		}
		return serverError(c, err)
	}

	return c.JSON(http.StatusOK, buildAuthResponse(acc, pair, "token refreshed"))
}

// Logout отзывает refresh-токен.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req LogoutRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	claims, err := h.TokenManager.ParseRefreshToken(req.RefreshToken)
	if err != nil {
		return unauthorized(c)
	}

	refreshID, err := claims.TokenID()
	if err != nil {
		return unauthorized(c)
	}

	if err := h.Tokens.Revoke(c.Request().Context(), refreshID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return serverError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// Profile возвращает данные текущего сотрудника или клиента.
func (h *AuthHandler) Profile(c echo.Context) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	acc, err := h.loadAccount(c.Request().Context(), principal)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "account not found")
		}
		if errors.Is(err, errInactiveAccount) {
			return forbidden(c)
		}
		return serverError(c, err)
	}

	return c.JSON(http.StatusOK, ProfileResponse{Type: principal.Kind, User: acc.user, Client: acc.client})
}

// UpdateProfile меняет имя, email и контакты текущего аккаунта.
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req UpdateProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	response := ProfileResponse{Type: principal.Kind}
	var err error
	if principal.IsClient() {
		var client models.Client
		client, err = h.Clients.UpdateProfile(ctx, principal.ID, name, email, req.Phone, trimOptional(req.Address))
		response.Client = &client
	} else {
		var user models.User
		user, err = h.Users.UpdateProfile(ctx, principal.ID, name, email)
		response.User = &user
	}
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return notFound(c, "account not found")
		case errors.Is(err, repository.ErrConflict):
			return conflict(c, "email already in use")
		default:
			return serverError(c, err)
		}
	}

	return c.JSON(http.StatusOK, response)
}

// ChangePassword меняет пароль и отзывает все refresh-токены аккаунта.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req ChangePasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	acc, err := h.loadAccount(ctx, principal)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "account not found")
		}
		return serverError(c, err)
	}

	if auth.ComparePassword(acc.passwordHash(), req.CurrentPassword) != nil {
		return badRequest(c, "current password is incorrect")
	}

	passwordHash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return serverError(c, err)
	}

	if principal.IsClient() {
		err = h.Clients.UpdatePassword(ctx, principal.ID, passwordHash)
	} else {
		err = h.Users.UpdatePassword(ctx, principal.ID, passwordHash)
	}
	if err != nil {
		return serverError(c, err)
	}

	if err := h.Tokens.RevokeAllForSubject(ctx, string(principal.Kind), principal.ID); err != nil {
		return serverError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "password changed"})
}

var (
	errInvalidCredentials = errors.New("invalid credentials")
	errInactiveAccount    = errors.New("account is inactive")
)

func (h *AuthHandler) authenticate(ctx context.Context, email, password string) (account, error) {
	user, err := h.Users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if auth.ComparePassword(user.PasswordHash, password) != nil {
			return account{}, errInvalidCredentials
		}
		if !user.IsActive {
			return account{}, errInactiveAccount
		}
		_ = h.Users.TouchLastLogin(ctx, user.ID)
		return account{principal: auth.AdminPrincipal(user), user: &user}, nil
	case !errors.Is(err, repository.ErrNotFound):
		return account{}, err
	}

	client, err := h.Clients.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return account{}, errInvalidCredentials
		}
		return account{}, err
	}
	if auth.ComparePassword(client.PasswordHash, password) != nil {
		return account{}, errInvalidCredentials
	}
	if !clientCanLogin(client) {
		return account{}, errInactiveAccount
	}
	_ = h.Clients.TouchLastLogin(ctx, client.ID)
	return account{principal: auth.ClientPrincipal(client), client: &client}, nil
}

func (h *AuthHandler) loadAccount(ctx context.Context, principal auth.Principal) (account, error) {
	if principal.IsClient() {
		client, err := h.Clients.GetByID(ctx, principal.ID)
		if err != nil {
			return account{}, err
		}
		if !clientCanLogin(client) {
			return account{}, errInactiveAccount
		}
		return account{principal: auth.ClientPrincipal(client), client: &client}, nil
	}

	user, err := h.Users.GetByID(ctx, principal.ID)
	if err != nil {
		return account{}, err
	}
	if !user.IsActive {
		return account{}, errInactiveAccount
	}
	return account{principal: auth.AdminPrincipal(user), user: &user}, nil
}

func (h *AuthHandler) issueTokens(ctx context.Context, acc account, message string) (AuthResponse, error) {
	refreshID := uuid.New()
	pair, err := h.TokenManager.NewTokenPair(acc.principal, refreshID)
	if err != nil {
		return AuthResponse{}, err
	}

	refreshToken := models.RefreshToken{
		ID:          refreshID,
		SubjectID:   acc.principal.ID,
		SubjectKind: string(acc.principal.Kind),
		TokenHash:   auth.HashToken(pair.RefreshToken),
		ExpiresAt:   pair.RefreshExpiresAt,
	}

	if err := h.Tokens.Create(ctx, refreshToken); err != nil {
		return AuthResponse{}, err
	}

	return buildAuthResponse(acc, pair, message), nil
}

func buildAuthResponse(acc account, pair auth.TokenPair, message string) AuthResponse {
	return AuthResponse{
		Message:      message,
		Token:        pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		Type:         acc.principal.Kind,
		User:         acc.user,
		Client:       acc.client,
	}
}

func (a account) passwordHash() string {
	if a.client != nil {
		return a.client.PasswordHash
	}
	if a.user != nil {
		return a.user.PasswordHash
	}
	return ""
}

// clientCanLogin: входить могут активные клиенты и клиенты в ожидании.
func clientCanLogin(client models.Client) bool {
	if !client.IsActive {
		return false
	}
	return client.Status == models.ClientStatusActive || client.Status == models.ClientStatusPending
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}

	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}

	return &trimmed
}
