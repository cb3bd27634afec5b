package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"example.com/daily-budget/backend/internal/models"
)

type SettingsHandler struct {
	Settings SettingsStore
}

func NewSettingsHandler(settings SettingsStore) *SettingsHandler {
	return &SettingsHandler{Settings: settings}
}

type SettingsRequest struct {
	SiteName            string `json:"siteName" validate:"required,max=100"`
	ContactEmail        string `json:"contactEmail" validate:"omitempty,email"`
	AllowRegistration   bool   `json:"allowRegistration"`
	MaintenanceMode     bool   `json:"maintenanceMode"`
	EnableNotifications bool   `json:"enableNotifications"`
	Currency            string `json:"currency" validate:"required,len=3"`
	DateFormat          string `json:"dateFormat" validate:"required,max=20"`
	TimeZone            string `json:"timeZone" validate:"required"`
}

// Get возвращает публичные настройки приложения.
func (h *SettingsHandler) Get(c echo.Context) error {
	settings, err := h.Settings.Get(c.Request().Context())
	if err != nil {
		return serverError(c, err)
	}
	return c.JSON(http.StatusOK, settings)
}

// Update сохраняет настройки целиком.
func (h *SettingsHandler) Update(c echo.Context) error {
	var req SettingsRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if _, err := time.LoadLocation(req.TimeZone); err != nil {
		return badRequest(c, "invalid timeZone")
	}

	settings, err := h.Settings.Save(c.Request().Context(), models.Settings{
		SiteName:            strings.TrimSpace(req.SiteName),
		ContactEmail:        strings.ToLower(strings.TrimSpace(req.ContactEmail)),
		AllowRegistration:   req.AllowRegistration,
		MaintenanceMode:     req.MaintenanceMode,
		EnableNotifications: req.EnableNotifications,
		Currency:            strings.ToUpper(req.Currency),
		DateFormat:          req.DateFormat,
		TimeZone:            req.TimeZone,
	})
	if err != nil {
		return serverError(c, err)
	}

	return c.JSON(http.StatusOK, settings)
}
