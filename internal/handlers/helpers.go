package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"example.com/daily-budget/backend/internal/auth"
	"example.com/daily-budget/backend/internal/budget"
	"example.com/daily-budget/backend/internal/repository"
)

const (
	timeLayout = time.RFC3339
	dateLayout = budget.DateLayout
)

type PaginationResponse struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": message})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
}

func conflict(c echo.Context, message string) error {
	return c.JSON(http.StatusConflict, map[string]string{"error": message})
}

func notFound(c echo.Context, message string) error {
	return c.JSON(http.StatusNotFound, map[string]string{"error": message})
}

func forbidden(c echo.Context) error {
	return c.JSON(http.StatusForbidden, map[string]string{"error": "access denied"})
}

// serverError логирует причину, отправляет ее в Sentry и отвечает 500 без деталей.
func serverError(c echo.Context, err error) error {
	if err != nil {
		slog.ErrorContext(c.Request().Context(), "request failed",
			slog.String("component", "handlers"),
			slog.String("method", c.Request().Method),
			slog.String("path", c.Path()),
			slog.String("error", err.Error()),
		)
		if hub := sentry.GetHubFromContext(c.Request().Context()); hub != nil {
			hub.CaptureException(err)
		}
	}
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

// validationError описывает ошибку валидации с сообщением по каждому полю.
func validationError(err error) *echo.HTTPError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return echo.NewHTTPError(http.StatusBadRequest, "validation failed")
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}

	return fieldsError(fields)
}

func fieldsError(fields map[string]string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusBadRequest, map[string]interface{}{
		"error":  "validation failed",
		"fields": fields,
	})
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "len":
		return "must have length " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "cpf":
		return "must match 000.000.000-00"
	case "phone":
		return "must match (00) 00000-0000"
	case "txtype":
		return "must be income or expense"
	default:
		return "is invalid"
	}
}

// bindAndValidate декодирует тело запроса и проверяет его по тегам.
// Ошибка уже содержит ответ и возвращается из обработчика как есть.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(req); err != nil {
		return validationError(err)
	}
	return nil
}

func parsePagination(c echo.Context, defaultLimit, maxLimit int) (repository.Page, int, error) {
	limit := defaultLimit
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return repository.Page{}, 0, errors.New("invalid limit")
		}
		if parsed > maxLimit {
			parsed = maxLimit
		}
		limit = parsed
	}

	page := 1
	if raw := strings.TrimSpace(c.QueryParam("page")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return repository.Page{}, 0, errors.New("invalid page")
		}
		page = parsed
	}

	return repository.Page{Limit: limit, Offset: (page - 1) * limit}, page, nil
}

func paginationResponse(page repository.Page, pageNumber, total int) PaginationResponse {
	totalPages := 0
	if page.Limit > 0 {
		totalPages = (total + page.Limit - 1) / page.Limit
	}
	return PaginationResponse{
		Page:       pageNumber,
		Limit:      page.Limit,
		Total:      total,
		TotalPages: totalPages,
	}
}

func parseUUIDParam(c echo.Context, name string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(c.Param(name)))
}

// parseOptionalUUIDQuery возвращает nil для пустого параметра.
func parseOptionalUUIDQuery(c echo.Context, name string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil, nil
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// parseDateRange разбирает startDate/endDate (YYYY-MM-DD); оба необязательны.
func parseDateRange(c echo.Context) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if raw := strings.TrimSpace(c.QueryParam("startDate")); raw != "" {
		parsed, err := budget.ParseDate(raw)
		if err != nil {
			return nil, nil, errors.New("invalid startDate")
		}
		from = &parsed
	}
	if raw := strings.TrimSpace(c.QueryParam("endDate")); raw != "" {
		parsed, err := budget.ParseDate(raw)
		if err != nil {
			return nil, nil, errors.New("invalid endDate")
		}
		to = &parsed
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, errors.New("endDate must not be before startDate")
	}
	return from, to, nil
}

// money округляет сумму до копеек для ответа.
func money(value decimal.Decimal) decimal.Decimal {
	return value.Round(2)
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

var (
	errClientScope  = errors.New("access to another client is denied")
	errAccessDenied = echo.NewHTTPError(http.StatusForbidden, "access denied")
	errUnauthorized = echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
)

// clientScope определяет клиента, чьи данные читает запрос: клиент видит только
// себя, сотрудник любого клиента или всех (nil).
func clientScope(principal auth.Principal, requested *uuid.UUID) (*uuid.UUID, error) {
	if principal.IsClient() {
		if requested != nil && *requested != principal.ID {
			return nil, errClientScope
		}
		id := principal.ID
		return &id, nil
	}
	return requested, nil
}
