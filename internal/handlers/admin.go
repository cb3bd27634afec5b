package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"example.com/daily-budget/backend/internal/repository"
)

const (
	defaultUsageDays = 7
	maxUsageDays     = 90
)

type AdminHandler struct {
	Requests AIRequestStore
	Usage    UsageStore
}

// NewAdminHandler создает обработчик админских эндпоинтов.
func NewAdminHandler(requests AIRequestStore, usage UsageStore) *AdminHandler {
	return &AdminHandler{Requests: requests, Usage: usage}
}

type AdminAIRequestResponse struct {
	ID              uuid.UUID       `json:"id"`
	ClientID        uuid.UUID       `json:"clientId"`
	RequestType     string          `json:"requestType"`
	Provider        string          `json:"provider"`
	Model           string          `json:"model"`
	Success         bool            `json:"success"`
	ErrorMessage    *string         `json:"errorMessage,omitempty"`
	CreatedAt       string          `json:"createdAt"`
	Prompt          *string         `json:"prompt,omitempty"`
	RequestPayload  json.RawMessage `json:"requestPayload,omitempty"`
	ResponsePayload json.RawMessage `json:"responsePayload,omitempty"`
}

type AdminAIRequestsResponse struct {
	Requests   []AdminAIRequestResponse `json:"requests"`
	Pagination PaginationResponse       `json:"pagination"`
}

type AdminUsageDay struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type AdminUsageResponse struct {
	Users           int             `json:"users"`
	Clients         int             `json:"clients"`
	ActiveClients   int             `json:"activeClients"`
	Budgets         int             `json:"budgets"`
	Transactions    int             `json:"transactions"`
	AIRequests      int             `json:"aiRequests"`
	AISuccess       int             `json:"aiSuccess"`
	AIFail          int             `json:"aiFail"`
	AIRequestsByDay []AdminUsageDay `json:"aiRequestsByDay"`
}

// ListAIRequests возвращает журнал запросов к LLM с фильтрами.
func (h *AdminHandler) ListAIRequests(c echo.Context) error {
	page, pageNumber, err := parsePagination(c, 50, 200)
	if err != nil {
		return badRequest(c, err.Error())
	}

	filter := repository.AIRequestFilter{}
	filter.ClientID, err = parseOptionalUUIDQuery(c, "clientId")
	if err != nil {
		return badRequest(c, "invalid clientId")
	}

	if raw := strings.TrimSpace(c.QueryParam("success")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest(c, "invalid success")
		}
		filter.Success = &parsed
	}

	if raw := strings.TrimSpace(c.QueryParam("requestType")); raw != "" {
		filter.RequestType = &raw
	}

	if raw := strings.TrimSpace(c.QueryParam("includePayloads")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest(c, "invalid includePayloads")
		}
		filter.WithPayloads = parsed
	}

	requests, total, err := h.Requests.List(c.Request().Context(), filter, page)
	if err != nil {
		return serverError(c, err)
	}

	response := make([]AdminAIRequestResponse, 0, len(requests))
	for _, req := range requests {
		item := AdminAIRequestResponse{
			ID:           req.ID,
			ClientID:     req.ClientID,
			RequestType:  req.RequestType,
			Provider:     req.Provider,
			Model:        req.Model,
			Success:      req.Success,
			ErrorMessage: req.ErrorMessage,
			CreatedAt:    req.CreatedAt.Format(timeLayout),
		}

		if filter.WithPayloads {
			item.Prompt = req.Prompt
			if len(req.RequestPayload) > 0 {
				item.RequestPayload = json.RawMessage(req.RequestPayload)
			}
			if len(req.ResponsePayload) > 0 {
				item.ResponsePayload = json.RawMessage(req.ResponsePayload)
			}
		}
		response = append(response, item)
	}

	return c.JSON(http.StatusOK, AdminAIRequestsResponse{
		Requests:   response,
		Pagination: paginationResponse(page, pageNumber, total),
	})
}

// UsageStats возвращает счетчики системы и запросы к LLM по дням.
func (h *AdminHandler) UsageStats(c echo.Context) error {
	days := defaultUsageDays
	if raw := strings.TrimSpace(c.QueryParam("days")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return badRequest(c, "invalid days")
		}
		if parsed > maxUsageDays {
			parsed = maxUsageDays
		}
		days = parsed
	}

	stats, err := h.Usage.Stats(c.Request().Context(), days)
	if err != nil {
		if errors.Is(err, repository.ErrInvalid) {
			return badRequest(c, "invalid days")
		}
		return serverError(c, err)
	}

	byDay := make([]AdminUsageDay, 0, len(stats.AIRequestsByDay))
	for _, day := range stats.AIRequestsByDay {
		byDay = append(byDay, AdminUsageDay{
			Date:  formatDate(day.Day),
			Count: day.Count,
		})
	}

	return c.JSON(http.StatusOK, AdminUsageResponse{
		Users:           stats.Users,
		Clients:         stats.Clients,
		ActiveClients:   stats.ActiveClients,
		Budgets:         stats.Budgets,
		Transactions:    stats.Transactions,
		AIRequests:      stats.AIRequests,
		AISuccess:       stats.AISuccess,
		AIFail:          stats.AIFail,
		AIRequestsByDay: byDay,
	})
}
