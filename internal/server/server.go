package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"example.com/daily-budget/backend/internal/ai"
	"example.com/daily-budget/backend/internal/auth"
	"example.com/daily-budget/backend/internal/budget"
	"example.com/daily-budget/backend/internal/config"
	"example.com/daily-budget/backend/internal/handlers"
	"example.com/daily-budget/backend/internal/notifications"
	"example.com/daily-budget/backend/internal/repository"
)

// New собирает HTTP-сервер Echo с роутами и зависимостями. sinks получают копию
// каждого события (например, RabbitMQ).
func New(cfg config.Config, logger *slog.Logger, db *pgxpool.Pool, sinks ...notifications.Sink) (*echo.Echo, error) {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()
	e.HTTPErrorHandler = errorHandler(logger)

	e.Use(middleware.Recover())
	e.Use(sentryMiddleware())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))
	if len(cfg.Server.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.Server.CORSOrigins,
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, auth.HeaderUserID},
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		}))
	}

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	userRepo := repository.NewUserRepository(db)
	clientRepo := repository.NewClientRepository(db)
	tokenRepo := repository.NewRefreshTokenRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	budgetRepo := repository.NewMonthlyBudgetRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	aiRequestRepo := repository.NewAIRequestRepository(db)
	usageRepo := repository.NewUsageRepository(db)

	hub := notifications.NewHub()
	publisher := notifications.NewFanout(hub, logger, sinks...)
	budgetService := budget.NewService(budgetRepo, transactionRepo, cfg.Budget.Location)

	aiClient, err := ai.NewClient(cfg.AI.Provider, ai.Options{
		APIKey:     cfg.AI.APIKey,
		BaseURL:    cfg.AI.BaseURL,
		Model:      cfg.AI.Model,
		Timeout:    cfg.AI.Timeout,
		MaxTokens:  cfg.AI.MaxOutputTokens,
		MaxRetries: cfg.AI.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("create ai client: %w", err)
	}

	routes := routeHandlers{
		auth:          handlers.NewAuthHandler(userRepo, clientRepo, tokenRepo, settingsRepo, tokenManager),
		users:         handlers.NewUserHandler(userRepo, tokenRepo),
		settings:      handlers.NewSettingsHandler(settingsRepo),
		clients:       handlers.NewClientHandler(clientRepo, transactionRepo, budgetService),
		categories:    handlers.NewCategoryHandler(categoryRepo),
		transactions:  handlers.NewTransactionHandler(transactionRepo, categoryRepo, budgetService, publisher),
		budgets:       handlers.NewBudgetHandler(budgetRepo, clientRepo, budgetService, publisher),
		analytics:     handlers.NewAnalyticsHandler(transactionRepo, budgetService),
		dashboard:     handlers.NewDashboardHandler(transactionRepo, budgetService),
		notifications: handlers.NewNotificationHandler(hub),
		insights:      handlers.NewInsightsHandler(ai.NewService(aiClient), budgetService, budgetRepo, transactionRepo, settingsRepo, aiRequestRepo, publisher),
		admin:         handlers.NewAdminHandler(aiRequestRepo, usageRepo),
		health:        handlers.NewHealthHandler(db),
	}

	registerRoutes(e, routes, routeMiddleware{
		auth:         auth.JWTMiddleware(tokenManager),
		optionalAuth: auth.OptionalJWTMiddleware(tokenManager),
		authLimiter:  rateLimiter(cfg.Auth.RateLimitPerMinute, cfg.Auth.RateLimitBurst),
		aiLimiter:    rateLimiter(cfg.AI.RateLimitPerMinute, cfg.AI.RateLimitBurst),
	})

	return e, nil
}

// NewHTTPServer создает net/http сервер с заданными таймаутами.
func NewHTTPServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

// errorHandler отдает ошибки в формате {"error": "..."}. Сообщение-map (ошибки
// валидации) отдается как есть. Необработанные ошибки логируются и уходят в Sentry.
func errorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if !errors.As(err, &he) {
			ctx := c.Request().Context()
			logger.ErrorContext(ctx, "unhandled error",
				slog.String("method", c.Request().Method),
				slog.String("path", c.Path()),
				slog.String("error", err.Error()),
			)
			if hub := sentry.GetHubFromContext(ctx); hub != nil {
				hub.CaptureException(err)
			}
			he = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
		}

		var body interface{}
		switch msg := he.Message.(type) {
		case string:
			body = map[string]string{"error": msg}
		case error:
			body = map[string]string{"error": msg.Error()}
		default:
			body = msg
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(he.Code)
		} else {
			err = c.JSON(he.Code, body)
		}
		if err != nil {
			logger.Error("write error response", slog.String("error", err.Error()))
		}
	}
}

// sentryMiddleware кладет в контекст запроса собственный hub Sentry и
// отправляет панику перед тем, как ее перехватит Recover.
func sentryMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			hub := sentry.CurrentHub().Clone()
			hub.Scope().SetRequest(c.Request())
			ctx := sentry.SetHubOnContext(c.Request().Context(), hub)
			c.SetRequest(c.Request().WithContext(ctx))

			defer func() {
				if r := recover(); r != nil {
					hub.RecoverWithContext(ctx, r)
					hub.Flush(2 * time.Second)
					panic(r)
				}
			}()

			return next(c)
		}
	}
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.String("remote_ip", v.RemoteIP),
				slog.String("request_id", v.RequestID),
				slog.Duration("latency", v.Latency),
			}

			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}

			level := slog.LevelInfo
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(c.Request().Context(), level, "request completed", attrs...)
			return nil
		},
	})
}

// rateLimiter ограничивает число запросов в минуту с одного IP.
func rateLimiter(perMinute, burst int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(perMinute) / 60.0),
		Burst:     burst,
		ExpiresIn: time.Minute,
	})

	return middleware.RateLimiter(store)
}
