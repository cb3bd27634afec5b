package server

import (
	"github.com/labstack/echo/v4"

	"example.com/daily-budget/backend/internal/auth"
	"example.com/daily-budget/backend/internal/handlers"
	"example.com/daily-budget/backend/internal/models"
)

type routeHandlers struct {
	auth          *handlers.AuthHandler
	users         *handlers.UserHandler
	settings      *handlers.SettingsHandler
	clients       *handlers.ClientHandler
	categories    *handlers.CategoryHandler
	transactions  *handlers.TransactionHandler
	budgets       *handlers.BudgetHandler
	analytics     *handlers.AnalyticsHandler
	dashboard     *handlers.DashboardHandler
	notifications *handlers.NotificationHandler
	insights      *handlers.InsightsHandler
	admin         *handlers.AdminHandler
	health        *handlers.HealthHandler
}

type routeMiddleware struct {
	auth         echo.MiddlewareFunc
	optionalAuth echo.MiddlewareFunc
	authLimiter  echo.MiddlewareFunc
	aiLimiter    echo.MiddlewareFunc
}

func registerRoutes(e *echo.Echo, h routeHandlers, mw routeMiddleware) {
	staff := auth.RequireAdmin()
	adminOnly := auth.RequireAdmin(models.UserRoleAdmin)

	e.GET("/health", h.health.Health)

	api := e.Group("/api")
	api.GET("/health", h.health.Health)
	api.GET("/settings", h.settings.Get)

	authGroup := api.Group("/auth", mw.authLimiter)
	authGroup.POST("/register", h.auth.Register, mw.optionalAuth)
	authGroup.POST("/login", h.auth.Login)
	authGroup.POST("/refresh", h.auth.Refresh)
	authGroup.POST("/logout", h.auth.Logout)
	authGroup.GET("/profile", h.auth.Profile, mw.auth)
	authGroup.PUT("/profile", h.auth.UpdateProfile, mw.auth)
	authGroup.POST("/change-password", h.auth.ChangePassword, mw.auth)

	users := api.Group("/users", mw.auth, staff)
	users.GET("", h.users.List)
	users.GET("/:id", h.users.Get)
	users.PUT("/:id", h.users.Update)
	users.POST("/:id/change-password", h.users.ChangePassword)

	clients := api.Group("/clients", mw.auth)
	clients.GET("", h.clients.List, staff)
	clients.POST("", h.clients.Create, staff)
	clients.GET("/stats/dashboard", h.clients.DashboardStats, staff)
	clients.GET("/stats/recent-activities", h.clients.RecentActivities, staff)
	clients.GET("/:id", h.clients.Get)
	clients.GET("/:id/daily-transactions", h.clients.TransactionSummary)
	clients.PUT("/:id", h.clients.Update, staff)
	clients.DELETE("/:id", h.clients.Delete, adminOnly)

	categories := api.Group("/categories", mw.auth)
	categories.GET("", h.categories.List)
	categories.GET("/:id", h.categories.Get)
	categories.POST("", h.categories.Create, staff)
	categories.PUT("/:id", h.categories.Update, staff)
	categories.DELETE("/:id", h.categories.Delete, adminOnly)

	transactions := api.Group("/daily-transactions", mw.auth)
	transactions.POST("", h.transactions.Create)
	transactions.GET("", h.transactions.List, staff)
	transactions.GET("/client/:clientId", h.transactions.ClientTransactions)
	transactions.GET("/date-range", h.transactions.DateRange)
	transactions.GET("/aggregate", h.transactions.Aggregate)
	transactions.GET("/export/csv", h.transactions.ExportCSV)

	budgets := api.Group("/monthly-budgets", mw.auth)
	budgets.GET("", h.budgets.List, staff)
	budgets.GET("/daily-status", h.budgets.DailyStatus)
	budgets.GET("/daily-history", h.budgets.DailyHistory)
	budgets.GET("/clients/:clientId", h.budgets.ClientBudgets)
	budgets.GET("/clients/:clientId/year/:year/month/:month", h.budgets.GetOrCreate)
	budgets.GET("/:id", h.budgets.Get)
	budgets.PATCH("/:id/salary", h.budgets.UpdateSalary)
	budgets.PATCH("/:id/budget", h.budgets.UpdateBudget)
	budgets.PUT("/:id", h.budgets.Update, staff)
	budgets.DELETE("/:id", h.budgets.Delete, adminOnly)

	analytics := api.Group("/analytics", mw.auth)
	analytics.GET("/category-spending/:clientId", h.analytics.CategorySpending)
	analytics.GET("/monthly-balance/:clientId", h.analytics.MonthlyBalance)
	analytics.GET("/daily-trend/:clientId", h.analytics.DailyTrend)

	api.GET("/client/dashboard", h.dashboard.ClientDashboard, mw.auth, auth.RequireClient())

	api.GET("/notifications/stream", h.notifications.Stream, mw.auth)

	insights := api.Group("/insights", mw.auth, auth.RequireClient(), mw.aiLimiter)
	insights.POST("/analyze-spending", h.insights.AnalyzeSpending)

	admin := api.Group("/admin", mw.auth, staff)
	admin.GET("/dashboard", h.clients.DashboardStats)
	admin.PUT("/settings", h.settings.Update, adminOnly)
	admin.GET("/ai-requests", h.admin.ListAIRequests)
	admin.GET("/usage", h.admin.UsageStats)
}
