package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"example.com/daily-budget/backend/internal/models"
)

const (
	ContextPrincipalKey = "principal"

	// HeaderUserID дублирует субъект токена; при несовпадении запрос отклоняется.
	HeaderUserID = "X-User-ID"

	MessageSessionExpired = "session expired"
)

// JWTMiddleware проверяет access-токен и сохраняет Principal в контексте.
func JWTMiddleware(manager *TokenManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, err := bearerToken(c.Request())
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}

			claims, err := manager.ParseAccessToken(tokenString)
			if err != nil {
				if errors.Is(err, jwt.ErrTokenExpired) {
					return echo.NewHTTPError(http.StatusUnauthorized, MessageSessionExpired)
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			principal, err := claims.Principal()
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token subject")
			}

			if header := strings.TrimSpace(c.Request().Header.Get(HeaderUserID)); header != "" && header != principal.ID.String() {
				return echo.NewHTTPError(http.StatusUnauthorized, "user id does not match token")
			}

			c.Set(ContextPrincipalKey, principal)
			return next(c)
		}
	}
}

// OptionalJWTMiddleware кладет Principal в контекст, если передан валидный токен,
// и пропускает запрос без него.
func OptionalJWTMiddleware(manager *TokenManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, err := bearerToken(c.Request())
			if err != nil {
				return next(c)
			}

			claims, err := manager.ParseAccessToken(tokenString)
			if err != nil {
				return next(c)
			}

			if principal, err := claims.Principal(); err == nil {
				c.Set(ContextPrincipalKey, principal)
			}
			return next(c)
		}
	}
}

// RequireAdmin пропускает только сотрудников; roles сужает список допустимых ролей.
func RequireAdmin(roles ...models.UserRole) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, ok := PrincipalFromContext(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}
			if !principal.IsAdmin() {
				return echo.NewHTTPError(http.StatusForbidden, "admin access required")
			}
			if len(roles) > 0 && !principal.HasRole(roles...) {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
			}
			return next(c)
		}
	}
}

// RequireClient пропускает только клиентов.
func RequireClient() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, ok := PrincipalFromContext(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}
			if !principal.IsClient() {
				return echo.NewHTTPError(http.StatusForbidden, "client access required")
			}
			return next(c)
		}
	}
}

// PrincipalFromContext извлекает субъекта запроса из контекста.
func PrincipalFromContext(c echo.Context) (Principal, bool) {
	principal, ok := c.Get(ContextPrincipalKey).(Principal)
	return principal, ok
}

func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header")
	}

	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return "", errors.New("invalid authorization header")
	}

	return tokenString, nil
}
