package budgetclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, subject uuid.UUID) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(Options{BaseURL: srv.URL + "/api/"}, nil)
	require.NoError(t, err)
	return client
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	_, err := New(Options{BaseURL: ""}, nil)
	assert.Error(t, err)

	_, err = New(Options{BaseURL: "not a url"}, nil)
	assert.Error(t, err)
}

func TestNewKeepsCallerHTTPClient(t *testing.T) {
	shared := &http.Client{Timeout: 3 * time.Second}

	client, err := New(Options{BaseURL: "http://localhost:8080/api", HTTPClient: shared}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, client.http.HTTPClient.Timeout)

	client, err = New(Options{BaseURL: "http://localhost:8080/api", HTTPClient: shared, Timeout: time.Second}, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Second, client.http.HTTPClient.Timeout)
	assert.NotSame(t, shared, client.http.HTTPClient)
	assert.Equal(t, 3*time.Second, shared.Timeout)

	client, err = New(Options{BaseURL: "http://localhost:8080/api"}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, client.http.HTTPClient.Timeout)
}

func TestLoginClientInitsSession(t *testing.T) {
	clientID := uuid.New()
	token := signedToken(t, clientID)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Empty(t, r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ana@example.com", body["email"])

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"token":        token,
			"refreshToken": "refresh-1",
			"type":         "client",
			"client":       map[string]interface{}{"id": clientID, "name": "Ana", "cpf": "123.456.789-09"},
		})
	})
	mux.HandleFunc("/api/monthly-budgets/daily-status", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))
		assert.Equal(t, clientID.String(), r.Header.Get("X-User-ID"))
		assert.Equal(t, "2025-04-03", r.URL.Query().Get("date"))

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"configured":       true,
			"date":             "2025-04-03",
			"dailyBudget":      30,
			"remainingBalance": 80,
		})
	})
	client := newTestClient(t, mux)

	account, err := client.Login(context.Background(), "ana@example.com", "secret123")
	require.NoError(t, err)

	clientAccount, ok := account.(ClientAccount)
	require.True(t, ok)
	assert.Equal(t, KindClient, clientAccount.Kind())
	assert.Equal(t, clientID, clientAccount.AccountID())
	assert.True(t, client.Session().Authenticated())
	assert.Equal(t, "refresh-1", client.Session().RefreshToken())

	status, err := client.DailyStatus(context.Background(), "2025-04-03", nil)
	require.NoError(t, err)
	assert.True(t, status.Configured)
	require.NotNil(t, status.RemainingBalance)
	assert.True(t, status.RemainingBalance.Equal(decimal.NewFromInt(80)))
}

func TestUnauthorizedClearsSession(t *testing.T) {
	userID := uuid.New()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/categories", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "session expired"})
	})
	client := newTestClient(t, mux)

	err := client.Session().Init(signedToken(t, userID), "refresh", AdminAccount{User: User{ID: userID}})
	require.NoError(t, err)

	_, err = client.Categories(context.Background())
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.False(t, client.Session().Authenticated())
	assert.Nil(t, client.Session().Account())
}

func TestRequestWithoutSession(t *testing.T) {
	var calls int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))

	_, err := client.Categories(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestAPIErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		body   interface{}
		kind   error
	}{
		{http.StatusBadRequest, map[string]interface{}{"error": "validation failed", "fields": map[string]string{"amount": "required"}}, ErrBadRequest},
		{http.StatusForbidden, map[string]string{"error": "access denied"}, ErrForbidden},
		{http.StatusNotFound, map[string]string{"error": "client not found"}, ErrNotFound},
		{http.StatusConflict, map[string]string{"error": "email already registered"}, ErrConflict},
		{http.StatusInternalServerError, map[string]string{"error": "internal server error"}, ErrServer},
	}

	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			userID := uuid.New()
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tc.status, tc.body)
			}))
			require.NoError(t, client.Session().Init(signedToken(t, userID), "", AdminAccount{User: User{ID: userID}}))

			_, err := client.MonthlyBudget(context.Background(), uuid.New(), 2025, 4)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.kind)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tc.status, apiErr.StatusCode)
			assert.NotEmpty(t, apiErr.Message)
			assert.True(t, client.Session().Authenticated())
		})
	}
}

func TestLogoutClearsSessionOnFailure(t *testing.T) {
	userID := uuid.New()
	var received string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		received = body["refreshToken"]
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}))
	require.NoError(t, client.Session().Init(signedToken(t, userID), "refresh-9", AdminAccount{User: User{ID: userID}}))

	err := client.Logout(context.Background())
	assert.ErrorIs(t, err, ErrServer)
	assert.Equal(t, "refresh-9", received)
	assert.False(t, client.Session().Authenticated())
}

func TestClientTransactionsQuery(t *testing.T) {
	clientID, userID := uuid.New(), uuid.New()
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/daily-transactions/client/"+clientID.String(), r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "2025-04-01", q.Get("startDate"))
		assert.Equal(t, "expense", q.Get("type"))
		assert.False(t, q.Has("limit"))

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"transactions": []map[string]interface{}{{"id": uuid.New(), "clientId": clientID, "amount": 10, "type": "expense"}},
			"pagination":   map[string]int{"page": 2, "limit": 20, "total": 21, "totalPages": 2},
		})
	}))
	require.NoError(t, client.Session().Init(signedToken(t, userID), "", AdminAccount{User: User{ID: userID}}))

	page, err := client.ClientTransactions(context.Background(), clientID, TransactionQuery{
		Page:      2,
		StartDate: "2025-04-01",
		Type:      "expense",
	})
	require.NoError(t, err)
	require.Len(t, page.Transactions, 1)
	assert.Equal(t, 21, page.Pagination.Total)
}

func TestUpdateBudgetPayload(t *testing.T) {
	userID, budgetID := uuid.New(), uuid.New()
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/monthly-budgets/"+budgetID.String()+"/budget", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["isPercentage"])

		writeJSON(w, http.StatusOK, map[string]interface{}{"id": budgetID, "budgetAmount": 25, "isPercentage": true})
	}))
	require.NoError(t, client.Session().Init(signedToken(t, userID), "", AdminAccount{User: User{ID: userID}}))

	updated, err := client.UpdateBudget(context.Background(), budgetID, decimal.NewFromInt(25), true)
	require.NoError(t, err)
	assert.True(t, updated.IsPercentage)
	assert.True(t, updated.BudgetAmount.Equal(decimal.NewFromInt(25)))
}

func TestSessionInitRequiresSubject(t *testing.T) {
	var s Session
	err := s.Init("not-a-jwt", "", nil)
	assert.Error(t, err)
	assert.False(t, s.Authenticated())
}
