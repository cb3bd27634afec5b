package handlers

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/daily-budget/backend/internal/auth"
	"example.com/daily-budget/backend/internal/budget"
	"example.com/daily-budget/backend/internal/models"
)

// withFoodSpending добавляет к фикстуре доход 100 и расход 25 в категории "Alimentação" за 3 апреля.
func withFoodSpending(f budgetFixture) models.Category {
	food := models.Category{ID: uuid.New(), Name: "Alimentação"}
	day := time.Date(2025, time.April, 3, 0, 0, 0, 0, time.UTC)
	f.transactions.items = append(f.transactions.items,
		models.DailyTransaction{
			ID:          uuid.New(),
			ClientID:    f.clientID,
			CategoryID:  &food.ID,
			Category:    &food,
			Description: "Reembolso",
			Amount:      decimal.NewFromInt(100),
			Type:        models.TransactionTypeIncome,
			Date:        day,
		},
		models.DailyTransaction{
			ID:          uuid.New(),
			ClientID:    f.clientID,
			CategoryID:  &food.ID,
			Category:    &food,
			Description: "Mercado",
			Amount:      decimal.NewFromInt(25),
			Type:        models.TransactionTypeExpense,
			Date:        day,
		},
	)
	return food
}

func TestAggregateByCategory(t *testing.T) {
	f := newBudgetFixture(t)
	food := withFoodSpending(f)
	h := NewTransactionHandler(f.transactions, f.categories, f.service, f.publisher)
	admin := auth.Principal{Kind: auth.KindAdmin, ID: uuid.New(), Role: string(models.UserRoleManager)}

	c, rec := newContext(http.MethodGet, "/api/daily-transactions/aggregate?groupBy=%20Category%20&clientId="+f.clientID.String(), "", &admin)
	require.NoError(t, h.Aggregate(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AggregateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, budget.GroupByCategory, resp.GroupBy)
	require.Len(t, resp.Groups, 2)

	assert.Equal(t, food.ID.String(), resp.Groups[0].Key)
	assert.Equal(t, "Alimentação", resp.Groups[0].Label)
	assert.True(t, resp.Groups[0].Income.Equal(decimal.NewFromInt(100)))
	assert.True(t, resp.Groups[0].Expense.Equal(decimal.NewFromInt(25)))
	assert.True(t, resp.Groups[0].Balance.Equal(decimal.NewFromInt(75)))
	assert.Equal(t, 2, resp.Groups[0].Count)

	assert.Equal(t, budget.UnknownKey, resp.Groups[1].Key)
	assert.True(t, resp.Groups[1].Expense.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 1, resp.Groups[1].Count)

	assert.Equal(t, "total", resp.Total.Key)
	assert.True(t, resp.Total.Income.Equal(decimal.NewFromInt(100)))
	assert.True(t, resp.Total.Expense.Equal(decimal.NewFromInt(35)))
	assert.True(t, resp.Total.Balance.Equal(decimal.NewFromInt(65)))
	assert.Equal(t, 3, resp.Total.Count)
}

func TestAggregateByDateWithinRange(t *testing.T) {
	f := newBudgetFixture(t)
	withFoodSpending(f)
	h := NewTransactionHandler(f.transactions, f.categories, f.service, f.publisher)
	principal := auth.Principal{Kind: auth.KindClient, ID: f.clientID}

	c, rec := newContext(http.MethodGet, "/api/daily-transactions/aggregate?groupBy=date&startDate=2025-04-03", "", &principal)
	require.NoError(t, h.Aggregate(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AggregateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Groups, 1)
	assert.Equal(t, "2025-04-03", resp.Groups[0].Key)
	assert.Equal(t, 2, resp.Total.Count)
}

func TestAggregateRejectsBadInput(t *testing.T) {
	f := newBudgetFixture(t)
	h := NewTransactionHandler(f.transactions, f.categories, f.service, f.publisher)
	principal := auth.Principal{Kind: auth.KindClient, ID: f.clientID}

	cases := []struct {
		name  string
		query string
		want  int
	}{
		{"unknown grouping", "groupBy=week", http.StatusBadRequest},
		{"missing grouping", "", http.StatusBadRequest},
		{"bad date", "groupBy=date&startDate=2025-13-01", http.StatusBadRequest},
		{"reversed range", "groupBy=date&startDate=2025-04-05&endDate=2025-04-01", http.StatusBadRequest},
		{"other client", "groupBy=client&clientId=" + uuid.NewString(), http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := newContext(http.MethodGet, "/api/daily-transactions/aggregate?"+tc.query, "", &principal)
			err := h.Aggregate(c)
			assert.Equal(t, tc.want, statusOf(err, rec))
		})
	}
}

func readCSV(t *testing.T, body string) [][]string {
	t.Helper()
	records, err := csv.NewReader(strings.NewReader(body)).ReadAll()
	require.NoError(t, err)
	return records
}

func TestExportTransactionsCSV(t *testing.T) {
	f := newBudgetFixture(t)
	withFoodSpending(f)
	h := NewTransactionHandler(f.transactions, f.categories, f.service, f.publisher)
	principal := auth.Principal{Kind: auth.KindClient, ID: f.clientID}

	c, rec := newContext(http.MethodGet, "/api/daily-transactions/export?startDate=2025-04-01&endDate=2025-04-30", "", &principal)
	require.NoError(t, h.ExportCSV(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="transactions-transactions-2025-04-01-2025-04-30.csv"`)

	records := readCSV(t, rec.Body.String())
	require.Len(t, records, 4)
	assert.Equal(t, "transaction_id", records[0][0])
	assert.Len(t, records[0], 11)

	var mercado []string
	for _, record := range records[1:] {
		if record[6] == "Mercado" {
			mercado = record
		}
	}
	require.NotNil(t, mercado)
	assert.Equal(t, "2025-04-03", mercado[1])
	assert.Equal(t, "Alimentação", mercado[4])
	assert.Equal(t, "expense", mercado[5])
	assert.Equal(t, "25.00", mercado[7])
	assert.Equal(t, "R$ 25,00", mercado[8])
}

func TestExportDailyTotalsCSV(t *testing.T) {
	f := newBudgetFixture(t)
	withFoodSpending(f)
	h := NewTransactionHandler(f.transactions, f.categories, f.service, f.publisher)
	principal := auth.Principal{Kind: auth.KindClient, ID: f.clientID}

	c, rec := newContext(http.MethodGet, "/api/daily-transactions/export?type=DAILY", "", &principal)
	require.NoError(t, h.ExportCSV(c))
	require.Equal(t, http.StatusOK, rec.Code)

	records := readCSV(t, rec.Body.String())
	assert.Equal(t, [][]string{
		{"date", "income", "expense", "balance", "balance_formatted", "count"},
		{"2025-04-02", "0.00", "10.00", "-10.00", "-R$ 10,00", "1"},
		{"2025-04-03", "100.00", "25.00", "75.00", "R$ 75,00", "2"},
	}, records)
}

func TestExportRejectsUnknownType(t *testing.T) {
	f := newBudgetFixture(t)
	h := NewTransactionHandler(f.transactions, f.categories, f.service, f.publisher)
	principal := auth.Principal{Kind: auth.KindClient, ID: f.clientID}

	c, rec := newContext(http.MethodGet, "/api/daily-transactions/export?type=pdf", "", &principal)
	err := h.ExportCSV(c)
	assert.Equal(t, http.StatusBadRequest, statusOf(err, rec))

	c, rec = newContext(http.MethodGet, "/api/daily-transactions/export?clientId="+uuid.NewString(), "", &principal)
	err = h.ExportCSV(c)
	assert.Equal(t, http.StatusForbidden, statusOf(err, rec))
}
