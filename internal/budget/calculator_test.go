package budget

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/daily-budget/backend/internal/models"
)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "%s: expected %s, got %s", field, want, got.String())
}

func expense(day time.Time, amount string) models.DailyTransaction {
	return models.DailyTransaction{
		ID:       uuid.New(),
		ClientID: uuid.New(),
		Amount:   dec(amount),
		Type:     models.TransactionTypeExpense,
		Date:     day,
	}
}

func income(day time.Time, amount string) models.DailyTransaction {
	tx := expense(day, amount)
	tx.Type = models.TransactionTypeIncome
	return tx
}

// aprilBudget: 30-дневный месяц, 3000 * 30% / 30 = 30 в день.
func aprilBudget() *models.MonthlyBudget {
	return &models.MonthlyBudget{
		ID:            uuid.New(),
		ClientID:      uuid.New(),
		Year:          2025,
		Month:         4,
		MonthlySalary: dec("3000"),
		BudgetAmount:  dec("30"),
		IsPercentage:  true,
		CreatedAt:     time.Date(2025, time.April, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestDaysInMonth(t *testing.T) {
	cases := []struct {
		year, month, want int
	}{
		{2025, 1, 31},
		{2025, 2, 28},
		{2024, 2, 29},
		{2025, 4, 30},
		{2025, 12, 31},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, DaysInMonth(tc.year, tc.month), "%d-%02d", tc.year, tc.month)
	}
}

func TestDailyBudgetPercentage(t *testing.T) {
	b := aprilBudget()

	daily, err := DailyBudget(*b)
	require.NoError(t, err)
	assertDecimal(t, "30", daily, "dailyBudget")

	b.Month = 5
	daily, err = DailyBudget(*b)
	require.NoError(t, err)
	want := dec("3000").Mul(dec("30")).Div(dec("100")).Div(dec("31"))
	assertDecimal(t, want.String(), daily, "dailyBudget")
}

func TestDailyBudgetAbsolute(t *testing.T) {
	b := aprilBudget()
	b.IsPercentage = false
	b.BudgetAmount = dec("1500")
	b.Year, b.Month = 2024, 2

	daily, err := DailyBudget(*b)
	require.NoError(t, err)
	assertDecimal(t, dec("1500").Div(dec("29")).String(), daily, "dailyBudget")
}

func TestDailyBudgetInvalid(t *testing.T) {
	b := aprilBudget()
	b.BudgetAmount = dec("120")
	_, err := DailyBudget(*b)
	assert.ErrorIs(t, err, ErrInvalidBudget)

	b = aprilBudget()
	b.MonthlySalary = dec("-1")
	_, err = DailyBudget(*b)
	assert.ErrorIs(t, err, ErrInvalidBudget)

	b = aprilBudget()
	b.Month = 13
	_, err = DailyBudget(*b)
	assert.ErrorIs(t, err, ErrInvalidBudget)
}

func TestComputeDailyStatusScenario(t *testing.T) {
	b := aprilBudget()
	ledger := NewLedger([]models.DailyTransaction{
		expense(date(2025, time.April, 2), "10.00"),
		expense(date(2025, time.April, 3), "80.00"),
	})

	cases := []struct {
		day                                       int
		previous, adjusted, spent, income, remain string
	}{
		{1, "0", "30", "0", "0", "30"},
		{2, "30", "60", "10", "0", "50"},
		{3, "50", "80", "80", "0", "0"},
		{4, "0", "30", "0", "0", "30"},
	}

	for _, tc := range cases {
		status, err := ComputeDailyStatus(b, ledger, date(2025, time.April, tc.day))
		require.NoError(t, err)

		assertDecimal(t, "30", status.DailyBudget, "dailyBudget")
		assertDecimal(t, tc.previous, status.PreviousDayBalance, "previousDayBalance")
		assertDecimal(t, tc.adjusted, status.AdjustedDailyBudget, "adjustedDailyBudget")
		assertDecimal(t, tc.spent, status.TodaySpent, "todaySpent")
		assertDecimal(t, tc.income, status.TodayIncome, "todayIncome")
		assertDecimal(t, tc.remain, status.RemainingBalance, "remainingBalance")
		assert.Equal(t, b.ID, status.Budget.ID)
	}
}

func TestComputeDailyStatusCarryoverChain(t *testing.T) {
	b := aprilBudget()
	b.Month = 5
	b.CreatedAt = time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	ledger := NewLedger([]models.DailyTransaction{
		expense(date(2025, time.May, 3), "12.35"),
		income(date(2025, time.May, 3), "5"),
		expense(date(2025, time.May, 9), "140"),
		expense(date(2025, time.May, 17), "3.10"),
	})

	history, err := History(b, ledger, date(2025, time.May, 31))
	require.NoError(t, err)
	require.Len(t, history, 31)

	for i := 1; i < len(history); i++ {
		prev, cur := history[i-1], history[i]
		assert.True(t, cur.PreviousDayBalance.Equal(prev.RemainingBalance), "day %d", i+1)
		assert.True(t, cur.AdjustedDailyBudget.Equal(cur.DailyBudget.Add(prev.RemainingBalance)), "day %d", i+1)
	}

	status, err := ComputeDailyStatus(b, ledger, date(2025, time.May, 17))
	require.NoError(t, err)
	assert.True(t, status.RemainingBalance.Equal(history[16].RemainingBalance))
}

func TestComputeDailyStatusNegativeBalanceIsNotClamped(t *testing.T) {
	b := aprilBudget()
	ledger := NewLedger([]models.DailyTransaction{
		expense(date(2025, time.April, 1), "100"),
	})

	status, err := ComputeDailyStatus(b, ledger, date(2025, time.April, 1))
	require.NoError(t, err)
	assertDecimal(t, "-70", status.RemainingBalance, "remainingBalance")

	next, err := ComputeDailyStatus(b, ledger, date(2025, time.April, 2))
	require.NoError(t, err)
	assertDecimal(t, "-70", next.PreviousDayBalance, "previousDayBalance")
	assertDecimal(t, "-40", next.AdjustedDailyBudget, "adjustedDailyBudget")
	assert.True(t, next.RemainingBalance.IsNegative())
}

func TestComputeDailyStatusIncomeAddsToBalance(t *testing.T) {
	b := aprilBudget()
	ledger := NewLedger([]models.DailyTransaction{
		income(date(2025, time.April, 1), "25.50"),
		expense(date(2025, time.April, 1), "5.50"),
	})

	status, err := ComputeDailyStatus(b, ledger, date(2025, time.April, 1))
	require.NoError(t, err)
	assertDecimal(t, "25.50", status.TodayIncome, "todayIncome")
	assertDecimal(t, "5.50", status.TodaySpent, "todaySpent")
	assertDecimal(t, "50", status.RemainingBalance, "remainingBalance")
}

func TestComputeDailyStatusFirstTrackedDay(t *testing.T) {
	b := aprilBudget()
	b.CreatedAt = time.Date(2025, time.April, 10, 15, 0, 0, 0, time.UTC)

	status, err := ComputeDailyStatus(b, NewLedger(nil), date(2025, time.April, 10))
	require.NoError(t, err)
	assert.True(t, status.PreviousDayBalance.IsZero())

	// Транзакция раньше создания бюджета сдвигает начало отслеживания.
	ledger := NewLedger([]models.DailyTransaction{expense(date(2025, time.April, 8), "10")})
	assert.Equal(t, date(2025, time.April, 8), TrackingStart(*b, ledger))

	status, err = ComputeDailyStatus(b, ledger, date(2025, time.April, 8))
	require.NoError(t, err)
	assert.True(t, status.PreviousDayBalance.IsZero())

	status, err = ComputeDailyStatus(b, ledger, date(2025, time.April, 10))
	require.NoError(t, err)
	assertDecimal(t, "50", status.PreviousDayBalance, "previousDayBalance")

	// Дата раньше начала отслеживания сама становится первым днем.
	status, err = ComputeDailyStatus(b, NewLedger(nil), date(2025, time.April, 3))
	require.NoError(t, err)
	assert.True(t, status.PreviousDayBalance.IsZero())
}

func TestComputeDailyStatusIgnoresOtherMonths(t *testing.T) {
	b := aprilBudget()
	ledger := NewLedger([]models.DailyTransaction{
		expense(date(2025, time.March, 31), "500"),
		expense(date(2025, time.April, 1), "10"),
	})

	assert.Equal(t, date(2025, time.April, 1), TrackingStart(*b, ledger))

	status, err := ComputeDailyStatus(b, ledger, date(2025, time.April, 1))
	require.NoError(t, err)
	assertDecimal(t, "20", status.RemainingBalance, "remainingBalance")
}

func TestComputeDailyStatusErrors(t *testing.T) {
	_, err := ComputeDailyStatus(nil, NewLedger(nil), date(2025, time.April, 1))
	assert.ErrorIs(t, err, ErrNoBudget)

	_, err = ComputeDailyStatus(aprilBudget(), NewLedger(nil), date(2025, time.May, 1))
	assert.ErrorIs(t, err, ErrDateOutsideMonth)
}

func TestBudgetEditRecomputesWholeMonth(t *testing.T) {
	b := aprilBudget()
	ledger := NewLedger([]models.DailyTransaction{expense(date(2025, time.April, 2), "10")})

	before, err := ComputeDailyStatus(b, ledger, date(2025, time.April, 3))
	require.NoError(t, err)
	assertDecimal(t, "80", before.RemainingBalance, "remainingBalance")

	b.IsPercentage = false
	b.BudgetAmount = dec("600")

	after, err := ComputeDailyStatus(b, ledger, date(2025, time.April, 3))
	require.NoError(t, err)
	assertDecimal(t, "20", after.DailyBudget, "dailyBudget")
	assertDecimal(t, "50", after.RemainingBalance, "remainingBalance")
}
