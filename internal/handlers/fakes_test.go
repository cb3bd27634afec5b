package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"example.com/daily-budget/backend/internal/auth"
	"example.com/daily-budget/backend/internal/models"
	"example.com/daily-budget/backend/internal/notifications"
	"example.com/daily-budget/backend/internal/repository"
)

var (
	testCPF   = regexp.MustCompile(`^\d{3}\.\d{3}\.\d{3}-\d{2}$`)
	testPhone = regexp.MustCompile(`^\(\d{2}\) \d{4,5}-\d{4}$`)
)

type testValidator struct {
	v *validator.Validate
}

func newTestValidator() *testValidator {
	v := validator.New()
	_ = v.RegisterValidation("cpf", func(fl validator.FieldLevel) bool {
		return testCPF.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return testPhone.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("txtype", func(fl validator.FieldLevel) bool {
		return models.TransactionType(fl.Field().String()).Valid()
	})
	return &testValidator{v: v}
}

func (tv *testValidator) Validate(i interface{}) error {
	return tv.v.Struct(i)
}

// newContext собирает echo.Context с JSON-телом и, если задан, субъектом запроса.
func newContext(method, target, body string, principal *auth.Principal) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = newTestValidator()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if principal != nil {
		c.Set(auth.ContextPrincipalKey, *principal)
	}
	return c, rec
}

// statusOf возвращает код ответа с учетом ошибки, которую вернул обработчик.
func statusOf(err error, rec *httptest.ResponseRecorder) int {
	if err == nil {
		return rec.Code
	}
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	return http.StatusInternalServerError
}

type memoryUsers struct {
	mu    sync.Mutex
	items map[uuid.UUID]models.User
}

func newMemoryUsers(users ...models.User) *memoryUsers {
	m := &memoryUsers{items: make(map[uuid.UUID]models.User)}
	for _, u := range users {
		m.items[u.ID] = u
	}
	return m
}

func (m *memoryUsers) Create(_ context.Context, name, email, passwordHash string, role models.UserRole) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.items {
		if u.Email == email {
			return models.User{}, repository.ErrConflict
		}
	}
	user := models.User{ID: uuid.New(), Name: name, Email: email, PasswordHash: passwordHash, Role: role, IsActive: true}
	m.items[user.ID] = user
	return user, nil
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.items {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, repository.ErrNotFound
}

func (m *memoryUsers) GetByID(_ context.Context, id uuid.UUID) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.items[id]
	if !ok {
		return models.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (m *memoryUsers) TouchLastLogin(context.Context, uuid.UUID) error { return nil }

func (m *memoryUsers) UpdateProfile(ctx context.Context, id uuid.UUID, name, email string) (models.User, error) {
	u, err := m.GetByID(ctx, id)
	if err != nil {
		return u, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u.Name, u.Email = name, email
	m.items[id] = u
	return u, nil
}

func (m *memoryUsers) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	u, err := m.GetByID(ctx, id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u.PasswordHash = passwordHash
	m.items[id] = u
	return nil
}

func (m *memoryUsers) List(_ context.Context, filter repository.UserFilter, page repository.Page) ([]models.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.User, 0, len(m.items))
	for _, u := range m.items {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		if filter.Active != nil && u.IsActive != *filter.Active {
			continue
		}
		out = append(out, u)
	}
	return out, len(out), nil
}

func (m *memoryUsers) Update(ctx context.Context, id uuid.UUID, update repository.UserUpdate) (models.User, error) {
	u, err := m.GetByID(ctx, id)
	if err != nil {
		return u, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if update.Email != nil {
		for _, other := range m.items {
			if other.ID != id && other.Email == *update.Email {
				return models.User{}, repository.ErrConflict
			}
		}
	}
	if update.Name != nil {
		u.Name = *update.Name
	}
	if update.Email != nil {
		u.Email = *update.Email
	}
	if update.Role != nil {
		u.Role = *update.Role
	}
	if update.IsActive != nil {
		u.IsActive = *update.IsActive
	}
	m.items[id] = u
	return u, nil
}

type memoryClients struct {
	mu    sync.Mutex
	items map[uuid.UUID]models.Client
}

func newMemoryClients(clients ...models.Client) *memoryClients {
	m := &memoryClients{items: make(map[uuid.UUID]models.Client)}
	for _, cl := range clients {
		m.items[cl.ID] = cl
	}
	return m
}

func (m *memoryClients) Create(_ context.Context, input repository.ClientInput, passwordHash string) (models.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cl := range m.items {
		if cl.Email == input.Email || cl.CPF == input.CPF {
			return models.Client{}, repository.ErrConflict
		}
	}
	client := models.Client{
		ID:           uuid.New(),
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: passwordHash,
		CPF:          input.CPF,
		Phone:        input.Phone,
		Salary:       input.Salary,
		Status:       input.Status,
		IsActive:     input.IsActive,
	}
	m.items[client.ID] = client
	return client, nil
}

func (m *memoryClients) Update(ctx context.Context, id uuid.UUID, input repository.ClientInput) (models.Client, error) {
	client, err := m.GetByID(ctx, id)
	if err != nil {
		return client, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	client.Name, client.Email, client.CPF = input.Name, input.Email, input.CPF
	client.Status, client.IsActive, client.Salary = input.Status, input.IsActive, input.Salary
	m.items[id] = client
	return client, nil
}

func (m *memoryClients) UpdateProfile(ctx context.Context, id uuid.UUID, name, email string, phone, address *string) (models.Client, error) {
	client, err := m.GetByID(ctx, id)
	if err != nil {
		return client, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	client.Name, client.Email, client.Phone, client.Address = name, email, phone, address
	m.items[id] = client
	return client, nil
}

func (m *memoryClients) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	client, err := m.GetByID(ctx, id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	client.PasswordHash = passwordHash
	m.items[id] = client
	return nil
}

func (m *memoryClients) TouchLastLogin(context.Context, uuid.UUID) error { return nil }

func (m *memoryClients) GetByID(_ context.Context, id uuid.UUID) (models.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	client, ok := m.items[id]
	if !ok {
		return models.Client{}, repository.ErrNotFound
	}
	return client, nil
}

func (m *memoryClients) GetByEmail(_ context.Context, email string) (models.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cl := range m.items {
		if cl.Email == email {
			return cl, nil
		}
	}
	return models.Client{}, repository.ErrNotFound
}

func (m *memoryClients) List(_ context.Context, _ repository.ClientFilter, page repository.Page) ([]models.Client, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Client, 0, len(m.items))
	for _, cl := range m.items {
		out = append(out, cl)
	}
	return out, len(out), nil
}

func (m *memoryClients) Stats(context.Context) (repository.ClientStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stats repository.ClientStats
	for _, cl := range m.items {
		stats.Total++
		if cl.IsActive {
			stats.Active++
		} else {
			stats.Inactive++
		}
	}
	return stats, nil
}

func (m *memoryClients) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

type memoryTokens struct {
	mu    sync.Mutex
	items map[uuid.UUID]models.RefreshToken
}

func newMemoryTokens() *memoryTokens {
	return &memoryTokens{items: make(map[uuid.UUID]models.RefreshToken)}
}

func (m *memoryTokens) Create(_ context.Context, token models.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[token.ID] = token
	return nil
}

func (m *memoryTokens) GetByID(_ context.Context, id uuid.UUID) (models.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.items[id]
	if !ok {
		return models.RefreshToken{}, repository.ErrNotFound
	}
	return token, nil
}

func (m *memoryTokens) Revoke(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now()
	token.RevokedAt = &now
	m.items[id] = token
	return nil
}

func (m *memoryTokens) RevokeAllForSubject(_ context.Context, kind string, subjectID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for id, token := range m.items {
		if token.SubjectKind == kind && token.SubjectID == subjectID && token.RevokedAt == nil {
			token.RevokedAt = &now
			m.items[id] = token
		}
	}
	return nil
}

func (m *memoryTokens) Rotate(_ context.Context, oldID uuid.UUID, newToken models.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.items[oldID]
	if !ok || old.RevokedAt != nil {
		return repository.ErrNotFound
	}
	now := time.Now()
	old.RevokedAt = &now
	old.ReplacedBy = &newToken.ID
	m.items[oldID] = old
	m.items[newToken.ID] = newToken
	return nil
}

type memorySettings struct {
	settings models.Settings
}

func (m *memorySettings) Get(context.Context) (models.Settings, error) {
	return m.settings, nil
}

func (m *memorySettings) Save(_ context.Context, settings models.Settings) (models.Settings, error) {
	m.settings = settings
	return settings, nil
}

type memoryCategories struct {
	items map[uuid.UUID]models.Category
	used  map[uuid.UUID]bool
}

func newMemoryCategories(categories ...models.Category) *memoryCategories {
	m := &memoryCategories{items: make(map[uuid.UUID]models.Category), used: make(map[uuid.UUID]bool)}
	for _, cat := range categories {
		m.items[cat.ID] = cat
	}
	return m
}

func (m *memoryCategories) List(context.Context) ([]models.Category, error) {
	out := make([]models.Category, 0, len(m.items))
	for _, cat := range m.items {
		out = append(out, cat)
	}
	return out, nil
}

func (m *memoryCategories) GetByID(_ context.Context, id uuid.UUID) (models.Category, error) {
	cat, ok := m.items[id]
	if !ok {
		return models.Category{}, repository.ErrNotFound
	}
	return cat, nil
}

func (m *memoryCategories) Create(_ context.Context, name string, description *string) (models.Category, error) {
	for _, cat := range m.items {
		if strings.EqualFold(cat.Name, name) {
			return models.Category{}, repository.ErrConflict
		}
	}
	cat := models.Category{ID: uuid.New(), Name: name, Description: description}
	m.items[cat.ID] = cat
	return cat, nil
}

func (m *memoryCategories) Update(_ context.Context, id uuid.UUID, name string, description *string) (models.Category, error) {
	cat, ok := m.items[id]
	if !ok {
		return models.Category{}, repository.ErrNotFound
	}
	cat.Name, cat.Description = name, description
	m.items[id] = cat
	return cat, nil
}

func (m *memoryCategories) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.items[id]; !ok {
		return repository.ErrNotFound
	}
	if m.used[id] {
		return repository.ErrConflict
	}
	delete(m.items, id)
	return nil
}

type memoryTransactions struct {
	mu    sync.Mutex
	items []models.DailyTransaction
}

func (m *memoryTransactions) Create(_ context.Context, input repository.TransactionInput) (models.DailyTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := models.DailyTransaction{
		ID:                               uuid.New(),
		ClientID:                         input.ClientID,
		CategoryID:                       input.CategoryID,
		Description:                      input.Description,
		Amount:                           input.Amount,
		Type:                             input.Type,
		Date:                             input.Date,
		RemainingBalanceAfterTransaction: input.RemainingBalance,
	}
	m.items = append(m.items, tx)
	return tx, nil
}

func (m *memoryTransactions) matching(filter repository.TransactionFilter) []models.DailyTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.DailyTransaction, 0)
	for _, tx := range m.items {
		if filter.ClientID != nil && tx.ClientID != *filter.ClientID {
			continue
		}
		if filter.Type != nil && tx.Type != *filter.Type {
			continue
		}
		if filter.From != nil && tx.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && tx.Date.After(*filter.To) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

func (m *memoryTransactions) List(_ context.Context, filter repository.TransactionFilter, page repository.Page) ([]models.DailyTransaction, int, error) {
	all := m.matching(filter)
	start := page.Offset
	if start > len(all) {
		start = len(all)
	}
	end := start + page.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (m *memoryTransactions) ListAll(_ context.Context, filter repository.TransactionFilter) ([]models.DailyTransaction, error) {
	return m.matching(filter), nil
}

func (m *memoryTransactions) ListMonth(_ context.Context, clientID uuid.UUID, from, to time.Time) ([]models.DailyTransaction, error) {
	return m.matching(repository.TransactionFilter{ClientID: &clientID, From: &from, To: &to}), nil
}

func (m *memoryTransactions) Recent(_ context.Context, clientID *uuid.UUID, limit int) ([]models.DailyTransaction, error) {
	all := m.matching(repository.TransactionFilter{ClientID: clientID})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *memoryTransactions) Totals(_ context.Context, filter repository.TransactionFilter) (repository.TransactionTotals, error) {
	totals := repository.TransactionTotals{Income: decimal.Zero, Expense: decimal.Zero}
	for _, tx := range m.matching(filter) {
		totals.Count++
		if tx.Type == models.TransactionTypeIncome {
			totals.Income = totals.Income.Add(tx.Amount)
		} else {
			totals.Expense = totals.Expense.Add(tx.Amount)
		}
	}
	return totals, nil
}

func (m *memoryTransactions) MonthlyBalances(_ context.Context, clientID uuid.UUID, since time.Time) ([]repository.MonthlyBalance, error) {
	byMonth := make(map[time.Time]repository.MonthlyBalance)
	for _, tx := range m.matching(repository.TransactionFilter{ClientID: &clientID, From: &since}) {
		key := time.Date(tx.Date.Year(), tx.Date.Month(), 1, 0, 0, 0, 0, time.UTC)
		b, ok := byMonth[key]
		if !ok {
			b = repository.MonthlyBalance{Year: key.Year(), Month: int(key.Month()), Income: decimal.Zero, Expense: decimal.Zero}
		}
		if tx.Type == models.TransactionTypeIncome {
			b.Income = b.Income.Add(tx.Amount)
		} else {
			b.Expense = b.Expense.Add(tx.Amount)
		}
		byMonth[key] = b
	}

	out := make([]repository.MonthlyBalance, 0, len(byMonth))
	for _, b := range byMonth {
		out = append(out, b)
	}
	return out, nil
}

type memoryBudgets struct {
	mu    sync.Mutex
	items map[uuid.UUID]models.MonthlyBudget
}

func newMemoryBudgets(budgets ...models.MonthlyBudget) *memoryBudgets {
	m := &memoryBudgets{items: make(map[uuid.UUID]models.MonthlyBudget)}
	for _, b := range budgets {
		m.items[b.ID] = b
	}
	return m
}

func (m *memoryBudgets) find(clientID uuid.UUID, year, month int) (models.MonthlyBudget, bool) {
	for _, b := range m.items {
		if b.ClientID == clientID && b.Year == year && b.Month == month {
			return b, true
		}
	}
	return models.MonthlyBudget{}, false
}

func (m *memoryBudgets) GetOrCreate(_ context.Context, defaults models.MonthlyBudget) (models.MonthlyBudget, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.find(defaults.ClientID, defaults.Year, defaults.Month); ok {
		return b, false, nil
	}
	b := defaults
	b.ID = uuid.New()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Date(b.Year, time.Month(b.Month), 1, 0, 0, 0, 0, time.UTC)
	}
	b.UpdatedAt = b.CreatedAt
	m.items[b.ID] = b
	return b, true, nil
}

func (m *memoryBudgets) GetByID(_ context.Context, id uuid.UUID) (models.MonthlyBudget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.items[id]
	if !ok {
		return models.MonthlyBudget{}, repository.ErrNotFound
	}
	return b, nil
}

func (m *memoryBudgets) GetForMonth(_ context.Context, clientID uuid.UUID, year, month int) (models.MonthlyBudget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.find(clientID, year, month); ok {
		return b, nil
	}
	return models.MonthlyBudget{}, repository.ErrNotFound
}

func (m *memoryBudgets) ListByClient(_ context.Context, clientID uuid.UUID) ([]models.MonthlyBudget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.MonthlyBudget, 0)
	for _, b := range m.items {
		if b.ClientID == clientID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memoryBudgets) List(_ context.Context, page repository.Page) ([]repository.BudgetWithClient, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]repository.BudgetWithClient, 0, len(m.items))
	for _, b := range m.items {
		out = append(out, repository.BudgetWithClient{MonthlyBudget: b})
	}
	return out, len(out), nil
}

func (m *memoryBudgets) Update(_ context.Context, id uuid.UUID, update repository.BudgetUpdate) (models.MonthlyBudget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.items[id]
	if !ok {
		return models.MonthlyBudget{}, repository.ErrNotFound
	}
	if update.MonthlySalary != nil {
		b.MonthlySalary = *update.MonthlySalary
	}
	if update.BudgetAmount != nil {
		b.BudgetAmount = *update.BudgetAmount
	}
	if update.IsPercentage != nil {
		b.IsPercentage = *update.IsPercentage
	}
	m.items[id] = b
	return b, nil
}

func (m *memoryBudgets) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memoryBudgets) only(t *testing.T) models.MonthlyBudget {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.items) != 1 {
		t.Fatalf("expected one budget, got %d", len(m.items))
	}
	for _, b := range m.items {
		return b
	}
	return models.MonthlyBudget{}
}

var (
	_ BudgetStore      = (*memoryBudgets)(nil)
	_ UserStore        = (*memoryUsers)(nil)
	_ ClientStore      = (*memoryClients)(nil)
	_ TransactionStore = (*memoryTransactions)(nil)
	_ CategoryStore    = (*memoryCategories)(nil)
	_ TokenStore       = (*memoryTokens)(nil)
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (p *recordingPublisher) Publish(_ uuid.UUID, event notifications.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, event := range p.events {
		out = append(out, event.Type)
	}
	return out
}
