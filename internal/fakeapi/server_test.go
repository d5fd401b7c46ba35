package fakeapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pft/internal/core"
)

type harness struct {
	t      *testing.T
	srv    *Server
	token  string
	cookie *http.Cookie
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	srv := New(cfg)
	t.Cleanup(srv.Close)
	_, err := srv.Store().CreateUser("Ada", "ada@example.com", "secret1")
	require.NoError(t, err)
	return &harness{t: t, srv: srv}
}

func (h *harness) do(method, path string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var payload string
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(h.t, err)
		payload = string(b)
	}
	req := httptest.NewRequest(method, DefaultPrefix+path, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	if h.cookie != nil {
		req.AddCookie(h.cookie)
	}
	rr := httptest.NewRecorder()
	h.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (h *harness) login() {
	h.t.Helper()
	rr := h.do(http.MethodPost, "/auth/login", credentials{Email: "ada@example.com", Password: "secret1"})
	require.Equal(h.t, http.StatusOK, rr.Code, rr.Body.String())
	var body struct {
		AccessToken string    `json:"access_token"`
		TokenType   string    `json:"token_type"`
		User        core.User `json:"user"`
	}
	require.NoError(h.t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(h.t, "bearer", body.TokenType)
	assert.Equal(h.t, "ada@example.com", body.User.Email)
	h.token = body.AccessToken
	for _, c := range rr.Result().Cookies() {
		if c.Name == RefreshCookieName {
			h.cookie = c
		}
	}
	require.NotNil(h.t, h.cookie)
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	srv := New(Config{})
	defer srv.Close()
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestLoginSetsRefreshCookie(t *testing.T) {
	h := newHarness(t, Config{})
	h.login()

	assert.True(t, h.cookie.HttpOnly)
	assert.Equal(t, DefaultPrefix+"/auth/refresh", h.cookie.Path)
	assert.Positive(t, h.cookie.MaxAge)

	rr := h.do(http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Ada", decode[core.User](t, rr).Name)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	h := newHarness(t, Config{})
	rr := h.do(http.MethodPost, "/auth/login", credentials{Email: "ada@example.com", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Invalid credentials", decode[map[string]string](t, rr)["detail"])
}

func TestRegister(t *testing.T) {
	h := newHarness(t, Config{})

	rr := h.do(http.MethodPost, "/auth/register", registration{Name: "Bo", Email: "bo@example.com", Password: "secret1"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "bo@example.com", decode[core.User](t, rr).Email)

	rr = h.do(http.MethodPost, "/auth/register", registration{Name: "Bo", Email: "bo@example.com", Password: "secret1"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Email already registered", decode[map[string]string](t, rr)["detail"])

	rr = h.do(http.MethodPost, "/auth/register", registration{Name: "", Email: "not-an-email", Password: "x"})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	body := decode[struct {
		Detail []fieldError `json:"detail"`
	}](t, rr)
	require.Len(t, body.Detail, 3)
	assert.Equal(t, []string{"body", "email"}, body.Detail[0].Loc)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newHarness(t, Config{})
	rr := h.do(http.MethodGet, "/categories", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Not authenticated", decode[map[string]string](t, rr)["detail"])

	h.token = "garbage"
	rr = h.do(http.MethodGet, "/categories", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Invalid token", decode[map[string]string](t, rr)["detail"])
}

func TestRefreshFlow(t *testing.T) {
	h := newHarness(t, Config{})
	h.login()

	h.srv.RevokeAccessTokens()
	rr := h.do(http.MethodGet, "/categories", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Token revoked", decode[map[string]string](t, rr)["detail"])

	rr = h.do(http.MethodPost, "/auth/refresh", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	h.token = decode[map[string]string](t, rr)["access_token"]
	assert.EqualValues(t, 1, h.srv.RefreshCalls())

	rr = h.do(http.MethodGet, "/categories", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	h.cookie = nil
	rr = h.do(http.MethodPost, "/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "No refresh token", decode[map[string]string](t, rr)["detail"])
}

func TestExpiredRefreshToken(t *testing.T) {
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	h := newHarness(t, Config{RefreshTTL: time.Hour, Now: func() time.Time { return now }})
	h.login()

	now = now.Add(2 * time.Hour)
	rr := h.do(http.MethodPost, "/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Refresh token expired", decode[map[string]string](t, rr)["detail"])
}

func TestLogoutClearsCookie(t *testing.T) {
	h := newHarness(t, Config{})
	rr := h.do(http.MethodPost, "/auth/logout", struct{}{})
	require.Equal(t, http.StatusOK, rr.Code)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, RefreshCookieName, cookies[0].Name)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestTransactionLifecycle(t *testing.T) {
	h := newHarness(t, Config{})
	h.login()

	cats := decode[[]core.Category](t, h.do(http.MethodGet, "/categories", nil))
	require.Len(t, cats, 3)
	groceries := cats[0]
	for _, c := range cats {
		if c.Name == "Groceries" {
			groceries = c
		}
	}

	rr := h.do(http.MethodPost, "/transactions", core.TransactionInput{
		Title: "Milk", Amount: decimal.RequireFromString("2.50"), CategoryID: groceries.ID, Date: "2025-09-03",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	tx := decode[core.Transaction](t, rr)
	assert.Equal(t, core.Expense, tx.Type)
	assert.False(t, tx.ID.IsTemp())

	rr = h.do(http.MethodPost, "/transactions", core.TransactionInput{
		Title: "Ghost", Amount: decimal.NewFromInt(1), CategoryID: "9999", Date: "2025-09-03",
	})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Category not found", decode[map[string]string](t, rr)["detail"])

	title := "Oat milk"
	rr = h.do(http.MethodPatch, "/transactions/"+tx.ID.String(), core.TransactionPatch{Title: &title})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Oat milk", decode[core.Transaction](t, rr).Title)

	list := decode[[]core.Transaction](t, h.do(http.MethodGet, "/transactions?q=oat", nil))
	require.Len(t, list, 1)

	rr = h.do(http.MethodDelete, "/transactions/"+tx.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = h.do(http.MethodDelete, "/transactions/"+tx.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Empty(t, decode[[]core.Transaction](t, h.do(http.MethodGet, "/transactions", nil)))
}

func TestTransactionValidation(t *testing.T) {
	h := newHarness(t, Config{})
	h.login()
	rr := h.do(http.MethodPost, "/transactions", core.TransactionInput{Title: "", Date: "03/09/2025"})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), `"loc":["body","amount"]`)
}

func TestCategoryDuplicate(t *testing.T) {
	h := newHarness(t, Config{})
	h.login()
	in := core.CategoryInput{Name: "Travel", Type: core.Expense, Color: "#abc", Emoji: "✈️"}
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/categories", in).Code)
	rr := h.do(http.MethodPost, "/categories", in)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Category already exists", decode[map[string]string](t, rr)["detail"])
}

func TestBudgets(t *testing.T) {
	h := newHarness(t, Config{})
	h.login()
	cats := decode[[]core.Category](t, h.do(http.MethodGet, "/categories", nil))

	in := core.BudgetInput{CategoryID: cats[1].ID, Limit: decimal.NewFromInt(300), Month: "2025-09"}
	rr := h.do(http.MethodPost, "/budgets", in)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	b := decode[core.Budget](t, rr)
	assert.True(t, b.Notify)

	rr = h.do(http.MethodPost, "/budgets", in)
	assert.Equal(t, "Budget already exists for this scope", decode[map[string]string](t, rr)["detail"])

	in.CategoryID = "777"
	rr = h.do(http.MethodPost, "/budgets", in)
	assert.Equal(t, "Invalid categoryId", decode[map[string]string](t, rr)["detail"])

	assert.Len(t, decode[[]core.Budget](t, h.do(http.MethodGet, "/budgets?month=2025-09", nil)), 1)
	assert.Empty(t, decode[[]core.Budget](t, h.do(http.MethodGet, "/budgets?month=2025-10", nil)))
	assert.Equal(t, b.ID, decode[core.Budget](t, h.do(http.MethodGet, "/budgets/"+b.ID.String(), nil)).ID)

	rr = h.do(http.MethodDelete, "/budgets/"+b.ID.String(), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, b.ID, decode[map[string]core.ID](t, rr)["id"])
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/budgets/"+b.ID.String(), nil).Code)
}

func TestDashboardAndReport(t *testing.T) {
	h := newHarness(t, Config{})
	h.login()
	owner := int64(4) // three default categories come first
	st := h.srv.Store()

	_, err := st.CreateTransaction(owner, core.TransactionInput{Title: "Pay", Amount: decimal.NewFromInt(1000), CategoryID: "1", Date: "2025-09-01"})
	require.NoError(t, err)
	_, err = st.CreateTransaction(owner, core.TransactionInput{Title: "Food", Amount: decimal.NewFromInt(150), CategoryID: "2", Date: "2025-09-02"})
	require.NoError(t, err)
	_, err = st.CreateTransaction(owner, core.TransactionInput{Title: "Food", Amount: decimal.NewFromInt(100), CategoryID: "2", Date: "2025-08-20"})
	require.NoError(t, err)
	_, err = st.CreateBudget(owner, core.BudgetInput{CategoryID: "2", Limit: decimal.NewFromInt(200), Month: "2025-09"})
	require.NoError(t, err)

	rr := h.do(http.MethodGet, "/dashboard/summary", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = h.do(http.MethodGet, "/dashboard/summary?month=2025-09", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	sum := decode[core.DashboardSummary](t, rr)
	assert.True(t, decimal.NewFromInt(850).Equal(sum.Net))
	assert.Len(t, sum.Recent, 2)
	require.Len(t, sum.BudgetUsage, 1)
	assert.Equal(t, 75.0, sum.BudgetUsage[0].UsagePct)
	assert.Equal(t, "ok", sum.BudgetUsage[0].Status)

	rr = h.do(http.MethodGet, "/reports", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = h.do(http.MethodGet, "/reports?month=2025-09", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rep := decode[core.Report](t, rr)
	assert.Equal(t, "USD", rep.Currency)
	assert.Equal(t, 2, rep.KPIs.TxCount)
	assert.Equal(t, 85.0, rep.KPIs.SavingsRate)
	require.NotNil(t, rep.KPIs.LargestExpense)
	assert.Equal(t, "Food", rep.KPIs.LargestExpense.Title)
	require.NotNil(t, rep.KPIs.MoM["expense"])
	assert.Equal(t, 50.0, *rep.KPIs.MoM["expense"])
	assert.Nil(t, rep.KPIs.MoM["income"])

	rr = h.do(http.MethodGet, "/reports?start=2025-08&end=2025-09", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rep = decode[core.Report](t, rr)
	assert.Len(t, rep.Cashflow.Monthly, 2)
	assert.Equal(t, "2025-08", rep.Cashflow.Monthly[0].Month)
	assert.Empty(t, rep.BudgetUsage)
}

func TestFailNext(t *testing.T) {
	h := newHarness(t, Config{})
	h.login()
	h.srv.FailNext(http.MethodGet, "/categories", http.StatusInternalServerError, "boom")

	rr := h.do(http.MethodGet, "/categories", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "boom", decode[map[string]string](t, rr)["detail"])

	rr = h.do(http.MethodGet, "/categories", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2, h.srv.Calls(http.MethodGet, "/categories"))
}

func TestLoginRateLimit(t *testing.T) {
	h := newHarness(t, Config{LoginRateLimit: 2})
	for i := 0; i < 2; i++ {
		rr := h.do(http.MethodPost, "/auth/login", credentials{Email: "x@example.com", Password: "bad"})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	}
	rr := h.do(http.MethodPost, "/auth/login", credentials{Email: "x@example.com", Password: "bad"})
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
}
