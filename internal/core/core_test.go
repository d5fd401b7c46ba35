package core

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pft/internal/apperr"
)

func TestIDAcceptsNumbersAndStrings(t *testing.T) {
	var got struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":42,"b":"b99","c":null}`), &got))
	assert.Equal(t, ID("42"), got.A)
	assert.Equal(t, ID("b99"), got.B)
	assert.True(t, got.C.IsZero())

	out, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":42,"b":"b99","c":null}`, string(out))
}

func TestIDKeepsNonCanonicalNumbersAsStrings(t *testing.T) {
	tests := []struct {
		id   ID
		want string
	}{
		{"7", `7`},
		{"-3", `-3`},
		{"007", `"007"`},
		{"+5", `"+5"`},
		{"0", `0`},
		{"00", `"00"`},
	}
	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			out, err := json.Marshal(map[string]ID{"id": tt.id})
			require.NoError(t, err)
			assert.JSONEq(t, `{"id":`+tt.want+`}`, string(out))
		})
	}
}

func TestTempID(t *testing.T) {
	a, b := NewTempID(), NewTempID()
	assert.True(t, a.IsTemp())
	assert.NotEqual(t, a, b)
	assert.False(t, ID("42").IsTemp())
}

func TestTransactionPatchApply(t *testing.T) {
	tx := Transaction{ID: "1", Title: "coffee", Amount: decimal.NewFromInt(3), CategoryID: "c1", Date: "2024-05-01"}
	title := "espresso"
	amount := decimal.RequireFromString("2.50")

	got := TransactionPatch{Title: &title, Amount: &amount}.Apply(tx)

	assert.Equal(t, "espresso", got.Title)
	assert.True(t, amount.Equal(got.Amount))
	assert.Equal(t, ID("c1"), got.CategoryID)
	assert.Equal(t, "coffee", tx.Title, "original must not change")
}

func TestBudgetProvisionalDefaultsNotify(t *testing.T) {
	b := BudgetInput{CategoryID: "c1", Limit: decimal.NewFromInt(500), Month: "2024-05"}.Provisional("tmp-1")
	assert.True(t, b.Notify)
	assert.Equal(t, "2024-05", b.Month)

	off := false
	b = BudgetInput{CategoryID: "c1", Month: "2024-05", Notify: &off}.Provisional("tmp-2")
	assert.False(t, b.Notify)
}

func TestValidation(t *testing.T) {
	long := string(make([]rune, 301))
	tests := []struct {
		name   string
		err    error
		fields []string
	}{
		{"valid transaction", TransactionInput{Title: "rent", Amount: decimal.NewFromInt(900), CategoryID: "1", Date: "2024-05-01"}.Validate(), nil},
		{"empty transaction", TransactionInput{Note: &long}.Validate(), []string{"title", "amount", "categoryId", "date", "note"}},
		{"bad date", TransactionInput{Title: "x", Amount: decimal.NewFromInt(1), CategoryID: "1", Date: "2024-02-30"}.Validate(), []string{"date"}},
		{"valid category", CategoryInput{Name: "Food", Type: Expense, Color: "#f0a", Emoji: "🍔"}.Validate(), nil},
		{"bad category", CategoryInput{Name: " ", Type: "other", Color: "red"}.Validate(), []string{"name", "type", "color", "emoji"}},
		{"valid budget", BudgetInput{CategoryID: "c1", Limit: decimal.NewFromInt(500), Month: "2024-05"}.Validate(), nil},
		{"bad budget", BudgetInput{Limit: decimal.NewFromInt(-1), Month: "2024-13"}.Validate(), []string{"categoryId", "limit", "month"}},
		{"report range", ReportParams{Start: "2024-01", End: "2024-05"}.Validate(), nil},
		{"report empty", ReportParams{}.Validate(), []string{"month"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.fields == nil {
				assert.NoError(t, tt.err)
				return
			}
			require.ErrorIs(t, tt.err, apperr.ErrValidation)
			var ae *apperr.Error
			require.ErrorAs(t, tt.err, &ae)
			for _, f := range tt.fields {
				assert.Contains(t, ae.Fields, f)
			}
			assert.Len(t, ae.Fields, len(tt.fields))
		})
	}
}

func TestReportParamsNormalize(t *testing.T) {
	a := ReportParams{Month: "2024-05"}
	b := ReportParams{Month: " 2024-05 ", Start: "2024-01", End: "2024-03"}

	assert.Equal(t, a.Normalize(), b.Normalize())
	assert.Equal(t, "month=2024-05", b.Query().Encode())
	assert.Equal(t, "end=2024-03&start=2024-01", ReportParams{Start: "2024-01", End: "2024-03"}.Query().Encode())
}

func TestTransactionFilter(t *testing.T) {
	f := TransactionFilter{Start: "2024-05-01", End: "2024-05-31", CategoryID: "3", Q: "Cof", Limit: 20}
	assert.Equal(t, "categoryId=3&end=2024-05-31&limit=20&q=Cof&start=2024-05-01", f.Query().Encode())
	assert.Equal(t, f, ParseTransactionFilter(f.Query()))

	assert.True(t, f.Matches(Transaction{Title: "coffee beans", CategoryID: "3", Date: "2024-05-10"}))
	assert.False(t, f.Matches(Transaction{Title: "coffee", CategoryID: "3", Date: "2024-06-01"}))
	assert.False(t, f.Matches(Transaction{Title: "tea", CategoryID: "3", Date: "2024-05-10"}))
	assert.Empty(t, TransactionFilter{}.Query().Encode())
}
