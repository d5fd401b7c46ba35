package core

import (
	"github.com/shopspring/decimal"
)

func init() {
	// The API speaks JSON numbers for money.
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	Income  TxType = "income"
	Expense TxType = "expense"
)

type (
	// TxType is derived by the server from the transaction's category.
	TxType string

	User struct {
		ID       ID     `json:"id"`
		Username string `json:"username,omitempty"`
		Name     string `json:"name,omitempty"`
		Email    string `json:"email"`
	}

	Transaction struct {
		ID         ID              `json:"id"`
		Title      string          `json:"title"`
		Amount     decimal.Decimal `json:"amount"`
		CategoryID ID              `json:"categoryId"`
		Date       string          `json:"date"` // YYYY-MM-DD
		Note       *string         `json:"note,omitempty"`
		Type       TxType          `json:"type,omitempty"`
	}

	TransactionInput struct {
		Title      string          `json:"title"`
		Amount     decimal.Decimal `json:"amount"`
		CategoryID ID              `json:"categoryId"`
		Date       string          `json:"date"`
		Note       *string         `json:"note,omitempty"`
	}

	// TransactionPatch carries only the fields being changed.
	TransactionPatch struct {
		Title      *string          `json:"title,omitempty"`
		Amount     *decimal.Decimal `json:"amount,omitempty"`
		CategoryID *ID              `json:"categoryId,omitempty"`
		Date       *string          `json:"date,omitempty"`
		Note       *string          `json:"note,omitempty"`
	}

	Category struct {
		ID         ID     `json:"id"`
		Name       string `json:"name"`
		Type       TxType `json:"type"`
		Color      string `json:"color"`
		Emoji      string `json:"emoji"`
		IsArchived bool   `json:"isArchived,omitempty"`
		IsDefault  bool   `json:"isDefault,omitempty"`
	}

	CategoryInput struct {
		Name  string `json:"name"`
		Type  TxType `json:"type"`
		Color string `json:"color"`
		Emoji string `json:"emoji"`
	}

	Budget struct {
		ID         ID              `json:"id"`
		CategoryID ID              `json:"categoryId"`
		Limit      decimal.Decimal `json:"limit"`
		Month      string          `json:"month"` // YYYY-MM
		Note       string          `json:"note,omitempty"`
		Notify     bool            `json:"notify"`
	}

	BudgetInput struct {
		CategoryID ID              `json:"categoryId"`
		Limit      decimal.Decimal `json:"limit"`
		Month      string          `json:"month"`
		Note       string          `json:"note,omitempty"`
		Notify     *bool           `json:"notify,omitempty"`
	}

	BudgetPatch struct {
		CategoryID *ID              `json:"categoryId,omitempty"`
		Limit      *decimal.Decimal `json:"limit,omitempty"`
		Month      *string          `json:"month,omitempty"`
		Note       *string          `json:"note,omitempty"`
		Notify     *bool            `json:"notify,omitempty"`
	}
)

// Provisional builds the record shown in lists before the server answers.
func (in TransactionInput) Provisional(id ID) Transaction {
	return Transaction{
		ID:         id,
		Title:      in.Title,
		Amount:     in.Amount,
		CategoryID: in.CategoryID,
		Date:       in.Date,
		Note:       in.Note,
	}
}

// Apply returns tx with the patch's set fields copied over.
func (p TransactionPatch) Apply(tx Transaction) Transaction {
	if p.Title != nil {
		tx.Title = *p.Title
	}
	if p.Amount != nil {
		tx.Amount = *p.Amount
	}
	if p.CategoryID != nil {
		tx.CategoryID = *p.CategoryID
	}
	if p.Date != nil {
		tx.Date = *p.Date
	}
	if p.Note != nil {
		note := *p.Note
		tx.Note = &note
	}
	return tx
}

func (in CategoryInput) Provisional(id ID) Category {
	return Category{ID: id, Name: in.Name, Type: in.Type, Color: in.Color, Emoji: in.Emoji}
}

func (in BudgetInput) Provisional(id ID) Budget {
	notify := true
	if in.Notify != nil {
		notify = *in.Notify
	}
	return Budget{
		ID:         id,
		CategoryID: in.CategoryID,
		Limit:      in.Limit,
		Month:      in.Month,
		Note:       in.Note,
		Notify:     notify,
	}
}

func (p BudgetPatch) Apply(b Budget) Budget {
	if p.CategoryID != nil {
		b.CategoryID = *p.CategoryID
	}
	if p.Limit != nil {
		b.Limit = *p.Limit
	}
	if p.Month != nil {
		b.Month = *p.Month
	}
	if p.Note != nil {
		b.Note = *p.Note
	}
	if p.Notify != nil {
		b.Notify = *p.Notify
	}
	return b
}
