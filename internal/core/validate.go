package core

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"pft/internal/apperr"
)

var colorPattern = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// ValidDate reports whether s is a calendar date in YYYY-MM-DD form.
func ValidDate(s string) bool {
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}

// ValidMonth reports whether s is YYYY-MM.
func ValidMonth(s string) bool {
	_, err := time.Parse("2006-01", s)
	return err == nil
}

// CurrentMonth returns now formatted as YYYY-MM in UTC.
func CurrentMonth(now time.Time) string {
	return now.UTC().Format("2006-01")
}

type fieldErrors map[string]string

func (f fieldErrors) add(field, msg string) {
	if _, ok := f[field]; !ok {
		f[field] = msg
	}
}

func (f fieldErrors) err(op string) error {
	if len(f) == 0 {
		return nil
	}
	return apperr.Validation(op, f)
}

func checkTitle(f fieldErrors, title string) {
	n := utf8.RuneCountInString(strings.TrimSpace(title))
	if n == 0 {
		f.add("title", "required")
	} else if n > 120 {
		f.add("title", "too long (max 120 characters)")
	}
}

func checkNote(f fieldErrors, note *string) {
	if note != nil && utf8.RuneCountInString(*note) > 300 {
		f.add("note", "too long (max 300 characters)")
	}
}

func (in TransactionInput) Validate() error {
	f := fieldErrors{}
	checkTitle(f, in.Title)
	if !in.Amount.IsPositive() {
		f.add("amount", "must be greater than 0")
	}
	if in.CategoryID.IsZero() {
		f.add("categoryId", "required")
	}
	if !ValidDate(in.Date) {
		f.add("date", "must be YYYY-MM-DD")
	}
	checkNote(f, in.Note)
	return f.err("validate transaction")
}

func (p TransactionPatch) Validate() error {
	f := fieldErrors{}
	if p.Title != nil {
		checkTitle(f, *p.Title)
	}
	if p.Amount != nil && !p.Amount.IsPositive() {
		f.add("amount", "must be greater than 0")
	}
	if p.CategoryID != nil && p.CategoryID.IsZero() {
		f.add("categoryId", "required")
	}
	if p.Date != nil && !ValidDate(*p.Date) {
		f.add("date", "must be YYYY-MM-DD")
	}
	checkNote(f, p.Note)
	return f.err("validate transaction")
}

func (in CategoryInput) Validate() error {
	f := fieldErrors{}
	if strings.TrimSpace(in.Name) == "" {
		f.add("name", "required")
	}
	if in.Type != Income && in.Type != Expense {
		f.add("type", "must be income or expense")
	}
	if !colorPattern.MatchString(in.Color) {
		f.add("color", "must be #RGB or #RRGGBB")
	}
	if strings.TrimSpace(in.Emoji) == "" {
		f.add("emoji", "required")
	}
	return f.err("validate category")
}

func (in BudgetInput) Validate() error {
	f := fieldErrors{}
	if in.CategoryID.IsZero() {
		f.add("categoryId", "required")
	}
	if in.Limit.IsNegative() {
		f.add("limit", "must not be negative")
	}
	if !ValidMonth(in.Month) {
		f.add("month", "must be YYYY-MM")
	}
	return f.err("validate budget")
}

func (p BudgetPatch) Validate() error {
	f := fieldErrors{}
	if p.Limit != nil && p.Limit.IsNegative() {
		f.add("limit", "must not be negative")
	}
	if p.Month != nil && !ValidMonth(*p.Month) {
		f.add("month", "must be YYYY-MM")
	}
	return f.err("validate budget")
}

func (p ReportParams) Validate() error {
	n := p.Normalize()
	f := fieldErrors{}
	switch {
	case n.Month != "":
		if !ValidMonth(n.Month) {
			f.add("month", "must be YYYY-MM")
		}
	case n.Start == "" || n.End == "":
		f.add("month", "month or start and end required")
	default:
		if !ValidMonth(n.Start) && !ValidDate(n.Start) {
			f.add("start", "must be YYYY-MM or YYYY-MM-DD")
		}
		if !ValidMonth(n.End) && !ValidDate(n.End) {
			f.add("end", "must be YYYY-MM or YYYY-MM-DD")
		}
	}
	return f.err("validate report params")
}
