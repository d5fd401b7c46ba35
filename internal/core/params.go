package core

import (
	"net/url"
	"strconv"
	"strings"
)

// TransactionFilter selects a page of transactions. Zero values are unset.
type TransactionFilter struct {
	Start      string // YYYY-MM-DD inclusive
	End        string // YYYY-MM-DD inclusive
	CategoryID ID
	Type       TxType
	Q          string
	Limit      int
	Offset     int
}

// Query encodes only the fields that are set.
func (f TransactionFilter) Query() url.Values {
	v := url.Values{}
	setIf(v, "start", f.Start)
	setIf(v, "end", f.End)
	setIf(v, "categoryId", string(f.CategoryID))
	setIf(v, "type", string(f.Type))
	setIf(v, "q", strings.TrimSpace(f.Q))
	if f.Limit > 0 {
		v.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		v.Set("offset", strconv.Itoa(f.Offset))
	}
	return v
}

// Matches reports whether tx would be returned under this filter, ignoring
// paging. A transaction without a known type matches any type filter.
func (f TransactionFilter) Matches(tx Transaction) bool {
	if f.Start != "" && tx.Date < f.Start {
		return false
	}
	if f.End != "" && tx.Date > f.End {
		return false
	}
	if f.CategoryID != "" && tx.CategoryID != f.CategoryID {
		return false
	}
	if f.Type != "" && tx.Type != "" && tx.Type != f.Type {
		return false
	}
	if q := strings.TrimSpace(f.Q); q != "" && !strings.Contains(strings.ToLower(tx.Title), strings.ToLower(q)) {
		return false
	}
	return true
}

// ParseTransactionFilter is the inverse of Query.
func ParseTransactionFilter(v url.Values) TransactionFilter {
	limit, _ := strconv.Atoi(v.Get("limit"))
	offset, _ := strconv.Atoi(v.Get("offset"))
	return TransactionFilter{
		Start:      v.Get("start"),
		End:        v.Get("end"),
		CategoryID: ID(v.Get("categoryId")),
		Type:       TxType(v.Get("type")),
		Q:          v.Get("q"),
		Limit:      limit,
		Offset:     offset,
	}
}

// ReportParams asks for either a single month or a start/end range.
type ReportParams struct {
	Month string // YYYY-MM
	Start string
	End   string
}

// Normalize collapses the params to the fields that select the report: a set
// month wins over any range.
func (p ReportParams) Normalize() ReportParams {
	if m := strings.TrimSpace(p.Month); m != "" {
		return ReportParams{Month: m}
	}
	return ReportParams{Start: strings.TrimSpace(p.Start), End: strings.TrimSpace(p.End)}
}

func (p ReportParams) Query() url.Values {
	n := p.Normalize()
	v := url.Values{}
	setIf(v, "month", n.Month)
	setIf(v, "start", n.Start)
	setIf(v, "end", n.End)
	return v
}

func setIf(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}
