package fakeapi

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"pft/internal/core"
)

var (
	errNotFound  = errors.New("not found")
	errDuplicate = errors.New("duplicate")
)

type user struct {
	id        int64
	name      string
	email     string
	hash      []byte
	createdAt time.Time
}

type category struct {
	core.Category
	owner int64 // 0 for defaults shared by everyone
}

type transaction struct {
	core.Transaction
	owner   int64
	deleted bool
}

type budget struct {
	core.Budget
	owner     int64
	createdAt time.Time
}

// Store keeps all server state in memory.
type Store struct {
	mu           sync.Mutex
	nextID       int64
	users        map[int64]*user
	categories   map[int64]*category
	transactions map[int64]*transaction
	budgets      map[int64]*budget
}

func NewStore() *Store {
	s := &Store{
		users:        make(map[int64]*user),
		categories:   make(map[int64]*category),
		transactions: make(map[int64]*transaction),
		budgets:      make(map[int64]*budget),
	}
	for _, c := range []core.CategoryInput{
		{Name: "Salary", Type: core.Income, Color: "#22c55e", Emoji: "💼"},
		{Name: "Groceries", Type: core.Expense, Color: "#f97316", Emoji: "🛒"},
		{Name: "Rent", Type: core.Expense, Color: "#ef4444", Emoji: "🏠"},
	} {
		id := s.allocID()
		cat := c.Provisional(idOf(id))
		cat.IsDefault = true
		s.categories[id] = &category{Category: cat}
	}
	return s
}

func (s *Store) allocID() int64 {
	s.nextID++
	return s.nextID
}

func idOf(n int64) core.ID { return core.ID(strconv.FormatInt(n, 10)) }

func parseID(id string) (int64, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	return n, err == nil && n > 0
}

func (s *Store) CreateUser(name, email, password string) (core.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return core.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.email == email {
			return core.User{}, errDuplicate
		}
	}
	u := &user{id: s.allocID(), name: name, email: email, hash: hash, createdAt: time.Now()}
	s.users[u.id] = u
	return u.public(), nil
}

// Authenticate returns the user whose password matches.
func (s *Store) Authenticate(email, password string) (core.User, bool) {
	s.mu.Lock()
	var found *user
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.email == email {
			found = u
			break
		}
	}
	s.mu.Unlock()
	if found == nil {
		return core.User{}, false
	}
	if bcrypt.CompareHashAndPassword(found.hash, []byte(password)) != nil {
		return core.User{}, false
	}
	return found.public(), true
}

func (s *Store) User(id int64) (core.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, false
	}
	return u.public(), true
}

func (u *user) public() core.User {
	return core.User{ID: idOf(u.id), Name: u.name, Username: u.name, Email: u.email}
}

func (s *Store) Categories(owner int64) []core.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Category{}
	for _, c := range s.categories {
		if (c.owner == owner || c.owner == 0) && !c.IsArchived {
			out = append(out, c.Category)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (s *Store) category(owner int64, id core.ID) (*category, bool) {
	n, ok := parseID(id.String())
	if !ok {
		return nil, false
	}
	c, ok := s.categories[n]
	if !ok || (c.owner != owner && c.owner != 0) || c.IsArchived {
		return nil, false
	}
	return c, true
}

func (s *Store) CreateCategory(owner int64, in core.CategoryInput) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if c.owner == owner && c.Name == in.Name {
			return core.Category{}, errDuplicate
		}
	}
	id := s.allocID()
	c := &category{Category: in.Provisional(idOf(id)), owner: owner}
	s.categories[id] = c
	return c.Category, nil
}

func (s *Store) DeleteCategory(owner int64, id core.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := parseID(id.String())
	if !ok {
		return errNotFound
	}
	c, ok := s.categories[n]
	if !ok || c.owner != owner {
		return errNotFound
	}
	delete(s.categories, n)
	return nil
}

// Transactions returns the owner's live transactions matching filter, newest
// first.
func (s *Store) Transactions(owner int64, filter core.TransactionFilter) []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Transaction{}
	for _, t := range s.transactions {
		if t.owner != owner || t.deleted || !filter.Matches(t.Transaction) {
			continue
		}
		out = append(out, t.Transaction)
	}
	sortNewestFirst(out)

	if filter.Offset >= len(out) {
		return []core.Transaction{}
	}
	out = out[filter.Offset:]
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit < len(out) {
		out = out[:limit]
	}
	return out
}

func sortNewestFirst(txs []core.Transaction) {
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].Date != txs[j].Date {
			return txs[i].Date > txs[j].Date
		}
		a, _ := parseID(txs[i].ID.String())
		b, _ := parseID(txs[j].ID.String())
		return a > b
	})
}

func (s *Store) CreateTransaction(owner int64, in core.TransactionInput) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cat, ok := s.category(owner, in.CategoryID)
	if !ok {
		return core.Transaction{}, errNotFound
	}
	id := s.allocID()
	tx := in.Provisional(idOf(id))
	tx.Type = cat.Type
	s.transactions[id] = &transaction{Transaction: tx, owner: owner}
	return tx, nil
}

func (s *Store) UpdateTransaction(owner int64, id core.ID, p core.TransactionPatch) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.liveTransaction(owner, id)
	if !ok {
		return core.Transaction{}, errNotFound
	}
	next := p.Apply(t.Transaction)
	if p.CategoryID != nil {
		cat, ok := s.category(owner, *p.CategoryID)
		if !ok {
			return core.Transaction{}, errNotFound
		}
		next.Type = cat.Type
	}
	t.Transaction = next
	return next, nil
}

func (s *Store) DeleteTransaction(owner int64, id core.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.liveTransaction(owner, id)
	if !ok {
		return errNotFound
	}
	t.deleted = true
	return nil
}

func (s *Store) liveTransaction(owner int64, id core.ID) (*transaction, bool) {
	n, ok := parseID(id.String())
	if !ok {
		return nil, false
	}
	t, ok := s.transactions[n]
	if !ok || t.owner != owner || t.deleted {
		return nil, false
	}
	return t, true
}

// Budgets returns the owner's budgets for month, or all when month is empty,
// newest first.
func (s *Store) Budgets(owner int64, month string) []core.Budget {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []*budget
	for _, b := range s.budgets {
		if b.owner == owner && (month == "" || b.Month == month) {
			rows = append(rows, b)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].createdAt.Equal(rows[j].createdAt) {
			return rows[i].createdAt.After(rows[j].createdAt)
		}
		a, _ := parseID(rows[i].ID.String())
		b, _ := parseID(rows[j].ID.String())
		return a > b
	})
	out := make([]core.Budget, 0, len(rows))
	for _, b := range rows {
		out = append(out, b.Budget)
	}
	return out
}

func (s *Store) Budget(owner int64, id core.ID) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budget(owner, id)
	if !ok {
		return core.Budget{}, errNotFound
	}
	return b.Budget, nil
}

func (s *Store) budget(owner int64, id core.ID) (*budget, bool) {
	n, ok := parseID(id.String())
	if !ok {
		return nil, false
	}
	b, ok := s.budgets[n]
	if !ok || b.owner != owner {
		return nil, false
	}
	return b, true
}

// errInvalidCategory is returned when a budget names an unknown category.
var errInvalidCategory = errors.New("invalid category")

func (s *Store) CreateBudget(owner int64, in core.BudgetInput) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.category(owner, in.CategoryID); !ok {
		return core.Budget{}, errInvalidCategory
	}
	for _, b := range s.budgets {
		if b.owner == owner && b.CategoryID == in.CategoryID && b.Month == in.Month {
			return core.Budget{}, errDuplicate
		}
	}
	id := s.allocID()
	b := &budget{Budget: in.Provisional(idOf(id)), owner: owner, createdAt: time.Now()}
	s.budgets[id] = b
	return b.Budget, nil
}

func (s *Store) UpdateBudget(owner int64, id core.ID, p core.BudgetPatch) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budget(owner, id)
	if !ok {
		return core.Budget{}, errNotFound
	}
	if p.CategoryID != nil {
		if _, ok := s.category(owner, *p.CategoryID); !ok {
			return core.Budget{}, errInvalidCategory
		}
	}
	b.Budget = p.Apply(b.Budget)
	return b.Budget, nil
}

func (s *Store) DeleteBudget(owner int64, id core.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budget(owner, id)
	if !ok {
		return errNotFound
	}
	n, _ := parseID(b.ID.String())
	delete(s.budgets, n)
	return nil
}

// period returns the owner's live transactions with from <= date <= to,
// newest first.
func (s *Store) period(owner int64, from, to string) []core.Transaction {
	return s.Transactions(owner, core.TransactionFilter{Start: from, End: to, Limit: 1 << 30})
}

// categoryIndex maps ids to the categories visible to owner, archived
// included.
func (s *Store) categoryIndex(owner int64) map[core.ID]core.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[core.ID]core.Category)
	for _, c := range s.categories {
		if c.owner == owner || c.owner == 0 {
			out[c.ID] = c.Category
		}
	}
	return out
}

func sum(txs []core.Transaction, typ core.TxType) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		if t.Type == typ {
			total = total.Add(t.Amount)
		}
	}
	return total
}

// OwnerID returns the store key of a user returned by CreateUser.
func OwnerID(u core.User) int64 {
	n, _ := parseID(u.ID.String())
	return n
}
