package repository

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"otp_expense_tracker/internal/model"

	"github.com/shopspring/decimal"
)

// MemoryExpenseRepository keeps expenses in process memory.
type MemoryExpenseRepository struct {
	mu       sync.RWMutex
	expenses []model.Expense
	nextID   int64
}

// NewMemoryExpenseRepository creates a new, empty MemoryExpenseRepository.
func NewMemoryExpenseRepository() *MemoryExpenseRepository {
	return &MemoryExpenseRepository{}
}

func (r *MemoryExpenseRepository) Create(_ context.Context, e *model.Expense) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	if e.ID == "" {
		e.ID = strconv.FormatInt(r.nextID, 10)
	}
	r.expenses = append(r.expenses, cloneExpense(*e))
	return nil
}

func (r *MemoryExpenseRepository) FindByID(_ context.Context, id string) (*model.Expense, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.indexLocked(id); i >= 0 {
		e := cloneExpense(r.expenses[i])
		return &e, nil
	}
	return nil, nil
}

func (r *MemoryExpenseRepository) List(_ context.Context, userID string, f model.ExpenseFilter) ([]model.Expense, int64, error) {
	matched := r.matching(userID, f)
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date) {
			return matched[i].Date.After(matched[j].Date)
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if f.Limit > 0 {
		start := min(f.Offset(), len(matched))
		end := min(start+f.Limit, len(matched))
		matched = matched[start:end]
	}
	return matched, total, nil
}

func (r *MemoryExpenseRepository) Update(_ context.Context, e *model.Expense) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(e.ID)
	if i < 0 {
		return fmt.Errorf("failed to update expense %s: %w", e.ID, ErrNotFound)
	}
	e.UpdatedAt = time.Now()
	stored := cloneExpense(*e)
	stored.UserID = r.expenses[i].UserID
	stored.CreatedAt = r.expenses[i].CreatedAt
	r.expenses[i] = stored
	return nil
}

func (r *MemoryExpenseRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("failed to delete expense %s: %w", id, ErrNotFound)
	}
	r.expenses = append(r.expenses[:i], r.expenses[i+1:]...)
	return nil
}

func (r *MemoryExpenseRepository) SummaryByCategory(_ context.Context, userID string) ([]model.CategorySummary, error) {
	byCategory := map[string]*model.CategorySummary{}
	for _, e := range r.matching(userID, model.ExpenseFilter{}) {
		s, ok := byCategory[e.Category]
		if !ok {
			s = &model.CategorySummary{Category: e.Category, TotalAmount: decimal.Zero}
			byCategory[e.Category] = s
		}
		s.TotalAmount = s.TotalAmount.Add(e.Amount)
		s.Count++
	}

	summary := make([]model.CategorySummary, 0, len(byCategory))
	for _, s := range byCategory {
		summary = append(summary, *s)
	}
	sort.Slice(summary, func(i, j int) bool {
		if c := summary[i].TotalAmount.Cmp(summary[j].TotalAmount); c != 0 {
			return c > 0
		}
		return summary[i].Category < summary[j].Category
	})
	return summary, nil
}

func (r *MemoryExpenseRepository) SummaryByMonth(_ context.Context, userID string) ([]model.MonthlySummary, error) {
	type key struct{ year, month int }
	byMonth := map[key]*model.MonthlySummary{}
	for _, e := range r.matching(userID, model.ExpenseFilter{}) {
		d := e.Date.UTC()
		k := key{d.Year(), int(d.Month())}
		s, ok := byMonth[k]
		if !ok {
			s = &model.MonthlySummary{Year: k.year, Month: k.month, TotalAmount: decimal.Zero}
			byMonth[k] = s
		}
		s.TotalAmount = s.TotalAmount.Add(e.Amount)
		s.Count++
	}

	summary := make([]model.MonthlySummary, 0, len(byMonth))
	for _, s := range byMonth {
		summary = append(summary, *s)
	}
	sort.Slice(summary, func(i, j int) bool {
		if summary[i].Year != summary[j].Year {
			return summary[i].Year > summary[j].Year
		}
		return summary[i].Month > summary[j].Month
	})
	return summary, nil
}

func (r *MemoryExpenseRepository) SummaryForPeriod(_ context.Context, userID string, start, end time.Time) (*model.PeriodSummary, error) {
	s := &model.PeriodSummary{TotalAmount: decimal.Zero, AverageAmount: decimal.Zero}
	for _, e := range r.matching(userID, model.ExpenseFilter{StartDate: &start, EndDate: &end}) {
		s.TotalAmount = s.TotalAmount.Add(e.Amount)
		s.Count++
	}
	if s.Count > 0 {
		s.AverageAmount = s.TotalAmount.Div(decimal.NewFromInt(s.Count)).Round(2)
	}
	return s, nil
}

func (r *MemoryExpenseRepository) matching(userID string, f model.ExpenseFilter) []model.Expense {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []model.Expense{}
	for _, e := range r.expenses {
		if userID != "" && e.UserID != userID {
			continue
		}
		if f.Category != nil && *f.Category != "" && e.Category != *f.Category {
			continue
		}
		if f.MinAmount != nil && e.Amount.LessThan(*f.MinAmount) {
			continue
		}
		if f.MaxAmount != nil && e.Amount.GreaterThan(*f.MaxAmount) {
			continue
		}
		if f.StartDate != nil && e.Date.Before(*f.StartDate) {
			continue
		}
		if f.EndDate != nil && e.Date.After(*f.EndDate) {
			continue
		}
		out = append(out, cloneExpense(e))
	}
	return out
}

func (r *MemoryExpenseRepository) indexLocked(id string) int {
	for i := range r.expenses {
		if r.expenses[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneExpense(e model.Expense) model.Expense {
	if e.Description != nil {
		d := *e.Description
		e.Description = &d
	}
	return e
}
