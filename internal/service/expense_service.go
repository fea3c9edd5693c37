package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"otp_expense_tracker/internal/apperror"
	"otp_expense_tracker/internal/model"
	"otp_expense_tracker/internal/repository"
)

// ErrExpenseNotFound is returned for a missing expense or one owned by another user.
var ErrExpenseNotFound = apperror.New(apperror.KindNotFound, "Expense not found")

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ExpenseService defines operations on a user's expenses. An empty userID
// reads across all users and is only used by the legacy public routes.
type ExpenseService interface {
	CreateExpense(ctx context.Context, userID string, req model.CreateExpenseRequest) (*model.Expense, error)
	GetExpense(ctx context.Context, userID, expenseID string) (*model.Expense, error)
	ListExpenses(ctx context.Context, userID string, filter model.ExpenseFilter) (*model.ExpensePage, error)
	UpdateExpense(ctx context.Context, userID, expenseID string, req model.UpdateExpenseRequest) (*model.Expense, error)
	DeleteExpense(ctx context.Context, userID, expenseID string) error
	SummaryByCategory(ctx context.Context, userID string) ([]model.CategorySummary, error)
	SummaryByMonth(ctx context.Context, userID string) ([]model.MonthlySummary, error)
	SummaryForPeriod(ctx context.Context, userID string, start, end time.Time) (*model.PeriodSummary, error)
}

type expenseService struct {
	repo repository.ExpenseRepository
	now  func() time.Time
}

// NewExpenseService creates a new ExpenseService
func NewExpenseService(repo repository.ExpenseRepository) ExpenseService {
	return &expenseService{repo: repo, now: time.Now}
}

func (s *expenseService) CreateExpense(ctx context.Context, userID string, req model.CreateExpenseRequest) (*model.Expense, error) {
	now := s.now()
	date := now
	if req.Date != nil && !req.Date.IsZero() {
		date = *req.Date
	}

	expense := &model.Expense{
		UserID:      userID,
		Title:       strings.TrimSpace(req.Title),
		Amount:      req.Amount.Round(2),
		Date:        date,
		Category:    req.Category,
		Description: trimOptional(req.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, expense); err != nil {
		return nil, fmt.Errorf("failed to create expense in repo: %w", err)
	}
	return expense, nil
}

// GetExpense hides expenses owned by someone else behind a not-found.
func (s *expenseService) GetExpense(ctx context.Context, userID, expenseID string) (*model.Expense, error) {
	expense, err := s.repo.FindByID(ctx, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to find expense by ID: %w", err)
	}
	if expense == nil || (userID != "" && expense.UserID != userID) {
		return nil, ErrExpenseNotFound
	}
	return expense, nil
}

func (s *expenseService) ListExpenses(ctx context.Context, userID string, filter model.ExpenseFilter) (*model.ExpensePage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = DefaultPageSize
	}
	if filter.Limit > MaxPageSize {
		filter.Limit = MaxPageSize
	}
	filter.StartDate, filter.EndDate = wholeDays(filter.StartDate, filter.EndDate)

	expenses, total, err := s.repo.List(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses from repo: %w", err)
	}
	if expenses == nil {
		expenses = []model.Expense{}
	}

	return &model.ExpensePage{
		Data:        expenses,
		Total:       total,
		TotalPages:  int(math.Ceil(float64(total) / float64(filter.Limit))),
		CurrentPage: filter.Page,
	}, nil
}

func (s *expenseService) UpdateExpense(ctx context.Context, userID, expenseID string, req model.UpdateExpenseRequest) (*model.Expense, error) {
	existing, err := s.GetExpense(ctx, userID, expenseID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		existing.Title = strings.TrimSpace(*req.Title)
	}
	if req.Amount != nil {
		existing.Amount = req.Amount.Round(2)
	}
	if req.Date != nil && !req.Date.IsZero() {
		existing.Date = *req.Date
	}
	if req.Category != nil {
		existing.Category = *req.Category
	}
	if req.Description != nil {
		existing.Description = trimOptional(req.Description)
	}
	existing.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, existing); err != nil {
		if isNotFound(err) {
			return nil, ErrExpenseNotFound
		}
		return nil, fmt.Errorf("failed to update expense in repo: %w", err)
	}
	return existing, nil
}

func (s *expenseService) DeleteExpense(ctx context.Context, userID, expenseID string) error {
	if _, err := s.GetExpense(ctx, userID, expenseID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, expenseID); err != nil {
		if isNotFound(err) {
			return ErrExpenseNotFound
		}
		return fmt.Errorf("failed to delete expense in repo: %w", err)
	}
	return nil
}

func (s *expenseService) SummaryByCategory(ctx context.Context, userID string) ([]model.CategorySummary, error) {
	out, err := s.repo.SummaryByCategory(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize by category: %w", err)
	}
	if out == nil {
		out = []model.CategorySummary{}
	}
	return out, nil
}

func (s *expenseService) SummaryByMonth(ctx context.Context, userID string) ([]model.MonthlySummary, error) {
	out, err := s.repo.SummaryByMonth(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize by month: %w", err)
	}
	if out == nil {
		out = []model.MonthlySummary{}
	}
	return out, nil
}

func (s *expenseService) SummaryForPeriod(ctx context.Context, userID string, start, end time.Time) (*model.PeriodSummary, error) {
	startPtr, endPtr := wholeDays(&start, &end)
	out, err := s.repo.SummaryForPeriod(ctx, userID, *startPtr, *endPtr)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize period: %w", err)
	}
	return out, nil
}

// wholeDays widens a date-only end bound to the end of that day. The start
// bound is left as given, so a lone start date is open-ended.
func wholeDays(start, end *time.Time) (*time.Time, *time.Time) {
	if end != nil && isMidnight(*end) {
		endOfDay := time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 999999999, end.Location())
		end = &endOfDay
	}
	return start, end
}

func isMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
