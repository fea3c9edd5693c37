package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"otp_expense_tracker/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ExpenseRepository stores expenses. An empty userID means "all users"
// and is only used by the legacy public routes.
type ExpenseRepository interface {
	Create(ctx context.Context, expense *model.Expense) error
	FindByID(ctx context.Context, id string) (*model.Expense, error)
	List(ctx context.Context, userID string, filter model.ExpenseFilter) ([]model.Expense, int64, error)
	Update(ctx context.Context, expense *model.Expense) error
	Delete(ctx context.Context, id string) error
	SummaryByCategory(ctx context.Context, userID string) ([]model.CategorySummary, error)
	SummaryByMonth(ctx context.Context, userID string) ([]model.MonthlySummary, error)
	SummaryForPeriod(ctx context.Context, userID string, start, end time.Time) (*model.PeriodSummary, error)
}

type expenseRepository struct {
	db PgxIface
}

// NewExpenseRepository creates a Postgres-backed ExpenseRepository
func NewExpenseRepository(db PgxIface) ExpenseRepository {
	return &expenseRepository{db: db}
}

const expenseColumns = `id::text, user_id::text, title, amount, date, category, description, created_at, updated_at`

// Create inserts a new expense
func (r *expenseRepository) Create(ctx context.Context, e *model.Expense) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	sql := `INSERT INTO expenses (id, user_id, title, amount, date, category, description, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING created_at, updated_at`
	err := r.db.QueryRow(ctx, sql, e.ID, e.UserID, e.Title, e.Amount, e.Date, e.Category, e.Description, e.CreatedAt, e.UpdatedAt).
		Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

// FindByID retrieves an expense by its ID
func (r *expenseRepository) FindByID(ctx context.Context, id string) (*model.Expense, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	sql := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = $1`
	e, err := scanExpense(r.db.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find expense by ID: %w", err)
	}
	return e, nil
}

// List returns one page of matching expenses, newest first, plus the total match count
func (r *expenseRepository) List(ctx context.Context, userID string, f model.ExpenseFilter) ([]model.Expense, int64, error) {
	where, args := expenseWhere(userID, f)

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM expenses`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count expenses: %w", err)
	}

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + expenseColumns + ` FROM expenses`)
	queryBuilder.WriteString(where)
	queryBuilder.WriteString(" ORDER BY date DESC, created_at DESC")
	if f.Limit > 0 {
		queryBuilder.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2))
		args = append(args, f.Limit, f.Offset())
	}

	rows, err := r.db.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	expenses := []model.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan expense row: %w", err)
		}
		expenses = append(expenses, *e)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating expense rows: %w", err)
	}
	return expenses, total, nil
}

// Update modifies an existing expense
func (r *expenseRepository) Update(ctx context.Context, e *model.Expense) error {
	sql := `UPDATE expenses
            SET title = $1, amount = $2, date = $3, category = $4, description = $5, updated_at = NOW()
            WHERE id = $6 RETURNING updated_at`
	err := r.db.QueryRow(ctx, sql, e.Title, e.Amount, e.Date, e.Category, e.Description, e.ID).Scan(&e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to update expense %s: %w", e.ID, ErrNotFound)
		}
		return fmt.Errorf("failed to update expense: %w", err)
	}
	return nil
}

// Delete removes an expense
func (r *expenseRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("failed to delete expense %s: %w", id, ErrNotFound)
	}
	return nil
}

// SummaryByCategory totals spending per category, largest first
func (r *expenseRepository) SummaryByCategory(ctx context.Context, userID string) ([]model.CategorySummary, error) {
	where, args := expenseWhere(userID, model.ExpenseFilter{})
	sql := `SELECT category, SUM(amount), COUNT(*) FROM expenses` + where +
		` GROUP BY category ORDER BY SUM(amount) DESC`

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query category summary: %w", err)
	}
	defer rows.Close()

	summary := []model.CategorySummary{}
	for rows.Next() {
		var s model.CategorySummary
		if err := rows.Scan(&s.Category, &s.TotalAmount, &s.Count); err != nil {
			return nil, fmt.Errorf("failed to scan category summary: %w", err)
		}
		summary = append(summary, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category summary: %w", err)
	}
	return summary, nil
}

// SummaryByMonth totals spending per calendar month, newest first
func (r *expenseRepository) SummaryByMonth(ctx context.Context, userID string) ([]model.MonthlySummary, error) {
	where, args := expenseWhere(userID, model.ExpenseFilter{})
	sql := `SELECT EXTRACT(YEAR FROM date)::int AS year, EXTRACT(MONTH FROM date)::int AS month, SUM(amount), COUNT(*)
            FROM expenses` + where + ` GROUP BY 1, 2 ORDER BY 1 DESC, 2 DESC`

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly summary: %w", err)
	}
	defer rows.Close()

	summary := []model.MonthlySummary{}
	for rows.Next() {
		var s model.MonthlySummary
		if err := rows.Scan(&s.Year, &s.Month, &s.TotalAmount, &s.Count); err != nil {
			return nil, fmt.Errorf("failed to scan monthly summary: %w", err)
		}
		summary = append(summary, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating monthly summary: %w", err)
	}
	return summary, nil
}

// SummaryForPeriod returns total, average and count within [start, end]
func (r *expenseRepository) SummaryForPeriod(ctx context.Context, userID string, start, end time.Time) (*model.PeriodSummary, error) {
	where, args := expenseWhere(userID, model.ExpenseFilter{StartDate: &start, EndDate: &end})
	sql := `SELECT COALESCE(SUM(amount), 0), COALESCE(AVG(amount), 0), COUNT(*) FROM expenses` + where

	var s model.PeriodSummary
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&s.TotalAmount, &s.AverageAmount, &s.Count); err != nil {
		return nil, fmt.Errorf("failed to query period summary: %w", err)
	}
	s.AverageAmount = s.AverageAmount.Round(2)
	return &s, nil
}

// expenseWhere builds the WHERE clause shared by list and summary queries.
func expenseWhere(userID string, f model.ExpenseFilter) (string, []any) {
	var conditions []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if userID != "" {
		add("user_id = $%d", userID)
	}
	if f.Category != nil && *f.Category != "" {
		add("category = $%d", *f.Category)
	}
	if f.MinAmount != nil {
		add("amount >= $%d", *f.MinAmount)
	}
	if f.MaxAmount != nil {
		add("amount <= $%d", *f.MaxAmount)
	}
	if f.StartDate != nil {
		add("date >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		add("date <= $%d", *f.EndDate)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func scanExpense(row pgx.Row) (*model.Expense, error) {
	var e model.Expense
	err := row.Scan(&e.ID, &e.UserID, &e.Title, &e.Amount, &e.Date, &e.Category, &e.Description, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
