package repository

import (
	"context"
	"testing"
	"time"

	"otp_expense_tracker/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedExpenses(t *testing.T, repo *MemoryExpenseRepository) {
	t.Helper()
	day := func(m time.Month, d int) time.Time { return time.Date(2025, m, d, 12, 0, 0, 0, time.UTC) }
	rows := []model.Expense{
		{UserID: "u1", Title: "Groceries", Amount: decimal.RequireFromString("40.10"), Date: day(1, 5), Category: model.CategoryFood},
		{UserID: "u1", Title: "Taxi", Amount: decimal.RequireFromString("15"), Date: day(1, 20), Category: model.CategoryTransportation},
		{UserID: "u1", Title: "Dinner", Amount: decimal.RequireFromString("25.40"), Date: day(2, 14), Category: model.CategoryFood},
		{UserID: "u2", Title: "Cinema", Amount: decimal.RequireFromString("12"), Date: day(2, 1), Category: model.CategoryEntertainment},
	}
	for i := range rows {
		rows[i].CreatedAt = rows[i].Date
		require.NoError(t, repo.Create(context.Background(), &rows[i]))
	}
}

func TestMemoryExpenseRepository_ListPaging(t *testing.T) {
	repo := NewMemoryExpenseRepository()
	seedExpenses(t, repo)

	page, total, err := repo.List(context.Background(), "u1", model.ExpenseFilter{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 2)
	assert.Equal(t, "Dinner", page[0].Title)
	assert.Equal(t, "Taxi", page[1].Title)

	page, _, err = repo.List(context.Background(), "u1", model.ExpenseFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "Groceries", page[0].Title)

	page, _, err = repo.List(context.Background(), "u1", model.ExpenseFilter{Page: 5, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestMemoryExpenseRepository_ListFilters(t *testing.T) {
	repo := NewMemoryExpenseRepository()
	seedExpenses(t, repo)

	food := model.CategoryFood
	minAmount := decimal.NewFromInt(30)
	page, total, err := repo.List(context.Background(), "u1", model.ExpenseFilter{Category: &food, MinAmount: &minAmount})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Groceries", page[0].Title)

	// unscoped sees every user
	_, total, err = repo.List(context.Background(), "", model.ExpenseFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
}

func TestMemoryExpenseRepository_Summaries(t *testing.T) {
	repo := NewMemoryExpenseRepository()
	seedExpenses(t, repo)
	ctx := context.Background()

	byCategory, err := repo.SummaryByCategory(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, byCategory, 2)
	assert.Equal(t, model.CategoryFood, byCategory[0].Category)
	assert.Equal(t, "65.5", byCategory[0].TotalAmount.String())
	assert.Equal(t, int64(2), byCategory[0].Count)

	byMonth, err := repo.SummaryByMonth(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, byMonth, 2)
	assert.Equal(t, 2, byMonth[0].Month)
	assert.Equal(t, 1, byMonth[1].Month)
	assert.Equal(t, "55.1", byMonth[1].TotalAmount.String())

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 31, 23, 59, 59, 0, time.UTC)
	period, err := repo.SummaryForPeriod(ctx, "u1", start, end)
	require.NoError(t, err)
	assert.Equal(t, int64(2), period.Count)
	assert.Equal(t, "55.1", period.TotalAmount.String())
	assert.Equal(t, "27.55", period.AverageAmount.String())

	empty, err := repo.SummaryForPeriod(ctx, "u3", start, end)
	require.NoError(t, err)
	assert.Zero(t, empty.Count)
	assert.True(t, empty.TotalAmount.IsZero())
	assert.True(t, empty.AverageAmount.IsZero())
}

func TestMemoryExpenseRepository_UpdateDelete(t *testing.T) {
	repo := NewMemoryExpenseRepository()
	ctx := context.Background()
	e := &model.Expense{UserID: "u1", Title: "Tea", Amount: decimal.NewFromInt(3), Date: time.Now(), Category: model.CategoryFood}
	require.NoError(t, repo.Create(ctx, e))

	e.Title = "Green tea"
	e.UserID = "someone-else"
	require.NoError(t, repo.Update(ctx, e))

	got, err := repo.FindByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Green tea", got.Title)
	assert.Equal(t, "u1", got.UserID)

	require.NoError(t, repo.Delete(ctx, e.ID))
	assert.ErrorIs(t, repo.Delete(ctx, e.ID), ErrNotFound)
	got, err = repo.FindByID(ctx, e.ID)
	assert.NoError(t, err)
	assert.Nil(t, got)
}
