package model

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const (
	CategoryFood           = "Food"
	CategoryTransportation = "Transportation"
	CategoryEntertainment  = "Entertainment"
	CategoryUtilities      = "Utilities"
	CategoryHealthcare     = "Healthcare"
	CategoryShopping       = "Shopping"
	CategoryEducation      = "Education"
	CategoryOther          = "Other"
)

// Categories lists every accepted expense category.
var Categories = []string{
	CategoryFood, CategoryTransportation, CategoryEntertainment, CategoryUtilities,
	CategoryHealthcare, CategoryShopping, CategoryEducation, CategoryOther,
}

// Expense is a single spending record owned by a user
type Expense struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	Title       string          `json:"title"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	Category    string          `json:"category"`
	Description *string         `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// CreateExpenseRequest is the body of POST /expenses.
type CreateExpenseRequest struct {
	Title       string           `json:"title" binding:"required,notblank,max=50"`
	Amount      *decimal.Decimal `json:"amount" binding:"required,gte=0"`
	Date        *time.Time       `json:"date"`
	Category    string           `json:"category" binding:"required,oneof=Food Transportation Entertainment Utilities Healthcare Shopping Education Other"`
	Description *string          `json:"description" binding:"omitempty,max=200"`
}

// UpdateExpenseRequest uses pointers so only provided fields change
type UpdateExpenseRequest struct {
	Title       *string          `json:"title,omitempty" binding:"omitempty,notblank,max=50"`
	Amount      *decimal.Decimal `json:"amount,omitempty" binding:"omitempty,gte=0"`
	Date        *time.Time       `json:"date,omitempty"`
	Category    *string          `json:"category,omitempty" binding:"omitempty,oneof=Food Transportation Entertainment Utilities Healthcare Shopping Education Other"`
	Description *string          `json:"description,omitempty" binding:"omitempty,max=200"`
}

// ExpenseFilter narrows list queries. Nil fields are ignored.
type ExpenseFilter struct {
	Category  *string
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	Limit     int
}

// Offset is the number of rows skipped for the current page. It saturates at
// math.MaxInt instead of overflowing for very large pages.
func (f ExpenseFilter) Offset() int {
	if f.Page < 1 || f.Limit < 1 {
		return 0
	}
	if f.Page-1 > math.MaxInt/f.Limit {
		return math.MaxInt
	}
	return (f.Page - 1) * f.Limit
}

// ExpensePage is one page of a filtered expense list.
type ExpensePage struct {
	Data        []Expense `json:"data"`
	Total       int64     `json:"total"`
	TotalPages  int       `json:"totalPages"`
	CurrentPage int       `json:"currentPage"`
}

// CategorySummary totals a user's spending in one category.
type CategorySummary struct {
	Category    string          `json:"category"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Count       int64           `json:"count"`
}

// MonthlySummary totals a user's spending in one calendar month.
type MonthlySummary struct {
	Year        int             `json:"year"`
	Month       int             `json:"month"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Count       int64           `json:"count"`
}

// PeriodSummary totals a user's spending between two dates.
type PeriodSummary struct {
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	AverageAmount decimal.Decimal `json:"averageAmount"`
	Count         int64           `json:"count"`
}
