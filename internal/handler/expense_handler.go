package handler

import (
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"otp_expense_tracker/internal/middleware"
	"otp_expense_tracker/internal/model"
	"otp_expense_tracker/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ExpenseHandler handles expense requests
type ExpenseHandler struct {
	service service.ExpenseService
	logger  *slog.Logger
}

// NewExpenseHandler creates a new ExpenseHandler
func NewExpenseHandler(s service.ExpenseService, logger *slog.Logger) *ExpenseHandler {
	return &ExpenseHandler{service: s, logger: logger}
}

// scope returns the caller's id, or "" on routes mounted without the gate.
func scope(c *gin.Context) string {
	if user, ok := middleware.CurrentUser(c); ok {
		return user.ID
	}
	return ""
}

// ListExpenses handles GET /expenses.
func (h *ExpenseHandler) ListExpenses(c *gin.Context) {
	filter, errs := parseExpenseFilter(c)
	if len(errs) > 0 {
		respondValidation(c, errs)
		return
	}

	page, err := h.service.ListExpenses(c.Request.Context(), scope(c), filter)
	if err != nil {
		respondError(c, h.logger, err, "Error retrieving expenses")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"data":        page.Data,
		"total":       page.Total,
		"totalPages":  page.TotalPages,
		"currentPage": page.CurrentPage,
	})
}

// GetExpense handles GET /expenses/:id.
func (h *ExpenseHandler) GetExpense(c *gin.Context) {
	expense, err := h.service.GetExpense(c.Request.Context(), scope(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err, "Error retrieving expense")
		return
	}
	respondOK(c, http.StatusOK, expense)
}

// CreateExpense handles POST /expenses.
func (h *ExpenseHandler) CreateExpense(c *gin.Context) {
	var req model.CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	expense, err := h.service.CreateExpense(c.Request.Context(), scope(c), req)
	if err != nil {
		respondError(c, h.logger, err, "Error creating expense")
		return
	}
	respondOK(c, http.StatusCreated, expense)
}

// UpdateExpense handles PUT /expenses/:id.
func (h *ExpenseHandler) UpdateExpense(c *gin.Context) {
	var req model.UpdateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	expense, err := h.service.UpdateExpense(c.Request.Context(), scope(c), c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, err, "Error updating expense")
		return
	}
	respondOK(c, http.StatusOK, expense)
}

// DeleteExpense handles DELETE /expenses/:id.
func (h *ExpenseHandler) DeleteExpense(c *gin.Context) {
	if err := h.service.DeleteExpense(c.Request.Context(), scope(c), c.Param("id")); err != nil {
		respondError(c, h.logger, err, "Error deleting expense")
		return
	}
	respondMessage(c, http.StatusOK, "Expense deleted successfully")
}

// SummaryByCategory handles GET /expenses/summary/category.
func (h *ExpenseHandler) SummaryByCategory(c *gin.Context) {
	summary, err := h.service.SummaryByCategory(c.Request.Context(), scope(c))
	if err != nil {
		respondError(c, h.logger, err, "Error generating category summary")
		return
	}
	respondOK(c, http.StatusOK, summary)
}

// SummaryByMonth handles GET /expenses/summary/monthly.
func (h *ExpenseHandler) SummaryByMonth(c *gin.Context) {
	summary, err := h.service.SummaryByMonth(c.Request.Context(), scope(c))
	if err != nil {
		respondError(c, h.logger, err, "Error generating monthly summary")
		return
	}
	respondOK(c, http.StatusOK, summary)
}

// SummaryForPeriod handles GET /expenses/summary/period.
func (h *ExpenseHandler) SummaryForPeriod(c *gin.Context) {
	rawStart, rawEnd := c.Query("startDate"), c.Query("endDate")
	if rawStart == "" || rawEnd == "" {
		respondMessage(c, http.StatusBadRequest, "startDate and endDate are required")
		return
	}

	var errs []FieldError
	start, err := parseDate(rawStart)
	if err != nil {
		errs = append(errs, FieldError{Field: "startDate", Message: dateMessage})
	}
	end, err := parseDate(rawEnd)
	if err != nil {
		errs = append(errs, FieldError{Field: "endDate", Message: dateMessage})
	}
	if len(errs) > 0 {
		respondValidation(c, errs)
		return
	}

	summary, err := h.service.SummaryForPeriod(c.Request.Context(), scope(c), start, end)
	if err != nil {
		respondError(c, h.logger, err, "Error generating period summary")
		return
	}
	respondOK(c, http.StatusOK, summary)
}

// RegisterExpenseRoutes mounts the caller-scoped expense routes behind gate.
func (h *ExpenseHandler) RegisterExpenseRoutes(rg *gin.RouterGroup, gate gin.HandlerFunc) {
	expenses := rg.Group("/expenses", gate)
	{
		expenses.GET("", h.ListExpenses)
		expenses.POST("", h.CreateExpense)
		expenses.GET("/summary/category", h.SummaryByCategory)
		expenses.GET("/summary/monthly", h.SummaryByMonth)
		expenses.GET("/summary/period", h.SummaryForPeriod)
		expenses.GET("/:id", h.GetExpense)
		expenses.PUT("/:id", h.UpdateExpense)
		expenses.DELETE("/:id", h.DeleteExpense)
	}
}

// RegisterPublicRoutes mounts read-only, unscoped expense routes without any
// authentication. Only for deployments that opt in explicitly.
func (h *ExpenseHandler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	public := rg.Group("/public/expenses")
	{
		public.GET("", h.ListExpenses)
		public.GET("/summary/category", h.SummaryByCategory)
		public.GET("/summary/monthly", h.SummaryByMonth)
		public.GET("/summary/period", h.SummaryForPeriod)
		public.GET("/:id", h.GetExpense)
	}
}

const dateMessage = "Date must be in ISO 8601 format (YYYY-MM-DD)"

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func parseExpenseFilter(c *gin.Context) (model.ExpenseFilter, []FieldError) {
	var (
		f    model.ExpenseFilter
		errs []FieldError
	)

	if category := c.Query("category"); category != "" {
		if !slices.Contains(model.Categories, category) {
			errs = append(errs, FieldError{Field: "category", Message: "Invalid category"})
		}
		f.Category = &category
	}

	for _, q := range []struct {
		name string
		dst  **decimal.Decimal
	}{{"minAmount", &f.MinAmount}, {"maxAmount", &f.MaxAmount}} {
		raw := c.Query(q.name)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			errs = append(errs, FieldError{Field: q.name, Message: q.name + " must be a number"})
			continue
		}
		*q.dst = &d
	}

	for _, q := range []struct {
		name string
		dst  **time.Time
	}{{"startDate", &f.StartDate}, {"endDate", &f.EndDate}} {
		raw := c.Query(q.name)
		if raw == "" {
			continue
		}
		t, err := parseDate(raw)
		if err != nil {
			errs = append(errs, FieldError{Field: q.name, Message: dateMessage})
			continue
		}
		*q.dst = &t
	}

	for _, q := range []struct {
		name string
		dst  *int
	}{{"page", &f.Page}, {"limit", &f.Limit}} {
		raw := c.Query(q.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			errs = append(errs, FieldError{Field: q.name, Message: q.name + " must be a positive integer"})
			continue
		}
		*q.dst = n
	}

	return f, errs
}
