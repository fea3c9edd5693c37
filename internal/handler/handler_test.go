package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queryContext(rawQuery string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/expenses?"+rawQuery, nil)
	return c
}

func TestParseExpenseFilter(t *testing.T) {
	f, errs := parseExpenseFilter(queryContext("category=Food&minAmount=5&maxAmount=10.50&startDate=2024-03-01&endDate=2024-03-31T10:00:00Z&page=2&limit=20"))
	require.Empty(t, errs)
	require.NotNil(t, f.Category)
	assert.Equal(t, "Food", *f.Category)
	assert.Equal(t, "5", f.MinAmount.String())
	assert.Equal(t, "10.5", f.MaxAmount.String())
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *f.StartDate)
	assert.Equal(t, time.Date(2024, 3, 31, 10, 0, 0, 0, time.UTC), *f.EndDate)
	assert.Equal(t, 2, f.Page)
	assert.Equal(t, 20, f.Limit)
	assert.Equal(t, 20, f.Offset())
}

func TestParseExpenseFilter_Errors(t *testing.T) {
	_, errs := parseExpenseFilter(queryContext("category=Rent&minAmount=abc&startDate=yesterday&limit=-3"))
	fields := make([]string, 0, len(errs))
	for _, e := range errs {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{"category", "minAmount", "startDate", "limit"}, fields)
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "+15551234567", normalizePhone(" +1 (555) 123-4567 "))
	assert.Equal(t, "15551234567", normalizePhone("1.555.123.4567"))
}

func TestPhoneRule(t *testing.T) {
	v := validator.New()
	require.NoError(t, v.RegisterValidation("phone", phoneRule(v)))

	for _, ok := range []string{"+15551234567", "+1 555.123.4567", "+1 (555) 123-4567", "9876543210"} {
		assert.NoError(t, v.Var(ok, "phone"), ok)
	}
	for _, bad := range []string{"0123", "", "+1555abc4567", "++15551234567", "+1234567890123456"} {
		assert.Error(t, v.Var(bad, "phone"), bad)
	}
}

func TestMustRegister_PanicsOnBadTag(t *testing.T) {
	v := validator.New()
	assert.Panics(t, func() { mustRegister(v, "", phoneRule(v)) })
}
