package repository

import (
	"testing"
	"time"

	"otp_expense_tracker/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func mustDecimal128(t *testing.T, s string) bson.Decimal128 {
	t.Helper()
	v, err := bson.ParseDecimal128(s)
	require.NoError(t, err)
	return v
}

func TestExpenseFilter_Mongo(t *testing.T) {
	food := "Food"
	minAmount := decimal.RequireFromString("5")
	maxAmount := decimal.RequireFromString("10.50")
	east := time.FixedZone("UTC+2", 2*60*60)
	start := time.Date(2024, 3, 1, 2, 0, 0, 0, east)
	end := time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC)

	tests := []struct {
		name   string
		userID string
		filter model.ExpenseFilter
		want   bson.D
	}{
		{
			name:   "owner only",
			userID: "u1",
			want:   bson.D{{Key: "user", Value: "u1"}},
		},
		{
			name:   "unscoped",
			userID: "",
			want:   bson.D{},
		},
		{
			name:   "category",
			userID: "u1",
			filter: model.ExpenseFilter{Category: &food},
			want:   bson.D{{Key: "user", Value: "u1"}, {Key: "category", Value: "Food"}},
		},
		{
			name:   "min amount",
			userID: "u1",
			filter: model.ExpenseFilter{MinAmount: &minAmount},
			want: bson.D{{Key: "user", Value: "u1"}, {Key: "amount", Value: bson.D{
				{Key: "$gte", Value: mustDecimal128(t, "5")},
			}}},
		},
		{
			name:   "amount range",
			userID: "u1",
			filter: model.ExpenseFilter{MinAmount: &minAmount, MaxAmount: &maxAmount},
			want: bson.D{{Key: "user", Value: "u1"}, {Key: "amount", Value: bson.D{
				{Key: "$gte", Value: mustDecimal128(t, "5")},
				{Key: "$lte", Value: mustDecimal128(t, "10.5")},
			}}},
		},
		{
			name:   "start date in utc",
			userID: "u1",
			filter: model.ExpenseFilter{StartDate: &start},
			want: bson.D{{Key: "user", Value: "u1"}, {Key: "date", Value: bson.D{
				{Key: "$gte", Value: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
			}}},
		},
		{
			name:   "date range",
			userID: "u1",
			filter: model.ExpenseFilter{StartDate: &start, EndDate: &end},
			want: bson.D{{Key: "user", Value: "u1"}, {Key: "date", Value: bson.D{
				{Key: "$gte", Value: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
				{Key: "$lte", Value: end},
			}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expenseFilter(tt.userID, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpenseFilter_Mongo_EmptyCategoryIgnored(t *testing.T) {
	empty := ""
	got, err := expenseFilter("u1", model.ExpenseFilter{Category: &empty})
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "user", Value: "u1"}}, got)
}

func TestDecimal128RoundTrip(t *testing.T) {
	for _, s := range []string{"12.34", "0", "-5.5", "1000000.01"} {
		t.Run(s, func(t *testing.T) {
			want := decimal.RequireFromString(s)
			d, err := toDecimal128(want)
			require.NoError(t, err)
			got, err := fromDecimal128(d)
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "want %s, got %s", want, got)
		})
	}
}

func TestFromDecimal128_ExponentForm(t *testing.T) {
	got, err := fromDecimal128(mustDecimal128(t, "1.5E+3"))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1500).Equal(got), "got %s", got)
}

func TestExpenseDocument_RoundTrip(t *testing.T) {
	local := time.FixedZone("UTC-5", -5*60*60)
	note := "team lunch"
	base := model.Expense{
		UserID:    "u1",
		Title:     "Lunch",
		Amount:    decimal.RequireFromString("12.50"),
		Date:      time.Date(2024, 3, 10, 7, 0, 0, 0, local),
		Category:  model.CategoryFood,
		CreatedAt: time.Date(2024, 3, 10, 8, 0, 0, 0, local),
		UpdatedAt: time.Date(2024, 3, 10, 9, 0, 0, 0, local),
	}

	for _, desc := range []*string{nil, &note} {
		e := base
		e.Description = desc
		name := "without description"
		if desc != nil {
			name = "with description"
		}
		t.Run(name, func(t *testing.T) {
			doc, err := toExpenseDocument(&e)
			require.NoError(t, err)
			assert.Equal(t, time.UTC, doc.Date.Location())
			assert.Equal(t, time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC), doc.Date)
			assert.Equal(t, desc, doc.Description)

			doc.ID = bson.NewObjectID()
			got, err := doc.toModel()
			require.NoError(t, err)
			assert.Equal(t, doc.ID.Hex(), got.ID)
			assert.Equal(t, "u1", got.UserID)
			assert.Equal(t, "Lunch", got.Title)
			assert.True(t, e.Amount.Equal(got.Amount))
			assert.True(t, e.Date.Equal(got.Date))
			assert.True(t, e.CreatedAt.Equal(got.CreatedAt))
			assert.True(t, e.UpdatedAt.Equal(got.UpdatedAt))
			assert.Equal(t, model.CategoryFood, got.Category)
			if desc == nil {
				assert.Nil(t, got.Description)
			} else {
				require.NotNil(t, got.Description)
				assert.Equal(t, note, *got.Description)
			}
		})
	}
}

func TestUserDocument_RoundTrip(t *testing.T) {
	local := time.FixedZone("UTC+3", 3*60*60)
	email := "alice@example.com"
	user := model.User{
		Name:       "Alice",
		Phone:      "+15551234567",
		Email:      &email,
		IsVerified: true,
		CreatedAt:  time.Date(2024, 3, 10, 15, 0, 0, 0, local),
	}

	t.Run("without challenge", func(t *testing.T) {
		doc := toUserDocument(&user)
		assert.Nil(t, doc.OTP)
		assert.Equal(t, time.UTC, doc.CreatedAt.Location())

		doc.ID = bson.NewObjectID()
		got := doc.toModel()
		assert.Equal(t, doc.ID.Hex(), got.ID)
		assert.Equal(t, "Alice", got.Name)
		assert.Equal(t, "+15551234567", got.Phone)
		require.NotNil(t, got.Email)
		assert.Equal(t, email, *got.Email)
		assert.True(t, got.IsVerified)
		assert.True(t, user.CreatedAt.Equal(got.CreatedAt))
		assert.Nil(t, got.Challenge)
	})

	t.Run("with challenge", func(t *testing.T) {
		u := user
		u.Email = nil
		u.Challenge = &model.Challenge{CodeHash: "$2a$10$hash", ExpiresAt: time.Date(2024, 3, 10, 15, 10, 0, 0, local)}

		doc := toUserDocument(&u)
		require.NotNil(t, doc.OTP)
		assert.Equal(t, "$2a$10$hash", doc.OTP.CodeHash)
		assert.Equal(t, time.Date(2024, 3, 10, 12, 10, 0, 0, time.UTC), doc.OTP.ExpiresAt)

		got := doc.toModel()
		assert.Nil(t, got.Email)
		require.NotNil(t, got.Challenge)
		assert.Equal(t, "$2a$10$hash", got.Challenge.CodeHash)
		assert.True(t, u.Challenge.ExpiresAt.Equal(got.Challenge.ExpiresAt))
	})
}

func indexOptions(t *testing.T, m mongo.IndexModel) *options.IndexOptions {
	t.Helper()
	opts := &options.IndexOptions{}
	if m.Options == nil {
		return opts
	}
	for _, set := range m.Options.List() {
		require.NoError(t, set(opts))
	}
	return opts
}

func TestUserIndexModels(t *testing.T) {
	models := userIndexModels()
	require.Len(t, models, 2)

	assert.Equal(t, bson.D{{Key: "phone", Value: 1}}, models[0].Keys)
	phone := indexOptions(t, models[0])
	require.NotNil(t, phone.Unique)
	assert.True(t, *phone.Unique)
	assert.Nil(t, phone.PartialFilterExpression)

	assert.Equal(t, bson.D{{Key: "email", Value: 1}}, models[1].Keys)
	email := indexOptions(t, models[1])
	require.NotNil(t, email.Unique)
	assert.True(t, *email.Unique)
	assert.Equal(t, bson.D{{Key: "email", Value: bson.D{{Key: "$exists", Value: true}}}}, email.PartialFilterExpression)
}

func TestExpenseIndexModels(t *testing.T) {
	models := expenseIndexModels()
	require.Len(t, models, 2)
	assert.Equal(t, bson.D{{Key: "user", Value: 1}, {Key: "date", Value: -1}}, models[0].Keys)
	assert.Equal(t, bson.D{{Key: "user", Value: 1}, {Key: "category", Value: 1}}, models[1].Keys)
}
