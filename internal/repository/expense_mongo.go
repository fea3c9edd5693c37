package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"otp_expense_tracker/internal/model"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const expensesCollection = "expenses"

type expenseDocument struct {
	ID          bson.ObjectID   `bson:"_id,omitempty"`
	UserID      string          `bson:"user"`
	Title       string          `bson:"title"`
	Amount      bson.Decimal128 `bson:"amount"`
	Date        time.Time       `bson:"date"`
	Category    string          `bson:"category"`
	Description *string         `bson:"description,omitempty"`
	CreatedAt   time.Time       `bson:"createdAt"`
	UpdatedAt   time.Time       `bson:"updatedAt"`
}

type mongoExpenseRepository struct {
	coll *mongo.Collection
}

// NewMongoExpenseRepository creates a MongoDB-backed ExpenseRepository
func NewMongoExpenseRepository(db *mongo.Database) ExpenseRepository {
	return &mongoExpenseRepository{coll: db.Collection(expensesCollection)}
}

// EnsureExpenseIndexes indexes the fields used by list filters and summaries.
func EnsureExpenseIndexes(ctx context.Context, db *mongo.Database) error {
	if _, err := db.Collection(expensesCollection).Indexes().CreateMany(ctx, expenseIndexModels()); err != nil {
		return fmt.Errorf("failed to create expense indexes: %w", err)
	}
	return nil
}

func expenseIndexModels() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "user", Value: 1}, {Key: "date", Value: -1}}},
		{Keys: bson.D{{Key: "user", Value: 1}, {Key: "category", Value: 1}}},
	}
}

func (r *mongoExpenseRepository) Create(ctx context.Context, e *model.Expense) error {
	doc, err := toExpenseDocument(e)
	if err != nil {
		return err
	}
	doc.ID = bson.NewObjectID()

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	e.ID = doc.ID.Hex()
	return nil
}

func (r *mongoExpenseRepository) FindByID(ctx context.Context, id string) (*model.Expense, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	var doc expenseDocument
	if err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find expense: %w", err)
	}
	return doc.toModel()
}

func (r *mongoExpenseRepository) List(ctx context.Context, userID string, f model.ExpenseFilter) ([]model.Expense, int64, error) {
	filter, err := expenseFilter(userID, f)
	if err != nil {
		return nil, 0, err
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count expenses: %w", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "createdAt", Value: -1}})
	if f.Limit > 0 {
		opts.SetSkip(int64(f.Offset())).SetLimit(int64(f.Limit))
	}
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query expenses: %w", err)
	}
	var docs []expenseDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("failed to decode expenses: %w", err)
	}

	expenses := make([]model.Expense, 0, len(docs))
	for _, d := range docs {
		e, err := d.toModel()
		if err != nil {
			return nil, 0, err
		}
		expenses = append(expenses, *e)
	}
	return expenses, total, nil
}

func (r *mongoExpenseRepository) Update(ctx context.Context, e *model.Expense) error {
	oid, err := bson.ObjectIDFromHex(e.ID)
	if err != nil {
		return fmt.Errorf("failed to update expense %s: %w", e.ID, ErrNotFound)
	}
	amount, err := toDecimal128(e.Amount)
	if err != nil {
		return err
	}
	e.UpdatedAt = time.Now().UTC()

	set := bson.D{
		{Key: "title", Value: e.Title},
		{Key: "amount", Value: amount},
		{Key: "date", Value: e.Date.UTC()},
		{Key: "category", Value: e.Category},
		{Key: "updatedAt", Value: e.UpdatedAt},
	}
	var update bson.D
	if e.Description != nil {
		set = append(set, bson.E{Key: "description", Value: *e.Description})
		update = bson.D{{Key: "$set", Value: set}}
	} else {
		update = bson.D{
			{Key: "$set", Value: set},
			{Key: "$unset", Value: bson.D{{Key: "description", Value: ""}}},
		}
	}

	res, err := r.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: oid}}, update)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("failed to update expense %s: %w", e.ID, ErrNotFound)
	}
	return nil
}

func (r *mongoExpenseRepository) Delete(ctx context.Context, id string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("failed to delete expense %s: %w", id, ErrNotFound)
	}
	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("failed to delete expense %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *mongoExpenseRepository) SummaryByCategory(ctx context.Context, userID string) ([]model.CategorySummary, error) {
	match, err := expenseFilter(userID, model.ExpenseFilter{})
	if err != nil {
		return nil, err
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$category"},
			{Key: "totalAmount", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "totalAmount", Value: -1}, {Key: "_id", Value: 1}}}},
	}

	var rows []struct {
		Category    string          `bson:"_id"`
		TotalAmount bson.Decimal128 `bson:"totalAmount"`
		Count       int64           `bson:"count"`
	}
	if err := r.aggregate(ctx, pipeline, &rows); err != nil {
		return nil, fmt.Errorf("failed to aggregate category summary: %w", err)
	}

	summary := make([]model.CategorySummary, 0, len(rows))
	for _, row := range rows {
		total, err := fromDecimal128(row.TotalAmount)
		if err != nil {
			return nil, err
		}
		summary = append(summary, model.CategorySummary{Category: row.Category, TotalAmount: total, Count: row.Count})
	}
	return summary, nil
}

func (r *mongoExpenseRepository) SummaryByMonth(ctx context.Context, userID string) ([]model.MonthlySummary, error) {
	match, err := expenseFilter(userID, model.ExpenseFilter{})
	if err != nil {
		return nil, err
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{
				{Key: "year", Value: bson.D{{Key: "$year", Value: "$date"}}},
				{Key: "month", Value: bson.D{{Key: "$month", Value: "$date"}}},
			}},
			{Key: "totalAmount", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id.year", Value: -1}, {Key: "_id.month", Value: -1}}}},
	}

	var rows []struct {
		ID struct {
			Year  int `bson:"year"`
			Month int `bson:"month"`
		} `bson:"_id"`
		TotalAmount bson.Decimal128 `bson:"totalAmount"`
		Count       int64           `bson:"count"`
	}
	if err := r.aggregate(ctx, pipeline, &rows); err != nil {
		return nil, fmt.Errorf("failed to aggregate monthly summary: %w", err)
	}

	summary := make([]model.MonthlySummary, 0, len(rows))
	for _, row := range rows {
		total, err := fromDecimal128(row.TotalAmount)
		if err != nil {
			return nil, err
		}
		summary = append(summary, model.MonthlySummary{
			Year: row.ID.Year, Month: row.ID.Month, TotalAmount: total, Count: row.Count,
		})
	}
	return summary, nil
}

func (r *mongoExpenseRepository) SummaryForPeriod(ctx context.Context, userID string, start, end time.Time) (*model.PeriodSummary, error) {
	match, err := expenseFilter(userID, model.ExpenseFilter{StartDate: &start, EndDate: &end})
	if err != nil {
		return nil, err
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "totalAmount", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
			{Key: "averageAmount", Value: bson.D{{Key: "$avg", Value: "$amount"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	var rows []struct {
		TotalAmount   bson.Decimal128 `bson:"totalAmount"`
		AverageAmount bson.Decimal128 `bson:"averageAmount"`
		Count         int64           `bson:"count"`
	}
	if err := r.aggregate(ctx, pipeline, &rows); err != nil {
		return nil, fmt.Errorf("failed to aggregate period summary: %w", err)
	}

	s := &model.PeriodSummary{TotalAmount: decimal.Zero, AverageAmount: decimal.Zero}
	if len(rows) == 0 {
		return s, nil
	}
	if s.TotalAmount, err = fromDecimal128(rows[0].TotalAmount); err != nil {
		return nil, err
	}
	avg, err := fromDecimal128(rows[0].AverageAmount)
	if err != nil {
		return nil, err
	}
	s.AverageAmount = avg.Round(2)
	s.Count = rows[0].Count
	return s, nil
}

func (r *mongoExpenseRepository) aggregate(ctx context.Context, pipeline mongo.Pipeline, out any) error {
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}

func expenseFilter(userID string, f model.ExpenseFilter) (bson.D, error) {
	filter := bson.D{}
	if userID != "" {
		filter = append(filter, bson.E{Key: "user", Value: userID})
	}
	if f.Category != nil && *f.Category != "" {
		filter = append(filter, bson.E{Key: "category", Value: *f.Category})
	}

	amount := bson.D{}
	if f.MinAmount != nil {
		v, err := toDecimal128(*f.MinAmount)
		if err != nil {
			return nil, err
		}
		amount = append(amount, bson.E{Key: "$gte", Value: v})
	}
	if f.MaxAmount != nil {
		v, err := toDecimal128(*f.MaxAmount)
		if err != nil {
			return nil, err
		}
		amount = append(amount, bson.E{Key: "$lte", Value: v})
	}
	if len(amount) > 0 {
		filter = append(filter, bson.E{Key: "amount", Value: amount})
	}

	date := bson.D{}
	if f.StartDate != nil {
		date = append(date, bson.E{Key: "$gte", Value: f.StartDate.UTC()})
	}
	if f.EndDate != nil {
		date = append(date, bson.E{Key: "$lte", Value: f.EndDate.UTC()})
	}
	if len(date) > 0 {
		filter = append(filter, bson.E{Key: "date", Value: date})
	}
	return filter, nil
}

func toExpenseDocument(e *model.Expense) (expenseDocument, error) {
	amount, err := toDecimal128(e.Amount)
	if err != nil {
		return expenseDocument{}, err
	}
	return expenseDocument{
		UserID:      e.UserID,
		Title:       e.Title,
		Amount:      amount,
		Date:        e.Date.UTC(),
		Category:    e.Category,
		Description: e.Description,
		CreatedAt:   e.CreatedAt.UTC(),
		UpdatedAt:   e.UpdatedAt.UTC(),
	}, nil
}

func (d expenseDocument) toModel() (*model.Expense, error) {
	amount, err := fromDecimal128(d.Amount)
	if err != nil {
		return nil, err
	}
	return &model.Expense{
		ID:          d.ID.Hex(),
		UserID:      d.UserID,
		Title:       d.Title,
		Amount:      amount,
		Date:        d.Date,
		Category:    d.Category,
		Description: d.Description,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}, nil
}

func toDecimal128(d decimal.Decimal) (bson.Decimal128, error) {
	v, err := bson.ParseDecimal128(d.String())
	if err != nil {
		return bson.Decimal128{}, fmt.Errorf("amount %s out of range: %w", d.String(), err)
	}
	return v, nil
}

func fromDecimal128(d bson.Decimal128) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(d.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad stored amount %q: %w", d.String(), err)
	}
	return v, nil
}
