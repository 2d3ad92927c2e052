package service

import (
	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ShoppingService consolidates ingredient amounts across every recipe in a
// user's shopping cart.
type ShoppingService struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

func NewShoppingService(db *gorm.DB, l *zap.SugaredLogger) *ShoppingService {
	return &ShoppingService{
		db:     db,
		logger: l,
	}
}

// ConsolidatedLine is one summed row of the shopping list.
type ConsolidatedLine struct {
	Name            string
	MeasurementUnit string
	TotalAmount     int64
}

// Consolidate groups by the displayed (name, unit) pair rather than the
// ingredient id: after catalog edits two ingredient rows can render the same
// label and must be summed together. Output is ordered by name then unit so
// the export is reproducible. An empty cart yields an empty list.
func (s *ShoppingService) Consolidate(userID uint64) ([]ConsolidatedLine, error) {
	sql, args, err := squirrel.
		Select("i.name", "i.measurement_unit", "SUM(ri.amount) AS total_amount").
		From("recipe_ingredients ri").
		Join("ingredients i ON i.id = ri.ingredient_id").
		Join("cart_entries cart ON cart.recipe_id = ri.recipe_id").
		Where(squirrel.Eq{"cart.user_id": userID}).
		GroupBy("i.name", "i.measurement_unit").
		OrderBy("i.name", "i.measurement_unit").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build sql")
	}

	lines := make([]ConsolidatedLine, 0)
	res := s.db.Raw(sql, args...).Scan(&lines)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "scan")
	}

	return lines, nil
}
