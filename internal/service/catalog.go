package service

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Rogue-Bear-Innovations/foodshare-back/internal/db"
)

// CatalogService serves the shared reference data: tags and ingredients.
type CatalogService struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

func NewCatalogService(db *gorm.DB, l *zap.SugaredLogger) *CatalogService {
	return &CatalogService{
		db:     db,
		logger: l,
	}
}

func (s *CatalogService) Tags() ([]db.Tag, error) {
	tags := make([]db.Tag, 0)
	res := s.db.Order("id").Find(&tags)
	if res.Error != nil {
		return nil, res.Error
	}
	return tags, nil
}

func (s *CatalogService) Tag(id uint64) (*db.Tag, error) {
	tag := db.Tag{}
	res := s.db.First(&tag, id)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, res.Error
	}
	return &tag, nil
}

// Ingredients lists the catalog, optionally narrowed to a name prefix.
func (s *CatalogService) Ingredients(namePrefix string) ([]db.Ingredient, error) {
	ingredients := make([]db.Ingredient, 0)
	q := s.db.Order("id")
	if namePrefix != "" {
		q = q.Where("name LIKE ?", namePrefix+"%")
	}
	res := q.Find(&ingredients)
	if res.Error != nil {
		return nil, res.Error
	}
	return ingredients, nil
}

func (s *CatalogService) Ingredient(id uint64) (*db.Ingredient, error) {
	ingredient := db.Ingredient{}
	res := s.db.First(&ingredient, id)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, res.Error
	}
	return &ingredient, nil
}
