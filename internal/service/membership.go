package service

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Rogue-Bear-Innovations/foodshare-back/internal/db"
)

// MembershipService maintains the per-user recipe sets: favorites and the
// shopping cart. Both tables carry a (user_id, recipe_id) unique index; the
// existence check below is only there for the friendlier error message, the
// index is what actually guards against concurrent double-inserts.
type MembershipService struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

func NewMembershipService(db *gorm.DB, l *zap.SugaredLogger) *MembershipService {
	return &MembershipService{
		db:     db,
		logger: l,
	}
}

func (s *MembershipService) AddFavorite(userID, recipeID uint64) (*db.Recipe, error) {
	return s.add(userID, recipeID, func() interface{} {
		return &db.Favorite{UserID: userID, RecipeID: recipeID}
	}, "recipe is already in favorites")
}

func (s *MembershipService) RemoveFavorite(userID, recipeID uint64) error {
	return s.remove(userID, recipeID, &db.Favorite{})
}

func (s *MembershipService) AddToCart(userID, recipeID uint64) (*db.Recipe, error) {
	return s.add(userID, recipeID, func() interface{} {
		return &db.CartEntry{UserID: userID, RecipeID: recipeID}
	}, "recipe is already in the shopping cart")
}

func (s *MembershipService) RemoveFromCart(userID, recipeID uint64) error {
	return s.remove(userID, recipeID, &db.CartEntry{})
}

func (s *MembershipService) add(userID, recipeID uint64, entry func() interface{}, conflictDetail string) (*db.Recipe, error) {
	recipe := db.Recipe{}
	if res := s.db.First(&recipe, recipeID); res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, res.Error
	}

	var count int64
	res := s.db.Model(entry()).Where("user_id = ? AND recipe_id = ?", userID, recipeID).Count(&count)
	if res.Error != nil {
		return nil, res.Error
	}
	if count != 0 {
		return nil, &ConflictError{Detail: conflictDetail}
	}

	if err := s.db.Create(entry()).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, &ConflictError{Detail: conflictDetail}
		}
		return nil, err
	}
	return &recipe, nil
}

func (s *MembershipService) remove(userID, recipeID uint64, model interface{}) error {
	res := s.db.Where("user_id = ? AND recipe_id = ?", userID, recipeID).Delete(model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
