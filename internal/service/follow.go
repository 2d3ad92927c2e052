package service

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Rogue-Bear-Innovations/foodshare-back/internal/db"
)

// FollowService maintains the directed user subscription graph.
type FollowService struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

func NewFollowService(db *gorm.DB, l *zap.SugaredLogger) *FollowService {
	return &FollowService{
		db:     db,
		logger: l,
	}
}

// FollowedUser is one subscription entry: the followed user, their recipes
// (newest first, possibly truncated) and the untruncated count.
type FollowedUser struct {
	User         db.User
	Recipes      []db.Recipe
	RecipesCount int64
}

func (s *FollowService) Follow(userID, targetID uint64) (*FollowedUser, error) {
	if userID == targetID {
		return nil, ErrSelfFollow
	}

	target := db.User{}
	if res := s.db.First(&target, targetID); res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, res.Error
	}

	var count int64
	res := s.db.Model(&db.Follow{}).Where("user_id = ? AND following_id = ?", userID, targetID).Count(&count)
	if res.Error != nil {
		return nil, res.Error
	}
	if count != 0 {
		return nil, &ConflictError{Detail: "you are already following this user"}
	}

	err := s.db.Create(&db.Follow{UserID: userID, FollowingID: targetID}).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, &ConflictError{Detail: "you are already following this user"}
		}
		return nil, err
	}

	return s.followedUser(target, nil)
}

func (s *FollowService) IsFollowing(userID, targetID uint64) (bool, error) {
	var count int64
	res := s.db.Model(&db.Follow{}).Where("user_id = ? AND following_id = ?", userID, targetID).Count(&count)
	if res.Error != nil {
		return false, res.Error
	}
	return count != 0, nil
}

func (s *FollowService) Unfollow(userID, targetID uint64) error {
	res := s.db.Where("user_id = ? AND following_id = ?", userID, targetID).Delete(&db.Follow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListFollowing returns every user followed by userID in follow order. A
// non-nil recipesLimit truncates each user's recipe list; the count stays the
// real total.
func (s *FollowService) ListFollowing(userID uint64, recipesLimit *int) ([]FollowedUser, error) {
	follows := make([]db.Follow, 0)
	res := s.db.Preload("Following").Where("user_id = ?", userID).Order("id").Find(&follows)
	if res.Error != nil {
		return nil, res.Error
	}

	out := make([]FollowedUser, 0, len(follows))
	for _, follow := range follows {
		entry, err := s.followedUser(follow.Following, recipesLimit)
		if err != nil {
			return nil, err
		}
		out = append(out, *entry)
	}
	return out, nil
}

func (s *FollowService) followedUser(user db.User, recipesLimit *int) (*FollowedUser, error) {
	recipes := make([]db.Recipe, 0)
	res := s.db.Where("author_id = ?", user.ID).Order("id DESC").Find(&recipes)
	if res.Error != nil {
		return nil, res.Error
	}

	entry := FollowedUser{
		User:         user,
		Recipes:      recipes,
		RecipesCount: int64(len(recipes)),
	}
	if recipesLimit != nil && len(entry.Recipes) > *recipesLimit {
		entry.Recipes = entry.Recipes[:*recipesLimit]
	}
	return &entry, nil
}
