package service

import (
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Rogue-Bear-Innovations/foodshare-back/internal/db"
)

// Bounds enforced by the recipe builder before anything is written.
const (
	MinCookingTime = 1
	MaxCookingTime = 1000

	MinIngredientCount = 1
	MaxIngredientCount = 20

	MinIngredientAmount = 1
	MaxIngredientAmount = 10000
)

// ImageStore persists an uploaded image payload and returns a stored reference.
// Payloads that already are stored references pass through unchanged.
type ImageStore interface {
	Save(payload string) (string, error)
	Remove(ref string) error
}

type RecipeService struct {
	db     *gorm.DB
	images ImageStore
	logger *zap.SugaredLogger
}

func NewRecipeService(db *gorm.DB, images ImageStore, l *zap.SugaredLogger) *RecipeService {
	return &RecipeService{
		db:     db,
		images: images,
		logger: l,
	}
}

type (
	IngredientLine struct {
		IngredientID uint64
		Amount       int
	}

	RecipeCreate struct {
		Name        string
		Text        string
		Image       string
		CookingTime int
		TagIDs      []uint64
		Ingredients []IngredientLine
	}

	// RecipeUpdate carries partial header fields. A nil Ingredients or TagIDs slice
	// leaves the stored collection untouched; a present slice replaces it wholesale.
	RecipeUpdate struct {
		Name        *string
		Text        *string
		Image       *string
		CookingTime *int
		TagIDs      []uint64
		Ingredients []IngredientLine
	}

	RecipeFilter struct {
		AuthorID       *uint64
		TagSlugs       []string
		Favorited      bool
		InShoppingCart bool
		ViewerID       *uint64
	}

	RecipeView struct {
		Recipe           db.Recipe
		IsFavorited      bool
		IsInShoppingCart bool
	}
)

func validateCookingTime(v int) error {
	if v < MinCookingTime || v > MaxCookingTime {
		return &ValidationError{
			Field:  "cooking_time",
			Detail: fmt.Sprintf("must be between %d and %d minutes", MinCookingTime, MaxCookingTime),
		}
	}
	return nil
}

func validateIngredientLines(lines []IngredientLine) error {
	if len(lines) < MinIngredientCount || len(lines) > MaxIngredientCount {
		return &ValidationError{
			Field:  "ingredients",
			Detail: fmt.Sprintf("count must be between %d and %d", MinIngredientCount, MaxIngredientCount),
		}
	}
	seen := make(map[uint64]struct{}, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.IngredientID]; ok {
			return &ValidationError{
				Field:  "ingredients",
				Detail: fmt.Sprintf("ingredient %d is listed more than once", line.IngredientID),
			}
		}
		seen[line.IngredientID] = struct{}{}
		if line.Amount < MinIngredientAmount || line.Amount > MaxIngredientAmount {
			return &ValidationError{
				Field:  "amount",
				Detail: fmt.Sprintf("must be between %d and %d", MinIngredientAmount, MaxIngredientAmount),
			}
		}
	}
	return nil
}

// Create validates the whole aggregate up front and then persists the header, the
// ingredient lines and the tag links in a single transaction.
func (s *RecipeService) Create(author *db.User, req RecipeCreate) (*db.Recipe, error) {
	if err := validateCookingTime(req.CookingTime); err != nil {
		return nil, err
	}
	if err := validateIngredientLines(req.Ingredients); err != nil {
		return nil, err
	}

	image, err := s.images.Save(req.Image)
	if err != nil {
		return nil, errors.Wrap(err, "store image")
	}

	model := db.Recipe{
		AuthorID:    author.ID,
		Name:        req.Name,
		Image:       image,
		Text:        req.Text,
		CookingTime: req.CookingTime,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		if err := createLines(tx, model.ID, req.Ingredients); err != nil {
			return err
		}
		return replaceTags(tx, &model, req.TagIDs)
	})
	if err != nil {
		s.discardImage(image, req.Image)
		return nil, err
	}

	return s.load(model.ID)
}

// Update applies partial header changes. Ingredient lines and tags are replaced
// wholesale when present in the request and preserved when absent.
func (s *RecipeService) Update(recipeID uint64, author *db.User, req RecipeUpdate) (*db.Recipe, error) {
	model := db.Recipe{}
	if res := s.db.First(&model, recipeID); res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, res.Error
	}
	if model.AuthorID != author.ID {
		return nil, ErrPermission
	}

	if req.CookingTime != nil {
		if err := validateCookingTime(*req.CookingTime); err != nil {
			return nil, err
		}
	}
	if req.Ingredients != nil {
		if err := validateIngredientLines(req.Ingredients); err != nil {
			return nil, err
		}
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Text != nil {
		updates["text"] = *req.Text
	}
	if req.CookingTime != nil {
		updates["cooking_time"] = *req.CookingTime
	}
	image := ""
	if req.Image != nil {
		var err error
		image, err = s.images.Save(*req.Image)
		if err != nil {
			return nil, errors.Wrap(err, "store image")
		}
		updates["image"] = image
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if len(updates) != 0 {
			if err := tx.Model(&model).Updates(updates).Error; err != nil {
				return err
			}
		}
		if req.Ingredients != nil {
			if err := tx.Where("recipe_id = ?", model.ID).Delete(&db.RecipeIngredient{}).Error; err != nil {
				return err
			}
			if err := createLines(tx, model.ID, req.Ingredients); err != nil {
				return err
			}
		}
		if req.TagIDs != nil {
			return replaceTags(tx, &model, req.TagIDs)
		}
		return nil
	})
	if err != nil {
		if req.Image != nil {
			s.discardImage(image, *req.Image)
		}
		return nil, err
	}

	return s.load(model.ID)
}

// discardImage drops a file stored for a transaction that did not commit.
// A ref equal to its payload was passed through and is owned by an earlier write.
func (s *RecipeService) discardImage(ref, payload string) {
	if ref == payload {
		return
	}
	if err := s.images.Remove(ref); err != nil {
		s.logger.Errorw("remove unused image", "image", ref, "error", err)
	}
}

func (s *RecipeService) Delete(recipeID uint64, author *db.User) error {
	model := db.Recipe{}
	if res := s.db.First(&model, recipeID); res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return res.Error
	}
	if model.AuthorID != author.ID {
		return ErrPermission
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("recipe_id = ?", model.ID).Delete(&db.RecipeIngredient{}).Error; err != nil {
			return err
		}
		if err := tx.Where("recipe_id = ?", model.ID).Delete(&db.Favorite{}).Error; err != nil {
			return err
		}
		if err := tx.Where("recipe_id = ?", model.ID).Delete(&db.CartEntry{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&model).Association("Tags").Clear(); err != nil {
			return err
		}
		return tx.Delete(&model).Error
	})
}

func (s *RecipeService) Get(recipeID uint64, viewerID *uint64) (*RecipeView, error) {
	model, err := s.load(recipeID)
	if err != nil {
		return nil, err
	}
	views, err := s.withMembershipFlags([]db.Recipe{*model}, viewerID)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// List materializes the recipes matching the filter, newest first.
func (s *RecipeService) List(f RecipeFilter) ([]RecipeView, error) {
	b := squirrel.Select("r.id").From("recipes r").OrderBy("r.id DESC")
	if f.AuthorID != nil {
		b = b.Where(squirrel.Eq{"r.author_id": *f.AuthorID})
	}
	if len(f.TagSlugs) != 0 {
		b = b.Distinct().
			Join("recipe_tags rt ON rt.recipe_id = r.id").
			Join("tags t ON t.id = rt.tag_id").
			Where(squirrel.Eq{"t.slug": f.TagSlugs})
	}
	if f.Favorited && f.ViewerID != nil {
		b = b.Join("favorites fav ON fav.recipe_id = r.id").
			Where(squirrel.Eq{"fav.user_id": *f.ViewerID})
	}
	if f.InShoppingCart && f.ViewerID != nil {
		b = b.Join("cart_entries cart ON cart.recipe_id = r.id").
			Where(squirrel.Eq{"cart.user_id": *f.ViewerID})
	}

	sql, args, err := b.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build sql")
	}

	ids := make([]uint64, 0)
	if res := s.db.Raw(sql, args...).Scan(&ids); res.Error != nil {
		return nil, errors.Wrap(res.Error, "scan")
	}
	if len(ids) == 0 {
		return []RecipeView{}, nil
	}

	recipes := make([]db.Recipe, 0, len(ids))
	res := s.preloaded().Where("id IN ?", ids).Order("id DESC").Find(&recipes)
	if res.Error != nil {
		return nil, res.Error
	}

	return s.withMembershipFlags(recipes, f.ViewerID)
}

func (s *RecipeService) load(recipeID uint64) (*db.Recipe, error) {
	model := db.Recipe{}
	res := s.preloaded().First(&model, recipeID)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, res.Error
	}
	return &model, nil
}

func (s *RecipeService) preloaded() *gorm.DB {
	return s.db.
		Preload("Author").
		Preload("Tags").
		Preload("Ingredients", func(tx *gorm.DB) *gorm.DB { return tx.Order("recipe_ingredients.id") }).
		Preload("Ingredients.Ingredient")
}

func (s *RecipeService) withMembershipFlags(recipes []db.Recipe, viewerID *uint64) ([]RecipeView, error) {
	views := make([]RecipeView, len(recipes))
	for i := range recipes {
		views[i] = RecipeView{Recipe: recipes[i]}
	}
	if viewerID == nil || len(recipes) == 0 {
		return views, nil
	}

	ids := make([]uint64, len(recipes))
	for i := range recipes {
		ids[i] = recipes[i].ID
	}

	favorited, err := membershipSet(s.db, &db.Favorite{}, *viewerID, ids)
	if err != nil {
		return nil, err
	}
	inCart, err := membershipSet(s.db, &db.CartEntry{}, *viewerID, ids)
	if err != nil {
		return nil, err
	}

	for i := range views {
		_, views[i].IsFavorited = favorited[views[i].Recipe.ID]
		_, views[i].IsInShoppingCart = inCart[views[i].Recipe.ID]
	}
	return views, nil
}

func membershipSet(conn *gorm.DB, model interface{}, userID uint64, recipeIDs []uint64) (map[uint64]struct{}, error) {
	ids := make([]uint64, 0)
	res := conn.Model(model).
		Where("user_id = ? AND recipe_id IN ?", userID, recipeIDs).
		Pluck("recipe_id", &ids)
	if res.Error != nil {
		return nil, res.Error
	}
	set := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func createLines(tx *gorm.DB, recipeID uint64, lines []IngredientLine) error {
	for _, line := range lines {
		ingredient := db.Ingredient{}
		if res := tx.First(&ingredient, line.IngredientID); res.Error != nil {
			if errors.Is(res.Error, gorm.ErrRecordNotFound) {
				return &ValidationError{
					Field:  "ingredients",
					Detail: fmt.Sprintf("ingredient %d does not exist", line.IngredientID),
				}
			}
			return res.Error
		}
		err := tx.Create(&db.RecipeIngredient{
			RecipeID:     recipeID,
			IngredientID: ingredient.ID,
			Amount:       line.Amount,
		}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func replaceTags(tx *gorm.DB, model *db.Recipe, tagIDs []uint64) error {
	tags := make([]db.Tag, 0, len(tagIDs))
	if len(tagIDs) != 0 {
		if res := tx.Find(&tags, tagIDs); res.Error != nil {
			return res.Error
		}
		if len(tags) != len(tagIDs) {
			return &ValidationError{Field: "tags", Detail: "unknown tag id"}
		}
	}
	return tx.Model(model).Association("Tags").Replace(tags)
}
