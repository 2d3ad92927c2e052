package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Rogue-Bear-Innovations/foodshare-back/internal/config"
)

type (
	GormForkedModel struct {
		ID        uint64 `gorm:"primarykey"`
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	User struct {
		GormForkedModel
		Email     string   `gorm:"unique;not null"`
		Username  string   `gorm:"unique;not null"`
		FirstName string
		LastName  string
		Password  string   `gorm:"not null"`
		Token     string   `gorm:"not null;index"`
		Recipes   []Recipe `gorm:"foreignKey:AuthorID"`
	}

	Tag struct {
		GormForkedModel
		Name  string `gorm:"not null"`
		Color string `gorm:"not null"`
		Slug  string `gorm:"unique;not null"`
	}

	Ingredient struct {
		GormForkedModel
		Name            string `gorm:"not null;uniqueIndex:uidx_ingredient_name_unit"`
		MeasurementUnit string `gorm:"not null;uniqueIndex:uidx_ingredient_name_unit"`
	}

	Recipe struct {
		GormForkedModel
		AuthorID    uint64             `gorm:"not null;index"`
		Author      User               `gorm:"foreignKey:AuthorID"`
		Name        string             `gorm:"not null"`
		Image       string             `gorm:"not null"`
		Text        string             `gorm:"not null"`
		CookingTime int                `gorm:"not null"`
		Tags        []Tag              `gorm:"many2many:recipe_tags;"`
		Ingredients []RecipeIngredient `gorm:"foreignKey:RecipeID"`
	}

	RecipeIngredient struct {
		GormForkedModel
		RecipeID     uint64 `gorm:"not null;uniqueIndex:uidx_recipe_ingredient"`
		IngredientID uint64 `gorm:"not null;uniqueIndex:uidx_recipe_ingredient"`
		Ingredient   Ingredient
		Amount       int `gorm:"not null"`
	}

	Favorite struct {
		GormForkedModel
		UserID   uint64 `gorm:"not null;uniqueIndex:uidx_favorite_user_recipe"`
		RecipeID uint64 `gorm:"not null;uniqueIndex:uidx_favorite_user_recipe"`
		Recipe   Recipe
	}

	CartEntry struct {
		GormForkedModel
		UserID   uint64 `gorm:"not null;uniqueIndex:uidx_cart_user_recipe"`
		RecipeID uint64 `gorm:"not null;uniqueIndex:uidx_cart_user_recipe"`
		Recipe   Recipe
	}

	Follow struct {
		GormForkedModel
		UserID      uint64 `gorm:"not null;uniqueIndex:uidx_follow_pair"`
		FollowingID uint64 `gorm:"not null;uniqueIndex:uidx_follow_pair"`
		Following   User   `gorm:"foreignKey:FollowingID"`
	}
)

// Models returns every persisted model in migration order.
func Models() []interface{} {
	return []interface{}{
		&User{},
		&Tag{},
		&Ingredient{},
		&Recipe{},
		&RecipeIngredient{},
		&Favorite{},
		&CartEntry{},
		&Follow{},
	}
}

func NewGormClient(cfg *config.Config) (*gorm.DB, error) {
	newLogger := logger.New(log.New(os.Stdout, "\r\n", log.LstdFlags), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Info,
		Colorful:                  true,
		IgnoreRecordNotFoundError: false,
	})

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         newLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect database")
	}

	for _, model := range Models() {
		if err := db.AutoMigrate(model); err != nil {
			return nil, errors.Wrapf(err, "migrate %T", model)
		}
	}

	return db, nil
}
