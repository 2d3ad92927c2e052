package service

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Rogue-Bear-Innovations/foodshare-back/internal/db"
)

// Each test gets its own shared-cache in-memory database so gorm's connection
// pool sees one schema per test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(db.Models()...))
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return conn
}

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// passthroughImages keeps recipe payloads as-is so builder tests never touch disk.
type passthroughImages struct{}

func (passthroughImages) Save(payload string) (string, error) {
	return payload, nil
}

func (passthroughImages) Remove(string) error {
	return nil
}

// recordingImages stores payloads under generated names and records removals.
type recordingImages struct {
	saved   []string
	removed []string
}

func (r *recordingImages) Save(payload string) (string, error) {
	name := fmt.Sprintf("stored-%d.png", len(r.saved))
	r.saved = append(r.saved, name)
	return name, nil
}

func (r *recordingImages) Remove(ref string) error {
	r.removed = append(r.removed, ref)
	return nil
}

func newRecipeService(conn *gorm.DB) *RecipeService {
	return NewRecipeService(conn, passthroughImages{}, testLogger())
}

func seedUser(t *testing.T, conn *gorm.DB, username string) *db.User {
	t.Helper()
	user := db.User{
		Email:    username + "@example.com",
		Username: username,
		Password: "hash",
		Token:    "token-" + username,
	}
	require.NoError(t, conn.Create(&user).Error)
	return &user
}

func seedIngredient(t *testing.T, conn *gorm.DB, name, unit string) *db.Ingredient {
	t.Helper()
	ingredient := db.Ingredient{Name: name, MeasurementUnit: unit}
	require.NoError(t, conn.Create(&ingredient).Error)
	return &ingredient
}

func seedTag(t *testing.T, conn *gorm.DB, slug string) *db.Tag {
	t.Helper()
	tag := db.Tag{Name: slug, Color: "#49B64E", Slug: slug}
	require.NoError(t, conn.Create(&tag).Error)
	return &tag
}

func seedRecipe(t *testing.T, conn *gorm.DB, author *db.User, name string, lines map[*db.Ingredient]int) *db.Recipe {
	t.Helper()
	recipe := db.Recipe{
		AuthorID:    author.ID,
		Name:        name,
		Image:       name + ".png",
		Text:        "text",
		CookingTime: 30,
	}
	require.NoError(t, conn.Create(&recipe).Error)
	for ingredient, amount := range lines {
		err := conn.Create(&db.RecipeIngredient{
			RecipeID:     recipe.ID,
			IngredientID: ingredient.ID,
			Amount:       amount,
		}).Error
		require.NoError(t, err)
	}
	return &recipe
}
