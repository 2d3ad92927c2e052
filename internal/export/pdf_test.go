package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rogue-Bear-Innovations/foodshare-back/internal/service"
)

func TestRenderShoppingList(t *testing.T) {
	renderer := NewPDFRenderer()

	blob, err := renderer.Render("Shopping list", []service.ConsolidatedLine{
		{Name: "Flour", MeasurementUnit: "g", TotalAmount: 200},
		{Name: "Sugar", MeasurementUnit: "g", TotalAmount: 150},
	})
	require.NoError(t, err)
	require.NotEmpty(t, blob)
	assert.Equal(t, "%PDF", string(blob[:4]))

	assert.Equal(t, "application/pdf", renderer.ContentType())
	assert.Equal(t, "shopping_cart.pdf", renderer.FileName())
}

func TestRenderEmptyList(t *testing.T) {
	renderer := NewPDFRenderer()

	blob, err := renderer.Render("Shopping list", nil)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(blob[:4]))
}
