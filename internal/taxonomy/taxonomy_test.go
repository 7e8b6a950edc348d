package taxonomy

import (
	"testing"

	"catalog-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestClassifyGame(t *testing.T) {
	cases := map[string]models.Game{
		"pokemon":              models.GamePokemon,
		"Pokemon":              models.GamePokemon,
		"  POKEMON  ":          models.GamePokemon,
		"prismatic_evolutions": models.GamePokemon,
		"Temporal_Forces":      models.GamePokemon,
		"yu-gi-oh":             models.GameYugioh,
		"YuGiOh":               models.GameYugioh,
		"magic-the-gathering":  models.GameMagic,
		"Magic":                models.GameMagic,
		"mtg":                  models.GameMagic,
		"one-piece":            models.GameOther,
		"":                     models.GameOther,
		"\x00\xff":             models.GameOther,
	}

	for raw, want := range cases {
		assert.Equal(t, want, ClassifyGame(raw), "raw=%q", raw)
	}
}

func TestClassifyProductType(t *testing.T) {
	cases := map[string]models.ProductType{
		"booster":           models.ProductTypeBooster,
		"BOOSTER":           models.ProductTypeBooster,
		"sobre":             models.ProductTypeBooster,
		"singles":           models.ProductTypeSingles,
		"bundle":            models.ProductTypeBundle,
		"Elite-Trainer-Box": models.ProductTypeBundle,
		"playmat":           models.ProductTypeOther,
		"":                  models.ProductTypeOther,
	}

	for raw, want := range cases {
		assert.Equal(t, want, ClassifyProductType(raw), "raw=%q", raw)
	}
}

func TestClassifyIsTotal(t *testing.T) {
	inputs := []string{"", " ", "???", "ポケモン", "pokemon pokemon", "booster!", "\n"}
	validGames := []models.Game{models.GamePokemon, models.GameYugioh, models.GameMagic, models.GameOther}
	validTypes := []models.ProductType{models.ProductTypeBooster, models.ProductTypeSingles, models.ProductTypeBundle, models.ProductTypeOther}

	for _, in := range inputs {
		assert.NotPanics(t, func() {
			assert.Contains(t, validGames, ClassifyGame(in))
			assert.Contains(t, validTypes, ClassifyProductType(in))
		})
	}
}

func TestParseGame(t *testing.T) {
	g, ok := ParseGame("Magic")
	assert.True(t, ok)
	assert.Equal(t, models.GameMagic, g)

	_, ok = ParseGame("mtg")
	assert.False(t, ok)

	pt, ok := ParseProductType("bundle")
	assert.True(t, ok)
	assert.Equal(t, models.ProductTypeBundle, pt)

	_, ok = ParseProductType("etb")
	assert.False(t, ok)
}
