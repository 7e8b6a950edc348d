// Package taxonomy maps the free-text vocabulary scrapers use into the closed
// game and product-type enums. Every function here is total: unknown input
// falls back to the Other variant and never fails.
package taxonomy

import (
	"strings"

	"catalog-service/internal/models"
)

var gameSynonyms = map[string]models.Game{
	"pokemon":              models.GamePokemon,
	"pokémon":              models.GamePokemon,
	"pkmn":                 models.GamePokemon,
	"pokemon-tcg":          models.GamePokemon,
	"prismatic_evolutions": models.GamePokemon,
	"twilight_masquerade":  models.GamePokemon,
	"temporal_forces":      models.GamePokemon,
	"surging_sparks":       models.GamePokemon,
	"stellar_crown":        models.GamePokemon,
	"paldean_fates":        models.GamePokemon,
	"obsidian_flames":      models.GamePokemon,
	"scarlet_violet":       models.GamePokemon,
	"yugioh":               models.GameYugioh,
	"yu-gi-oh":             models.GameYugioh,
	"yu-gi-oh!":            models.GameYugioh,
	"yu_gi_oh":             models.GameYugioh,
	"ygo":                  models.GameYugioh,
	"magic":                models.GameMagic,
	"magic-the-gathering":  models.GameMagic,
	"magic_the_gathering":  models.GameMagic,
	"magic the gathering":  models.GameMagic,
	"mtg":                  models.GameMagic,
	"other":                models.GameOther,
}

var productTypeSynonyms = map[string]models.ProductType{
	"booster":           models.ProductTypeBooster,
	"boosters":          models.ProductTypeBooster,
	"booster-pack":      models.ProductTypeBooster,
	"booster_pack":      models.ProductTypeBooster,
	"sobre":             models.ProductTypeBooster,
	"sobres":            models.ProductTypeBooster,
	"singles":           models.ProductTypeSingles,
	"single":            models.ProductTypeSingles,
	"carta":             models.ProductTypeSingles,
	"cartas":            models.ProductTypeSingles,
	"bundle":            models.ProductTypeBundle,
	"bundles":           models.ProductTypeBundle,
	"box":               models.ProductTypeBundle,
	"etb":               models.ProductTypeBundle,
	"elite-trainer-box": models.ProductTypeBundle,
	"elite_trainer_box": models.ProductTypeBundle,
	"other":             models.ProductTypeOther,
}

func normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ClassifyGame maps a raw game label to a Game, defaulting to GameOther.
func ClassifyGame(raw string) models.Game {
	if g, ok := gameSynonyms[normalize(raw)]; ok {
		return g
	}
	return models.GameOther
}

// ClassifyProductType maps a raw product-type label to a ProductType,
// defaulting to ProductTypeOther.
func ClassifyProductType(raw string) models.ProductType {
	if pt, ok := productTypeSynonyms[normalize(raw)]; ok {
		return pt
	}
	return models.ProductTypeOther
}

// ParseGame accepts only the canonical enum values.
func ParseGame(raw string) (models.Game, bool) {
	switch g := models.Game(normalize(raw)); g {
	case models.GamePokemon, models.GameYugioh, models.GameMagic, models.GameOther:
		return g, true
	}
	return "", false
}

// ParseProductType accepts only the canonical enum values.
func ParseProductType(raw string) (models.ProductType, bool) {
	switch pt := models.ProductType(normalize(raw)); pt {
	case models.ProductTypeBooster, models.ProductTypeSingles, models.ProductTypeBundle, models.ProductTypeOther:
		return pt, true
	}
	return "", false
}
