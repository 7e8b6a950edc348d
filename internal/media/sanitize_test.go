package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Charizard VMAX (1st Edition)!", "charizard_vmax_1st_edition"},
		{"", "unnamed_product"},
		{"   ", "unnamed_product"},
		{"!!!", "unnamed_product"},
		{"Pokémon", "pokemon"},
		{"Yu-Gi-Oh! Booster", "yu-gi-oh_booster"},
		{"Magic: The Gathering", "magic_the_gathering"},
		{"Sword & Shield", "sword_and_shield"},
		{"Line\nbreak", "line_break"},
		{"A / B", "a_b"},
		{"__x__", "x"},
		{"Set [Promo] {JP}", "set_promo_jp"},
		{"Vol. 2", "vol._2"},
		{"Ñandú 日本", "nandu"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.in))
		})
	}
}
