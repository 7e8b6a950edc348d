package media

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateObject(t *testing.T) {
	assert.NoError(t, ValidateObject("pokemon/box.png", pngBytes))
	assert.NoError(t, ValidateObject("magic/card.JPEG", pngBytes))

	assert.ErrorIs(t, ValidateObject("pokemon/box.png", nil), ErrEmptyObject)
	assert.ErrorIs(t, ValidateObject("pokemon/box.bmp", pngBytes), ErrUnsupportedFormat)
	assert.ErrorIs(t, ValidateObject("pokemon/box", pngBytes), ErrUnsupportedFormat)

	big := bytes.Repeat([]byte{0}, MaxObjectSize+1)
	assert.ErrorIs(t, ValidateObject("pokemon/box.png", big), ErrObjectTooLarge)
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "pokemon/charizard_vmax_1st_edition.png", ObjectKey("Charizard VMAX (1st Edition)!", "pokemon"))
	assert.Equal(t, "yugioh/pack.png", ObjectKey("pack.png", "YuGiOh"))
	assert.Equal(t, "unnamed_product/unnamed_product.png", ObjectKey("", ""))
}
