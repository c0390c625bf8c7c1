package theme

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUse(t *testing.T) {
	t.Cleanup(func() { Use("default") })

	assert.True(t, Use("mono"))
	assert.Equal(t, Palettes["mono"].Primary, ColorPrimary)

	assert.False(t, Use("solarized"))
	assert.Equal(t, Palettes["default"].Primary, ColorPrimary)
}
