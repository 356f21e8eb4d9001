package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMake(t *testing.T) {
	cases := map[string]string{
		"  My Path  ":        "my-path",
		"Foundations":        "foundations",
		"Tajweed   Level 2":  "tajweed-level-2",
		"":                   "",
		" \t Night  Prayers": "night-prayers",
	}
	for input, expected := range cases {
		assert.Equal(t, expected, Make(input), "input %q", input)
	}
}
