package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "a", FirstNonEmpty("a", "b"))
	assert.Equal(t, "b", FirstNonEmpty("", "b"))
	assert.Equal(t, "", FirstNonEmpty("", ""))
}

func TestSplitByMultipleDelimiters(t *testing.T) {
	input := "a,b;c"
	delimiters := []string{",", ";"}
	assert.Equal(t, []string{"a", "b", "c"}, SplitByMultipleDelimiters(input, delimiters...))
	assert.Equal(t, []string{"a", "b=c"}, SplitByMultipleDelimiters("a,b=c", delimiters...))
	assert.Equal(t, []string{"a"}, SplitByMultipleDelimiters("a", delimiters...))
	assert.Equal(t, []string{"a,b"}, SplitByMultipleDelimiters("a,b"))
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"MET":                    "met",
		"  Metro General  ":      "metro-general",
		"São Luís / Ala Norte":   "sao-luis-ala-norte",
		"RIV--01":                "riv-01",
		"Ünïcödé Hospital #4":    "unicode-hospital-4",
		"---":                    "",
		"":                       "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), "input %q", in)
	}
}
