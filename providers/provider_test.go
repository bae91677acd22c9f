package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDOI(t *testing.T) {
	assert.Equal(t, "10.1000/abc", NormalizeDOI(" https://doi.org/10.1000/ABC "))
	assert.Equal(t, "10.1000/abc", NormalizeDOI("doi:10.1000/abc"))
	assert.Equal(t, "10.1000/abc", NormalizeDOI("https://dx.doi.org/10.1000/abc"))
	assert.Equal(t, "", NormalizeDOI("   "))
}
