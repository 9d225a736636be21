package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "spiderman homecoming", Key("Spider-Man: Homecoming"))
	assert.Equal(t, "amelie", Key("Amélie"))
	assert.Equal(t, "john wick", Key("  John   Wick:  "))
	assert.Equal(t, "", Key(":: --"))
}

func TestFold(t *testing.T) {
	f := NewFolder()
	assert.Equal(t, f.Fold("The MATRIX"), f.Fold("the matrix"))
}

func TestNormalizeCapitalization(t *testing.T) {
	assert.Equal(t, "John Wick", NormalizeCapitalization("john wick"))
	assert.Equal(t, "John Wick", NormalizeCapitalization("JOHN WICK"))
	assert.Equal(t, "McQueen Saga", NormalizeCapitalization("McQueen Saga"))
}
