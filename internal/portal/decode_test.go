package portal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePlainASCIIUnchanged(t *testing.T) {
	for _, in := range []string{"", "HomeNetwork", "pass word 123", "a-b_c.d~e"} {
		got, err := DecodeFormValue(in)
		require.NoError(t, err)
		assert.Equal(t, in, got)
	}
}

func TestDecodePercentAndPlus(t *testing.T) {
	got, err := DecodeFormValue("My+Home%20Net")
	require.NoError(t, err)
	assert.Equal(t, "My Home Net", got)

	got, err = DecodeFormValue("p%40ss%2Bword")
	require.NoError(t, err)
	assert.Equal(t, "p@ss+word", got)
}

func TestDecodeNumericEntities(t *testing.T) {
	got, err := DecodeFormValue("Caf&#233;")
	require.NoError(t, err)
	assert.Equal(t, "Café", got)

	got, err = DecodeFormValue("Caf&#xE9;")
	require.NoError(t, err)
	assert.Equal(t, "Café", got)
}

func TestDecodeBothPasses(t *testing.T) {
	// A browser may percent-encode the entity's own characters.
	got, err := DecodeFormValue("Caf%26%23233%3B+Wifi")
	require.NoError(t, err)
	assert.Equal(t, "Café Wifi", got)
}

func TestDecodeMalformedEntityLeftLiteral(t *testing.T) {
	got, err := DecodeFormValue("a&#zz;b")
	require.NoError(t, err)
	assert.Equal(t, "a&#zz;b", got)

	got, err = DecodeFormValue("tail&#12")
	require.NoError(t, err)
	assert.Equal(t, "tail&#12", got)
}

func TestDecodeBadPercentSequence(t *testing.T) {
	_, err := DecodeFormValue("bad%zz")
	assert.Error(t, err)
}
