package tron

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHexToBase58(t *testing.T) {
	got, err := HexToBase58("41a614f803b6fd780986a42c78ec9c7f77e6ded13c")
	require.NoError(t, err)
	assert.Equal(t, "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t", got)

	got, err = HexToBase58("0x41a614f803b6fd780986a42c78ec9c7f77e6ded13c")
	require.NoError(t, err)
	assert.Equal(t, "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t", got)
}

func TestHexToBase58_Invalid(t *testing.T) {
	for _, in := range []string{"zz", "41a614", "42a614f803b6fd780986a42c78ec9c7f77e6ded13c"} {
		_, err := HexToBase58(in)
		assert.Error(t, err, in)
	}
}

func TestBase58ToHex(t *testing.T) {
	got, err := Base58ToHex("TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t")
	require.NoError(t, err)
	assert.Equal(t, "41a614f803b6fd780986a42c78ec9c7f77e6ded13c", got)

	_, err = Base58ToHex("TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6u")
	assert.Error(t, err)
}

func TestToBase58(t *testing.T) {
	assert.Equal(t, "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t", ToBase58("41a614f803b6fd780986a42c78ec9c7f77e6ded13c"))
	assert.Equal(t, "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t", ToBase58("TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"))
	assert.Equal(t, "", ToBase58(""))
	assert.Equal(t, "garbage", ToBase58("garbage"))
}
