package interp

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumberLiteral(t *testing.T) {
	tests := []struct {
		name     string
		mantissa string
		exp      string
		want     string
		wantErr  bool
	}{
		{name: "plain", mantissa: "42", want: "42"},
		{name: "scientific", mantissa: "2", exp: "18", want: "2000000000000000000"},
		{name: "fractional cancels", mantissa: "2.5", exp: "18", want: "2500000000000000000"},
		{name: "long fraction", mantissa: "2.54321", exp: "18", want: "2543210000000000000"},
		{name: "trailing zeros trimmed", mantissa: "2.500", exp: "2", want: "250"},
		{name: "fraction does not cancel", mantissa: "2.5", wantErr: true},
		{name: "fraction longer than exponent", mantissa: "1.234", exp: "2", wantErr: true},
		{name: "exponent too large", mantissa: "1", exp: "100", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseNumberLiteral(tt.mantissa, tt.exp)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.String())
		})
	}
}

func TestArithOpWidening(t *testing.T) {
	a, err := NewUint(big.NewInt(3), 8)
	require.NoError(t, err)
	b, err := NewUint(big.NewInt(4), 32)
	require.NoError(t, err)

	v, err := ArithOp("+", a, b)
	require.NoError(t, err)
	assert.Equal(t, IntType{Bits: 32}, v.(Int).T)

	// Signedness is contagious.
	c, err := NewInt(big.NewInt(-1), 16)
	require.NoError(t, err)
	v, err = ArithOp("+", a, c)
	require.NoError(t, err)
	assert.Equal(t, IntType{Bits: 16, Signed: true}, v.(Int).T)
	assert.Equal(t, "2", v.String())
}

func TestArithOpOverflow(t *testing.T) {
	max := IntType{Bits: 256}.Max()
	a, err := NewUint(max, 256)
	require.NoError(t, err)
	one, err := NewUint(big.NewInt(1), 256)
	require.NoError(t, err)

	_, err = ArithOp("+", a, one)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overflow")

	_, err = ArithOp("*", a, a)
	require.Error(t, err)
}

func TestNegate(t *testing.T) {
	a, err := NewUint(big.NewInt(5), 256)
	require.NoError(t, err)
	v, err := Negate(a)
	require.NoError(t, err)
	neg := v.(Int)
	assert.True(t, neg.T.Signed)
	assert.Equal(t, "-5", neg.String())

	// Negating uint256 2^255 reaches the most negative int256, whose
	// magnitude int256 itself cannot hold.
	huge, err := NewUint(new(big.Int).Lsh(big.NewInt(1), 255), 256)
	require.NoError(t, err)
	v, err = Negate(huge)
	require.NoError(t, err)
	assert.Equal(t, IntType{Bits: 256, Signed: true}.Min(), v.(Int).X)
}

func TestScaled(t *testing.T) {
	wad := func(n int64) Int {
		v, err := NewUint(new(big.Int).Mul(big.NewInt(n), pow10(18)), 256)
		require.NoError(t, err)
		return v
	}

	v, err := ScaledMul(wad(2), wad(3), 18)
	require.NoError(t, err)
	assert.Equal(t, wad(6).X, v.(Int).X)

	v, err = ScaledDiv(wad(6), wad(3), 18)
	require.NoError(t, err)
	assert.Equal(t, wad(2).X, v.(Int).X)

	_, err = ScaledDiv(wad(1), Int{X: new(big.Int), T: IntType{Bits: 256}}, 18)
	require.Error(t, err)
}

func TestIntTypeBounds(t *testing.T) {
	assert.Equal(t, "255", IntType{Bits: 8}.Max().String())
	assert.Equal(t, "0", IntType{Bits: 8}.Min().String())
	assert.Equal(t, "127", IntType{Bits: 8, Signed: true}.Max().String())
	assert.Equal(t, "-128", IntType{Bits: 8, Signed: true}.Min().String())
}
