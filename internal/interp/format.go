package interp

import (
	"math/big"
	"strings"
	"unicode/utf8"
)

// FormatValue renders a value for display. Integers are scaled down by
// 10^decimals and printed with at most precision fractional digits,
// trailing zeros trimmed. Fixed bytes are decoded as UTF-8 when possible.
func FormatValue(v Value, decimals, precision int) (string, error) {
	switch val := v.(type) {
	case Int:
		return formatScaled(val.X, decimals, precision), nil
	case Str:
		return string(val), nil
	case FixBytes:
		trimmed := val.B
		if i := indexNul(trimmed); i >= 0 {
			trimmed = trimmed[:i]
		}
		if utf8.Valid(trimmed) && len(trimmed) > 0 {
			return string(trimmed), nil
		}
		return val.String(), nil
	case Bytes:
		if utf8.Valid(val) && len(val) > 0 {
			return string(val), nil
		}
		return val.String(), nil
	}
	return v.String(), nil
}

func indexNul(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return -1
}

func formatScaled(x *big.Int, decimals, precision int) string {
	neg := x.Sign() < 0
	abs := new(big.Int).Abs(x)
	div := pow10(decimals)
	whole, frac := new(big.Int).QuoRem(abs, div, new(big.Int))

	out := whole.String()
	if precision > 0 && frac.Sign() != 0 {
		digits := frac.Text(10)
		digits = strings.Repeat("0", decimals-len(digits)) + digits
		if len(digits) > precision {
			digits = digits[:precision]
		}
		digits = strings.TrimRight(digits, "0")
		if digits != "" {
			out += "." + digits
		}
	}
	if neg && out != "0" {
		out = "-" + out
	}
	return out
}
