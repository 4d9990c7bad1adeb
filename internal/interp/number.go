package interp

import (
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// maxWidth picks the result width for a binary integer operation.
func maxWidth(a, b IntType) IntType {
	out := IntType{Bits: a.Bits, Signed: a.Signed || b.Signed}
	if b.Bits > out.Bits {
		out.Bits = b.Bits
	}
	return out
}

// ArithOp applies an integer operator, widening to the larger operand
// width and signalling overflow.
func ArithOp(op string, a, b Int) (Value, error) {
	t := maxWidth(a.T, b.T)
	if !t.Signed {
		return arithUnsigned(op, a, b, t)
	}
	return arithBig(op, a, b, t)
}

// arithUnsigned is the unsigned fast path on 256-bit machine words, with
// explicit overflow flags.
func arithUnsigned(op string, a, b Int, t IntType) (Value, error) {
	x, overflow := uint256.FromBig(a.X)
	if overflow {
		return nil, TypeErrorf("%s is wider than 256 bits", a.X)
	}
	y, overflow := uint256.FromBig(b.X)
	if overflow {
		return nil, TypeErrorf("%s is wider than 256 bits", b.X)
	}
	z := new(uint256.Int)
	switch op {
	case "+":
		if _, carry := z.AddOverflow(x, y); carry {
			return nil, TypeErrorf("overflow computing %s + %s", a.X, b.X)
		}
	case "-":
		if _, borrow := z.SubOverflow(x, y); borrow {
			return nil, TypeErrorf("underflow computing %s - %s", a.X, b.X)
		}
	case "*":
		if _, over := z.MulOverflow(x, y); over {
			return nil, TypeErrorf("overflow computing %s * %s", a.X, b.X)
		}
	case "/":
		if y.IsZero() {
			return nil, TypeErrorf("division by zero")
		}
		z.Div(x, y)
	case "%":
		if y.IsZero() {
			return nil, TypeErrorf("modulo by zero")
		}
		z.Mod(x, y)
	case "<<":
		if !y.IsUint64() || y.Uint64() > 256 {
			return nil, TypeErrorf("shift amount %s too large", b.X)
		}
		z.Lsh(x, uint(y.Uint64()))
	case ">>":
		if !y.IsUint64() || y.Uint64() > 256 {
			return nil, TypeErrorf("shift amount %s too large", b.X)
		}
		z.Rsh(x, uint(y.Uint64()))
	case "&":
		z.And(x, y)
	case "|":
		z.Or(x, y)
	case "^":
		z.Xor(x, y)
	case "**":
		if x.GtUint64(1) && (!y.IsUint64() || y.Uint64() > 256 ||
			new(big.Int).Exp(a.X, b.X, nil).BitLen() > 256) {
			return nil, TypeErrorf("overflow computing %s ** %s", a.X, b.X)
		}
		z.Exp(x, y)
	default:
		return nil, TypeErrorf("operator %s not supported on integers", op)
	}
	result := z.ToBig()
	if !t.Fits(result) {
		return nil, TypeErrorf("result %s does not fit in %s", result, t)
	}
	return Int{X: result, T: t}, nil
}

// arithBig handles signed operands through big integers.
func arithBig(op string, a, b Int, t IntType) (Value, error) {
	z := new(big.Int)
	switch op {
	case "+":
		z.Add(a.X, b.X)
	case "-":
		z.Sub(a.X, b.X)
	case "*":
		z.Mul(a.X, b.X)
	case "/":
		if b.X.Sign() == 0 {
			return nil, TypeErrorf("division by zero")
		}
		z.Quo(a.X, b.X)
	case "%":
		if b.X.Sign() == 0 {
			return nil, TypeErrorf("modulo by zero")
		}
		z.Rem(a.X, b.X)
	case "&":
		z.And(a.X, b.X)
	case "|":
		z.Or(a.X, b.X)
	case "^":
		z.Xor(a.X, b.X)
	case "<<", ">>":
		if b.X.Sign() < 0 || b.X.BitLen() > 9 {
			return nil, TypeErrorf("shift amount %s too large", b.X)
		}
		if op == "<<" {
			z.Lsh(a.X, uint(b.X.Uint64()))
		} else {
			z.Rsh(a.X, uint(b.X.Uint64()))
		}
	case "**":
		if b.X.Sign() < 0 {
			return nil, TypeErrorf("negative exponent %s", b.X)
		}
		z.Exp(a.X, b.X, nil)
	default:
		return nil, TypeErrorf("operator %s not supported on integers", op)
	}
	if !t.Fits(z) {
		return nil, TypeErrorf("result %s does not fit in %s", z, t)
	}
	return Int{X: z, T: t}, nil
}

// Negate computes -x. Negating an unsigned value produces a signed value
// of the same width.
func Negate(a Int) (Value, error) {
	t := IntType{Bits: a.T.Bits, Signed: true}
	z := new(big.Int).Neg(a.X)
	if !t.Fits(z) {
		return nil, TypeErrorf("result %s does not fit in %s", z, t)
	}
	return Int{X: z, T: t}, nil
}

// ScaledMul computes a*b / 10^decimals with a full-width intermediate.
func ScaledMul(a, b Int, decimals int) (Value, error) {
	t := maxWidth(a.T, b.T)
	z := new(big.Int).Mul(a.X, b.X)
	z.Quo(z, pow10(decimals))
	if !t.Fits(z) {
		return nil, TypeErrorf("result %s does not fit in %s", z, t)
	}
	return Int{X: z, T: t}, nil
}

// ScaledDiv computes a * 10^decimals / b.
func ScaledDiv(a, b Int, decimals int) (Value, error) {
	if b.X.Sign() == 0 {
		return nil, TypeErrorf("division by zero")
	}
	t := maxWidth(a.T, b.T)
	z := new(big.Int).Mul(a.X, pow10(decimals))
	z.Quo(z, b.X)
	if !t.Fits(z) {
		return nil, TypeErrorf("result %s does not fit in %s", z, t)
	}
	return Int{X: z, T: t}, nil
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// ParseNumberLiteral evaluates a decimal literal with an optional base-10
// exponent. A fractional mantissa must cancel against the exponent:
// 2.5e18 is an integer, 2.5 alone is not.
func ParseNumberLiteral(mantissa, exp string) (Value, error) {
	intPart, fracPart, hasFrac := strings.Cut(mantissa, ".")
	e := 0
	if exp != "" {
		parsed, ok := new(big.Int).SetString(exp, 10)
		if !ok || !parsed.IsInt64() || parsed.Int64() > 77 {
			return nil, TypeErrorf("invalid exponent %q", exp)
		}
		e = int(parsed.Int64())
	}
	if hasFrac {
		fracPart = strings.TrimRight(fracPart, "0")
		if len(fracPart) > e {
			return nil, TypeErrorf("%s.%se%d does not round-trip to an integer", intPart, fracPart, e)
		}
		intPart += fracPart
		e -= len(fracPart)
	}
	x, ok := new(big.Int).SetString(intPart, 10)
	if !ok {
		return nil, TypeErrorf("invalid number literal %q", mantissa)
	}
	x.Mul(x, pow10(e))
	return NewUint(x, 256)
}
