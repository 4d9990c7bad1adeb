package interp

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want string
	}{
		{"addition", "1 + 2", "3"},
		{"widening", "uint8(1) + uint16(2)", "3"},
		{"scientific literal", "2e18", "2000000000000000000"},
		{"fractional scientific", "2.5e18", "2500000000000000000"},
		{"hex arithmetic via cast", "uint256(0x10) * 2", "32"},
		{"shift", "1 << 8", "256"},
		{"bitwise", "12 & 10", "8"},
		{"modulo", "7 % 3", "1"},
		{"power", "2 ** 10", "1024"},
		{"precedence", "1 + 2 * 3", "7"},
		{"parens", "(1 + 2) * 3", "9"},
		{"string concat", `"foo" + "bar"`, `"foobar"`},
		{"ternary", "true ? 1 : 2", "1"},
		{"comparison", "2 < 3", "true"},
		{"short circuit and", "false && (1 / 0 == 0)", "false"},
		{"short circuit or", "true || (1 / 0 == 0)", "true"},
		{"negation", "-5", "-5"},
		{"unary not", "!false", "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip, _ := newTestInterp()
			v, err := ip.EvalLine(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.String())
		})
	}
}

func TestArithmeticErrors(t *testing.T) {
	tests := []struct {
		name string
		expr string
		msg  string
	}{
		{"add int and string", `1 + "foo"`, "cannot add uint256 and string"},
		{"division by zero", "1 / 0", "division by zero"},
		{"uint8 overflow", "uint8(255) + uint8(1)", "does not fit in uint8"},
		{"unsigned underflow", "uint256(1) - uint256(2)", "underflow"},
		{"out of range cast", "uint8(256)", "out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip, _ := newTestInterp()
			_, err := ip.EvalLine(tt.expr)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestKeccak256(t *testing.T) {
	ip, _ := newTestInterp()
	v, err := ip.EvalLine(`keccak256("hello")`)
	require.NoError(t, err)
	assert.Equal(t, "0x1c8aff950685c2ed4bc3174f3472287b56d9517b9c948127319a09a7a36deac8", v.String())
}

func TestLastResult(t *testing.T) {
	ip, _ := newTestInterp()

	// Reading _ before any evaluation yields null.
	v, err := ip.EvalLine("_")
	require.NoError(t, err)
	assert.Equal(t, KindNull, v.Kind())

	_, err = ip.EvalLine("1 + 2")
	require.NoError(t, err)
	v, err = ip.EvalLine("_")
	require.NoError(t, err)
	assert.Equal(t, "3", v.String())

	// Statements that produce null leave _ alone.
	_, err = ip.EvalLine("uint256 y = 5")
	require.NoError(t, err)
	v, err = ip.EvalLine("_")
	require.NoError(t, err)
	assert.Equal(t, "3", v.String())
}

func TestScoping(t *testing.T) {
	t.Run("loop body shares enclosing scope", func(t *testing.T) {
		ip, _ := newTestInterp()
		v, err := evalAll(ip,
			"for (i = 0; i < 3; i = i + 1) { x = i; }",
			"x",
		)
		require.NoError(t, err)
		assert.Equal(t, "2", v.String())
	})

	t.Run("if body shares enclosing scope", func(t *testing.T) {
		ip, _ := newTestInterp()
		v, err := evalAll(ip,
			"if (true) { y = 42; }",
			"y",
		)
		require.NoError(t, err)
		assert.Equal(t, "42", v.String())
	})

	t.Run("function body has its own scope", func(t *testing.T) {
		ip, _ := newTestInterp()
		_, err := evalAll(ip,
			"function f() { y = 1; }",
			"f()",
		)
		require.NoError(t, err)
		_, err = ip.EvalLine("y")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "y is not defined")
	})

	t.Run("assignment updates nearest enclosing binding", func(t *testing.T) {
		ip, _ := newTestInterp()
		v, err := evalAll(ip,
			"counter = 0",
			"function bump() { counter = counter + 1; }",
			"bump()",
			"bump()",
			"counter",
		)
		require.NoError(t, err)
		assert.Equal(t, "2", v.String())
	})
}

func TestUserFunctions(t *testing.T) {
	t.Run("map with named function", func(t *testing.T) {
		ip, _ := newTestInterp()
		v, err := evalAll(ip,
			"function double(x) { return x*2; }",
			"[1,2,3].map(double)",
		)
		require.NoError(t, err)
		assert.Equal(t, "[2, 4, 6]", v.String())
	})

	t.Run("map with lambda", func(t *testing.T) {
		ip, _ := newTestInterp()
		v, err := ip.EvalLine("[1,2,3].map(x => x + 1)")
		require.NoError(t, err)
		assert.Equal(t, "[2, 3, 4]", v.String())
	})

	t.Run("filter and reduce", func(t *testing.T) {
		ip, _ := newTestInterp()
		v, err := ip.EvalLine("[1,2,3,4].filter(x => x % 2 == 0).reduce((a, b) => a + b)")
		require.NoError(t, err)
		assert.Equal(t, "6", v.String())
	})

	t.Run("reduce with initial value", func(t *testing.T) {
		ip, _ := newTestInterp()
		v, err := ip.EvalLine("[1,2,3].reduce((a, b) => a + b, 10)")
		require.NoError(t, err)
		assert.Equal(t, "16", v.String())
	})

	t.Run("recursion", func(t *testing.T) {
		ip, _ := newTestInterp()
		v, err := evalAll(ip,
			"function fib(n) { if (n < 2) { return n; } return fib(n - 1) + fib(n - 2); }",
			"fib(10)",
		)
		require.NoError(t, err)
		assert.Equal(t, "55", v.String())
	})

	t.Run("arity mismatch", func(t *testing.T) {
		ip, _ := newTestInterp()
		_, err := evalAll(ip,
			"function f(a, b) { return a; }",
			"f(1)",
		)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expects 2 arguments")
	})
}

func TestCollections(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want string
	}{
		{"negative index", "[10, 20, 30][-1]", "30"},
		{"index", "[10, 20, 30][1]", "20"},
		{"length", "[1, 2, 3].length", "3"},
		{"concat", "[1, 2].concat([3])", "[1, 2, 3]"},
		{"slice", "[1, 2, 3, 4][1:3]", "[2, 3]"},
		{"negative slice", "[1, 2, 3, 4][-2:]", "[3, 4]"},
		{"tuple index", "(1, true, \"a\")[1]", "true"},
		{"tuple length", "(1, 2).length", "2"},
		{"tuple map returns array", "(1, 2, 3).map(x => x * 2)", "[2, 4, 6]"},
		{"string index", `"hello"[1]`, `"e"`},
		{"string slice", `"hello"[1:3]`, `"el"`},
		{"bytes index", "bytes(0x010203)[0]", "0x01"},
		{"bytes slice negative", "bytes(0x01020304)[-2:]", "0x0304"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip, _ := newTestInterp()
			v, err := ip.EvalLine(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.String())
		})
	}
}

func TestAssignment(t *testing.T) {
	t.Run("rebinding changes type", func(t *testing.T) {
		ip, _ := newTestInterp()
		v, err := evalAll(ip, "x = 1", `x = "now a string"`, "x")
		require.NoError(t, err)
		assert.Equal(t, `"now a string"`, v.String())
	})

	t.Run("tuple destructuring", func(t *testing.T) {
		ip, _ := newTestInterp()
		v, err := evalAll(ip, "(a, b) = (1, 2)", "a + b")
		require.NoError(t, err)
		assert.Equal(t, "3", v.String())
	})

	t.Run("destructuring arity mismatch", func(t *testing.T) {
		ip, _ := newTestInterp()
		_, err := ip.EvalLine("(a, b) = (1, 2, 3)")
		require.Error(t, err)
	})

	t.Run("compound assignment", func(t *testing.T) {
		ip, _ := newTestInterp()
		v, err := evalAll(ip, "x = 10", "x += 5", "x")
		require.NoError(t, err)
		assert.Equal(t, "15", v.String())
	})

	t.Run("typed declaration casts", func(t *testing.T) {
		ip, _ := newTestInterp()
		v, err := evalAll(ip, "uint8 x = 200", "type(x)")
		require.NoError(t, err)
		assert.Equal(t, "uint8", v.String())
	})
}

func TestTypes(t *testing.T) {
	t.Run("type of literal", func(t *testing.T) {
		ip, _ := newTestInterp()
		v, err := ip.EvalLine("type(1)")
		require.NoError(t, err)
		assert.Equal(t, "uint256", v.String())
	})

	t.Run("type of a type is the meta type", func(t *testing.T) {
		ip, _ := newTestInterp()
		v, err := ip.EvalLine("type(uint8)")
		require.NoError(t, err)
		assert.Equal(t, "type(uint8)", v.String())
	})

	t.Run("type idempotence pin", func(t *testing.T) {
		ip, _ := newTestInterp()
		v, err := ip.EvalLine("type(type(uint8)) == type(Type)")
		require.NoError(t, err)
		assert.Equal(t, "true", v.String())
	})

	t.Run("max and min", func(t *testing.T) {
		ip, _ := newTestInterp()
		v, err := ip.EvalLine("type(uint8).max")
		require.NoError(t, err)
		assert.Equal(t, "255", v.String())

		v, err = ip.EvalLine("type(int8).min")
		require.NoError(t, err)
		assert.Equal(t, "-128", v.String())

		v, err = ip.EvalLine("type(uint256).max")
		require.NoError(t, err)
		want := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
		assert.Equal(t, want.String(), v.String())
	})

	t.Run("casts", func(t *testing.T) {
		tests := []struct {
			expr string
			want string
		}{
			{"uint8(200)", "200"},
			{"int256(-1)", "-1"},
			{"bytes4(0x01020304)", "0x01020304"},
			// Widening left-pads, narrowing left-truncates.
			{"bytes8(0x01020304)", "0x0000000001020304"},
			{"bytes2(0x01020304)", "0x0304"},
			{"bytes32(1)", "0x0000000000000000000000000000000000000000000000000000000000000001"},
			{"address(0x0000000000000000000000000000000000000001)", "0x0000000000000000000000000000000000000001"},
			{"string(bytes(0x68656c6c6f))", `"hello"`},
			{"uint256(bytes32(0x0000000000000000000000000000000000000000000000000000000000000005))", "5"},
		}
		for _, tt := range tests {
			ip, _ := newTestInterp()
			v, err := ip.EvalLine(tt.expr)
			require.NoError(t, err, tt.expr)
			assert.Equal(t, tt.want, v.String(), tt.expr)
		}
	})
}

func TestEquality(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want string
	}{
		{"int fixbytes coercion", "uint256(5) == bytes32(0x0000000000000000000000000000000000000000000000000000000000000005)", "true"},
		{"address fixbytes coercion", "0x0000000000000000000000000000000000000001 == bytes20(0x0000000000000000000000000000000000000001)", "true"},
		{"heterogeneous false", `1 == "1"`, "false"},
		{"array equality", "[1, 2] == [1, 2]", "true"},
		{"tuple equality", "(1, 2) == (1, 2)", "true"},
		{"signed unsigned cross", "int256(1) == uint256(1)", "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip, _ := newTestInterp()
			v, err := ip.EvalLine(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.String())
		})
	}
}

func TestScaledArithmetic(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want string
	}{
		{"mul default decimals", "2e18.mul(3e18)", "6000000000000000000"},
		{"mul explicit decimals", "2e6.mul(3e6, 6)", "6000000"},
		{"div default decimals", "6e18.div(3e18)", "2000000000000000000"},
		{"div explicit decimals", "6e6.div(3e6, 6)", "2000000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip, _ := newTestInterp()
			v, err := ip.EvalLine(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.String())
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want string
	}{
		{"default", "format(2.54321e18)", `"2.54"`},
		{"explicit precision", "format(2.54321e18, 18, 3)", `"2.543"`},
		{"whole number", "format(2e18)", `"2"`},
		{"six decimals", "format(1234567, 6)", `"1.23"`},
		{"string idempotence", `format(format("abc")) == format("abc")`, "true"},
		{"fixed bytes utf8", "format(bytes32(0x6865790000000000000000000000000000000000000000000000000000000000))", `"hey"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip, _ := newTestInterp()
			v, err := ip.EvalLine(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.String())
		})
	}
}

func TestHexLiterals(t *testing.T) {
	t.Run("forty nibbles parse as address", func(t *testing.T) {
		ip, _ := newTestInterp()
		v, err := ip.EvalLine("0x789f8F7B547183Ab8E99A5e0E6D567E90e0EB03B")
		require.NoError(t, err)
		assert.Equal(t, KindAddress, v.Kind())
	})

	t.Run("bad checksum rejected", func(t *testing.T) {
		ip, _ := newTestInterp()
		_, err := ip.EvalLine("0x789f8F7B547183Ab8E99A5e0E6D567E90e0EB03b")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "checksum")
	})

	t.Run("short hex is fixed bytes", func(t *testing.T) {
		ip, _ := newTestInterp()
		v, err := ip.EvalLine("0x010203")
		require.NoError(t, err)
		assert.Equal(t, KindFixedBytes, v.Kind())
		assert.Equal(t, "0x010203", v.String())
	})
}

func TestControlFlow(t *testing.T) {
	t.Run("while with break", func(t *testing.T) {
		ip, _ := newTestInterp()
		v, err := evalAll(ip,
			"i = 0",
			"while (true) { i = i + 1; if (i == 5) { break; } }",
			"i",
		)
		require.NoError(t, err)
		assert.Equal(t, "5", v.String())
	})

	t.Run("for with continue", func(t *testing.T) {
		ip, _ := newTestInterp()
		v, err := evalAll(ip,
			"total = 0",
			"for (i = 0; i < 10; i = i + 1) { if (i % 2 == 1) { continue; } total = total + i; }",
			"total",
		)
		require.NoError(t, err)
		assert.Equal(t, "20", v.String())
	})

	t.Run("return outside function", func(t *testing.T) {
		ip, _ := newTestInterp()
		_, err := ip.EvalLine("return 1")
		require.Error(t, err)
	})
}

func TestNameErrors(t *testing.T) {
	ip, _ := newTestInterp()
	_, err := ip.EvalLine("undefinedThing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undefinedThing is not defined")

	_, err = ip.EvalLine(`"hello".nope`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no member nope")
}
