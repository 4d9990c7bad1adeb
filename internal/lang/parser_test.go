package lang

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseOne(t *testing.T, src string) Stmt {
	t.Helper()
	stmt, err := ParseLine(src)
	require.NoError(t, err)
	require.NotNil(t, stmt)
	return stmt
}

func TestParseExpressions(t *testing.T) {
	t.Run("binary precedence", func(t *testing.T) {
		stmt := parseOne(t, "1 + 2 * 3")
		expr := stmt.(*ExprStmt).X.(*BinaryExpr)
		assert.Equal(t, "+", expr.Op)
		rhs := expr.Y.(*BinaryExpr)
		assert.Equal(t, "*", rhs.Op)
	})

	t.Run("member chain", func(t *testing.T) {
		stmt := parseOne(t, "a.b.c")
		expr := stmt.(*ExprStmt).X.(*MemberExpr)
		assert.Equal(t, "c", expr.Name)
		inner := expr.X.(*MemberExpr)
		assert.Equal(t, "b", inner.Name)
	})

	t.Run("call with options", func(t *testing.T) {
		stmt := parseOne(t, "f{value: 1, gasLimit: 2}(x)")
		call := stmt.(*ExprStmt).X.(*CallExpr)
		require.Len(t, call.Opts, 2)
		assert.Equal(t, "value", call.Opts[0].Key)
		assert.Equal(t, "gasLimit", call.Opts[1].Key)
		require.Len(t, call.Args, 1)
	})

	t.Run("options require argument list", func(t *testing.T) {
		// A brace block not followed by ( is not an options block.
		_, err := ParseLine("f{value: 1}")
		require.Error(t, err)
	})

	t.Run("scientific literal", func(t *testing.T) {
		stmt := parseOne(t, "2.5e18")
		lit := stmt.(*ExprStmt).X.(*NumberLit)
		assert.Equal(t, "2.5", lit.Mantissa)
		assert.Equal(t, "18", lit.Exp)
	})

	t.Run("hex literal", func(t *testing.T) {
		stmt := parseOne(t, "0xDeadBeef")
		lit := stmt.(*ExprStmt).X.(*HexLit)
		assert.Equal(t, "DeadBeef", lit.Nibbles)
	})

	t.Run("slice", func(t *testing.T) {
		stmt := parseOne(t, "xs[1:3]")
		slice := stmt.(*ExprStmt).X.(*SliceExpr)
		assert.NotNil(t, slice.Lo)
		assert.NotNil(t, slice.Hi)

		stmt = parseOne(t, "xs[:2]")
		slice = stmt.(*ExprStmt).X.(*SliceExpr)
		assert.Nil(t, slice.Lo)
	})

	t.Run("array type suffix", func(t *testing.T) {
		stmt := parseOne(t, "uint256[]")
		idx := stmt.(*ExprStmt).X.(*IndexExpr)
		assert.Nil(t, idx.Index)
	})

	t.Run("lambda forms", func(t *testing.T) {
		stmt := parseOne(t, "x => x * 2")
		lambda := stmt.(*ExprStmt).X.(*LambdaExpr)
		assert.Equal(t, []string{"x"}, lambda.Params)

		stmt = parseOne(t, "(a, b) => a + b")
		lambda = stmt.(*ExprStmt).X.(*LambdaExpr)
		assert.Equal(t, []string{"a", "b"}, lambda.Params)
	})

	t.Run("tuple vs parens", func(t *testing.T) {
		stmt := parseOne(t, "(1, 2)")
		_, isTuple := stmt.(*ExprStmt).X.(*TupleLit)
		assert.True(t, isTuple)

		stmt = parseOne(t, "(1)")
		_, isTuple = stmt.(*ExprStmt).X.(*TupleLit)
		assert.False(t, isTuple)
	})

	t.Run("ternary", func(t *testing.T) {
		stmt := parseOne(t, "a ? b : c")
		_, ok := stmt.(*ExprStmt).X.(*CondExpr)
		assert.True(t, ok)
	})
}

func TestParseStatements(t *testing.T) {
	t.Run("typed declaration", func(t *testing.T) {
		stmt := parseOne(t, "uint256 x = 1")
		decl := stmt.(*VarDeclStmt)
		assert.Equal(t, "x", decl.Name)
	})

	t.Run("array declaration", func(t *testing.T) {
		stmt := parseOne(t, "uint256[] xs = [1, 2]")
		decl := stmt.(*VarDeclStmt)
		assert.Equal(t, "xs", decl.Name)
	})

	t.Run("function definition", func(t *testing.T) {
		stmt := parseOne(t, "function add(a, b) { return a + b; }")
		def := stmt.(*FunctionDef)
		assert.Equal(t, "add", def.Name)
		assert.Equal(t, []string{"a", "b"}, def.Params)
		require.Len(t, def.Body.Stmts, 1)
	})

	t.Run("typed parameters are accepted", func(t *testing.T) {
		stmt := parseOne(t, "function f(uint256 a, address b) { return a; }")
		def := stmt.(*FunctionDef)
		assert.Equal(t, []string{"a", "b"}, def.Params)
	})

	t.Run("for loop", func(t *testing.T) {
		stmt := parseOne(t, "for (i = 0; i < 3; i = i + 1) { x = i; }")
		loop := stmt.(*ForStmt)
		assert.NotNil(t, loop.Init)
		assert.NotNil(t, loop.Cond)
		assert.NotNil(t, loop.Post)
	})

	t.Run("if else", func(t *testing.T) {
		stmt := parseOne(t, "if (a) { b = 1; } else { b = 2; }")
		cond := stmt.(*IfStmt)
		assert.NotNil(t, cond.Else)
	})

	t.Run("destructuring assignment", func(t *testing.T) {
		stmt := parseOne(t, "(a, b) = f()")
		assign := stmt.(*ExprStmt).X.(*AssignExpr)
		_, ok := assign.Target.(*TupleLit)
		assert.True(t, ok)
	})
}

func TestParseIncomplete(t *testing.T) {
	tests := []string{
		"function f() {",
		"if (true) {",
		"\"unterminated",
		"[1, 2,",
		"(1 +",
	}
	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			_, err := ParseLine(src)
			require.Error(t, err)
			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr))
			assert.True(t, parseErr.Incomplete, "expected incomplete for %q", src)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		"1 +* 2",
		"f(,)",
		"0x",
		"@",
	}
	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			_, err := ParseLine(src)
			require.Error(t, err)
		})
	}
}

func TestParseProgram(t *testing.T) {
	stmts, err := Parse(`
		// setup helpers
		function double(x) { return x * 2; }
		y = double(21);
	`)
	require.NoError(t, err)
	require.Len(t, stmts, 2)
}

func TestComments(t *testing.T) {
	stmt := parseOne(t, "1 /* inline */ + 2 // trailing")
	_, ok := stmt.(*ExprStmt).X.(*BinaryExpr)
	assert.True(t, ok)
}
