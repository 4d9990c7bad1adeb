package interp

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/samber/lo"
)

func init() {
	registerFunc("console", "log", consoleLog)
}

// consoleLog prints its arguments space-separated. Strings print
// unquoted, everything else in its display form.
func consoleLog(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	if err := rejectUnknownOpts(opts); err != nil {
		return nil, err
	}
	parts := lo.Map(args, func(v Value, _ int) string {
		if s, ok := v.(Str); ok {
			return string(s)
		}
		return v.String()
	})
	fmt.Fprintln(ip.Out, strings.Join(parts, " "))
	return Null{}, nil
}

func bigFromInt(n int) *big.Int {
	return big.NewInt(int64(n))
}
