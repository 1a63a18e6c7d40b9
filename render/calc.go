package render

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultCalcTimeout bounds a single expression evaluation
const DefaultCalcTimeout = 100 * time.Millisecond

var (
	calcAllowed  = regexp.MustCompile(`^[0-9+\-*/%^().,\s]*$`)
	calcMathCall = regexp.MustCompile(`math\.([a-z]+)`)

	calcMathFuncs = map[string]bool{
		"abs": true, "ceil": true, "floor": true, "sqrt": true, "pow": true,
		"exp": true, "log": true, "log10": true, "max": true, "min": true,
		"fmod": true, "sin": true, "cos": true, "tan": true, "pi": true,
	}

	errCalcSyntax = errors.New("unsupported characters in expression")
)

// Calculator evaluates arithmetic in a Lua state that only has the math
// library loaded
type Calculator struct {
	Timeout time.Duration
}

// NewCalculator creates a calculator with the default timeout
func NewCalculator() *Calculator {
	return &Calculator{Timeout: DefaultCalcTimeout}
}

// Eval evaluates expr and returns its value
func (c *Calculator) Eval(ctx context.Context, expr string) (float64, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return 0, errors.New("empty expression")
	}
	if err := checkExpression(expr); err != nil {
		return 0, err
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultCalcTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	lua.OpenMath(L)
	L.SetContext(ctx)

	// "--" starts a Lua comment
	src := "return " + strings.ReplaceAll(expr, "-", " -")

	top := L.GetTop()
	if err := L.DoString(src); err != nil {
		return 0, fmt.Errorf("evaluate %q: %w", expr, err)
	}
	if n := L.GetTop() - top; n != 1 {
		return 0, fmt.Errorf("evaluate %q: expected one value, got %d", expr, n)
	}

	num, ok := L.Get(-1).(lua.LNumber)
	if !ok {
		return 0, fmt.Errorf("evaluate %q: result is %s, not a number", expr, L.Get(-1).Type())
	}
	f := float64(num)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("evaluate %q: result is not finite", expr)
	}
	return f, nil
}

func checkExpression(expr string) error {
	var bad error
	rest := calcMathCall.ReplaceAllStringFunc(expr, func(call string) string {
		name := calcMathCall.FindStringSubmatch(call)[1]
		if !calcMathFuncs[name] {
			bad = fmt.Errorf("function math.%s is not allowed", name)
		}
		return ""
	})
	if bad != nil {
		return bad
	}
	if !calcAllowed.MatchString(rest) {
		return errCalcSyntax
	}
	return nil
}

// FormatNumber renders integral values without a fraction and everything
// else in the shortest form that round-trips
func FormatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
