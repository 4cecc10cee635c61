package coupon

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// ErrInvalidCondition is returned when a coupon condition cannot be compiled or does not yield a boolean.
var ErrInvalidCondition = errors.New("invalid coupon condition")

var (
	conditionEnvOnce sync.Once
	conditionEnv     *cel.Env
	conditionEnvErr  error

	programs sync.Map
)

func environment() (*cel.Env, error) {
	conditionEnvOnce.Do(func() {
		conditionEnv, conditionEnvErr = cel.NewEnv(
			cel.Variable("subtotal", cel.DoubleType),
			cel.Variable("items", cel.IntType),
			cel.Variable("country", cel.StringType),
			cel.Variable("user", cel.StringType),
		)
	})
	return conditionEnv, conditionEnvErr
}

// CompileCondition checks that expr is a valid boolean condition.
func CompileCondition(expr string) error {
	_, err := program(expr)
	return err
}

func program(expr string) (cel.Program, error) {
	if cached, ok := programs.Load(expr); ok {
		return cached.(cel.Program), nil
	}
	env, err := environment()
	if err != nil {
		return nil, fmt.Errorf("coupon condition env: %w", err)
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCondition, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: expression must be boolean", ErrInvalidCondition)
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCondition, err)
	}
	programs.Store(expr, prg)
	return prg, nil
}

func evalCondition(expr string, s Subject) (bool, error) {
	prg, err := program(expr)
	if err != nil {
		return false, err
	}
	units := 0
	for _, line := range s.Lines {
		units += line.Quantity
	}
	out, _, err := prg.Eval(map[string]any{
		"subtotal": s.ItemsTotal.InexactFloat64(),
		"items":    int64(units),
		"country":  s.Shipping.Country,
		"user":     s.UserID,
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidCondition, err)
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, fmt.Errorf("%w: expression must be boolean", ErrInvalidCondition)
	}
	return ok, nil
}
