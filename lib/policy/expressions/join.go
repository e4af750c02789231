package expressions

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
)

// JoinOperator is a type wrapper for and/or operators.
//
// This is a separate type so that validation can be done at the type level.
type JoinOperator string

// Possible values for JoinOperator
const (
	JoinAnd JoinOperator = "&&"
	JoinOr  JoinOperator = "||"
)

// Valid ensures that JoinOperator is semantically valid.
func (jo JoinOperator) Valid() error {
	switch jo {
	case JoinAnd, JoinOr:
		return nil
	default:
		return ErrWrongJoinOperator
	}
}

var (
	ErrWrongJoinOperator = errors.New("expressions: invalid join operator")
	ErrNoExpressions     = errors.New("expressions: cannot join zero expressions")
	ErrCantCompile       = errors.New("expressions: can't compile one expression")
	ErrNotBool           = errors.New("expressions: expression does not evaluate to a bool")
)

// CompileBool type checks src and rejects expressions whose result is not a
// bool, so that `userAgent` alone fails at load instead of never matching.
func CompileBool(env *cel.Env, src string) (*cel.Ast, error) {
	ast, iss := env.Compile(src)
	if iss.Err() != nil {
		return nil, fmt.Errorf("%w: %q gave: %w", ErrCantCompile, src, iss.Err())
	}

	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: %q is %s", ErrNotBool, src, ast.OutputType())
	}

	return ast, nil
}

// Join compiles each clause on its own for error reporting, then compiles
// them as one statement. Joining
//
//	userAgent.startsWith("curl/")
//	remoteAddress == "203.0.113.5"
//
// with JoinAnd compiles
//
//	( userAgent.startsWith("curl/") ) && ( remoteAddress == "203.0.113.5" )
func Join(env *cel.Env, operator JoinOperator, clauses ...string) (*cel.Ast, error) {
	if err := operator.Valid(); err != nil {
		return nil, fmt.Errorf("%w: wanted && or ||, got: %q", err, operator)
	}

	var (
		asts []*cel.Ast
		errs []error
	)

	for _, clause := range clauses {
		ast, err := CompileBool(env, clause)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		asts = append(asts, ast)
	}

	if len(errs) != 0 {
		return nil, fmt.Errorf("errors while joining clauses: %w", errors.Join(errs...))
	}

	switch len(asts) {
	case 0:
		return nil, ErrNoExpressions
	case 1:
		return asts[0], nil
	}

	wrapped := make([]string, len(clauses))
	for i, clause := range clauses {
		wrapped[i] = "( " + clause + " )"
	}

	return CompileBool(env, strings.Join(wrapped, " "+string(operator)+" "))
}
