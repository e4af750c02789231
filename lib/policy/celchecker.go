package policy

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/MelihcanSimsek/CaptchaGenerator/internal"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/policy/config"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/policy/expressions"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
)

// CELChecker matches requests with a compiled CEL expression.
type CELChecker struct {
	src     string
	program cel.Program
}

func NewCELChecker(cfg *config.ExpressionOrList) (*CELChecker, error) {
	env, err := expressions.NewEnvironment()
	if err != nil {
		return nil, err
	}

	src, ast, err := compileExpression(env, cfg)
	if err != nil {
		return nil, err
	}

	program, err := expressions.Compile(env, ast)
	if err != nil {
		return nil, fmt.Errorf("can't compile CEL program: %w", err)
	}

	return &CELChecker{
		src:     src,
		program: program,
	}, nil
}

// compileExpression type checks whichever form cfg uses and returns the
// source text the rule is identified by.
func compileExpression(env *cel.Env, cfg *config.ExpressionOrList) (string, *cel.Ast, error) {
	var (
		src string
		ast *cel.Ast
		err error
	)

	switch {
	case len(cfg.All) != 0:
		src = strings.Join(cfg.All, " && ")
		ast, err = expressions.Join(env, expressions.JoinAnd, cfg.All...)
	case len(cfg.Any) != 0:
		src = strings.Join(cfg.Any, " || ")
		ast, err = expressions.Join(env, expressions.JoinOr, cfg.Any...)
	case cfg.Expression != "":
		src = cfg.Expression
		ast, err = expressions.CompileBool(env, src)
	default:
		err = config.ErrExpressionEmpty
	}

	return src, ast, err
}

func (cc *CELChecker) Hash() string {
	return internal.SHA256sum(cc.src)
}

func (cc *CELChecker) Check(r *http.Request) (bool, error) {
	result, _, err := cc.program.ContextEval(r.Context(), &CELRequest{r})

	if err != nil {
		return false, err
	}

	if val, ok := result.(types.Bool); ok {
		return bool(val), nil
	}

	return false, nil
}

type CELRequest struct {
	*http.Request
}

func (cr *CELRequest) Parent() cel.Activation { return nil }

func (cr *CELRequest) ResolveName(name string) (any, bool) {
	switch name {
	case "remoteAddress":
		return cr.Header.Get("X-Real-Ip"), true
	case "host":
		return cr.Host, true
	case "method":
		return cr.Method, true
	case "userAgent":
		return cr.UserAgent(), true
	case "path":
		return cr.URL.Path, true
	case "query":
		return expressions.Query(cr.URL.Query()), true
	case "headers":
		return expressions.Headers(cr.Header), true
	case "load_1m":
		return expressions.Load1(), true
	case "load_5m":
		return expressions.Load5(), true
	case "load_15m":
		return expressions.Load15(), true
	default:
		return nil, false
	}
}
