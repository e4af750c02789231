package expressions

import (
	"net/netip"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"
)

// NewEnvironment creates the CEL environment for rate limit exemptions.
// Expressions are type checked against it when the configuration loads.
//
// Request variables: remoteAddress, host, method, userAgent, path, query
// and headers. Host variables: load_1m, load_5m and load_15m. The function
// inNetwork(addr, cidr) reports whether addr falls inside cidr.
func NewEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		ext.Strings(
			ext.StringsLocale("en_US"),
			ext.StringsValidateFormatCalls(true),
		),
		cel.DefaultUTCTimeZone(true),

		cel.Variable("remoteAddress", cel.StringType),
		cel.Variable("host", cel.StringType),
		cel.Variable("method", cel.StringType),
		cel.Variable("userAgent", cel.StringType),
		cel.Variable("path", cel.StringType),
		cel.Variable("query", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("headers", cel.MapType(cel.StringType, cel.StringType)),

		cel.Variable("load_1m", cel.DoubleType),
		cel.Variable("load_5m", cel.DoubleType),
		cel.Variable("load_15m", cel.DoubleType),

		cel.Function("inNetwork",
			cel.Overload("inNetwork_string_string",
				[]*cel.Type{cel.StringType, cel.StringType},
				cel.BoolType,
				cel.BinaryBinding(inNetwork),
			),
		),
	)
}

func inNetwork(addrVal, cidrVal ref.Val) ref.Val {
	addrStr, ok := addrVal.Value().(string)
	if !ok {
		return types.NewErr("inNetwork: address must be a string, got %s", addrVal.Type())
	}
	cidrStr, ok := cidrVal.Value().(string)
	if !ok {
		return types.NewErr("inNetwork: network must be a string, got %s", cidrVal.Type())
	}

	prefix, err := netip.ParsePrefix(cidrStr)
	if err != nil {
		return types.NewErr("inNetwork: %v", err)
	}

	// A malformed address is simply outside every network.
	addr, err := netip.ParseAddr(addrStr)
	if err != nil {
		return types.False
	}

	return types.Bool(prefix.Contains(addr.Unmap()))
}

// Compile emits an optimized Program for a checked syntax tree.
func Compile(env *cel.Env, ast *cel.Ast) (cel.Program, error) {
	return env.Program(
		ast,
		cel.EvalOptions(cel.OptOptimize),
	)
}
