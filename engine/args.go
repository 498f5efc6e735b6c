package engine

import (
	"github.com/viaductgraph/viaduct/globalid"
	"github.com/viaductgraph/viaduct/planner"
)

// coerceRuntimeArgs resolves every planner.ArgValue in args against the
// request's bound variables, decoding any @idOf-bound position through the
// configured GlobalID codec. This is the step spec.md §4.3 insists cannot
// happen at plan time: a plan is cached across many requests with
// different variable values, so variable resolution and ID decoding must
// happen fresh on every Execute call.
func coerceRuntimeArgs(args map[string]planner.ArgValue, params *Params) (map[string]interface{}, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make(map[string]interface{}, len(args))
	for name, v := range args {
		cv, err := coerceArgValue(v, params.Variables, params.Codec)
		if err != nil {
			return nil, err
		}
		out[name] = cv
	}
	return out, nil
}

func coerceArgValue(v planner.ArgValue, vars map[string]interface{}, codec globalid.Codec) (interface{}, error) {
	switch v.Kind {
	case planner.ArgNull:
		return nil, nil

	case planner.ArgLiteral:
		return decodeIfIDOf(v.Literal, v.IDOfType, codec)

	case planner.ArgVariable:
		val, ok := vars[v.Variable]
		if !ok {
			return nil, nil
		}
		return decodeIfIDOf(val, v.IDOfType, codec)

	case planner.ArgList:
		out := make([]interface{}, len(v.Items))
		for i, item := range v.Items {
			cv, err := coerceArgValue(item, vars, codec)
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		return out, nil

	case planner.ArgObject:
		out := make(map[string]interface{}, len(v.Fields))
		for name, item := range v.Fields {
			cv, err := coerceArgValue(item, vars, codec)
			if err != nil {
				return nil, err
			}
			out[name] = cv
		}
		return out, nil

	default:
		return nil, nil
	}
}

func decodeIfIDOf(raw interface{}, idOfType string, codec globalid.Codec) (interface{}, error) {
	if idOfType == "" {
		return raw, nil
	}
	s, ok := raw.(string)
	if !ok {
		return raw, nil
	}
	return globalid.DeserializeExpecting(codec, s, idOfType)
}
