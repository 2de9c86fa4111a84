package qdrant

import (
	qc "github.com/qdrant/go-client/qdrant"
)

// NormalizePayload rewrites payload values into the types qdrant's value
// constructors accept: int64, float64, string, bool, nil, []any and
// map[string]any.
func NormalizePayload(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = normalize(v)
	}
	return out
}

func normalize(v any) any {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case uint:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		return int64(t)
	case float32:
		return float64(t)
	case []string:
		list := make([]any, len(t))
		for i, s := range t {
			list[i] = s
		}
		return list
	case []any:
		list := make([]any, len(t))
		for i, e := range t {
			list[i] = normalize(e)
		}
		return list
	case map[string]string:
		m := make(map[string]any, len(t))
		for k, s := range t {
			m[k] = s
		}
		return m
	case map[string]any:
		return NormalizePayload(t)
	default:
		return v
	}
}

// PayloadFromValues converts a qdrant payload back into plain Go values.
func PayloadFromValues(values map[string]*qc.Value) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = fromValue(v)
	}
	return out
}

func fromValue(v *qc.Value) any {
	switch k := v.GetKind().(type) {
	case *qc.Value_StringValue:
		return k.StringValue
	case *qc.Value_IntegerValue:
		return k.IntegerValue
	case *qc.Value_DoubleValue:
		return k.DoubleValue
	case *qc.Value_BoolValue:
		return k.BoolValue
	case *qc.Value_ListValue:
		items := k.ListValue.GetValues()
		list := make([]any, len(items))
		for i, item := range items {
			list[i] = fromValue(item)
		}
		return list
	case *qc.Value_StructValue:
		return PayloadFromValues(k.StructValue.GetFields())
	default:
		return nil
	}
}
