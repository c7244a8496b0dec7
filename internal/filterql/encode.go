package filterql

// EncodeNode converts n into plain maps and slices so it can be handed to
// structpb or a script runtime.
func EncodeNode(n Node) map[string]any {
	switch v := n.(type) {
	case *KeyFilter:
		return map[string]any{
			"type":      "key",
			"key":       v.Key,
			"field":     string(v.Field),
			"value":     v.Value,
			"isNegated": v.IsNegated,
			"isRegex":   v.IsRegex,
			"isExact":   v.IsExact,
		}

	case *TopLevelFilter:
		return map[string]any{
			"type": "text",
			"text": v.Text,
		}

	case *AndFilter:
		return map[string]any{
			"type":     "and",
			"operands": encodeNodes(Conjuncts(v)),
		}

	case *OrFilter:
		return map[string]any{
			"type":     "or",
			"operands": encodeNodes(Disjuncts(v)),
		}
	}

	return nil
}

// EncodeQuery encodes all top-level filters of q.
func EncodeQuery(q *Query) []any {
	if q.IsEmpty() {
		return []any{}
	}

	return encodeNodes(q.Filters)
}

func EncodeTokens(tokens []Token) []any {
	result := make([]any, len(tokens))

	for idx, t := range tokens {
		result[idx] = map[string]any{
			"kind":  string(t.Kind),
			"text":  t.Text,
			"start": t.Start,
			"end":   t.End,
			"state": string(t.State),
		}
	}

	return result
}

func encodeNodes(nodes []Node) []any {
	result := make([]any, len(nodes))

	for idx, n := range nodes {
		result[idx] = EncodeNode(n)
	}

	return result
}
