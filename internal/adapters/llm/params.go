package llm

// Card parameters arrive as loosely typed JSON values. These helpers pull
// out the handful of sampling knobs the provider APIs understand and leave
// everything else behind.

func floatParam(params map[string]any, key string) (float64, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func intParam(params map[string]any, key string) (int, bool) {
	f, ok := floatParam(params, key)
	if !ok {
		return 0, false
	}
	return int(f), true
}
