package core

import "encoding/json"

// Result is the output of a capability invocation. It is an unconstrained
// string-keyed mapping; patterns interpret well-known fields (fraud_score,
// confidence, is_valid, risk_factors) opportunistically and treat their
// absence as "not provided", never as an error.
type Result map[string]any

// Conventional result fields interpreted by the built-in patterns.
const (
	FraudScoreKey  = "fraud_score"
	IsFraudKey     = "is_fraud"
	ConfidenceKey  = "confidence"
	IsValidKey     = "is_valid"
	RiskFactorsKey = "risk_factors"
)

// Float returns the value under key as a float64. Integer values and
// json.Number values are converted; anything else reports false.
func (r Result) Float(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Bool returns the value under key as a bool.
func (r Result) Bool(key string) (bool, bool) {
	v, ok := r[key].(bool)
	return v, ok
}

// Strings returns the value under key as a string slice. Both []string and
// []any of strings (the shape produced by JSON round-trips) are accepted.
func (r Result) Strings(key string) []string {
	switch v := r[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Clone returns a shallow copy of the result.
func (r Result) Clone() Result {
	c := make(Result, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}
