package classify

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/PaesslerAG/jsonpath"
)

// Identifier walks the rules in order and returns the first present, non-empty
// scalar value in payload.
func (r Rules) Identifier(payload any) (string, bool) {
	if payload == nil {
		return "", false
	}
	for _, rule := range r.Extract {
		expr, err := compile(rule)
		if err != nil {
			continue
		}
		v, err := jsonpath.Get(expr, payload)
		if err != nil {
			continue
		}
		if s, ok := scalar(v); ok {
			return s, true
		}
	}
	return "", false
}

// compile turns a dotted rule into a JSONPath expression. Numeric segments
// become array indexes.
func compile(rule string) (string, error) {
	rule = strings.TrimSpace(rule)
	if rule == "" {
		return "", fmt.Errorf("%w: empty rule", ErrInvalidRule)
	}
	if strings.HasPrefix(rule, "$") {
		if _, err := jsonpath.New(rule); err != nil {
			return "", fmt.Errorf("%w: %q: %v", ErrInvalidRule, rule, err)
		}
		return rule, nil
	}

	var b strings.Builder
	b.WriteString("$")
	for _, seg := range strings.Split(rule, ".") {
		if seg == "" {
			return "", fmt.Errorf("%w: %q has an empty segment", ErrInvalidRule, rule)
		}
		if _, err := strconv.Atoi(seg); err == nil {
			b.WriteString("[" + seg + "]")
			continue
		}
		b.WriteString("[" + strconv.Quote(seg) + "]")
	}
	return b.String(), nil
}

func scalar(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, x != ""
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10), true
		}
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case bool:
		return strconv.FormatBool(x), true
	}
	return "", false
}
