package compose

import (
	"fmt"
	"strings"
)

// LookupFunc resolves a variable during interpolation.
type LookupFunc func(string) (string, bool)

// Interpolate substitutes shell-style variable references in s.
// Supported forms: $VAR, ${VAR}, ${VAR:-default}, ${VAR-default},
// ${VAR:?message} and ${VAR?message}. "$$" escapes a literal dollar.
func Interpolate(s string, lookup LookupFunc) (string, error) {
	if !strings.ContainsRune(s, '$') {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		c := s[i]
		if c != '$' {
			b.WriteByte(c)
			i++
			continue
		}
		if i+1 >= len(s) {
			b.WriteByte('$')
			break
		}
		next := s[i+1]
		switch {
		case next == '$':
			b.WriteByte('$')
			i += 2
		case next == '{':
			end := strings.IndexByte(s[i+2:], '}')
			if end < 0 {
				return "", fmt.Errorf("unterminated variable reference %q", s[i:])
			}
			expr := s[i+2 : i+2+end]
			value, err := resolveBraced(expr, lookup)
			if err != nil {
				return "", err
			}
			b.WriteString(value)
			i += 2 + end + 1
		case isNameStart(next):
			j := i + 1
			for j < len(s) && isNameByte(s[j]) {
				j++
			}
			name := s[i+1 : j]
			if value, ok := lookup(name); ok {
				b.WriteString(value)
			}
			i = j
		default:
			b.WriteByte('$')
			i++
		}
	}
	return b.String(), nil
}

func resolveBraced(expr string, lookup LookupFunc) (string, error) {
	name := expr
	operator := ""
	operand := ""
	for i := 0; i < len(expr); i++ {
		if expr[i] == ':' || expr[i] == '-' || expr[i] == '?' {
			name = expr[:i]
			rest := expr[i:]
			if strings.HasPrefix(rest, ":-") || strings.HasPrefix(rest, ":?") {
				operator = rest[:2]
				operand = rest[2:]
			} else if rest[0] == '-' || rest[0] == '?' {
				operator = rest[:1]
				operand = rest[1:]
			} else {
				return "", fmt.Errorf("invalid variable reference ${%s}", expr)
			}
			break
		}
	}
	if name == "" || !validName(name) {
		return "", fmt.Errorf("invalid variable name in ${%s}", expr)
	}

	value, set := lookup(name)
	switch operator {
	case "":
		return value, nil
	case "-":
		if set {
			return value, nil
		}
		return operand, nil
	case ":-":
		if set && value != "" {
			return value, nil
		}
		return operand, nil
	case "?":
		if set {
			return value, nil
		}
	case ":?":
		if set && value != "" {
			return value, nil
		}
	}
	message := operand
	if message == "" {
		message = "variable is required"
	}
	return "", fmt.Errorf("required variable %q is missing: %s", name, message)
}

func validName(name string) bool {
	if !isNameStart(name[0]) {
		return false
	}
	for i := 1; i < len(name); i++ {
		if !isNameByte(name[i]) {
			return false
		}
	}
	return true
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameByte(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}
