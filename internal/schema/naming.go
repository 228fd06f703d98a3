package schema

import (
	"fmt"
	"strings"

	"github.com/iancoleman/strcase"
)

// CaseStyle controls how header cells are spelled in the output
type CaseStyle string

const (
	CaseNone       CaseStyle = "none"
	CaseSnake      CaseStyle = "snake"
	CaseCamel      CaseStyle = "camel"
	CaseLowerCamel CaseStyle = "lower_camel"
	CaseKebab      CaseStyle = "kebab"
)

// ParseCaseStyle validates a style name. An empty name is CaseNone.
func ParseCaseStyle(s string) (CaseStyle, error) {
	switch style := CaseStyle(strings.ToLower(strings.TrimSpace(s))); style {
	case "", CaseNone:
		return CaseNone, nil
	case CaseSnake, CaseCamel, CaseLowerCamel, CaseKebab:
		return style, nil
	default:
		return "", fmt.Errorf("unknown column case %q", s)
	}
}

// Rename spells every column in the given style, keeping the nesting
// separator between path segments. Explicit mappings win over the style.
// Only the header row changes; records are still looked up by discovered name.
func Rename(header []string, style CaseStyle, separator string, mappings map[string]string) []string {
	out := make([]string, len(header))
	for i, col := range header {
		if mapped, ok := mappings[col]; ok {
			out[i] = mapped
			continue
		}
		out[i] = renameColumn(col, style, separator)
	}
	return out
}

func renameColumn(col string, style CaseStyle, separator string) string {
	convert := converter(style)
	if convert == nil {
		return col
	}
	if separator == "" {
		return convert(col)
	}
	parts := strings.Split(col, separator)
	for i, p := range parts {
		parts[i] = convert(p)
	}
	return strings.Join(parts, separator)
}

func converter(style CaseStyle) func(string) string {
	switch style {
	case CaseSnake:
		return strcase.ToSnake
	case CaseCamel:
		return strcase.ToCamel
	case CaseLowerCamel:
		return strcase.ToLowerCamel
	case CaseKebab:
		return strcase.ToKebab
	default:
		return nil
	}
}
