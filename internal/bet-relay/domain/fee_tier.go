package domain

import "strings"

// FeeTier seleciona a faixa de gas price usada numa ação de escrita no contrato
type FeeTier string

const (
	FeeTierLow    FeeTier = "low"
	FeeTierMedium FeeTier = "medium"
	FeeTierHigh   FeeTier = "high"
)

// ParseFeeTier valida o tier recebido do cliente; vazio assume medium
func ParseFeeTier(s string) (FeeTier, error) {
	switch t := FeeTier(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return FeeTierMedium, nil
	case FeeTierLow, FeeTierMedium, FeeTierHigh:
		return t, nil
	default:
		return "", Invalid(CodeInvalidFeeTier, "unknown gas price type %q", s)
	}
}
