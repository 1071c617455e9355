package forms

import "strings"

// HoneypotTripped reporta se o campo escondido veio preenchido.
// Navegadores reais nunca preenchem o campo; espaços em branco não contam.
func HoneypotTripped(value string) bool {
	return strings.TrimSpace(value) != ""
}
