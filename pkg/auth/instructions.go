package auth

import (
	"fmt"
	"io"
	"strings"
)

var keyPages = map[string]string{
	"googleai":  "https://aistudio.google.com/app/apikey",
	"openai":    "https://platform.openai.com/api-keys",
	"anthropic": "https://console.anthropic.com/settings/keys",
}

// ShowKeyGuide writes where to obtain a key for provider and how it is stored
func ShowKeyGuide(w io.Writer, provider string) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintf(w, "API KEY SETUP: %s\n", provider)
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)

	if page, ok := keyPages[provider]; ok {
		fmt.Fprintf(w, "1. Create a key at %s\n", page)
	} else {
		fmt.Fprintln(w, "1. Create a key in your provider's console")
	}
	fmt.Fprintln(w, "2. Paste it at the prompt below (input is hidden)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The key is stored in the system keychain when available, otherwise")
	fmt.Fprintln(w, "in an encrypted file in the hyperdrive config directory.")
	if vars := EnvVars[provider]; len(vars) > 0 {
		fmt.Fprintf(w, "Workers also read %s from the environment.\n", strings.Join(vars, ", "))
	}
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
}
