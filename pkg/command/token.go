package command

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/alessio/shellescape"
)

var doubleQuoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `\$`, "`", "\\`")

// quoted wraps a path in double quotes. cmd.exe has no escapes inside quotes.
func quoted(s string, windows bool) string {
	if windows {
		return `"` + s + `"`
	}

	return `"` + doubleQuoteEscaper.Replace(s) + `"`
}

// literal renders s as a JSON string literal that survives the target shell
// unchanged. JSON already escapes quotes and backslashes. cmd.exe leaves $ and
// backticks alone.
func literal(s string, windows bool) string {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(s); err != nil {
		return quoted(s, windows)
	}

	lit := strings.TrimSuffix(buf.String(), "\n")

	if windows {
		return lit
	}

	lit = strings.ReplaceAll(lit, "$", `\$`)
	lit = strings.ReplaceAll(lit, "`", "\\`")

	return lit
}

// bare leaves safe words untouched and single-quotes anything else.
func bare(s string, windows bool) string {
	if windows {
		if strings.ContainsAny(s, " &|<>^") {
			return `"` + s + `"`
		}
		return s
	}

	return shellescape.Quote(s)
}
