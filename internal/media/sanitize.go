package media

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const unnamedProduct = "unnamed_product"

var filenameReplacer = strings.NewReplacer(
	"\n", " ",
	"\r", " ",
	"–", "-",
	"—", "-",
	"…", "...",
	"&", "and",
	"/", "_",
	`\`, "_",
	":", "_",
	"*", "_",
	"?", "_",
	"<", "_",
	">", "_",
	"|", "_",
	"(", "",
	")", "",
	"[", "",
	"]", "",
	"{", "",
	"}", "",
)

// SanitizeFilename turns a product or game name into a lowercase ASCII
// storage key segment made of [a-z0-9_.-]. Accents are folded.
func SanitizeFilename(name string) string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(stripMarks, name)
	if err != nil {
		folded = name
	}
	folded = filenameReplacer.Replace(folded)

	var b strings.Builder
	pendingSpace := false
	for _, r := range strings.TrimSpace(folded) {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = true
			continue
		case r > unicode.MaxASCII:
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.':
		default:
			continue
		}
		if pendingSpace {
			b.WriteByte('_')
			pendingSpace = false
		}
		b.WriteRune(unicode.ToLower(r))
	}

	out := collapseUnderscores(b.String())
	out = strings.Trim(out, "_")
	if out == "" {
		return unnamedProduct
	}
	return out
}

func collapseUnderscores(s string) string {
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return s
}
