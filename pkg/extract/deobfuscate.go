package extract

import (
	"encoding/base64"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

const maxDeobfuscatePasses = 3

var (
	atobPattern    = regexp.MustCompile(`atob\(\s*["']([A-Za-z0-9+/=_-]+)["']\s*\)`)
	base64URLLit   = regexp.MustCompile(`["'](aHR0c[A-Za-z0-9+/=_-]{8,})["']`)
	reversePattern = regexp.MustCompile(`["']([^"']+)["']\s*\.split\(\s*["']{2}\s*\)\s*\.reverse\(\s*\)\s*\.join\(\s*["']{2}\s*\)`)
	escapedLiteral = regexp.MustCompile(`["']((?:[^"'\\]*\\(?:x[0-9a-fA-F]{2}|u[0-9a-fA-F]{4}))+[^"'\\]*)["']`)
	percentPattern = regexp.MustCompile(`(?:unescape|decodeURIComponent|decodeURI)\(\s*["']([^"']*%[0-9a-fA-F]{2}[^"']*)["']\s*\)`)
	doubleConcat   = regexp.MustCompile(`"[^"\\\n]*"(?:\s*\+\s*"[^"\\\n]*")+`)
	singleConcat   = regexp.MustCompile(`'[^'\\\n]*'(?:\s*\+\s*'[^'\\\n]*')+`)
	doubleQuoted   = regexp.MustCompile(`"([^"\\\n]*)"`)
	singleQuoted   = regexp.MustCompile(`'([^'\\\n]*)'`)
	hexEscape      = regexp.MustCompile(`\\x([0-9a-fA-F]{2})`)
	unicodeEscape  = regexp.MustCompile(`\\u([0-9a-fA-F]{4})`)
)

// Deobfuscate decodes the usual player obfuscations (atob literals, reversed
// strings, \x and \u escapes, percent-encoding, concatenated literals) and
// returns text with every decoded fragment appended on its own line. Decoded
// fragments are decoded again, up to a few passes.
func Deobfuscate(text string) string {
	seen := make(map[string]bool)
	var fragments []string

	pending := text
	for pass := 0; pass < maxDeobfuscatePasses && pending != ""; pass++ {
		var found []string
		for _, fragment := range decodeFragments(pending) {
			if fragment == "" || seen[fragment] || strings.Contains(text, fragment) {
				continue
			}
			seen[fragment] = true
			found = append(found, fragment)
		}
		fragments = append(fragments, found...)
		pending = strings.Join(found, "\n")
	}

	if len(fragments) == 0 {
		return text
	}
	return text + "\n" + strings.Join(fragments, "\n")
}

func decodeFragments(text string) []string {
	var out []string

	for _, match := range atobPattern.FindAllStringSubmatch(text, -1) {
		if decoded, ok := decodeBase64(match[1]); ok {
			out = append(out, decoded)
		}
	}
	for _, match := range base64URLLit.FindAllStringSubmatch(text, -1) {
		if decoded, ok := decodeBase64(match[1]); ok {
			out = append(out, decoded)
		}
	}
	for _, match := range reversePattern.FindAllStringSubmatch(text, -1) {
		out = append(out, reverse(match[1]))
	}
	for _, match := range escapedLiteral.FindAllStringSubmatch(text, -1) {
		out = append(out, decodeEscapes(match[1]))
	}
	for _, match := range percentPattern.FindAllStringSubmatch(text, -1) {
		if decoded, err := url.PathUnescape(match[1]); err == nil {
			out = append(out, decoded)
		}
	}
	for _, match := range doubleConcat.FindAllString(text, -1) {
		out = append(out, joinLiterals(doubleQuoted, match))
	}
	for _, match := range singleConcat.FindAllString(text, -1) {
		out = append(out, joinLiterals(singleQuoted, match))
	}
	return out
}

// decodeBase64 accepts standard and URL alphabets with or without padding.
// Binary results are rejected.
func decodeBase64(value string) (string, bool) {
	trimmed := strings.TrimRight(value, "=")
	encodings := []*base64.Encoding{base64.RawStdEncoding, base64.RawURLEncoding}
	for _, encoding := range encodings {
		decoded, err := encoding.DecodeString(trimmed)
		if err != nil {
			continue
		}
		if isPrintable(decoded) {
			return string(decoded), true
		}
	}
	return "", false
}

func isPrintable(b []byte) bool {
	if len(b) == 0 || !utf8.Valid(b) {
		return false
	}
	for _, r := range string(b) {
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			return false
		}
	}
	return true
}

func reverse(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

func decodeEscapes(s string) string {
	s = hexEscape.ReplaceAllStringFunc(s, func(m string) string {
		v, err := strconv.ParseUint(m[2:], 16, 8)
		if err != nil {
			return m
		}
		return string(rune(v))
	})
	return unicodeEscape.ReplaceAllStringFunc(s, func(m string) string {
		v, err := strconv.ParseUint(m[2:], 16, 16)
		if err != nil {
			return m
		}
		return string(rune(v))
	})
}

func joinLiterals(literal *regexp.Regexp, expr string) string {
	var b strings.Builder
	for _, part := range literal.FindAllStringSubmatch(expr, -1) {
		b.WriteString(part[1])
	}
	return b.String()
}
