package native

import (
	"net/http"
	"sort"
	"strings"
)

var forbiddenHeaders = map[string]struct{}{
	"accept-charset":                 {},
	"accept-encoding":                {},
	"access-control-request-headers": {},
	"access-control-request-method":  {},
	"connection":                     {},
	"content-length":                 {},
	"cookie":                         {},
	"cookie2":                        {},
	"date":                           {},
	"dnt":                            {},
	"expect":                         {},
	"host":                           {},
	"keep-alive":                     {},
	"origin":                         {},
	"referer":                        {},
	"set-cookie":                     {},
	"te":                             {},
	"trailer":                        {},
	"transfer-encoding":              {},
	"upgrade":                        {},
	"via":                            {},
}

var forbiddenMethods = map[string]struct{}{
	"CONNECT": {},
	"TRACE":   {},
	"TRACK":   {},
}

var normalizedMethods = []string{"DELETE", "GET", "HEAD", "OPTIONS", "POST", "PUT"}

// isForbiddenHeader names can't be set by page code
func isForbiddenHeader(name string) bool {
	lowered := strings.ToLower(name)
	if _, ok := forbiddenHeaders[lowered]; ok {
		return true
	}
	return strings.HasPrefix(lowered, "proxy-") || strings.HasPrefix(lowered, "sec-")
}

func isForbiddenMethod(method string) bool {
	_, ok := forbiddenMethods[strings.ToUpper(method)]
	return ok
}

// normalizeMethod upper-cases the standard methods, others are left alone
func normalizeMethod(method string) string {
	upper := strings.ToUpper(method)
	for _, m := range normalizedMethods {
		if upper == m {
			return m
		}
	}
	return method
}

// isToken per RFC 7230
func isToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c <= 0x20 || c >= 0x7f {
			return false
		}
		if strings.IndexByte("\"(),/:;<=>?@[\\]{}", c) >= 0 {
			return false
		}
	}
	return true
}

func isHeaderValue(s string) bool {
	return strings.IndexAny(s, "\r\n\x00") == -1
}

// trimHTTPWhitespace strips leading and trailing tab, space, CR and LF
func trimHTTPWhitespace(s string) string {
	return strings.Trim(s, " \t\r\n")
}

// formatHeaders as lower-cased, sorted "name: value\r\n" lines
func formatHeaders(h http.Header) string {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		if strings.EqualFold(name, "Set-Cookie") || strings.EqualFold(name, "Set-Cookie2") {
			continue
		}
		sb.WriteString(strings.ToLower(name))
		sb.WriteString(": ")
		sb.WriteString(strings.Join(h[name], ", "))
		sb.WriteString("\r\n")
	}
	return sb.String()
}
