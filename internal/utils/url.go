package utils

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

var urlRegex = regexp.MustCompile(`https?://[^\s]+`)

// DecodeHost returns the Unicode form of a punycode host. Hosts that are not
// valid IDNA are returned lower-cased and otherwise untouched.
func DecodeHost(host string) string {
	host = strings.ToLower(host)
	if !strings.Contains(host, "xn--") {
		return host
	}
	decoded, err := idna.ToUnicode(host)
	if err != nil {
		return host
	}
	return decoded
}

// DecodeURLHosts rewrites every punycode link host in content to its Unicode
// form so that filters written against the readable domain still apply.
func DecodeURLHosts(content string) string {
	return urlRegex.ReplaceAllStringFunc(content, func(raw string) string {
		parsed, err := url.Parse(raw)
		if err != nil {
			return raw
		}
		host := parsed.Hostname()
		decoded := DecodeHost(host)
		if decoded == strings.ToLower(host) {
			return raw
		}
		return strings.Replace(raw, host, decoded, 1)
	})
}
