package catalog

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	catalogHostPattern = regexp.MustCompile(`(^|\.)music\.126\.net$|(^|\.)music\.163\.com$`)
	audioPathPattern   = regexp.MustCompile(`(?i)\.(mp3|m4a|flac|aac|wav|ogg|ape)(\?|$)`)
)

const outerMediaPath = "/song/media/outer/url"

// NormalizeMediaURL upgrades catalog CDN links to https and, when a proxy
// prefix is configured, routes audio through it. Other URLs pass through.
func NormalizeMediaURL(raw, proxyPrefix string) string {
	if raw == "" {
		return raw
	}
	if proxyPrefix != "" && strings.HasPrefix(raw, proxyPrefix) {
		return raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	host := strings.ToLower(u.Hostname())
	if !catalogHostPattern.MatchString(host) {
		return raw
	}

	if u.Scheme == "http" {
		u.Scheme = "https"
	}
	secure := u.String()

	if proxyPrefix != "" && isAudio(host, u) {
		return proxyPrefix + url.QueryEscape(secure)
	}
	return secure
}

func isAudio(host string, u *url.URL) bool {
	if audioPathPattern.MatchString(u.Path) {
		return true
	}
	return strings.HasSuffix(host, "music.163.com") && strings.HasPrefix(u.Path, outerMediaPath)
}
