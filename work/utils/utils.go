package utils

import (
	"net/url"
	"strings"

	"streamview/work/config"
)

// ObfuscateURL masks the path, query and fragment of a URL so credentials
// embedded in Xtream-style URLs never reach the logs.
//
// Example:
//
//	Input:  "http://example.com/live/user/pass/42.m3u8"
//	Output: "http://example.com/***"
func ObfuscateURL(urlStr string) string {
	if urlStr == "" {
		return ""
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return "***OBFUSCATED***"
	}
	result := u.Scheme + "://" + u.Host
	if u.Path != "" && u.Path != "/" {
		result += "/***"
	}
	if u.RawQuery != "" {
		result += "?***"
	}
	if u.Fragment != "" {
		result += "#***"
	}
	return result
}

// LogURL returns the URL as-is or obfuscated depending on configuration.
// Every URL written to a log line goes through this.
func LogURL(cfg *config.Config, urlStr string) string {
	if cfg != nil && cfg.ObfuscateUrls {
		return ObfuscateURL(urlStr)
	}
	return urlStr
}

// NormalizeBaseURL strips trailing slashes so URL construction can always
// join with a single "/".
func NormalizeBaseURL(base string) string {
	return strings.TrimRight(base, "/")
}
