package util

import (
	"encoding/json"
	"html"
	"regexp"
	"strings"
	"sync"
	"time"
)

var (
	timeMu     sync.Mutex
	lastTimeMS int64
)

// UniqueCurrentTimeMS returns the current time in epoch milliseconds,
// incremented past the previously returned value when the clock has not
// moved yet. Two calls never return the same number.
func UniqueCurrentTimeMS() int64 {
	timeMu.Lock()
	defer timeMu.Unlock()
	ms := time.Now().UnixMilli()
	if ms <= lastTimeMS {
		ms = lastTimeMS + 1
	}
	lastTimeMS = ms
	return ms
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

// HtmlToPlainText strips markup and unescapes entities, collapsing
// line breaks into spaces.
func HtmlToPlainText(text string) string {
	plain := strings.ReplaceAll(text, "<br>", " ")
	plain = strings.ReplaceAll(plain, "<br/>", " ")
	plain = tagRe.ReplaceAllString(plain, "")
	plain = html.UnescapeString(plain)
	return strings.TrimSpace(strings.Join(strings.Fields(plain), " "))
}

// TrimTextAt shortens text to maxLen runes, appending an ellipsis at a
// word boundary where possible.
func TrimTextAt(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen || maxLen < 1 {
		return text
	}
	trimmed := runes[:maxLen]
	if idx := strings.LastIndex(string(trimmed), " "); idx > maxLen/2 {
		trimmed = trimmed[:idx]
	}
	return string(trimmed) + "…"
}

// FirstTagOrKeyword returns the first #tag (without the hash) from the
// query, or the first bare keyword when no tag is present.
func FirstTagOrKeyword(query string) string {
	var firstKeyword string
	for _, word := range strings.Fields(query) {
		if strings.HasPrefix(word, "#") {
			if tag := strings.TrimPrefix(word, "#"); tag != "" {
				return tag
			}
			continue
		}
		if firstKeyword == "" {
			firstKeyword = word
		}
	}
	return firstKeyword
}

// IsDownloadable reports whether the URI points at a remotely hosted
// resource, as opposed to a device-local file or content path.
func IsDownloadable(uri string) bool {
	return strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://")
}

func PrettyPrint(i interface{}) string {
	s, _ := json.MarshalIndent(i, "", " ")
	return string(s)
}
