package logger

import (
	"net/http"
	"sort"
	"strings"
)

// Headers whose values never reach the log stream.
var redacted = []string{"authorization", "x-api-key", "x-user-signature"}

func isRedacted(name string) bool {
	name = strings.ToLower(name)
	for _, h := range redacted {
		if name == h {
			return true
		}
	}
	return false
}

// SafeHeaders renders request headers as a single sorted string with
// sensitive values masked.
func SafeHeaders(r *http.Request) string {
	parts := make([]string, 0, len(r.Header))
	for k, v := range r.Header {
		if len(v) == 0 {
			continue
		}
		val := v[0]
		if isRedacted(k) {
			val = "<redacted>"
		}
		parts = append(parts, k+"="+val)
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// LogRequest emits a debug summary of an incoming request.
func LogRequest(r *http.Request) {
	if Log == nil {
		return
	}
	Log.Debug("incoming_request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr, "headers", SafeHeaders(r))
}
