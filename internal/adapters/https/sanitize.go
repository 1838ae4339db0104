package https

import (
	"net/url"
	"strings"
)

// sensitiveParams are query parameter names redacted from logged URIs.
// Matched case-insensitively as substrings.
var sensitiveParams = []string{
	"node_key",
	"enroll_secret",
	"token",
	"password",
	"secret",
	"key",
}

// sanitizeURI removes credentials and sensitive query values before logging
func sanitizeURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return "[unparseable uri]"
	}

	q := u.Query()
	for param := range q {
		if isSensitiveParam(param) {
			q.Set(param, "[REDACTED]")
		}
	}

	safe := *u
	safe.RawQuery = q.Encode()
	return safe.Redacted()
}

func isSensitiveParam(param string) bool {
	lower := strings.ToLower(param)
	for _, sensitive := range sensitiveParams {
		if strings.Contains(lower, sensitive) {
			return true
		}
	}
	return false
}
