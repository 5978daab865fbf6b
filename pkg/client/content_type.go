package client

import (
	"mime"
	"regexp"
	"strings"
)

const (
	ContentTypeApplicationJSON       = "application/json"
	ContentTypeApplicationJSONRegexp = `^application/([a-zA-Z0-9\.\-]+\+)?json$`
)

var jsonContentTypeRegexp = regexp.MustCompile(ContentTypeApplicationJSONRegexp)

// isJSONContentType expects a media type without parameters, see parseMediaType.
func isJSONContentType(mediaType string) bool {
	return jsonContentTypeRegexp.MatchString(mediaType)
}

// parseMediaType strips parameters, e.g. charset, from the Content-Type header value.
func parseMediaType(contentType string) string {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		return mediaType
	}
	mediaType, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mediaType))
}
