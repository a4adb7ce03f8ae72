package remotecatalog

import (
	"bytes"
	"fmt"
	"mime"
	"strings"

	"github.com/catalogsync/backend/internal/domain/integration"
)

// challengeScanLimit is how much of a body is searched for challenge markers
const challengeScanLimit = 64 * 1024

// challengeMarkers are lower-case fragments found in anti-bot interstitials
var challengeMarkers = [][]byte{
	[]byte("captcha"),
	[]byte("cf-chl"),
	[]byte("challenge-platform"),
	[]byte("just a moment"),
	[]byte("sgcaptcha"),
}

// detectChallenge reports an anti-bot interstitial served in place of JSON.
//
// A successful response must be JSON: a declared non-JSON content type or a
// body starting with markup is a challenge. Error responses are only treated
// as challenges when they carry a known marker; a plain HTML 404 stays an
// ordinary request failure.
func detectChallenge(status int, contentType string, body []byte) error {
	if isJSON(contentType, body) {
		return nil
	}

	if marker := findMarker(body); marker != "" {
		return fmt.Errorf("%w: HTTP %d, marker %q", integration.ErrAntiBotChallenge, status, marker)
	}
	if status < 400 {
		return fmt.Errorf("%w: HTTP %d, content type %q", integration.ErrAntiBotChallenge, status, contentType)
	}
	return nil
}

func isJSON(contentType string, body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '<' {
		return false
	}
	if contentType == "" {
		return len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{')
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func findMarker(body []byte) string {
	if len(body) > challengeScanLimit {
		body = body[:challengeScanLimit]
	}
	lower := bytes.ToLower(body)
	for _, m := range challengeMarkers {
		if bytes.Contains(lower, m) {
			return string(m)
		}
	}
	return ""
}
