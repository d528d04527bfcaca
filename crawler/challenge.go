package crawler

import (
	"net/http"
	"strconv"
	"strings"
)

// challengeIndicators are body substrings (case-insensitive) that mark a
// response as a bot-mitigation challenge rather than ordinary content.
var challengeIndicators = []string{"challenge", "captcha", "shield", "bot detected"}

// challengeTypes maps a distinguishing substring to the classified type.
// Checked in order; the first match wins.
var challengeTypes = []struct {
	substr string
	typ    string
}{
	{"cf-turnstile", "cf-turnstile"},
	{"turnstile", "cf-turnstile"},
	{"hcaptcha", "hcaptcha"},
	{"recaptcha", "recaptcha"},
	{"altcha", "altcha"},
}

// detectChallenge reports whether status/body indicate a bot-mitigation
// challenge, and classifies it when it does.
func detectChallenge(status int, contentType string, body []byte) (detected bool, challengeType string) {
	lower := strings.ToLower(string(body))

	if status == http.StatusForbidden || status == http.StatusTooManyRequests {
		detected = true
	}
	for _, ind := range challengeIndicators {
		if strings.Contains(lower, ind) {
			detected = true
			break
		}
	}
	if !detected && strings.Contains(strings.ToLower(contentType), "javascript") && strings.Contains(lower, "eval") {
		detected = true
	}

	if !detected {
		return false, ""
	}

	for _, ct := range challengeTypes {
		if strings.Contains(lower, ct.substr) {
			return true, ct.typ
		}
	}
	return true, "unknown"
}

// isBlockStatus reports whether status alone signals the request was
// rejected by the target, independent of challenge classification.
func isBlockStatus(status int) bool {
	return status == http.StatusForbidden || status == http.StatusTooManyRequests
}

func blockReasonFor(status int, detected bool, challengeType string) string {
	if detected {
		if challengeType != "" && challengeType != "unknown" {
			return "challenge: " + challengeType
		}
		return "challenge detected"
	}
	if isBlockStatus(status) {
		return "http " + strconv.Itoa(status)
	}
	return ""
}
