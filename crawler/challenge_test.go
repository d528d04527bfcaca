package crawler

import "testing"

func TestDetectChallenge_StatusOnly(t *testing.T) {
	detected, typ := detectChallenge(403, "text/html", []byte("ordinary forbidden page"))
	if !detected {
		t.Error("expected 403 to be detected as a challenge")
	}
	if typ != "unknown" {
		t.Errorf("expected unknown challenge type, got %q", typ)
	}
}

func TestDetectChallenge_TooManyRequests(t *testing.T) {
	detected, _ := detectChallenge(429, "text/html", []byte("slow down"))
	if !detected {
		t.Error("expected 429 to be detected as a challenge")
	}
}

func TestDetectChallenge_BodyMarker(t *testing.T) {
	detected, typ := detectChallenge(200, "text/html", []byte("please complete the challenge"))
	if !detected {
		t.Fatal("expected body marker to be detected")
	}
	if typ != "unknown" {
		t.Errorf("expected unknown classification without a known vendor substring, got %q", typ)
	}
}

func TestDetectChallenge_ClassifiesKnownVendors(t *testing.T) {
	cases := map[string]string{
		"cf-turnstile challenge loading": "cf-turnstile",
		"turnstile widget":               "cf-turnstile",
		"hcaptcha site key":              "hcaptcha",
		"g-recaptcha response":           "recaptcha",
		"altcha proof of work":           "altcha",
	}
	for body, want := range cases {
		_, typ := detectChallenge(403, "text/html", []byte(body))
		if typ != want {
			t.Errorf("body %q: expected %q, got %q", body, want, typ)
		}
	}
}

func TestDetectChallenge_JSEval(t *testing.T) {
	detected, _ := detectChallenge(200, "application/javascript", []byte("eval(decode(payload))"))
	if !detected {
		t.Error("expected JS content-type with eval body to be detected")
	}
}

func TestDetectChallenge_OrdinaryResponse(t *testing.T) {
	detected, typ := detectChallenge(200, "text/html", []byte("welcome to our site"))
	if detected {
		t.Error("expected ordinary 200 response to not be a challenge")
	}
	if typ != "" {
		t.Errorf("expected empty challenge type, got %q", typ)
	}
}

func TestIsBlockStatus(t *testing.T) {
	if !isBlockStatus(403) || !isBlockStatus(429) {
		t.Error("expected 403 and 429 to be block statuses")
	}
	if isBlockStatus(200) || isBlockStatus(404) {
		t.Error("expected 200/404 to not be block statuses")
	}
}

func TestBlockReasonFor(t *testing.T) {
	if got := blockReasonFor(200, false, ""); got != "" {
		t.Errorf("expected empty reason for clean response, got %q", got)
	}
	if got := blockReasonFor(200, true, "recaptcha"); got != "challenge: recaptcha" {
		t.Errorf("expected vendor-qualified reason, got %q", got)
	}
	if got := blockReasonFor(200, true, "unknown"); got != "challenge detected" {
		t.Errorf("expected generic challenge reason, got %q", got)
	}
	if got := blockReasonFor(403, false, ""); got != "http 403" {
		t.Errorf("expected status reason, got %q", got)
	}
}
