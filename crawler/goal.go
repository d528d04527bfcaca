package crawler

import "strings"

// goalPredicates maps a short goal name to a URL/body substring it is
// satisfied by. Achieve-mode sessions test the active goal against each
// iteration's response; the first matching predicate wins.
var goalPredicates = map[string]string{
	"admin":   "wp-admin",
	"login":   "login",
	"checkout": "checkout",
	"api":     "/api/",
}

// goalAchieved reports whether pageURL or body satisfies goal. Unknown
// goals fall back to a direct substring match against goal itself, so an
// operator can pass an arbitrary path fragment as the goal.
func goalAchieved(goal, pageURL string, body []byte) bool {
	if goal == "" {
		return false
	}
	needle, ok := goalPredicates[strings.ToLower(goal)]
	if !ok {
		needle = goal
	}
	haystack := strings.ToLower(pageURL + "\n" + string(body))
	return strings.Contains(haystack, strings.ToLower(needle))
}
