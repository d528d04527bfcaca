package crawler

import "testing"

func TestGoalAchieved_KnownGoal(t *testing.T) {
	if !goalAchieved("admin", "https://example.com/wp-admin/", nil) {
		t.Error("expected admin goal to match a wp-admin URL")
	}
	if goalAchieved("admin", "https://example.com/", []byte("<html>nothing here</html>")) {
		t.Error("expected admin goal to not match a page without wp-admin")
	}
}

func TestGoalAchieved_BodyMatch(t *testing.T) {
	if !goalAchieved("checkout", "https://example.com/cart", []byte("proceed to checkout")) {
		t.Error("expected checkout goal to match via body content")
	}
}

func TestGoalAchieved_CaseInsensitive(t *testing.T) {
	if !goalAchieved("ADMIN", "https://example.com/WP-ADMIN/dashboard", nil) {
		t.Error("expected case-insensitive goal matching")
	}
}

func TestGoalAchieved_UnknownGoalFallsBackToLiteral(t *testing.T) {
	if !goalAchieved("special-offer", "https://example.com/special-offer", nil) {
		t.Error("expected unknown goal name to match itself literally")
	}
}

func TestGoalAchieved_EmptyGoalNeverAchieved(t *testing.T) {
	if goalAchieved("", "https://example.com/wp-admin/", []byte("anything")) {
		t.Error("expected empty goal to never be achieved")
	}
}
