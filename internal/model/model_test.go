package model

import "testing"

func TestParseRole(t *testing.T) {
	valid := map[string]Role{"student": RoleStudent, " Teacher ": RoleTeacher, "ADMIN": RoleAdmin}
	for input, expect := range valid {
		role, ok := ParseRole(input)
		if !ok || role != expect {
			t.Fatalf("expected %q to parse as %s, got %s", input, expect, role)
		}
	}
	if _, ok := ParseRole("dev"); ok {
		t.Fatalf("expected unknown role to be rejected")
	}
	if RoleStudent.CanManage() || !RoleTeacher.CanManage() || !RoleAdmin.CanManage() {
		t.Fatalf("unexpected CanManage result")
	}
}

func TestParseStatusAndPriority(t *testing.T) {
	for _, status := range []string{"open", "in_progress", "resolved", "closed"} {
		if _, ok := ParseStatus(status); !ok {
			t.Fatalf("expected status %s to be valid", status)
		}
	}
	if _, ok := ParseStatus("done"); ok {
		t.Fatalf("expected invalid status to be rejected")
	}
	for _, priority := range []string{"low", "medium", "high"} {
		if _, ok := ParsePriority(priority); !ok {
			t.Fatalf("expected priority %s to be valid", priority)
		}
	}
	if _, ok := ParsePriority("urgent"); ok {
		t.Fatalf("expected invalid priority to be rejected")
	}
}
