package models

import (
	"encoding/json"
	"testing"
)

func TestUser_DecodesMixedRoleShapes(t *testing.T) {
	raw := `{"id":"u1","name":"Ada","email":"ada@example.test","roles":["Manager",{"name":"Admin"}],"onboarded":true}`

	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(u.Roles) != 2 || u.Roles[0] != RoleManager || u.Roles[1] != RoleAdmin {
		t.Fatalf("unexpected roles: %v", u.Roles)
	}
	if !u.Onboarded {
		t.Fatalf("expected onboarded")
	}
}

func TestUser_PrimaryRoleIsFirst(t *testing.T) {
	u := User{Roles: []Role{RoleStaff, RoleAdmin}}
	if got := u.PrimaryRole(); got != RoleStaff {
		t.Fatalf("expected Staff, got %q", got)
	}

	if got := (User{}).PrimaryRole(); got != "" {
		t.Fatalf("expected empty role, got %q", got)
	}
}

func TestRole_RejectsGarbage(t *testing.T) {
	var r Role
	if err := json.Unmarshal([]byte(`[1,2]`), &r); err == nil {
		t.Fatalf("expected error")
	}
}
