package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type Role string

const (
	RoleAdmin   Role = "Admin"
	RoleManager Role = "Manager"
	RoleStaff   Role = "Staff"
)

// UnmarshalJSON accepts both "Admin" and {"name":"Admin"}; the API emits
// either depending on the endpoint.
func (r *Role) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}

	if data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*r = Role(name)
		return nil
	}

	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decode role: %w", err)
	}
	*r = Role(obj.Name)
	return nil
}

type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Roles     []Role `json:"roles"`
	Onboarded bool   `json:"onboarded"`
	BranchID  string `json:"branchId,omitempty"`
}

// PrimaryRole is the only role consulted for access decisions: the first
// one in the list.
func (u User) PrimaryRole() Role {
	if len(u.Roles) == 0 {
		return ""
	}
	return u.Roles[0]
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
