package models

import "testing"

func TestRoleIncludes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		role     Role
		required Role
		want     bool
	}{
		{RoleOwner, RoleOwner, true},
		{RoleOwner, RoleCanEdit, true},
		{RoleOwner, RoleCanView, true},
		{RoleCanEdit, RoleOwner, false},
		{RoleCanEdit, RoleCanEdit, true},
		{RoleCanEdit, RoleCanView, true},
		{RoleCanView, RoleOwner, false},
		{RoleCanView, RoleCanEdit, false},
		{RoleCanView, RoleCanView, true},
		{Role(""), RoleCanView, false},
		{Role("admin"), RoleCanView, false},
		{RoleOwner, Role("admin"), false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(string(tc.role)+"/"+string(tc.required), func(t *testing.T) {
			t.Parallel()
			if got := tc.role.Includes(tc.required); got != tc.want {
				t.Fatalf("%q.Includes(%q) = %v, want %v", tc.role, tc.required, got, tc.want)
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{in: "owner", want: RoleOwner},
		{in: "canEdit", want: RoleCanEdit},
		{in: " CANVIEW ", want: RoleCanView},
		{in: "admin", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tc := range tests {
		got, err := ParseRole(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseRole(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseRole(%q) unexpected error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseRole(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
