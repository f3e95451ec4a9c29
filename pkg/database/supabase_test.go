package database

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"project-collab-backend/pkg/models"
)

func TestSupabaseErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unique violation", http.StatusConflict, `{"code":"23505","message":"duplicate key value violates unique constraint"}`, ErrDuplicate},
		{"last owner", http.StatusBadRequest, `{"code":"P0001","message":"last_owner"}`, ErrLastOwner},
		{"missing row", http.StatusBadRequest, `{"code":"P0001","message":"not_found"}`, ErrNotFound},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			db := NewSupabaseDatabase(srv.URL, "key")
			err := db.RemoveProjectMember(context.Background(), "m1")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestSupabaseRPCRequest(t *testing.T) {
	t.Parallel()

	var gotPath, gotKey string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("apikey")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`null`))
	}))
	defer srv.Close()

	db := NewSupabaseDatabase(srv.URL, "service-key")
	if err := db.UpdateMemberRole(context.Background(), "m1", models.RoleCanEdit); err != nil {
		t.Fatalf("update role: %v", err)
	}
	if gotPath != "/rest/v1/rpc/update_member_role" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotKey != "service-key" {
		t.Fatalf("expected apikey header, got %q", gotKey)
	}
	if gotBody["p_id"] != "m1" || gotBody["p_role"] != "canEdit" {
		t.Fatalf("unexpected rpc args %v", gotBody)
	}
}

func TestSupabaseGetMembershipNotFound(t *testing.T) {
	t.Parallel()

	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	db := NewSupabaseDatabase(srv.URL, "key")
	if _, err := db.GetMembership(context.Background(), "u1", "p1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if gotQuery != "user_id=eq.u1&project_id=eq.p1&limit=1" {
		t.Fatalf("unexpected query %q", gotQuery)
	}
}

func TestSupabaseListProjectOwners(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"project_id":"p1","user_id":"alice"},{"project_id":"p1","user_id":"bob"},{"project_id":"p2","user_id":"carol"}]`))
	}))
	defer srv.Close()

	db := NewSupabaseDatabase(srv.URL, "key")
	owners, err := db.ListProjectOwners(context.Background(), []string{"p1", "p2"})
	if err != nil {
		t.Fatalf("list owners: %v", err)
	}
	if len(owners["p1"]) != 2 || owners["p2"][0] != "carol" {
		t.Fatalf("unexpected owners %v", owners)
	}
}
