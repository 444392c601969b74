package security

import (
	"testing"
	"time"
)

func TestGenerateToken_RoundTrip(t *testing.T) {
	InitJWT([]byte("test-secret"), time.Hour)

	token, err := GenerateToken(7, "root", "admin")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	decoded, err := TokenAuth.Decode(token)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	claims, err := decoded.AsMap(t.Context())
	if err != nil {
		t.Fatalf("AsMap: %v", err)
	}
	if id, _ := GetAdminIDFromClaims(claims); id != "7" {
		t.Fatalf("unexpected admin_id %q", id)
	}
	if role, _ := GetRoleFromClaims(claims); role != "admin" {
		t.Fatalf("unexpected role %q", role)
	}
}

func TestGetAdminIDFromClaims_Missing(t *testing.T) {
	if _, err := GetAdminIDFromClaims(map[string]any{"user_id": "7", "role": "admin"}); err == nil {
		t.Fatal("expected an error without an admin_id claim")
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPasswordHash("hunter2", hash) {
		t.Fatal("expected password to match")
	}
	if CheckPasswordHash("hunter3", hash) {
		t.Fatal("expected mismatch")
	}
}
