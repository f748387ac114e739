package security_test

import (
	"strings"
	"testing"

	"github.com/geocoder89/userhub/internal/security"
)

func TestHashAndCheckPassword(t *testing.T) {
	hasher := security.NewBcryptHasher()

	hash, err := hasher.Hash("Passw0rd!")

	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}

	if hash == "Passw0rd!" {
		t.Fatal("hash must not equal the plaintext")
	}

	err = security.CheckPassword(hash, "Passw0rd!")

	if err != nil {
		t.Fatalf("check against correct password failed: %v", err)
	}

	err = security.CheckPassword(hash, "wrong")

	if err == nil {
		t.Fatal("check against wrong password must fail")
	}
}

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		minLen   int
		wantErr  string
	}{
		{name: "valid", password: "Passw0rd!", minLen: 8},
		{name: "exactly min length", password: "Aa345678", minLen: 8},
		{name: "too short", password: "Aa1", minLen: 8, wantErr: "at least 8 characters"},
		{name: "custom min length", password: "Passw0rd!", minLen: 12, wantErr: "at least 12 characters"},
		{name: "no uppercase", password: "passw0rd!", minLen: 8, wantErr: "uppercase"},
		{name: "no lowercase", password: "PASSW0RD!", minLen: 8, wantErr: "uppercase"},
		{name: "no digit", password: "Password!", minLen: 8, wantErr: "uppercase"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := security.ValidatePasswordStrength(tc.password, tc.minLen)

			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}

			if err == nil {
				t.Fatal("expected an error")
			}

			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q does not mention %q", err.Error(), tc.wantErr)
			}
		})
	}
}
