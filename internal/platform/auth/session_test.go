package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func signToken(t *testing.T, claims jwt.Claims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func registered(sub string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
}

func TestJWTStaffSessions_ValidCookie(t *testing.T) {
	tok := signToken(t, StaffClaims{
		RegisteredClaims: registered("st-7"),
		Role:             "rmt",
		LoginCode:        "RMT-SI-7",
		Branch:           "SI",
		Initials:         "JD",
	}, testSigningKey)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: StaffSessionCookie, Value: tok})

	s, err := NewJWTStaffSessions(testSigningKey).StaffSession(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s == nil || s.ID != "st-7" || s.Role != "rmt" || s.Branch != "SI" || s.LoginCode != "RMT-SI-7" {
		t.Errorf("unexpected session: %#v", s)
	}
}

func TestJWTStaffSessions_NoCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	s, err := NewJWTStaffSessions(testSigningKey).StaffSession(req)
	if err != nil || s != nil {
		t.Fatalf("expected no session and no error, got %#v, %v", s, err)
	}
}

func TestJWTStaffSessions_WrongKey(t *testing.T) {
	tok := signToken(t, StaffClaims{RegisteredClaims: registered("st-7"), Role: "rmt"}, []byte("other-key"))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: StaffSessionCookie, Value: tok})

	if _, err := NewJWTStaffSessions(testSigningKey).StaffSession(req); err == nil {
		t.Fatal("expected error for token signed with another key")
	}
}

func TestJWTStaffSessions_Expired(t *testing.T) {
	claims := StaffClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "st-7",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
		Role: "rmt",
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: StaffSessionCookie, Value: signToken(t, claims, testSigningKey)})

	if _, err := NewJWTStaffSessions(testSigningKey).StaffSession(req); err == nil {
		t.Fatal("expected error for expired session")
	}
}

func TestJWTStaffSessions_MissingKey(t *testing.T) {
	tok := signToken(t, StaffClaims{RegisteredClaims: registered("st-7"), Role: "rmt"}, testSigningKey)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: StaffSessionCookie, Value: tok})

	if _, err := NewJWTStaffSessions(nil).StaffSession(req); err == nil {
		t.Fatal("expected error when no signing key is configured")
	}
}

func TestJWTDoctorSessions_ValidCookie(t *testing.T) {
	tok := signToken(t, DoctorClaims{
		RegisteredClaims:  registered("doc-3"),
		Branch:            "SL",
		Name:              "Ana Reyes",
		DisplayName:       "Dr. Reyes",
		ExternalLicenseID: "PRC-0099",
	}, testSigningKey)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: DoctorSessionCookie, Value: tok})

	s, err := NewJWTDoctorSessions(testSigningKey).DoctorSession(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID != "doc-3" || s.Branch != "SL" || s.ExternalLicenseID != "PRC-0099" {
		t.Errorf("unexpected session: %#v", s)
	}
}

func TestJWTPatientTokens(t *testing.T) {
	src := &JWTPatientTokens{Key: testSigningKey, Issuer: "clinic-mobile"}

	good := signToken(t, PatientClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "p-42",
			Issuer:    "clinic-mobile",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		TokenType: "patient",
	}, testSigningKey)

	wrongIssuer := signToken(t, PatientClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "p-42", Issuer: "someone-else"},
	}, testSigningKey)

	wrongType := signToken(t, PatientClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "p-42", Issuer: "clinic-mobile"},
		TokenType:        "refresh",
	}, testSigningKey)

	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"no header", "", "", false},
		{"valid", "Bearer " + good, "p-42", false},
		{"lowercase scheme", "bearer " + good, "p-42", false},
		{"basic auth", "Basic dXNlcjpwYXNz", "", true},
		{"empty token", "Bearer ", "", true},
		{"garbage", "Bearer not-a-jwt", "", true},
		{"wrong issuer", "Bearer " + wrongIssuer, "", true},
		{"wrong type", "Bearer " + wrongType, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			got, err := src.PatientFromToken(req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
