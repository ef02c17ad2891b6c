package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Default cookie names for the two portal session stores.
const (
	StaffSessionCookie  = "staff_session"
	DoctorSessionCookie = "doctor_session"
)

// StaffClaims is the payload of a signed staff session cookie.
type StaffClaims struct {
	jwt.RegisteredClaims
	Role       string `json:"role"`
	RolePrefix string `json:"role_prefix,omitempty"`
	LoginCode  string `json:"login_code,omitempty"`
	Branch     string `json:"branch,omitempty"`
	Initials   string `json:"initials,omitempty"`
	PatientID  string `json:"patient_id,omitempty"`
}

// DoctorClaims is the payload of a signed physician session cookie.
type DoctorClaims struct {
	jwt.RegisteredClaims
	Branch            string `json:"branch"`
	Name              string `json:"name,omitempty"`
	DisplayName       string `json:"display_name,omitempty"`
	ExternalLicenseID string `json:"license_id,omitempty"`
}

// PatientClaims is the payload of a patient mobile bearer token.
type PatientClaims struct {
	jwt.RegisteredClaims
	TokenType string `json:"typ,omitempty"`
}

var errNoSigningKey = errors.New("session signing key not configured")

func parseHS256(tokenStr string, key []byte, claims jwt.Claims, opts ...jwt.ParserOption) error {
	if len(key) == 0 {
		return errNoSigningKey
	}
	opts = append(opts, jwt.WithValidMethods([]string{"HS256"}))
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return key, nil
	}, opts...)
	if err != nil {
		return fmt.Errorf("parse session token: %w", err)
	}
	if !token.Valid {
		return errors.New("invalid session token")
	}
	return nil
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// JWTStaffSessions reads staff sessions from an HS256-signed cookie.
type JWTStaffSessions struct {
	CookieName string
	Key        []byte
}

// NewJWTStaffSessions creates a staff session source using the default cookie.
func NewJWTStaffSessions(key []byte) *JWTStaffSessions {
	return &JWTStaffSessions{CookieName: StaffSessionCookie, Key: key}
}

func (s *JWTStaffSessions) StaffSession(r *http.Request) (*StaffSession, error) {
	raw := cookieValue(r, s.CookieName)
	if raw == "" {
		return nil, nil
	}
	claims := &StaffClaims{}
	if err := parseHS256(raw, s.Key, claims); err != nil {
		return nil, err
	}
	return &StaffSession{
		ID:         claims.Subject,
		Role:       claims.Role,
		RolePrefix: claims.RolePrefix,
		LoginCode:  claims.LoginCode,
		Branch:     claims.Branch,
		Initials:   claims.Initials,
		PatientID:  claims.PatientID,
	}, nil
}

// JWTDoctorSessions reads physician sessions from an HS256-signed cookie.
type JWTDoctorSessions struct {
	CookieName string
	Key        []byte
}

// NewJWTDoctorSessions creates a physician session source using the default cookie.
func NewJWTDoctorSessions(key []byte) *JWTDoctorSessions {
	return &JWTDoctorSessions{CookieName: DoctorSessionCookie, Key: key}
}

func (s *JWTDoctorSessions) DoctorSession(r *http.Request) (*DoctorSession, error) {
	raw := cookieValue(r, s.CookieName)
	if raw == "" {
		return nil, nil
	}
	claims := &DoctorClaims{}
	if err := parseHS256(raw, s.Key, claims); err != nil {
		return nil, err
	}
	return &DoctorSession{
		ID:                claims.Subject,
		Branch:            claims.Branch,
		Name:              claims.Name,
		DisplayName:       claims.DisplayName,
		ExternalLicenseID: claims.ExternalLicenseID,
	}, nil
}

// JWTPatientTokens validates patient bearer tokens from the mobile app.
type JWTPatientTokens struct {
	Key    []byte
	Issuer string
}

func (s *JWTPatientTokens) PatientFromToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", nil
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", errors.New("invalid authorization format")
	}

	var opts []jwt.ParserOption
	if s.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.Issuer))
	}
	claims := &PatientClaims{}
	if err := parseHS256(strings.TrimSpace(parts[1]), s.Key, claims, opts...); err != nil {
		return "", err
	}
	if claims.TokenType != "" && claims.TokenType != "patient" {
		return "", fmt.Errorf("unexpected token type %q", claims.TokenType)
	}
	return claims.Subject, nil
}
