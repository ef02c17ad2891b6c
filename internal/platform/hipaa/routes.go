package hipaa

import (
	"net/http"
	"strings"
)

// phiRoutePrefixes lists the route prefixes that carry patient data. Traffic
// on them is always audited, whatever the outcome.
var phiRoutePrefixes = []string{
	"/api/v1/records",
	"/api/v1/patients",
	"/api/v1/consultations",
	"/api/v1/prescriptions",
	"/api/v1/consents",
	"/api/v1/ecg",
	"/api/v1/referrals",
	"/api/v1/vitals",
	"/api/v1/uploads",
	"/api/v1/lab-results",
	"/api/v1/certificates",
	"/api/v1/access/patient",
}

// IsPHIRoute reports whether path falls under a PHI route prefix.
func IsPHIRoute(path string) bool {
	p := strings.ToLower(path)
	for _, prefix := range phiRoutePrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// ActionForRequest classifies a request for the audit trail. A "verify"
// path segment wins over "sign"; otherwise safe methods read and the rest
// write.
func ActionForRequest(path, method string) Action {
	segments := strings.Split(strings.ToLower(path), "/")
	if hasSegment(segments, "verify") {
		return ActionVerify
	}
	if hasSegment(segments, "sign") {
		return ActionSign
	}
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return ActionRead
	}
	return ActionWrite
}

func hasSegment(segments []string, want string) bool {
	for _, s := range segments {
		if s == want {
			return true
		}
	}
	return false
}
