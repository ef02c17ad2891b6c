package auth

import "net/http"

// Rejection reasons. They are recorded verbatim in audit meta and metrics.
const (
	ReasonUnauthenticated    = "unauthenticated"
	ReasonActorNotAllowed    = "actor_not_allowed"
	ReasonPatientMismatch    = "patient_mismatch"
	ReasonPatientIDRequired  = "patient_id_required"
	ReasonBranchNotAvailable = "branch_not_applicable"
	ReasonBranchNotSet       = "branch_not_set"
	ReasonBranchMismatch     = "branch_mismatch"
)

// Decision is the outcome of one policy check. On acceptance PatientID and
// Branch carry the trusted values the check resolved, if any.
type Decision struct {
	OK        bool
	Status    int
	Message   string
	Reason    string
	PatientID string
	Branch    string
}

func deny(status int, message, reason string) Decision {
	return Decision{Status: status, Message: message, Reason: reason}
}

// Unauthenticated is the decision for a request without any identity.
func Unauthenticated() Decision {
	return deny(http.StatusUnauthorized, "Unauthorized", ReasonUnauthenticated)
}

// CheckActorAllowed rejects actors whose kind is not in allow. A nil allow
// list accepts every kind.
func CheckActorAllowed(a Actor, allow []Kind) Decision {
	if allow == nil {
		return Decision{OK: true}
	}
	for _, k := range allow {
		if a.Kind() == k {
			return Decision{OK: true}
		}
	}
	return deny(http.StatusForbidden, "Forbidden", ReasonActorNotAllowed)
}

// CheckPatientScope resolves the trusted patient id. Patients are pinned to
// their own id and may not name another one. Staff and doctors have no
// inherent patient, so they must name one; ownership is checked elsewhere.
func CheckPatientScope(a Actor, requested string) Decision {
	if p, ok := a.(Patient); ok {
		if requested != "" && requested != p.PatientID {
			return deny(http.StatusForbidden, "Forbidden", ReasonPatientMismatch)
		}
		return Decision{OK: true, PatientID: p.PatientID}
	}
	if requested == "" {
		return deny(http.StatusBadRequest, "patient_id required", ReasonPatientIDRequired)
	}
	return Decision{OK: true, PatientID: requested}
}

// CheckBranchRequirement resolves the actor's own branch. Patients have no
// branch; staff and doctors whose session carries no recognized branch
// cannot pass.
func CheckBranchRequirement(a Actor) Decision {
	var branch string
	switch v := a.(type) {
	case Doctor:
		branch = v.Branch
	case Staff:
		branch = v.Branch
	default:
		return deny(http.StatusForbidden, "Forbidden", ReasonBranchNotAvailable)
	}
	if branch == "" {
		return deny(http.StatusBadRequest, "Branch not set", ReasonBranchNotSet)
	}
	return Decision{OK: true, Branch: branch}
}

// CheckBranchMatch verifies that a caller-asserted branch agrees with the
// trusted one. The requested value is only a consistency check and is never
// returned; ALL matches anything.
func CheckBranchMatch(trusted, requested string) Decision {
	req := NormalizeBranch(requested)
	if req != "" && trusted != BranchAll && req != trusted {
		return deny(http.StatusForbidden, "Forbidden", ReasonBranchMismatch)
	}
	return Decision{OK: true, Branch: trusted}
}
