package auth

import (
	"net/http"
	"testing"
)

func TestCheckActorAllowed(t *testing.T) {
	staff := Staff{ID: "s-1", Role: "rmt", Branch: BranchSI}

	if d := CheckActorAllowed(staff, nil); !d.OK {
		t.Error("nil allow list should accept every actor")
	}
	if d := CheckActorAllowed(staff, []Kind{KindStaff, KindDoctor}); !d.OK {
		t.Error("staff should be allowed when listed")
	}

	d := CheckActorAllowed(staff, []Kind{KindDoctor})
	if d.OK {
		t.Fatal("staff should be rejected from a doctor-only route")
	}
	if d.Status != http.StatusForbidden || d.Reason != ReasonActorNotAllowed {
		t.Errorf("unexpected decision: %#v", d)
	}

	if d := CheckActorAllowed(staff, []Kind{}); d.OK {
		t.Error("an empty allow list should reject everyone")
	}
}

func TestCheckPatientScope_Patient(t *testing.T) {
	p := Patient{PatientID: "p-1"}

	d := CheckPatientScope(p, "")
	if !d.OK || d.PatientID != "p-1" {
		t.Errorf("patient without request should resolve own id, got %#v", d)
	}

	d = CheckPatientScope(p, "p-1")
	if !d.OK || d.PatientID != "p-1" {
		t.Errorf("patient requesting own id should pass, got %#v", d)
	}

	d = CheckPatientScope(p, "p-2")
	if d.OK {
		t.Fatal("patient requesting another id must be rejected")
	}
	if d.Status != http.StatusForbidden || d.Reason != ReasonPatientMismatch {
		t.Errorf("unexpected decision: %#v", d)
	}
	if d.PatientID == "p-2" {
		t.Error("rejected decision must not carry the other patient id")
	}
}

func TestCheckPatientScope_StaffAndDoctor(t *testing.T) {
	for _, a := range []Actor{
		Staff{ID: "s-1", Role: "rmt", Branch: BranchSI},
		Doctor{ID: "d-1", Branch: BranchSL},
	} {
		d := CheckPatientScope(a, "")
		if d.OK || d.Status != http.StatusBadRequest || d.Message != "patient_id required" {
			t.Errorf("%s without patient id: unexpected decision %#v", a.Kind(), d)
		}

		d = CheckPatientScope(a, "p-77")
		if !d.OK || d.PatientID != "p-77" {
			t.Errorf("%s with patient id: unexpected decision %#v", a.Kind(), d)
		}
	}
}

func TestCheckBranchRequirement(t *testing.T) {
	tests := []struct {
		name       string
		actor      Actor
		wantOK     bool
		wantStatus int
		wantBranch string
	}{
		{"patient", Patient{PatientID: "p-1"}, false, http.StatusForbidden, ""},
		{"staff without branch", Staff{ID: "s-1", Role: "rmt"}, false, http.StatusBadRequest, ""},
		{"staff with branch", Staff{ID: "s-1", Role: "rmt", Branch: BranchSL}, true, 0, BranchSL},
		{"staff all", Staff{ID: "s-1", Role: "admin", Branch: BranchAll}, true, 0, BranchAll},
		{"doctor", Doctor{ID: "d-1", Branch: BranchSI}, true, 0, BranchSI},
		{"doctor without branch", Doctor{ID: "d-1"}, false, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := CheckBranchRequirement(tt.actor)
			if d.OK != tt.wantOK {
				t.Fatalf("OK = %v, want %v (%#v)", d.OK, tt.wantOK, d)
			}
			if !d.OK && d.Status != tt.wantStatus {
				t.Errorf("status = %d, want %d", d.Status, tt.wantStatus)
			}
			if d.OK && d.Branch != tt.wantBranch {
				t.Errorf("branch = %q, want %q", d.Branch, tt.wantBranch)
			}
		})
	}

	if d := CheckBranchRequirement(Staff{ID: "s-1"}); d.Message != "Branch not set" {
		t.Errorf("expected 'Branch not set', got %q", d.Message)
	}
}

func TestCheckBranchMatch(t *testing.T) {
	tests := []struct {
		trusted   string
		requested string
		wantOK    bool
	}{
		{BranchSI, "", true},
		{BranchSI, "SI", true},
		{BranchSI, "si", true},
		{BranchSI, "SL", false},
		{BranchSI, "ALL", false},
		{BranchAll, "SI", true},
		{BranchAll, "SL", true},
		{BranchAll, "ALL", true},
		{BranchSI, "unknown", true},
	}
	for _, tt := range tests {
		d := CheckBranchMatch(tt.trusted, tt.requested)
		if d.OK != tt.wantOK {
			t.Errorf("CheckBranchMatch(%q, %q).OK = %v, want %v", tt.trusted, tt.requested, d.OK, tt.wantOK)
			continue
		}
		if d.OK && d.Branch != tt.trusted {
			t.Errorf("CheckBranchMatch(%q, %q) resolved %q, want the trusted branch", tt.trusted, tt.requested, d.Branch)
		}
		if !d.OK && d.Status != http.StatusForbidden {
			t.Errorf("CheckBranchMatch(%q, %q) status = %d, want 403", tt.trusted, tt.requested, d.Status)
		}
	}
}
