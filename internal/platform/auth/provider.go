package auth

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// StaffSession is the normalized shape the staff session store hands back.
type StaffSession struct {
	ID         string
	Role       string
	RolePrefix string
	LoginCode  string
	Branch     string
	Initials   string
	// PatientID is set when the session belongs to a patient who signed in
	// through the staff portal (Role == "patient").
	PatientID string
}

// DoctorSession is the normalized shape the physician session store hands back.
type DoctorSession struct {
	ID                string
	Branch            string
	Name              string
	DisplayName       string
	ExternalLicenseID string
}

// StaffSessionSource reads the staff session attached to a request.
// A nil session with a nil error means "no session".
type StaffSessionSource interface {
	StaffSession(r *http.Request) (*StaffSession, error)
}

// DoctorSessionSource reads the physician session attached to a request.
type DoctorSessionSource interface {
	DoctorSession(r *http.Request) (*DoctorSession, error)
}

// PatientTokenSource validates a patient mobile bearer token and returns
// the patient id it carries, or "" when the request has none.
type PatientTokenSource interface {
	PatientFromToken(r *http.Request) (string, error)
}

// Provider turns one identity source into an Actor. A nil Actor with a nil
// error means the source has no identity for this request.
type Provider interface {
	Name() string
	TryResolve(r *http.Request) (Actor, error)
}

type patientTokenProvider struct{ src PatientTokenSource }

func (p patientTokenProvider) Name() string { return "patient_token" }

func (p patientTokenProvider) TryResolve(r *http.Request) (Actor, error) {
	pid, err := p.src.PatientFromToken(r)
	if err != nil || pid == "" {
		return nil, err
	}
	return Patient{PatientID: pid}, nil
}

type doctorProvider struct{ src DoctorSessionSource }

func (p doctorProvider) Name() string { return "doctor_session" }

func (p doctorProvider) TryResolve(r *http.Request) (Actor, error) {
	s, err := p.src.DoctorSession(r)
	if err != nil || s == nil || s.ID == "" {
		return nil, err
	}
	return Doctor{
		ID:                s.ID,
		Branch:            NormalizeBranch(s.Branch),
		Name:              s.Name,
		DisplayName:       s.DisplayName,
		ExternalLicenseID: s.ExternalLicenseID,
	}, nil
}

type staffProvider struct{ src StaffSessionSource }

func (p staffProvider) Name() string { return "staff_session" }

func (p staffProvider) TryResolve(r *http.Request) (Actor, error) {
	s, err := p.src.StaffSession(r)
	if err != nil || s == nil {
		return nil, err
	}
	role := strings.TrimSpace(s.Role)
	if role == "" || strings.EqualFold(role, "patient") {
		return nil, nil
	}
	return NewStaff(*s), nil
}

// staffPatientProvider picks up patients who signed in through the staff
// portal's patient login.
type staffPatientProvider struct{ src StaffSessionSource }

func (p staffPatientProvider) Name() string { return "staff_session_patient" }

func (p staffPatientProvider) TryResolve(r *http.Request) (Actor, error) {
	s, err := p.src.StaffSession(r)
	if err != nil || s == nil {
		return nil, err
	}
	if !strings.EqualFold(strings.TrimSpace(s.Role), "patient") || s.PatientID == "" {
		return nil, nil
	}
	return Patient{PatientID: s.PatientID}, nil
}

// Resolver queries identity providers in a fixed priority order and returns
// the first Actor found:
//
//  1. patient mobile bearer token (only when the caller allows it)
//  2. physician session
//  3. staff session
//  4. patient-flagged staff session
//
// Provider failures count as "no identity from that provider".
type Resolver struct {
	mobile    Provider
	providers []Provider
	logger    zerolog.Logger
}

// NewResolver builds a Resolver. Any source may be nil, in which case the
// corresponding provider is skipped.
func NewResolver(logger zerolog.Logger, patients PatientTokenSource, doctors DoctorSessionSource, staff StaffSessionSource) *Resolver {
	r := &Resolver{logger: logger}
	if patients != nil {
		r.mobile = patientTokenProvider{src: patients}
	}
	if doctors != nil {
		r.providers = append(r.providers, doctorProvider{src: doctors})
	}
	if staff != nil {
		r.providers = append(r.providers, staffProvider{src: staff}, staffPatientProvider{src: staff})
	}
	return r
}

// NewResolverFromProviders builds a Resolver from an explicit ordered list.
// The mobile provider may be nil.
func NewResolverFromProviders(logger zerolog.Logger, mobile Provider, providers ...Provider) *Resolver {
	return &Resolver{mobile: mobile, providers: providers, logger: logger}
}

// Resolve returns the Actor for the request, or nil when no provider
// recognizes the caller.
func (res *Resolver) Resolve(r *http.Request, allowMobileToken bool) Actor {
	if allowMobileToken && res.mobile != nil {
		if a := res.try(res.mobile, r); a != nil {
			return a
		}
	}
	for _, p := range res.providers {
		if a := res.try(p, r); a != nil {
			return a
		}
	}
	return nil
}

func (res *Resolver) try(p Provider, r *http.Request) Actor {
	a, err := p.TryResolve(r)
	if err != nil {
		res.logger.Debug().Err(err).Str("provider", p.Name()).Msg("identity lookup failed")
		return nil
	}
	return a
}
