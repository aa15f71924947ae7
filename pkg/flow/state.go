// Package flow drives the client side of a service request: the four input
// steps, the final submission and the password-recovery dialogue.
package flow

import "sync"

// Document is a file picked on the upload step.
type Document struct {
	Name string
	URI  string
}

// State is the in-progress request carried across steps.
type State struct {
	ServiceType     string
	ApplicantName   string
	VehiclePlate    string
	VehicleNickname string
	Documents       []Document
	// TaxID is the CPF as 11 digits.
	TaxID         string
	PaymentMethod string
	AuthToken     string
}

// Patch lists the fields to overwrite; nil fields are left untouched.
type Patch struct {
	ServiceType     *string
	ApplicantName   *string
	VehiclePlate    *string
	VehicleNickname *string
	Documents       []Document
	TaxID           *string
	PaymentMethod   *string
	AuthToken       *string
}

// Holder owns one State. It performs no validation.
type Holder struct {
	mu    sync.Mutex
	state State
}

func (h *Holder) Get() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.state
	s.Documents = append([]Document(nil), h.state.Documents...)
	return s
}

// Merge overwrites the fields present in p.
func (h *Holder) Merge(p Patch) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&h.state.ServiceType, p.ServiceType)
	set(&h.state.ApplicantName, p.ApplicantName)
	set(&h.state.VehiclePlate, p.VehiclePlate)
	set(&h.state.VehicleNickname, p.VehicleNickname)
	set(&h.state.TaxID, p.TaxID)
	set(&h.state.PaymentMethod, p.PaymentMethod)
	set(&h.state.AuthToken, p.AuthToken)
	if p.Documents != nil {
		h.state.Documents = append([]Document(nil), p.Documents...)
	}
}

func (h *Holder) Reset() {
	h.mu.Lock()
	h.state = State{}
	h.mu.Unlock()
}
