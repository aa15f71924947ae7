package domain

import (
	"encoding/json"
	"strings"
	"time"
)

type serviceRequestAlias ServiceRequest

type serviceRequestJSON struct {
	serviceRequestAlias
	RequestedAt string `json:"data_solicitacao"`
}

// MarshalJSON renders requestedAt as data_solicitacao (dd/mm/yyyy).
func (r ServiceRequest) MarshalJSON() ([]byte, error) {
	out := serviceRequestJSON{serviceRequestAlias: serviceRequestAlias(r)}
	if !r.RequestedAt.IsZero() {
		out.RequestedAt = r.RequestedAt.Format(RequestDateLayout)
	}
	if out.DocumentURLs == nil {
		out.DocumentURLs = []string{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts data_solicitacao in dd/mm/yyyy or RFC 3339.
func (r *ServiceRequest) UnmarshalJSON(data []byte) error {
	var in serviceRequestJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = ServiceRequest(in.serviceRequestAlias)
	raw := strings.TrimSpace(in.RequestedAt)
	if raw == "" {
		return nil
	}
	if t, err := time.Parse(RequestDateLayout, raw); err == nil {
		r.RequestedAt = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return err
	}
	r.RequestedAt = t
	return nil
}

func normalizeToken(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
