package flow

import (
	"sort"

	"despachante/pkg/domain"
)

// SortOrder orders requests by request date.
type SortOrder string

const (
	SortRecent SortOrder = "recent"
	SortOldest SortOrder = "oldest"
)

// FilterServices keeps requests with the given status (all when status is
// empty) and sorts them by request date. Ties keep their input order.
func FilterServices(reqs []domain.ServiceRequest, status domain.ServiceStatus, order SortOrder) []domain.ServiceRequest {
	out := make([]domain.ServiceRequest, 0, len(reqs))
	for _, r := range reqs {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if order == SortOldest {
			return out[i].RequestedAt.Before(out[j].RequestedAt)
		}
		return out[i].RequestedAt.After(out[j].RequestedAt)
	})
	return out
}
