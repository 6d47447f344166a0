package booking

import (
	"errors"

	"github.com/iliyamo/ticket-sales/internal/model"
)

// Reason explains why a reservation request was rejected.
type Reason string

const (
	ReasonInvalidQuantity             Reason = "InvalidQuantity"
	ReasonEmptyRequest                Reason = "EmptyRequest"
	ReasonSessionNotFound             Reason = "SessionNotFound"
	ReasonSessionClosed               Reason = "SessionClosed"
	ReasonInsufficientAdultCapacity   Reason = "InsufficientAdultCapacity"
	ReasonInsufficientStudentCapacity Reason = "InsufficientStudentCapacity"
	ReasonInsufficientChildCapacity   Reason = "InsufficientChildCapacity"
)

// insufficientReason maps a category to its capacity rejection.
var insufficientReason = map[model.Category]Reason{
	model.CategoryAdult:   ReasonInsufficientAdultCapacity,
	model.CategoryStudent: ReasonInsufficientStudentCapacity,
	model.CategoryChild:   ReasonInsufficientChildCapacity,
}

// ErrUnavailable is returned when a reservation kept losing lock races
// and the retry budget ran out.  Clients should try again later.
var ErrUnavailable = errors.New("booking temporarily unavailable")

// Decision is the outcome of validating a request.  A rejection is a
// value, not an error: Reasons lists every applicable reason and
// Availability, when known, is the session snapshot it was judged on.
type Decision struct {
	Accepted     bool            `json:"accepted"`
	Reasons      []Reason        `json:"reasons,omitempty"`
	Availability *model.Snapshot `json:"availability,omitempty"`
}

// Accept returns an accepting decision.
func Accept() Decision { return Decision{Accepted: true} }

// Reject returns a rejecting decision.
func Reject(snap *model.Snapshot, reasons ...Reason) Decision {
	return Decision{Reasons: reasons, Availability: snap}
}

// Has reports whether r is among the rejection reasons.
func (d Decision) Has(r Reason) bool {
	for _, x := range d.Reasons {
		if x == r {
			return true
		}
	}
	return false
}

// IsValidationFailure reports whether the request itself was malformed
// rather than rejected for capacity or session state.
func (d Decision) IsValidationFailure() bool {
	return d.Has(ReasonInvalidQuantity) || d.Has(ReasonEmptyRequest)
}
