package constants

type TransferStatus string

const (
	TransferRequested TransferStatus = "requested"
	TransferApproved  TransferStatus = "approved"
	TransferPickedUp  TransferStatus = "picked_up"
	TransferDelivered TransferStatus = "delivered"
	TransferReceived  TransferStatus = "received"
	TransferRejected  TransferStatus = "rejected"
)

// transferTransitions lists every legal edge of the transfer state machine.
var transferTransitions = map[TransferStatus][]TransferStatus{
	TransferRequested: {TransferApproved, TransferRejected},
	TransferApproved:  {TransferPickedUp, TransferRejected},
	TransferPickedUp:  {TransferDelivered},
	TransferDelivered: {TransferReceived},
}

// ReservingStatuses hold a reservation against the source branch.
var ReservingStatuses = []TransferStatus{
	TransferApproved,
	TransferPickedUp,
	TransferDelivered,
}

func (s TransferStatus) String() string {
	return string(s)
}

func (s TransferStatus) IsValid() bool {
	switch s {
	case TransferRequested, TransferApproved, TransferPickedUp, TransferDelivered, TransferReceived, TransferRejected:
		return true
	}
	return false
}

func (s TransferStatus) IsFinal() bool {
	return s == TransferReceived || s == TransferRejected
}

func (s TransferStatus) HoldsReservation() bool {
	for _, r := range ReservingStatuses {
		if r == s {
			return true
		}
	}
	return false
}

func CanTransition(from, to TransferStatus) bool {
	for _, next := range transferTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func ReservingStatusStrings() []string {
	out := make([]string, 0, len(ReservingStatuses))
	for _, s := range ReservingStatuses {
		out = append(out, string(s))
	}
	return out
}
