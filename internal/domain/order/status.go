package order

// Status represents the lifecycle status of a print order
type Status string

const (
	StatusDraft               Status = "draft"
	StatusPending             Status = "pending"
	StatusAccepted            Status = "accepted"
	StatusRejected            Status = "rejected"
	StatusPaid                Status = "paid"
	StatusInProduction        Status = "in_production"
	StatusCompletedByProducer Status = "completed_by_producer"
	StatusConfirmed           Status = "confirmed"
	StatusCancelled           Status = "cancelled"
	StatusDisputeOpen         Status = "dispute_open"
	StatusRefunded            Status = "refunded"
	StatusPartialRefund       Status = "partial_refund"
)

// AllStatuses lists every status in lifecycle order
var AllStatuses = []Status{
	StatusDraft, StatusPending, StatusAccepted, StatusRejected, StatusPaid,
	StatusInProduction, StatusCompletedByProducer, StatusConfirmed, StatusCancelled,
	StatusDisputeOpen, StatusRefunded, StatusPartialRefund,
}

// IsValid checks if the status is a valid Status
func (s Status) IsValid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can move to target. A dispute can return to
// any post-payment status; Order.ResolveDispute narrows that to the status the order
// held when the dispute was opened.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusDraft:
		return target == StatusPending || target == StatusCancelled
	case StatusPending:
		return target == StatusAccepted || target == StatusRejected || target == StatusCancelled
	case StatusAccepted:
		return target == StatusPaid || target == StatusCancelled
	case StatusPaid:
		return target == StatusInProduction || target == StatusDisputeOpen
	case StatusInProduction:
		return target == StatusCompletedByProducer || target == StatusDisputeOpen
	case StatusCompletedByProducer:
		return target == StatusConfirmed || target == StatusDisputeOpen
	case StatusConfirmed:
		return target == StatusDisputeOpen
	case StatusDisputeOpen:
		return target == StatusRefunded || target == StatusPartialRefund || target.IsDisputable()
	case StatusRejected, StatusCancelled, StatusRefunded, StatusPartialRefund:
		return false
	}
	return false
}

// IsDisputable reports whether a dispute can be opened from this status
func (s Status) IsDisputable() bool {
	switch s {
	case StatusPaid, StatusInProduction, StatusCompletedByProducer, StatusConfirmed:
		return true
	}
	return false
}

// IsPaidOrLater reports whether payment has been captured for an order in this status
func (s Status) IsPaidOrLater() bool {
	switch s {
	case StatusPaid, StatusInProduction, StatusCompletedByProducer, StatusConfirmed,
		StatusDisputeOpen, StatusRefunded, StatusPartialRefund:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible
func (s Status) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusCancelled, StatusRefunded, StatusPartialRefund:
		return true
	}
	return false
}
