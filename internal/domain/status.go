package domain

import "fmt"

// Status is the lifecycle state of an order.
//
//	pending ──> processing ──> shipped ──> delivered
//	   │             │
//	   └─────────────┴──> cancelled
//
// delivered and cancelled are terminal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

var forwardSequence = []Status{
	StatusPending,
	StatusProcessing,
	StatusShipped,
	StatusDelivered,
}

var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusProcessing: true,
		StatusCancelled:  true,
	},
	StatusProcessing: {
		StatusShipped:   true,
		StatusCancelled: true,
	},
	StatusShipped: {
		StatusDelivered: true,
	},
	StatusDelivered: {},
	StatusCancelled: {},
}

func (s Status) Validate() error {
	if _, ok := allowedTransitions[s]; !ok {
		return fmt.Errorf("unknown order status %q", string(s))
	}
	return nil
}

func (s Status) String() string {
	return string(s)
}

func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

func (s Status) CanTransitionTo(target Status) bool {
	return allowedTransitions[s][target]
}

// Next returns the following status in the forward sequence. It reports false
// for terminal statuses.
func (s Status) Next() (Status, bool) {
	for i, st := range forwardSequence[:len(forwardSequence)-1] {
		if st == s {
			return forwardSequence[i+1], true
		}
	}
	return "", false
}
