package volatility

import "fmt"

// State is the lifecycle position of a Model. A model follows one of two
// paths and never mixes them:
//
//	Uninitialized -> DataReady -> Fitted -> Persisted
//	Uninitialized -> Loaded -> Forecasted
type State int

const (
	Uninitialized State = iota
	DataReady
	Fitted
	Persisted
	Loaded
	Forecasted
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case DataReady:
		return "data_ready"
	case Fitted:
		return "fitted"
	case Persisted:
		return "persisted"
	case Loaded:
		return "loaded"
	case Forecasted:
		return "forecasted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) in(allowed ...State) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}
