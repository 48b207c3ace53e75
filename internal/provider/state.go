package provider

// State is the local, closed view of a provider status.
type State string

const (
	StatePending        State = "pending"
	StateActionRequired State = "action_required"
	StateProcessing     State = "processing"
	StateSucceeded      State = "succeeded"
	StateCanceled       State = "canceled"
	StateUnknown        State = "unknown"
)

// MapStatus folds a provider status string into a State. Unrecognized values
// map to StateUnknown and are otherwise passed through untouched by callers.
func MapStatus(status string) State {
	switch status {
	case StatusRequiresPaymentMethod, StatusRequiresConfirmation:
		return StatePending
	case StatusRequiresAction:
		return StateActionRequired
	case StatusProcessing:
		return StateProcessing
	case StatusRequiresCapture, StatusSucceeded:
		return StateSucceeded
	case StatusCanceled:
		return StateCanceled
	default:
		return StateUnknown
	}
}

// RequiresAction reports whether the customer has to act before the intent
// can complete. Either signal is sufficient; the provider may set one without
// the other.
func (i *Intent) RequiresAction() bool {
	if i == nil {
		return false
	}
	return MapStatus(i.Status) == StateActionRequired || i.NextAction != nil
}
