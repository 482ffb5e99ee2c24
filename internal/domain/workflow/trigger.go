package workflow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerSubmit  Trigger = "SUBMIT"
	TriggerApprove Trigger = "APPROVE"
	TriggerReject  Trigger = "REJECT"
	TriggerCancel  Trigger = "CANCEL"
	TriggerReopen  Trigger = "REOPEN"
	TriggerRevise  Trigger = "REVISE"
	TriggerRelease Trigger = "RELEASE"
	TriggerReceive Trigger = "RECEIVE"
	TriggerInvoice Trigger = "INVOICE"
	TriggerClose   Trigger = "CLOSE"
)

var validTriggers = map[Trigger]bool{
	TriggerSubmit:  true,
	TriggerApprove: true,
	TriggerReject:  true,
	TriggerCancel:  true,
	TriggerReopen:  true,
	TriggerRevise:  true,
	TriggerRelease: true,
	TriggerReceive: true,
	TriggerInvoice: true,
	TriggerClose:   true,
}

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// IsValid returns true if the trigger is a known trigger
func (t Trigger) IsValid() bool {
	return validTriggers[t]
}
