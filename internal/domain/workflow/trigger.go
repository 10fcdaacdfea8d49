package workflow

// Trigger is an event fired against a request or wizard session
type Trigger string

const (
	TriggerSubmit  Trigger = "SUBMIT"
	TriggerApprove Trigger = "APPROVE"
	TriggerMerge   Trigger = "MERGE"
	TriggerReject  Trigger = "REJECT"
	TriggerFail    Trigger = "FAIL"
	TriggerEdit    Trigger = "EDIT"
)

func (t Trigger) String() string {
	return string(t)
}
