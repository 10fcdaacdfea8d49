package workflow

import (
	domainwf "github.com/garyjia/landrecords/internal/domain/workflow"
)

// BuildApprovalRequestMachine creates a state machine configured for the approval request lifecycle
func BuildApprovalRequestMachine(initialState domainwf.State) domainwf.StateMachine {
	builder := domainwf.NewBuilder()

	// PENDING state transitions
	builder.Configure(domainwf.StatePending).
		Permit(domainwf.TriggerApprove, domainwf.StateApproved).
		Permit(domainwf.TriggerReject, domainwf.StateRejected)

	// APPROVED and REJECTED are terminal states - no outgoing transitions

	return builder.Build(initialState)
}

// BuildWizardSessionMachine creates a state machine configured for the wizard session lifecycle
func BuildWizardSessionMachine(initialState domainwf.State) domainwf.StateMachine {
	builder := domainwf.NewBuilder()

	// DRAFT: editable; submission either waits for a checker or executes directly
	builder.Configure(domainwf.StateDraft).
		Permit(domainwf.TriggerEdit, domainwf.StateDraft).
		Permit(domainwf.TriggerSubmit, domainwf.StatePendingApproval).
		Permit(domainwf.TriggerApprove, domainwf.StateApproved).
		Permit(domainwf.TriggerMerge, domainwf.StateMerged).
		Permit(domainwf.TriggerFail, domainwf.StateFailed)

	// PENDING_APPROVAL state transitions
	builder.Configure(domainwf.StatePendingApproval).
		Permit(domainwf.TriggerApprove, domainwf.StateApproved).
		Permit(domainwf.TriggerMerge, domainwf.StateMerged).
		Permit(domainwf.TriggerReject, domainwf.StateRejected).
		Permit(domainwf.TriggerFail, domainwf.StateFailed)

	// REJECTED: editable again and may be resubmitted
	builder.Configure(domainwf.StateRejected).
		Permit(domainwf.TriggerEdit, domainwf.StateDraft).
		Permit(domainwf.TriggerSubmit, domainwf.StatePendingApproval).
		Permit(domainwf.TriggerApprove, domainwf.StateApproved).
		Permit(domainwf.TriggerMerge, domainwf.StateMerged).
		Permit(domainwf.TriggerFail, domainwf.StateFailed)

	// APPROVED, MERGED and FAILED are terminal states - no outgoing transitions

	return builder.Build(initialState)
}
