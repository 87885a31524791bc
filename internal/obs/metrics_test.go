package obs

import "testing"

func TestCountersAcceptLabels(t *testing.T) {
	// Helpers must not panic on arbitrary label values and must be
	// callable before Init registers the collectors.
	TokenIssued("invite")
	TokenValidated("reset", "expired")
	NotificationDispatched("invite", 2)
	NotificationDispatched("invite", 0)
	AuthorizationResolved("workflowlevel2")
}
