package workflow

import (
	"context"
	"fmt"

	"github.com/garyjia/assignment-fulfillment/internal/domain/entity"
	domainwf "github.com/garyjia/assignment-fulfillment/internal/domain/workflow"
)

// FulfillmentGraph is a transition table whose guards read the assignment snapshot
type FulfillmentGraph = domainwf.Graph[*entity.Assignment]

var (
	projectGraph       = newProjectGraph("project", false)
	strictProjectGraph = newProjectGraph("project-strict", true)
	reducedGraph       = newReducedGraph()
)

// GraphFor returns the transition graph that governs an assignment of the given kind.
// Courses and internships share the reduced graph.
func GraphFor(kind entity.ItemKind, strictPayment bool) *FulfillmentGraph {
	switch {
	case kind.Reduced():
		return reducedGraph
	case strictPayment:
		return strictProjectGraph
	default:
		return projectGraph
	}
}

func newProjectGraph(name string, strictPayment bool) *FulfillmentGraph {
	g := domainwf.NewGraph[*entity.Assignment](name)

	var advancePaid, finalPaid domainwf.Guard[*entity.Assignment]
	if strictPayment {
		advancePaid = requirePaid(entity.PaymentKindAdvance)
		finalPaid = requirePaid(entity.PaymentKindFinal)
	}

	g.From(domainwf.StateAssigned).
		On(domainwf.TriggerSubmitRequirement, domainwf.StateRequirementSubmitted).
		Stay(domainwf.TriggerSendEmail, domainwf.TriggerResendEmail)

	g.From(domainwf.StateRequirementSubmitted).
		On(domainwf.TriggerRequestAdvance, domainwf.StateAdvancePaymentPending).
		Stay(domainwf.TriggerResendEmail)

	g.From(domainwf.StateAdvancePaymentPending).
		OnIf(domainwf.TriggerStartWork, domainwf.StateInProgress, advancePaid).
		Stay(domainwf.TriggerResendEmail)

	g.From(domainwf.StateInProgress).
		On(domainwf.TriggerReadyForDemo, domainwf.StateReadyForDemo).
		Stay(domainwf.TriggerResendEmail)

	g.From(domainwf.StateReadyForDemo).
		On(domainwf.TriggerRequestFinal, domainwf.StateFinalPaymentPending).
		Stay(domainwf.TriggerResendEmail)

	g.From(domainwf.StateFinalPaymentPending).
		OnIf(domainwf.TriggerUploadFiles, domainwf.StateReadyForDownload, finalPaid).
		Stay(domainwf.TriggerResendEmail)

	g.From(domainwf.StateReadyForDownload).
		On(domainwf.TriggerMarkDelivered, domainwf.StateDelivered).
		Stay(domainwf.TriggerUploadFiles, domainwf.TriggerResendEmail)

	// Terminal states only take more files
	g.From(domainwf.StateDelivered).Stay(domainwf.TriggerUploadFiles)
	g.From(domainwf.StateCompleted).Stay(domainwf.TriggerUploadFiles)

	return g
}

func newReducedGraph() *FulfillmentGraph {
	g := domainwf.NewGraph[*entity.Assignment]("reduced")

	g.From(domainwf.StateAssigned).
		On(domainwf.TriggerStartWork, domainwf.StateInProgress).
		Stay(domainwf.TriggerSendEmail, domainwf.TriggerResendEmail)

	g.From(domainwf.StateInProgress).
		On(domainwf.TriggerComplete, domainwf.StateCompleted).
		Stay(domainwf.TriggerResendEmail)

	g.From(domainwf.StateCompleted).Stay(domainwf.TriggerUploadFiles)

	return g
}

func requirePaid(kind entity.PaymentKind) domainwf.Guard[*entity.Assignment] {
	return func(ctx context.Context, a *entity.Assignment) error {
		if a.Payment.StatusOf(kind) != entity.PaymentStatusPaid {
			return fmt.Errorf("%s payment not confirmed", kind)
		}
		return nil
	}
}
