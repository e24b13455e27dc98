package action

import (
	"encoding/json"
	"fmt"

	"github.com/garyjia/assignment-fulfillment/internal/domain/entity"
	"github.com/garyjia/assignment-fulfillment/internal/domain/workflow"
)

type envelope struct {
	Action string `json:"action"`
}

type uploadPayload struct {
	Files []struct {
		FileName string `json:"fileName"`
		FileType string `json:"fileType"`
		MimeType string `json:"mimeType"`
		Content  []byte `json:"content"` // base64
	} `json:"files"`
}

type amountPayload struct {
	Amount float64 `json:"amount"`
	Notes  string  `json:"notes"`
}

// Decode parses a JSON action of the form {"action": "<trigger>", ...fields}
func Decode(data []byte) (Action, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed action: %v", workflow.ErrInvalidInput, err)
	}

	switch workflow.Trigger(env.Action) {
	case workflow.TriggerSubmitRequirement:
		var a SubmitRequirement
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, malformed(env.Action, err)
		}
		return a, nil
	case workflow.TriggerRequestAdvance, workflow.TriggerRequestFinal:
		var p amountPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, malformed(env.Action, err)
		}
		kind := entity.PaymentKindAdvance
		if workflow.Trigger(env.Action) == workflow.TriggerRequestFinal {
			kind = entity.PaymentKindFinal
		}
		return RequestPayment{Kind: kind, Amount: p.Amount, Notes: p.Notes}, nil
	case workflow.TriggerStartWork:
		return StartWork{}, nil
	case workflow.TriggerReadyForDemo:
		return ReadyForDemo{}, nil
	case workflow.TriggerUploadFiles:
		var p uploadPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, malformed(env.Action, err)
		}
		a := UploadFiles{}
		for _, f := range p.Files {
			a.Files = append(a.Files, entity.FileUpload{FileName: f.FileName, Content: f.Content, MimeType: f.MimeType})
			a.FileTypes = append(a.FileTypes, f.FileType)
		}
		return a, nil
	case workflow.TriggerMarkDelivered:
		return MarkDelivered{}, nil
	case workflow.TriggerComplete:
		return Complete{}, nil
	case workflow.TriggerResendEmail:
		return ResendEmail{}, nil
	case workflow.TriggerSendEmail:
		return TriggerEmail{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown action %q", workflow.ErrInvalidInput, env.Action)
	}
}

func malformed(name string, err error) error {
	return fmt.Errorf("%w: malformed %s payload: %v", workflow.ErrInvalidInput, name, err)
}
