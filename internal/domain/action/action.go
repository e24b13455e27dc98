// Package action defines the admin commands accepted by the fulfillment engine.
// Each command carries only the fields its transition needs.
package action

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/garyjia/assignment-fulfillment/internal/domain/entity"
	"github.com/garyjia/assignment-fulfillment/internal/domain/workflow"
	"github.com/garyjia/assignment-fulfillment/pkg/utils"
)

// Action is one admin command against a single assignment
type Action interface {
	// Trigger returns the workflow trigger the action fires
	Trigger() workflow.Trigger

	// Validate checks the payload. Errors wrap workflow.ErrInvalidInput.
	Validate() error
}

// SubmitRequirement records the project requirement
type SubmitRequirement struct {
	ProjectType       string `json:"projectType"`
	CollegeGuidelines string `json:"collegeGuidelines"`
	Notes             string `json:"notes"`
}

// RequestPayment asks for the advance or the final payment
type RequestPayment struct {
	Kind   entity.PaymentKind `json:"kind"`
	Amount float64            `json:"amount"`
	Notes  string             `json:"notes"`
}

// StartWork moves a paid-or-trusted assignment into active work
type StartWork struct{}

// ReadyForDemo marks the work as ready to be demonstrated
type ReadyForDemo struct{}

// UploadFiles attaches deliverables. FileTypes is parallel to Files.
type UploadFiles struct {
	Files     []entity.FileUpload
	FileTypes []string
}

// MarkDelivered closes the project pipeline
type MarkDelivered struct{}

// Complete closes the course and internship pipeline
type Complete struct{}

// ResendEmail re-fires the notification for the current state
type ResendEmail struct{}

// TriggerEmail fires the initial assignment notice
type TriggerEmail struct{}

func (SubmitRequirement) Trigger() workflow.Trigger { return workflow.TriggerSubmitRequirement }

func (a SubmitRequirement) Validate() error {
	if strings.TrimSpace(a.ProjectType) == "" {
		return invalid("projectType is required")
	}
	return nil
}

// Requirement converts the payload into the persisted requirement record
func (a SubmitRequirement) Requirement() *entity.Requirement {
	return &entity.Requirement{
		ProjectType:       strings.TrimSpace(a.ProjectType),
		CollegeGuidelines: a.CollegeGuidelines,
		Notes:             a.Notes,
	}
}

func (a RequestPayment) Trigger() workflow.Trigger {
	if a.Kind == entity.PaymentKindFinal {
		return workflow.TriggerRequestFinal
	}
	return workflow.TriggerRequestAdvance
}

func (a RequestPayment) Validate() error {
	if !a.Kind.IsValid() {
		return invalid(fmt.Sprintf("unknown payment kind %q", a.Kind))
	}
	if err := utils.ValidateAmount(a.Amount); err != nil {
		return invalid(err.Error())
	}
	return nil
}

func (StartWork) Trigger() workflow.Trigger { return workflow.TriggerStartWork }
func (StartWork) Validate() error           { return nil }

func (ReadyForDemo) Trigger() workflow.Trigger { return workflow.TriggerReadyForDemo }
func (ReadyForDemo) Validate() error           { return nil }

func (UploadFiles) Trigger() workflow.Trigger { return workflow.TriggerUploadFiles }

func (a UploadFiles) Validate() error {
	if len(a.Files) == 0 {
		return invalid("at least one file is required")
	}
	if len(a.Files) != len(a.FileTypes) {
		return invalid(fmt.Sprintf("got %d files but %d file types", len(a.Files), len(a.FileTypes)))
	}
	for i, f := range a.Files {
		if strings.TrimSpace(f.FileName) == "" {
			return invalid(fmt.Sprintf("file %d has no name", i))
		}
		if strings.IndexFunc(f.FileName, isNameChar) < 0 {
			return invalid(fmt.Sprintf("file name %q has no letters or digits", f.FileName))
		}
		if strings.TrimSpace(a.FileTypes[i]) == "" {
			return invalid(fmt.Sprintf("file %s has no type", f.FileName))
		}
	}
	return nil
}

func (MarkDelivered) Trigger() workflow.Trigger { return workflow.TriggerMarkDelivered }
func (MarkDelivered) Validate() error           { return nil }

func (Complete) Trigger() workflow.Trigger { return workflow.TriggerComplete }
func (Complete) Validate() error           { return nil }

func (ResendEmail) Trigger() workflow.Trigger { return workflow.TriggerResendEmail }
func (ResendEmail) Validate() error           { return nil }

func (TriggerEmail) Trigger() workflow.Trigger { return workflow.TriggerSendEmail }
func (TriggerEmail) Validate() error           { return nil }

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", workflow.ErrInvalidInput, reason)
}

func isNameChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
