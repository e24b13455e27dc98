package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/assignment-fulfillment/internal/domain/workflow"
)

// Assignment binds one student to one work item and tracks its fulfillment progress
type Assignment struct {
	ID             string         `json:"id"`
	StudentRef     string         `json:"student_ref"`
	ItemRef        string         `json:"item_ref"`
	ItemKind       ItemKind       `json:"item_kind"`
	Status         workflow.State `json:"status"`
	Payment        Payment        `json:"payment"`
	Requirement    *Requirement   `json:"requirement,omitempty"`
	DeliveryFiles  []DeliveryFile `json:"delivery_files"`
	AssignedBy     string         `json:"assigned_by"`
	AssignedAt     time.Time      `json:"assigned_at"`
	LastNotifiedAt *time.Time     `json:"last_notified_at,omitempty"`
	Version        int64          `json:"version"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Payment is the embedded payment sub-ledger of an assignment
type Payment struct {
	Status        PaymentStatus `json:"status"`
	Amount        float64       `json:"amount"`
	AdvanceAmount float64       `json:"advance_amount"`
	FinalAmount   float64       `json:"final_amount"`
	Notes         string        `json:"notes"`
	AdvanceStatus PaymentStatus `json:"advance_status"`
	FinalStatus   PaymentStatus `json:"final_status"`
}

// Requirement is captured once, on submit-requirement
type Requirement struct {
	ProjectType       string `json:"project_type"`
	CollegeGuidelines string `json:"college_guidelines"`
	Notes             string `json:"notes"`
}

// DeliveryFile is a reference returned by the artifact store
type DeliveryFile struct {
	FileName string `json:"file_name"`
	FilePath string `json:"file_path"`
	FileType string `json:"file_type"`
}

// NewAssignment creates an assignment in the initial state
func NewAssignment(studentRef, itemRef string, kind ItemKind, assignedBy string, now time.Time) *Assignment {
	return &Assignment{
		ID:         uuid.NewString(),
		StudentRef: studentRef,
		ItemRef:    itemRef,
		ItemKind:   kind,
		Status:     workflow.StateAssigned,
		Payment: Payment{
			Status:        PaymentStatusNone,
			AdvanceStatus: PaymentStatusNone,
			FinalStatus:   PaymentStatusNone,
		},
		DeliveryFiles: []DeliveryFile{},
		AssignedBy:    assignedBy,
		AssignedAt:    now,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Clone returns a deep copy so a rejected action can never leak a partial mutation
func (a *Assignment) Clone() *Assignment {
	c := *a
	if a.Requirement != nil {
		req := *a.Requirement
		c.Requirement = &req
	}
	if a.LastNotifiedAt != nil {
		t := *a.LastNotifiedAt
		c.LastNotifiedAt = &t
	}
	c.DeliveryFiles = append([]DeliveryFile{}, a.DeliveryFiles...)
	return &c
}

// StatusOf returns the sub-status of the given payment kind
func (p Payment) StatusOf(kind PaymentKind) PaymentStatus {
	var s PaymentStatus
	switch kind {
	case PaymentKindAdvance:
		s = p.AdvanceStatus
	case PaymentKindFinal:
		s = p.FinalStatus
	}
	if s == "" {
		return PaymentStatusNone
	}
	return s
}

// AmountOf returns the amount recorded for the given payment kind
func (p Payment) AmountOf(kind PaymentKind) float64 {
	if kind == PaymentKindAdvance {
		return p.AdvanceAmount
	}
	return p.FinalAmount
}
