package entity

// ItemKind identifies what kind of catalog item an assignment is bound to
type ItemKind string

const (
	ItemKindProject    ItemKind = "project"
	ItemKindCourse     ItemKind = "course"
	ItemKindInternship ItemKind = "internship"
)

// IsValid reports whether the kind is known
func (k ItemKind) IsValid() bool {
	switch k {
	case ItemKindProject, ItemKindCourse, ItemKindInternship:
		return true
	}
	return false
}

// Reduced reports whether the kind follows the short start-work/complete workflow
func (k ItemKind) Reduced() bool {
	return k == ItemKindCourse || k == ItemKindInternship
}

// PaymentStatus moves none -> pending -> paid
type PaymentStatus string

const (
	PaymentStatusNone    PaymentStatus = "none"
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// PaymentKind distinguishes the two payment gates
type PaymentKind string

const (
	PaymentKindAdvance PaymentKind = "advance"
	PaymentKindFinal   PaymentKind = "final"
)

// IsValid reports whether the kind is known
func (k PaymentKind) IsValid() bool {
	return k == PaymentKindAdvance || k == PaymentKindFinal
}

// Status buckets for listings and reports
const (
	BucketAll       = "all"
	BucketActive    = "active"
	BucketDelivered = "delivered"
)

// ValidBucket reports whether the bucket name is known
func ValidBucket(bucket string) bool {
	switch bucket {
	case BucketAll, BucketActive, BucketDelivered:
		return true
	}
	return false
}

// Notification status constants
const (
	NotificationStatusSent   = "SENT"
	NotificationStatusFailed = "FAILED"
)

// Notification template keys
const (
	TemplateAssignmentCreated       = "assignment-created"
	TemplateRequirementReceived     = "requirement-received"
	TemplateAdvancePaymentRequested = "advance-payment-requested"
	TemplateWorkStarted             = "work-started"
	TemplateDemoReady               = "demo-ready"
	TemplateFinalPaymentRequested   = "final-payment-requested"
	TemplateFilesReady              = "files-ready"
	TemplateDelivered               = "delivered"
	TemplateCompleted               = "completed"
)
