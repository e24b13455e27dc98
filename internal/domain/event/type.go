package event

// Type names a domain event. Values double as Kafka event_type headers.
type Type string

const (
	TypeAssignmentCreated  Type = "assignment.created"
	TypeStatusChanged      Type = "assignment.status_changed"
	TypeFilesAttached      Type = "assignment.files_attached"
	TypeNotificationFailed Type = "assignment.notification_failed"
	TypePaymentConfirmed   Type = "assignment.payment_confirmed"
)

var knownTypes = []Type{
	TypeAssignmentCreated,
	TypeStatusChanged,
	TypeFilesAttached,
	TypeNotificationFailed,
	TypePaymentConfirmed,
}

// Types returns every domain event type
func Types() []Type {
	return append([]Type(nil), knownTypes...)
}

func (t Type) String() string {
	return string(t)
}

// IsValid reports whether t is a known domain event type
func (t Type) IsValid() bool {
	for _, k := range knownTypes {
		if t == k {
			return true
		}
	}
	return false
}
