package workflow

// Trigger represents an admin action checked against the transition graph
type Trigger string

const (
	TriggerSubmitRequirement Trigger = "submit-requirement"
	TriggerRequestAdvance    Trigger = "request-advance"
	TriggerStartWork         Trigger = "start-work"
	TriggerReadyForDemo      Trigger = "ready-for-demo"
	TriggerRequestFinal      Trigger = "request-final"
	TriggerUploadFiles       Trigger = "upload-files"
	TriggerMarkDelivered     Trigger = "mark-delivered"
	TriggerComplete          Trigger = "complete"
	TriggerResendEmail       Trigger = "resend-email"
	TriggerSendEmail         Trigger = "trigger-email"
)

var validTriggers = map[Trigger]bool{
	TriggerSubmitRequirement: true,
	TriggerRequestAdvance:    true,
	TriggerStartWork:         true,
	TriggerReadyForDemo:      true,
	TriggerRequestFinal:      true,
	TriggerUploadFiles:       true,
	TriggerMarkDelivered:     true,
	TriggerComplete:          true,
	TriggerResendEmail:       true,
	TriggerSendEmail:         true,
}

// AllTriggers returns every known trigger
func AllTriggers() []Trigger {
	return []Trigger{
		TriggerSubmitRequirement,
		TriggerRequestAdvance,
		TriggerStartWork,
		TriggerReadyForDemo,
		TriggerRequestFinal,
		TriggerUploadFiles,
		TriggerMarkDelivered,
		TriggerComplete,
		TriggerResendEmail,
		TriggerSendEmail,
	}
}

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// IsValid returns true if the trigger is a known action
func (t Trigger) IsValid() bool {
	return validTriggers[t]
}
