package event

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestType_IsValid(t *testing.T) {
	for _, typ := range Types() {
		if !typ.IsValid() {
			t.Errorf("%s should be valid", typ)
		}
	}
	if Type("instance.approved").IsValid() || Type("").IsValid() {
		t.Error("unknown types should be invalid")
	}

	types := Types()
	types[0] = "mutated"
	if Types()[0] != TypeAssignmentCreated {
		t.Error("Types() should return a copy")
	}
}

func TestNewEvent(t *testing.T) {
	before := time.Now().UTC()
	e := NewEvent(TypeFilesAttached, "asg-1", nil)

	if e.ID == "" {
		t.Error("Event ID should not be empty")
	}
	if e.AssignmentID != "asg-1" || e.Type != TypeFilesAttached {
		t.Errorf("Event = %+v", e)
	}
	if e.OccurredAt.Before(before) || e.OccurredAt.Location() != time.UTC {
		t.Errorf("OccurredAt = %v", e.OccurredAt)
	}
	if other := NewEvent(TypeFilesAttached, "asg-1", nil); other.ID == e.ID {
		t.Error("event ids should be unique")
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name    string
		event   *Event
		typ     Type
		version int64
		check   func(p Payload) bool
	}{
		{
			name:    "assignment created",
			event:   AssignmentCreated("asg-1", "stu-9", "item-3", "project"),
			typ:     TypeAssignmentCreated,
			version: 1,
			check:   func(p Payload) bool { return p.String("item_kind") == "project" && p.String("student_ref") == "stu-9" },
		},
		{
			name:    "status changed",
			event:   StatusChanged("asg-1", "assigned", "requirement-submitted", "submit-requirement", 2),
			typ:     TypeStatusChanged,
			version: 2,
			check:   func(p Payload) bool { return p.String("new_status") == "requirement-submitted" },
		},
		{
			name:    "files attached",
			event:   FilesAttached("asg-1", "ready-for-download", 2, 5, 7),
			typ:     TypeFilesAttached,
			version: 7,
			check:   func(p Payload) bool { return p.Int("file_count") == 2 && p.Int("total_files") == 5 },
		},
		{
			name:  "notification failed",
			event: NotificationFailed("asg-1", "in-progress", true, errors.New("smtp down")),
			typ:   TypeNotificationFailed,
			check: func(p Payload) bool { return p.Bool("resend") && p.String("error") == "smtp down" },
		},
		{
			name:    "payment confirmed",
			event:   PaymentConfirmed("asg-1", "final", 4999.5, 4),
			typ:     TypePaymentConfirmed,
			version: 4,
			check:   func(p Payload) bool { return p["amount"] == 4999.5 && p.String("kind") == "final" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.event.Type != tt.typ || tt.event.AssignmentID != "asg-1" {
				t.Errorf("event = %+v", tt.event)
			}
			if tt.event.Version != tt.version {
				t.Errorf("Version = %d, want %d", tt.event.Version, tt.version)
			}
			if !tt.check(tt.event.Payload) {
				t.Errorf("unexpected payload %v", tt.event.Payload)
			}
		})
	}
}

func TestPayload_SurvivesJSON(t *testing.T) {
	data, err := json.Marshal(FilesAttached("asg-1", "delivered", 3, 4, 9))
	if err != nil {
		t.Fatal(err)
	}

	var decoded Event
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Payload.Int("file_count") != 3 {
		t.Errorf("file_count after decode = %v", decoded.Payload["file_count"])
	}
	if decoded.Version != 9 || decoded.Type != TypeFilesAttached {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestPayload_Missing(t *testing.T) {
	var p Payload
	if p.String("x") != "" || p.Int("x") != 0 || p.Bool("x") {
		t.Error("nil payload should yield zero values")
	}

	p = Payload{"n": "3", "b": "true"}
	if p.Int("n") != 0 || p.Bool("b") {
		t.Error("wrong-typed values should yield zero values")
	}
}
