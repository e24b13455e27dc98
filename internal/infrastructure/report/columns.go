package report

import (
	"strconv"
	"strings"
	"time"

	"github.com/garyjia/assignment-fulfillment/internal/domain/entity"
)

// header is shared by every export format
var header = []string{
	"Assignment ID",
	"Student",
	"Item",
	"Kind",
	"Status",
	"Payment Status",
	"Advance Amount",
	"Advance Status",
	"Final Amount",
	"Final Status",
	"Project Type",
	"Files",
	"Assigned By",
	"Assigned At",
	"Last Notified At",
	"Updated At",
}

// row flattens one assignment. Amounts stay numeric so spreadsheets can sum them.
func row(a *entity.Assignment) []interface{} {
	projectType := ""
	if a.Requirement != nil {
		projectType = a.Requirement.ProjectType
	}

	files := make([]string, 0, len(a.DeliveryFiles))
	for _, f := range a.DeliveryFiles {
		files = append(files, f.FileName)
	}

	return []interface{}{
		a.ID,
		a.StudentRef,
		a.ItemRef,
		string(a.ItemKind),
		a.Status.String(),
		string(a.Payment.Status),
		a.Payment.AdvanceAmount,
		string(a.Payment.StatusOf(entity.PaymentKindAdvance)),
		a.Payment.FinalAmount,
		string(a.Payment.StatusOf(entity.PaymentKindFinal)),
		projectType,
		strings.Join(files, "; "),
		a.AssignedBy,
		formatTime(&a.AssignedAt),
		formatTime(a.LastNotifiedAt),
		formatTime(&a.UpdatedAt),
	}
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toStrings(values []interface{}) []string {
	out := make([]string, len(values))
	for i, v := range values {
		switch val := v.(type) {
		case string:
			out[i] = val
		case float64:
			out[i] = strconv.FormatFloat(val, 'f', 2, 64)
		}
	}
	return out
}
