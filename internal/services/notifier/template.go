package notifier

import (
	"fmt"

	"github.com/FieldReport/ImpoundBox/internal/broker/messages"
)

const smsDateLayout = "02 Jan 2006"

func releaseMessage(m messages.ReleaseCommitted) string {
	return fmt.Sprintf(
		"IMPOUND RELEASE: %d box(es) released from %s on %s by %s. %d box(es) remain impounded. Ref %s.",
		m.Quantity, m.DrugshopName, m.CommittedAt.Format(smsDateLayout), m.ReleasedBy, m.BoxesLeft, m.SerialNumber,
	)
}

func inspectionMessage(m messages.InspectionCreated) string {
	return fmt.Sprintf(
		"IMPOUND NOTICE: %d box(es) impounded at %s on %s by %s. Ref %s.",
		m.BoxesImpounded, m.DrugshopName, m.CreatedAt.Format(smsDateLayout), m.CreatedBy, m.SerialNumber,
	)
}
