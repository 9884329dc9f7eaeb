package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wellhavenhq/telehealth-platform/internal/events"
	"github.com/wellhavenhq/telehealth-platform/internal/patients"
	"github.com/wellhavenhq/telehealth-platform/internal/therapists"
	"github.com/wellhavenhq/telehealth-platform/pkg/logging"
)

// Dispatcher turns outbox entries into patient emails. It implements
// events.DeliveryHandler, so the outbox deliverer drives it.
type Dispatcher struct {
	email      EmailSender
	patients   patients.Directory
	therapists therapists.Directory
	logger     *logging.Logger
}

// NewDispatcher creates the notification dispatcher.
func NewDispatcher(email EmailSender, patientDir patients.Directory, therapistDir therapists.Directory, logger *logging.Logger) *Dispatcher {
	if email == nil {
		email = NewStubEmailSender(logger)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		email:      email,
		patients:   patientDir,
		therapists: therapistDir,
		logger:     logger,
	}
}

// Handle routes one outbox entry. Unknown event types are acknowledged
// so they don't wedge the queue.
func (d *Dispatcher) Handle(ctx context.Context, entry events.OutboxEntry) error {
	switch entry.Type {
	case events.TypeBookingConfirmed:
		return d.handleBookingConfirmed(ctx, entry)
	case events.TypeCreditsGranted:
		return d.handleCreditsGranted(ctx, entry)
	default:
		d.logger.Debug("notify: ignoring event", "type", entry.Type, "event_id", entry.ID)
		return nil
	}
}

func (d *Dispatcher) handleBookingConfirmed(ctx context.Context, entry events.OutboxEntry) error {
	var evt events.BookingConfirmed
	if err := json.Unmarshal(entry.Payload, &evt); err != nil {
		return fmt.Errorf("notify: decode booking event: %w", err)
	}

	patient, err := d.patients.Get(ctx, evt.PatientID)
	if err != nil {
		return fmt.Errorf("notify: patient lookup: %w", err)
	}
	therapist, err := d.therapists.Get(ctx, evt.TherapistID)
	if err != nil {
		return fmt.Errorf("notify: therapist lookup: %w", err)
	}

	msg := EmailMessage{
		To:      patient.Email,
		ToName:  patient.DisplayName,
		Subject: "Your session is confirmed",
		Body: fmt.Sprintf(
			"Hi %s,\n\nYour session with %s on %s at %s is confirmed.\n\nSee you there,\nWellHaven",
			patient.DisplayName, therapist.DisplayName, evt.Day, evt.Start,
		),
	}
	if err := d.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: booking confirmation email: %w", err)
	}
	return nil
}

func (d *Dispatcher) handleCreditsGranted(ctx context.Context, entry events.OutboxEntry) error {
	var evt events.CreditsGranted
	if err := json.Unmarshal(entry.Payload, &evt); err != nil {
		return fmt.Errorf("notify: decode credits event: %w", err)
	}

	patient, err := d.patients.Get(ctx, evt.PatientID)
	if err != nil {
		return fmt.Errorf("notify: patient lookup: %w", err)
	}

	msg := EmailMessage{
		To:      patient.Email,
		ToName:  patient.DisplayName,
		Subject: "Your credits are ready",
		Body: fmt.Sprintf(
			"Hi %s,\n\n%d session credits have been added to your account. You can book a session any time.\n\nWellHaven",
			patient.DisplayName, evt.Count,
		),
	}
	if err := d.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: credits email: %w", err)
	}
	return nil
}
