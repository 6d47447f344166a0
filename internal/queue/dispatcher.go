package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/iliyamo/ticket-sales/internal/sms"
)

// Dispatcher turns a booking event into an SMS to the purchaser.  The
// broker consumer calls it for each delivery, and it doubles as the
// in-process notifier when no broker is configured.
type Dispatcher struct {
	sender    sms.Sender
	templates *sms.Templates
	logger    *slog.Logger
}

// NewDispatcher returns a Dispatcher.  A nil logger discards output.
func NewDispatcher(sender sms.Sender, templates *sms.Templates, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{sender: sender, templates: templates, logger: logger}
}

// Notify renders the template for the event type and sends it.  Events
// without a template or without a phone number are skipped.  A provider
// refusal is returned as an error so the caller can log it.
func (d *Dispatcher) Notify(ctx context.Context, ev BookingEvent) error {
	if !d.templates.Has(ev.Type) {
		d.logger.DebugContext(ctx, "no sms template", "type", ev.Type)
		return nil
	}
	if ev.Purchaser.Phone == "" {
		d.logger.InfoContext(ctx, "booking has no phone, sms skipped", "booking_ref", ev.BookingRef)
		return nil
	}
	msg, err := d.templates.Render(ev.Type, ev)
	if err != nil {
		return err
	}
	res, err := d.sender.Send(ctx, ev.Purchaser.Phone, msg)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	if !res.Success {
		return fmt.Errorf("sms refused: %s", res.Error)
	}
	d.logger.InfoContext(ctx, "sms sent",
		"type", ev.Type, "booking_ref", ev.BookingRef, "provider_message_id", res.ProviderMessageID)
	return nil
}
