package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"stock-ledger/internal/models"
)

// ErrNoEmail is returned when the customer has no address on file
var ErrNoEmail = errors.New("customer has no email address")

// Notifier turns ledger events into customer emails
type Notifier struct {
	mailer Mailer
}

func NewNotifier(mailer Mailer) *Notifier {
	return &Notifier{mailer: mailer}
}

// Message is a rendered email
type Message struct {
	Subject string
	Body    string
}

// RenderReservation builds the email for a reservation event. ok is false for
// event types customers are not told about.
func RenderReservation(c *models.Customer, productName string, e *models.ReservationEvent) (msg Message, ok bool) {
	name := c.Name
	if name == "" {
		name = "cliente"
	}
	item := fmt.Sprintf("%d x %s %s", e.Quantity, e.PackageLabel, productName)

	switch e.EventType {
	case models.EventTypeReservationCreated:
		return Message{
			Subject: "Reserva confirmada: " + productName,
			Body: strings.Join([]string{
				"Olá " + name + ",",
				"",
				"Sua reserva foi registrada: " + item + ".",
				"Avisaremos quando for entregue.",
			}, "\n"),
		}, true
	case models.EventTypeReservationDelivered:
		return Message{
			Subject: "Reserva entregue: " + productName,
			Body: strings.Join([]string{
				"Olá " + name + ",",
				"",
				"Sua reserva foi entregue: " + item + ".",
				"Obrigado pela preferência!",
			}, "\n"),
		}, true
	}
	return Message{}, false
}

// NotifyReservation emails the customer about e when the event type warrants
// it. It reports whether a message was sent.
func (n *Notifier) NotifyReservation(ctx context.Context, c *models.Customer, productName string, e *models.ReservationEvent) (bool, error) {
	msg, ok := RenderReservation(c, productName, e)
	if !ok {
		return false, nil
	}
	if c.Email == "" {
		return false, ErrNoEmail
	}
	if err := n.mailer.Send(ctx, c.Name, c.Email, msg.Subject, msg.Body); err != nil {
		return false, err
	}
	return true, nil
}
