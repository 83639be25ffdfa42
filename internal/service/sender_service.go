package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"parkspot/internal/db"
	"parkspot/internal/entities"
	"parkspot/internal/events"
)

const emailTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: sans-serif">
  <p>Hello {{.FullName}},</p>
  <p>{{.Headline}}</p>
  <table>
    <tr><td>Reservation</td><td>{{.ReservationID}}</td></tr>
    <tr><td>Parking lot</td><td>{{.LotName}}</td></tr>
    <tr><td>Vehicle</td><td>{{.NumberPlate}} ({{.VehicleType}})</td></tr>
    <tr><td>From</td><td>{{.StartTimeFormatted}}</td></tr>
    <tr><td>To</td><td>{{.EndTimeFormatted}}</td></tr>
    {{if .AmountFormatted}}<tr><td>Amount</td><td>{{.AmountFormatted}}</td></tr>{{end}}
  </table>
  <p>&copy; {{.CurrentYear}} ParkSpot</p>
</body>
</html>`

var emailTmpl = template.Must(template.New("reservation_email").Parse(emailTemplate))

var headlines = map[events.Type]string{
	events.ReservationCreated:     "we received your reservation",
	events.ReservationConfirmed:   "your reservation is confirmed",
	events.ReservationCancelled:   "your reservation has been cancelled",
	events.ReservationRescheduled: "your reservation has been rescheduled",
}

// SenderService turns reservation events into email and SMS. Either channel
// may be nil.
type SenderService struct {
	Email EmailSender
	SMS   SMSSender
}

func NewSenderService(email EmailSender, sms SMSSender) *SenderService {
	return &SenderService{Email: email, SMS: sms}
}

// HandleEvent is the events.Handler of the notification consumer.
func (s *SenderService) HandleEvent(ctx context.Context, ev events.ReservationEvent) error {
	headline, ok := headlines[ev.Type]
	if !ok {
		return nil
	}
	// A reservation confirmed at creation also emits ReservationConfirmed.
	if ev.Type == events.ReservationCreated && ev.Reservation.Status != db.StatusPending {
		return nil
	}

	data := notificationData(ev)
	var errs []error
	if s.Email != nil && ev.Reservation.Email != "" {
		subject := fmt.Sprintf("ParkSpot: %s (%s)", headline, data.ReservationID)
		plain := fmt.Sprintf("Hello %s,\n\n%s.\n\nParking lot: %s\nVehicle: %s (%s)\nFrom: %s\nTo: %s\n",
			data.FullName, capitalize(headline), data.LotName, data.NumberPlate, data.VehicleType,
			data.StartTimeFormatted, data.EndTimeFormatted)
		var html bytes.Buffer
		if err := emailTmpl.Execute(&html, struct {
			entities.NotificationData
			Headline string
		}{data, capitalize(headline)}); err != nil {
			errs = append(errs, fmt.Errorf("render email: %w", err))
		} else if err := s.Email.SendEmail(ctx, ev.Reservation.Email, data.FullName, subject, plain, html.String()); err != nil {
			errs = append(errs, err)
		}
	}
	if s.SMS != nil && ev.Reservation.Phone != "" {
		body := fmt.Sprintf("ParkSpot: %s. %s, %s from %s.", capitalize(headline), data.LotName, data.NumberPlate, data.StartTimeFormatted)
		if err := s.SMS.SendSMS(ctx, ev.Reservation.Phone, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func notificationData(ev events.ReservationEvent) entities.NotificationData {
	loc := time.UTC
	if ev.LotTimezone != "" {
		if l, err := db.LoadZone(ev.LotTimezone); err == nil {
			loc = l
		}
	}
	r := ev.Reservation
	data := entities.NotificationData{
		FullName:           r.FullName,
		ReservationID:      r.ID,
		LotName:            ev.LotName,
		NumberPlate:        r.NumberPlate,
		VehicleType:        string(r.VehicleType),
		StartTimeFormatted: r.StartTime.In(loc).Format("02 Jan 2006 15:04 MST"),
		EndTimeFormatted:   r.EndTime.In(loc).Format("02 Jan 2006 15:04 MST"),
		CurrentYear:        time.Now().In(loc).Year(),
	}
	if r.AmountCents > 0 {
		data.AmountFormatted = fmt.Sprintf("%d.%02d %s", r.AmountCents/100, r.AmountCents%100, r.Currency)
	}
	return data
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
