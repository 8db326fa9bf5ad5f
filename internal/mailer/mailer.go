package mailer

import (
	"gopkg.in/gomail.v2"
)

// Mailer sends host notifications over SMTP.
type Mailer struct {
	from     string
	password string
}

func New(from, password string) *Mailer {
	return &Mailer{from: from, password: password}
}

func (m *Mailer) SendListingCreatedEmail(toEmail, listingTitle string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", toEmail)
	msg.SetHeader("Subject", "New Listing Created")
	msg.SetBody("text/plain", "Your listing '"+listingTitle+"' has been created successfully.")

	d := gomail.NewDialer("smtp.gmail.com", 587, m.from, m.password)
	return d.DialAndSend(msg)
}
