package common

// Attachment is a file attached to an outgoing email.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// EmailSender delivers transactional email with optional attachments.
type EmailSender interface {
	Send(to, subject, html string, attachments ...Attachment) error
}

// Email is a message captured by InMemoryEmail.
type Email struct {
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// InMemoryEmail records messages for tests instead of sending them.
type InMemoryEmail struct {
	Outbox []Email
}

// Send appends the message to the outbox.
func (m *InMemoryEmail) Send(to, subject, html string, attachments ...Attachment) error {
	if m == nil {
		return nil
	}
	m.Outbox = append(m.Outbox, Email{To: to, Subject: subject, HTML: html, Attachments: attachments})
	return nil
}

// NopEmailSender discards every message.
type NopEmailSender struct{}

// Send implements EmailSender.
func (NopEmailSender) Send(string, string, string, ...Attachment) error { return nil }
