package forms

import "time"

// ContactPayload é o corpo de POST /api/contact.
type ContactPayload struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Company  string `json:"company,omitempty" validate:"omitempty,max=100"`
	Subject  string `json:"subject" validate:"required,min=5,max=200"`
	Message  string `json:"message" validate:"required,min=10,max=2000"`
	Honeypot string `json:"honeypot,omitempty"`
}

// NewsletterPayload é o corpo de POST /api/newsletter.
type NewsletterPayload struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"firstName" validate:"required,min=1,max=50"`
	Honeypot  string `json:"honeypot,omitempty"`
}

// Submission carrega o que o handler sabe sobre a request aceita.
type Submission struct {
	ID         string
	ReceivedAt time.Time
	Client     string
}

type ContactSubmission struct {
	Submission
	Payload ContactPayload
}

type NewsletterSubmission struct {
	Submission
	Payload NewsletterPayload
}
