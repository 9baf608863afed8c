package domain

// Notification is a templated message for a single recipient.
type Notification struct {
	Recipient string         `json:"recipient"`
	Template  string         `json:"template"`
	ReplyTo   string         `json:"reply_to,omitempty"`
	Context   map[string]any `json:"context"`
}

// Notification templates known to the renderer.
const (
	TemplateRegistrationConfirmation = "registration_confirmation"
	TemplateRegistrationModified     = "registration_modified"
	TemplateInvitation               = "invitation"
	TemplateReminder                 = "reminder"
)
