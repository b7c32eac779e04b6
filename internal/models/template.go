package models

import "time"

// Template type constants
const (
	TemplateTypeText  = "text"
	TemplateTypeImage = "image"
)

// MessageTemplate is the message body a campaign renders per recipient.
// Placeholders use the {name} form; image templates carry a media URL and
// the body becomes the caption.
type MessageTemplate struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Body      string    `json:"body"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate performs validation on template data
func (t *MessageTemplate) Validate() error {
	if t.Name == "" {
		return ErrInvalidInput("name is required")
	}
	if !IsValidTemplateType(t.Type) {
		return ErrInvalidInput("invalid type: must be 'text' or 'image'")
	}
	if t.Body == "" {
		return ErrInvalidInput("body is required")
	}
	if t.Type == TemplateTypeImage && t.ImageURL == "" {
		return ErrInvalidInput("image_url is required for image templates")
	}
	return nil
}

// IsValidTemplateType checks if the template type is valid
func IsValidTemplateType(t string) bool {
	return t == TemplateTypeText || t == TemplateTypeImage
}
