package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/streampainel/campaign-backend/internal/models"
)

// RenderedMessage is the per-recipient output of template rendering. Text
// carries the message body for text templates; image templates put the
// rendered body into Caption instead.
type RenderedMessage struct {
	Text    string
	Caption string
}

// TemplateService handles template rendering and validation
type TemplateService interface {
	Render(template *models.MessageTemplate, client *models.Client) (*RenderedMessage, error)
	ValidateTemplate(template *models.MessageTemplate) error
	ExtractPlaceholders(body string) []string
}

type templateService struct {
	placeholderPattern *regexp.Regexp
}

// NewTemplateService creates a new template service
func NewTemplateService() TemplateService {
	return &templateService{
		placeholderPattern: regexp.MustCompile(`\{([a-z_]+)\}`),
	}
}

// Render substitutes placeholders with the client's current data. Unknown
// placeholders are removed rather than left literal; missing fields become
// empty strings. The client record is whatever the caller fetched at
// dispatch time, so mid-campaign edits are reflected.
func (s *templateService) Render(template *models.MessageTemplate, client *models.Client) (*RenderedMessage, error) {
	if template == nil {
		return nil, fmt.Errorf("%w: template is nil", models.ErrRenderFailed)
	}
	if client == nil {
		return nil, fmt.Errorf("%w: client is nil", models.ErrRenderFailed)
	}
	if err := template.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrRenderFailed, err)
	}

	fieldMap := map[string]string{
		"name":            client.FullName(),
		"first_name":      client.FirstName,
		"plan":            client.PlanName,
		"expiration_date": client.ExpiresAt.Format("02/01/2006"),
		"phone":           client.Phone,
	}

	rendered := s.placeholderPattern.ReplaceAllStringFunc(template.Body, func(match string) string {
		fieldName := strings.Trim(match, "{}")
		if value, exists := fieldMap[fieldName]; exists {
			return value
		}
		return ""
	})

	if template.Type == models.TemplateTypeImage {
		return &RenderedMessage{Caption: rendered}, nil
	}
	return &RenderedMessage{Text: rendered}, nil
}

// ValidateTemplate checks structure and placeholder names
func (s *templateService) ValidateTemplate(template *models.MessageTemplate) error {
	if template == nil {
		return models.ErrInvalidInput("template is required")
	}
	if err := template.Validate(); err != nil {
		return err
	}

	validPlaceholders := map[string]bool{
		"name":            true,
		"first_name":      true,
		"plan":            true,
		"expiration_date": true,
		"phone":           true,
	}

	var invalid []string
	for _, placeholder := range s.ExtractPlaceholders(template.Body) {
		if !validPlaceholders[placeholder] {
			invalid = append(invalid, placeholder)
		}
	}

	if len(invalid) > 0 {
		return models.ErrInvalidInput(
			fmt.Sprintf("invalid placeholders: %s. Valid placeholders are: name, first_name, plan, expiration_date, phone",
				strings.Join(invalid, ", ")),
		)
	}

	return nil
}

// ExtractPlaceholders returns all placeholders found in the template body
func (s *templateService) ExtractPlaceholders(body string) []string {
	matches := s.placeholderPattern.FindAllStringSubmatch(body, -1)
	placeholders := make([]string, 0, len(matches))

	for _, match := range matches {
		if len(match) > 1 {
			placeholders = append(placeholders, match[1])
		}
	}

	return placeholders
}
