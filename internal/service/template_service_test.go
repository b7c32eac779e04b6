package service

import (
	"errors"
	"testing"
	"time"

	"github.com/streampainel/campaign-backend/internal/models"
)

func testClient() *models.Client {
	return &models.Client{
		ID:        1,
		Phone:     "5511999990001",
		FirstName: "Ana",
		LastName:  "Souza",
		PlanName:  "Premium",
		Status:    models.ClientStatusActive,
		ExpiresAt: time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestRender(t *testing.T) {
	svc := NewTemplateService()

	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "all placeholders",
			body: "Hi {name}, your {plan} plan expires on {expiration_date}",
			want: "Hi Ana Souza, your Premium plan expires on 15/09/2026",
		},
		{
			name: "first name only",
			body: "Hello {first_name}!",
			want: "Hello Ana!",
		},
		{
			name: "phone placeholder",
			body: "We have {phone} on file",
			want: "We have 5511999990001 on file",
		},
		{
			name: "no placeholders",
			body: "Static announcement",
			want: "Static announcement",
		},
		{
			name: "unknown placeholder removed",
			body: "Hi {first_name}, code {voucher} applied",
			want: "Hi Ana, code  applied",
		},
		{
			name: "repeated placeholder",
			body: "{first_name} {first_name}",
			want: "Ana Ana",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			template := &models.MessageTemplate{
				ID:   1,
				Name: "test",
				Type: models.TemplateTypeText,
				Body: tt.body,
			}
			rendered, err := svc.Render(template, testClient())
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			if rendered.Text != tt.want {
				t.Errorf("Render() = %q, want %q", rendered.Text, tt.want)
			}
			if rendered.Caption != "" {
				t.Errorf("text template produced caption %q", rendered.Caption)
			}
		})
	}
}

func TestRenderImageTemplateUsesCaption(t *testing.T) {
	svc := NewTemplateService()
	template := &models.MessageTemplate{
		ID:       1,
		Name:     "promo",
		Type:     models.TemplateTypeImage,
		Body:     "New plans, {first_name}",
		ImageURL: "https://cdn.example.com/promo.png",
	}

	rendered, err := svc.Render(template, testClient())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if rendered.Caption != "New plans, Ana" {
		t.Errorf("caption = %q", rendered.Caption)
	}
	if rendered.Text != "" {
		t.Errorf("image template produced text %q", rendered.Text)
	}
}

func TestRenderNilArguments(t *testing.T) {
	svc := NewTemplateService()
	template := &models.MessageTemplate{
		ID: 1, Name: "t", Type: models.TemplateTypeText, Body: "hi",
	}

	if _, err := svc.Render(nil, testClient()); !errors.Is(err, models.ErrRenderFailed) {
		t.Errorf("nil template error = %v, want ErrRenderFailed", err)
	}
	if _, err := svc.Render(template, nil); !errors.Is(err, models.ErrRenderFailed) {
		t.Errorf("nil client error = %v, want ErrRenderFailed", err)
	}
}

func TestValidateTemplate(t *testing.T) {
	svc := NewTemplateService()

	tests := []struct {
		name     string
		template *models.MessageTemplate
		wantErr  bool
	}{
		{
			name: "valid text template",
			template: &models.MessageTemplate{
				Name: "renewal", Type: models.TemplateTypeText,
				Body: "Hi {first_name}, plan {plan}",
			},
		},
		{
			name: "valid image template",
			template: &models.MessageTemplate{
				Name: "promo", Type: models.TemplateTypeImage,
				Body: "caption", ImageURL: "https://example.com/a.png",
			},
		},
		{
			name: "unknown placeholder",
			template: &models.MessageTemplate{
				Name: "bad", Type: models.TemplateTypeText,
				Body: "Hi {nickname}",
			},
			wantErr: true,
		},
		{
			name: "image without url",
			template: &models.MessageTemplate{
				Name: "bad", Type: models.TemplateTypeImage,
				Body: "caption",
			},
			wantErr: true,
		},
		{
			name: "empty body",
			template: &models.MessageTemplate{
				Name: "bad", Type: models.TemplateTypeText,
			},
			wantErr: true,
		},
		{
			name: "invalid type",
			template: &models.MessageTemplate{
				Name: "bad", Type: "video", Body: "x",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.ValidateTemplate(tt.template)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTemplate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExtractPlaceholders(t *testing.T) {
	svc := NewTemplateService()

	got := svc.ExtractPlaceholders("Hi {first_name}, your {plan} expires {expiration_date}")
	want := []string{"first_name", "plan", "expiration_date"}
	if len(got) != len(want) {
		t.Fatalf("ExtractPlaceholders() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("placeholder %d = %q, want %q", i, got[i], want[i])
		}
	}

	if got := svc.ExtractPlaceholders("no placeholders"); len(got) != 0 {
		t.Errorf("ExtractPlaceholders() = %v, want empty", got)
	}
}
