package mail

import (
	"bytes"
	"embed"
	"io/fs"
	"net/http"

	"github.com/gofiber/template/django/v3"
	"github.com/goliatone/go-errors"
)

//go:embed templates
var templatesFS embed.FS

const verificationTemplate = "verify_email"

// Renderer renders the embedded django templates.
type Renderer struct {
	engine   *django.Engine
	from     string
	ttlLabel string
}

type RendererOption func(*Renderer)

// WithTTLLabel sets the human readable link lifetime shown in the email.
func WithTTLLabel(label string) RendererOption {
	return func(r *Renderer) {
		if label != "" {
			r.ttlLabel = label
		}
	}
}

func NewRenderer(from string, opts ...RendererOption) (*Renderer, error) {
	sub, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		return nil, err
	}

	engine := django.NewFileSystem(http.FS(sub), ".html")
	if err := engine.Load(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load mail templates")
	}

	r := &Renderer{
		engine:   engine,
		from:     from,
		ttlLabel: "1 часа",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Verification renders the verification email for to.
func (r *Renderer) Verification(to, verificationURL string) (Message, error) {
	var buf bytes.Buffer
	err := r.engine.Render(&buf, verificationTemplate, map[string]any{
		"subject":          VerificationSubject,
		"verification_url": verificationURL,
		"ttl_label":        r.ttlLabel,
	})
	if err != nil {
		return Message{}, errors.Wrap(err, errors.CategoryInternal, "failed to render verification email")
	}

	return Message{
		From:    r.from,
		To:      to,
		Subject: VerificationSubject,
		HTML:    buf.String(),
	}, nil
}
