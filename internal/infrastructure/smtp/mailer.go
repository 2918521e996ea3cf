// Package smtp envía la RIDE autorizada por correo al comprador.
package smtp

import (
	"bytes"
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"

	"github.com/crisanro/kipu-core/internal/application/facturacion"
	"github.com/crisanro/kipu-core/pkg/config"
)

var _ facturacion.Mailer = (*Mailer)(nil)

// Mailer envía correos con la RIDE adjunta vía SMTP.
type Mailer struct {
	cfg config.SMTPConfig
}

// NewMailer construye el mailer.
func NewMailer(cfg config.SMTPConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

// EnviarRIDE adjunta el PDF y lo envía al comprador. Sin configuración SMTP el
// envío se omite en silencio.
func (m *Mailer) EnviarRIDE(destinatario, claveAcceso string, pdf []byte) error {
	if !m.cfg.Habilitado() || destinatario == "" {
		return nil
	}
	e := email.NewEmail()
	e.From = m.cfg.From
	e.To = []string{destinatario}
	e.Subject = "Su factura electrónica ha sido autorizada"
	e.Text = []byte("Adjuntamos la representación impresa de su factura electrónica.\n\nClave de acceso: " + claveAcceso + "\n")

	if _, err := e.Attach(bytes.NewReader(pdf), claveAcceso+".pdf", "application/pdf"); err != nil {
		return fmt.Errorf("mailer: adjuntar RIDE: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	}
	return e.Send(addr, auth)
}
