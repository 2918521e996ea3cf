// Package notify entrega eventos de cambio de estado al webhook configurado.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/crisanro/kipu-core/internal/application/facturacion"
)

var _ facturacion.Notificador = (*WebhookNotifier)(nil)

// WebhookNotifier POSTea eventos con timeout de 5 s. La entrega es
// at-most-once: el worker registra el fallo y no reintenta.
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
}

// NewWebhookNotifier construye el notificador; con URL vacía queda deshabilitado.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:        url,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// NotificarCambioEstado implementa facturacion.Notificador.
func (n *WebhookNotifier) NotificarCambioEstado(ctx context.Context, ev facturacion.EventoFactura) error {
	if n.url == "" {
		return nil
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("notify: serializar evento: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: POST webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook respondió HTTP %d", resp.StatusCode)
	}
	return nil
}
