package dto

// TopupRequest body para POST /admin/topup (autenticado con x-n8n-key).
type TopupRequest struct {
	RUC      string `json:"ruc"`
	Cantidad int64  `json:"cantidad"`
	Detalle  string `json:"detalle,omitempty"`
}

// TopupResponse saldo resultante tras la recarga.
type TopupResponse struct {
	EmisorID string `json:"emisor_id"`
	Balance  int64  `json:"balance"`
}

// StatusIntegracionResponse resumen del emisor para GET /integrations/status.
type StatusIntegracionResponse struct {
	Emisor   EmisorResponse   `json:"emisor"`
	Facturas []FacturaResumen `json:"facturas"`
}
