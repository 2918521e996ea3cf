package dto

// EmisorResponse perfil del emisor.
type EmisorResponse struct {
	ID                   string `json:"id"`
	RUC                  string `json:"ruc"`
	RazonSocial          string `json:"razon_social"`
	NombreComercial      string `json:"nombre_comercial,omitempty"`
	DireccionMatriz      string `json:"direccion_matriz"`
	Ambiente             string `json:"ambiente"`
	ObligadoContabilidad string `json:"obligado_contabilidad"`
	FirmaCargada         bool   `json:"firma_cargada"`
	FirmaExpiracion      string `json:"firma_expiracion,omitempty"`
	Creditos             int64  `json:"creditos"`
}

// ConfigEmisorRequest body para PATCH /emitter/config.
type ConfigEmisorRequest struct {
	Ambiente        string `json:"ambiente,omitempty"` // "1" | "2"
	NombreComercial string `json:"nombreComercial,omitempty"`
	DireccionMatriz string `json:"direccionMatriz,omitempty"`
}

// UploadP12Response resultado de la carga del certificado.
type UploadP12Response struct {
	Path       string `json:"path"`
	RUC        string `json:"ruc"`
	Expiracion string `json:"expiracion"`
}
