package dto

import "github.com/shopspring/decimal"

// FacturaItemRequest línea del payload de emisión. tarifaIva acepta fracción
// (0.15) o porcentaje (15).
type FacturaItemRequest struct {
	CodigoPrincipal string          `json:"codigoPrincipal,omitempty"`
	Descripcion     string          `json:"descripcion"`
	Cantidad        decimal.Decimal `json:"cantidad"`
	PrecioUnitario  decimal.Decimal `json:"precioUnitario"`
	Descuento       decimal.Decimal `json:"descuento,omitempty"`
	TarifaIva       decimal.Decimal `json:"tarifaIva"`
}

// EmitirFacturaRequest body para emitir una factura (síncrona o encolada).
type EmitirFacturaRequest struct {
	Establecimiento         string               `json:"establecimiento"` // 3 dígitos
	PuntoEmision            string               `json:"puntoEmision"`    // 3 dígitos
	IdentificacionComprador string               `json:"identificacionComprador"`
	RazonSocialComprador    string               `json:"razonSocialComprador"`
	EmailComprador          string               `json:"emailComprador,omitempty"`
	Items                   []FacturaItemRequest `json:"items"`
}

// EmitirFacturaResponse resultado de la emisión síncrona.
type EmitirFacturaResponse struct {
	InvoiceID         string `json:"invoice_id"`
	ClaveAcceso       string `json:"clave_acceso"`
	Secuencial        string `json:"secuencial"`
	Estado            string `json:"estado"`
	XMLPath           string `json:"xml_path"`
	PDFPath           string `json:"pdf_path"`
	CreditosRestantes int64  `json:"creditos_restantes"`
}

// EncolarFacturaResponse resultado de POST /invoices/emit (asíncrono).
type EncolarFacturaResponse struct {
	InvoiceID string `json:"invoice_id"`
	Estado    string `json:"estado"`
}

// FacturaResumen fila de historial.
type FacturaResumen struct {
	ID                      string `json:"id"`
	Secuencial              string `json:"secuencial,omitempty"`
	ClaveAcceso             string `json:"clave_acceso,omitempty"`
	Estado                  string `json:"estado"`
	IdentificacionComprador string `json:"identificacion_comprador"`
	RazonSocialComprador    string `json:"razon_social_comprador"`
	ImporteTotal            string `json:"importe_total"`
	FechaEmision            string `json:"fecha_emision"`
	FechaAutorizacion       string `json:"fecha_autorizacion,omitempty"`
	MensajesSRI             string `json:"mensajes_sri,omitempty"`
}
