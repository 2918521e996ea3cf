package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados del ciclo de vida de una factura electrónica SRI.
const (
	EstadoPendiente  = "PENDIENTE"  // Encolada; aún sin secuencial ni firma
	EstadoFirmado    = "FIRMADO"    // XML firmado y artefactos subidos
	EstadoRecibida   = "RECIBIDA"   // Aceptada por recepción SRI, autorización pendiente
	EstadoDevuelta   = "DEVUELTA"   // Rechazada en recepción; requiere corrección manual
	EstadoAutorizado = "AUTORIZADO" // Terminal: autorizada por el SRI
	EstadoRechazado  = "RECHAZADO"  // Terminal: no autorizada
)

// EsTerminal indica si un estado no admite más transiciones.
func EsTerminal(estado string) bool {
	return estado == EstadoAutorizado || estado == EstadoRechazado
}

// Factura es la fila central de la máquina de estados de emisión.
type Factura struct {
	ID             string
	EmisorID       string
	PuntoEmisionID string
	Secuencial     string // 9 dígitos una vez asignado
	ClaveAcceso    string // 49 dígitos con dígito verificador módulo 11

	IdentificacionComprador string
	RazonSocialComprador    string
	EmailComprador          string

	SubtotalSinImpuestos decimal.Decimal
	Subtotal0            decimal.Decimal
	SubtotalIVA          decimal.Decimal
	ValorIVA             decimal.Decimal
	ImporteTotal         decimal.Decimal

	Estado  string
	XMLPath string
	PDFPath string

	FechaEmision      time.Time
	FechaEnvioSRI     *time.Time
	FechaAutorizacion *time.Time
	MensajesSRI       string

	// ClientInputData conserva el payload crudo del cliente para auditoría.
	ClientInputData []byte

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NumeroCompleto devuelve estab-ptoEmi-secuencial legible (001-100-000000001).
func (f *Factura) NumeroCompleto(estab, ptoEmi string) string {
	return estab + "-" + ptoEmi + "-" + f.Secuencial
}
