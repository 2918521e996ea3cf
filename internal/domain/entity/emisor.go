package entity

import "time"

// Valores de ambiente SRI por emisor.
const (
	AmbientePruebas    = "1"
	AmbienteProduccion = "2"
)

// Emisor representa la identidad tributaria de un contribuyente que factura.
type Emisor struct {
	ID                   string
	UserUID              string // UID del perfil dueño en el proveedor de identidad
	RUC                  string // 13 dígitos
	RazonSocial          string
	NombreComercial      string
	DireccionMatriz      string
	Ambiente             string // "1" pruebas | "2" producción
	ObligadoContabilidad string // SI | NO
	P12Path              string // ruta del certificado en el bucket certificates
	P12Password          string // cifrada en reposo (iv_hex:cipher_hex)
	P12Expiration        *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
