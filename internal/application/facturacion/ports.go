package facturacion

import (
	"context"
	"io"
	"time"

	"github.com/crisanro/kipu-core/internal/domain/entity"
	"github.com/crisanro/kipu-core/internal/domain/repository"
	domsri "github.com/crisanro/kipu-core/internal/domain/sri"
	pkgsri "github.com/crisanro/kipu-core/pkg/sri"
)

// Buckets del object store.
const (
	BucketCertificados = "certificates"
	BucketFacturas     = "invoices"
)

// ArtifactStore puerto del object store de artefactos. Put devuelve la ruta
// canónica "<bucket>/<key>" y crea el bucket si no existe.
type ArtifactStore interface {
	Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) (string, error)
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, bucket, key string) error
	Presign(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// AlmacenCredenciales abre el material de firma del emisor (descarga del .p12,
// descifrado de contraseña, selección de certificado y llave).
type AlmacenCredenciales interface {
	Abrir(ctx context.Context, emisor *entity.Emisor) (*pkgsri.Credencial, error)
}

// RIDE datos para renderizar la representación impresa de la factura.
type RIDE struct {
	Emisor             *entity.Emisor
	Factura            *entity.Factura
	EstabCodigo        string
	PuntoCodigo        string
	Detalles           []domsri.DetalleCalculado
	Autorizada         bool
	NumeroAutorizacion string
	FechaAutorizacion  *time.Time
}

// GeneradorRIDE renderiza el PDF de la factura y lo escribe en w. El
// documento se arma completo en memoria y se escribe de una vez; no se emite
// por partes a medida que se renderiza.
type GeneradorRIDE interface {
	Generar(ride *RIDE, w io.Writer) error
}

// EventoFactura payload del webhook de cambios de estado.
type EventoFactura struct {
	UserUID     string `json:"user_uid"`
	InvoiceID   string `json:"invoice_id"`
	ClaveAcceso string `json:"clave_acceso"`
	Estado      string `json:"estado"`
	MensajeSRI  string `json:"mensaje_sri,omitempty"`
	Fecha       string `json:"fecha"`
}

// Notificador entrega eventos de estado al webhook configurado (at-most-once;
// los fallos se registran y se descartan).
type Notificador interface {
	NotificarCambioEstado(ctx context.Context, ev EventoFactura) error
}

// Mailer envía la RIDE autorizada al comprador.
type Mailer interface {
	EnviarRIDE(destinatario, claveAcceso string, pdf []byte) error
}

// RepositoriosEmision repos atados a la transacción de emisión.
type RepositoriosEmision struct {
	Emisores   repository.EmisorRepository
	Estructura repository.EstructuraRepository
	Facturas   repository.FacturaRepository
	Creditos   repository.CreditoRepository
	Perfiles   repository.PerfilRepository
}

// TxRunner ejecuta fn dentro de una transacción PostgreSQL con los repos
// atados a la tx; Commit al retornar nil, Rollback en cualquier error.
type TxRunner interface {
	RunEmision(ctx context.Context, fn func(repos RepositoriosEmision) error) error
}
