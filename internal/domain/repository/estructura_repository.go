package repository

import "github.com/crisanro/kipu-core/internal/domain/entity"

// EstructuraRepository puerto de establecimientos y puntos de emisión.
type EstructuraRepository interface {
	CreateEstablecimiento(e *entity.Establecimiento) error
	ListEstablecimientos(emisorID string) ([]*entity.Establecimiento, error)
	GetEstablecimiento(emisorID, codigo string) (*entity.Establecimiento, error)

	CreatePunto(p *entity.PuntoEmision) error
	ListPuntos(establecimientoID string) ([]*entity.PuntoEmision, error)
	// GetPunto resuelve (estab, punto) acotado al emisor.
	GetPunto(emisorID, estabCodigo, puntoCodigo string) (*entity.PuntoEmision, error)

	// GenerarSecuencial invoca la función de base de datos que avanza
	// secuencial_actual en exactamente 1 bajo lock de fila y devuelve el
	// valor asignado.
	GenerarSecuencial(puntoID string) (int64, error)
}
