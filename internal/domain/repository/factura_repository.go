package repository

import (
	"time"

	"github.com/crisanro/kipu-core/internal/domain/entity"
)

// FacturaRepository puerto de persistencia y transiciones de la máquina de
// estados de facturas. Las transiciones son idempotentes: condicionan el
// UPDATE al estado de origen y reportan si la fila avanzó.
type FacturaRepository interface {
	Create(f *entity.Factura) error
	Update(f *entity.Factura) error
	GetByID(id string) (*entity.Factura, error)
	GetByClaveAcceso(clave string) (*entity.Factura, error)
	ListByEmisor(emisorID string, limite int) ([]*entity.Factura, error)
	// ListPorEstado lista sin bloquear; el job de firma usa esta lectura y se
	// protege con el Update condicionado al estado PENDIENTE.
	ListPorEstado(estado string, limite int) ([]*entity.Factura, error)

	// SeleccionarPorEstado toma un lote de filas en el estado dado, más
	// antiguas primero, con FOR UPDATE SKIP LOCKED para tolerar réplicas
	// del worker. Debe invocarse dentro de una transacción.
	SeleccionarPorEstado(estado string, limite int) ([]*entity.Factura, error)

	// ActualizarMensajes persiste tal cual un estado de autoridad no
	// contemplado, sin mover la máquina de estados.
	ActualizarMensajes(id, mensajes string) error

	// Transiciones del worker de liquidación.
	MarcarRecibida(id string, fechaEnvio time.Time) (bool, error)
	MarcarDevuelta(id, mensajes string) (bool, error)
	MarcarAutorizada(id, xmlPath string, fechaAutorizacion time.Time, mensajes string) (bool, error)
	MarcarRechazada(id, mensajes string) (bool, error)
}
