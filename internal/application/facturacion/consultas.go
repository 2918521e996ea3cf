package facturacion

import (
	"context"

	"github.com/crisanro/kipu-core/internal/application/dto"
	"github.com/crisanro/kipu-core/internal/domain"
	"github.com/crisanro/kipu-core/internal/domain/entity"
	"github.com/crisanro/kipu-core/internal/domain/repository"
)

// ConsultasUseCase lecturas de facturas fuera de la transacción de emisión.
type ConsultasUseCase struct {
	facturas repository.FacturaRepository
}

// NewConsultasUseCase construye el caso de uso.
func NewConsultasUseCase(facturas repository.FacturaRepository) *ConsultasUseCase {
	return &ConsultasUseCase{facturas: facturas}
}

// Historial devuelve las últimas facturas del emisor.
func (uc *ConsultasUseCase) Historial(ctx context.Context, emisorID string, limite int) ([]dto.FacturaResumen, error) {
	filas, err := uc.facturas.ListByEmisor(emisorID, limite)
	if err != nil {
		return nil, err
	}
	out := make([]dto.FacturaResumen, 0, len(filas))
	for _, f := range filas {
		out = append(out, aResumen(f))
	}
	return out, nil
}

// GetFactura devuelve una factura del emisor por ID.
func (uc *ConsultasUseCase) GetFactura(ctx context.Context, emisorID, id string) (*dto.FacturaResumen, error) {
	f, err := uc.facturas.GetByID(id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, domain.ErrNoEncontrado
	}
	if f.EmisorID != emisorID {
		return nil, domain.ErrProhibido
	}
	resumen := aResumen(f)
	return &resumen, nil
}

func aResumen(f *entity.Factura) dto.FacturaResumen {
	r := dto.FacturaResumen{
		ID:                      f.ID,
		Secuencial:              f.Secuencial,
		ClaveAcceso:             f.ClaveAcceso,
		Estado:                  f.Estado,
		IdentificacionComprador: f.IdentificacionComprador,
		RazonSocialComprador:    f.RazonSocialComprador,
		ImporteTotal:            f.ImporteTotal.StringFixed(2),
		FechaEmision:            f.FechaEmision.Format("2006-01-02 15:04:05"),
		MensajesSRI:             f.MensajesSRI,
	}
	if f.FechaAutorizacion != nil {
		r.FechaAutorizacion = f.FechaAutorizacion.Format("2006-01-02 15:04:05")
	}
	return r
}
