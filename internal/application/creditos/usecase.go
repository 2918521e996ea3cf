// Package creditos implementa las recargas administrativas con auditoría.
package creditos

import (
	"context"

	"github.com/google/uuid"

	"github.com/crisanro/kipu-core/internal/application/dto"
	"github.com/crisanro/kipu-core/internal/application/facturacion"
	"github.com/crisanro/kipu-core/internal/domain"
	"github.com/crisanro/kipu-core/internal/domain/entity"
	"github.com/crisanro/kipu-core/internal/domain/repository"
)

// CreditosUseCase recargas de créditos (endpoint n8n).
type CreditosUseCase struct {
	emisores repository.EmisorRepository
	creditos repository.CreditoRepository
	txRunner facturacion.TxRunner
}

// NewCreditosUseCase construye el caso de uso.
func NewCreditosUseCase(emisores repository.EmisorRepository, creditos repository.CreditoRepository, txRunner facturacion.TxRunner) *CreditosUseCase {
	return &CreditosUseCase{emisores: emisores, creditos: creditos, txRunner: txRunner}
}

// Recargar incrementa el saldo del emisor identificado por RUC y deja el
// asiento en el registro de transacciones, en una sola transacción.
func (uc *CreditosUseCase) Recargar(ctx context.Context, in dto.TopupRequest) (*dto.TopupResponse, error) {
	if in.Cantidad <= 0 {
		return nil, domain.ErrEntradaInvalida
	}
	emisor, err := uc.emisores.GetByRUC(in.RUC)
	if err != nil {
		return nil, err
	}
	if emisor == nil {
		return nil, domain.ErrNoEncontrado
	}

	detalle := in.Detalle
	if detalle == "" {
		detalle = "recarga administrativa"
	}

	err = uc.txRunner.RunEmision(ctx, func(repos facturacion.RepositoriosEmision) error {
		if err := repos.Creditos.Recargar(emisor.ID, in.Cantidad); err != nil {
			return err
		}
		return repos.Creditos.RegistrarTransaccion(&entity.RegistroTransaccion{
			ID:       uuid.New().String(),
			EmisorID: emisor.ID,
			Tipo:     entity.TransaccionRecarga,
			Cantidad: in.Cantidad,
			Detalle:  detalle,
		})
	})
	if err != nil {
		return nil, err
	}

	saldo, err := uc.creditos.GetBalance(emisor.ID)
	if err != nil {
		return nil, err
	}
	return &dto.TopupResponse{EmisorID: emisor.ID, Balance: saldo}, nil
}
