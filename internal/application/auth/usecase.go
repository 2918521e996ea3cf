// Package auth implementa el onboarding: sincronización del perfil del
// proveedor de identidad y activación del RUC con la estructura por defecto.
package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/crisanro/kipu-core/internal/application/dto"
	"github.com/crisanro/kipu-core/internal/application/facturacion"
	"github.com/crisanro/kipu-core/internal/domain"
	"github.com/crisanro/kipu-core/internal/domain/entity"
	"github.com/crisanro/kipu-core/internal/domain/repository"
	domsri "github.com/crisanro/kipu-core/internal/domain/sri"
)

// Estructura por defecto al activar un RUC.
const (
	EstablecimientoDefault = "001"
	PuntoDefault           = "100"
	CreditosSemilla        = 10
)

// AuthUseCase perfiles y activación de emisores.
type AuthUseCase struct {
	perfiles repository.PerfilRepository
	emisores repository.EmisorRepository
	txRunner facturacion.TxRunner
}

// NewAuthUseCase construye el caso de uso.
func NewAuthUseCase(perfiles repository.PerfilRepository, emisores repository.EmisorRepository, txRunner facturacion.TxRunner) *AuthUseCase {
	return &AuthUseCase{perfiles: perfiles, emisores: emisores, txRunner: txRunner}
}

// Sync crea el perfil si no existe y reporta si falta el onboarding.
func (uc *AuthUseCase) Sync(ctx context.Context, userUID, email string) (*dto.SyncResponse, error) {
	if userUID == "" {
		return nil, domain.ErrNoAutorizado
	}
	perfil, err := uc.perfiles.GetByUID(userUID)
	if err != nil {
		return nil, err
	}
	if perfil == nil {
		perfil = &entity.Perfil{
			ID:      uuid.New().String(),
			UserUID: userUID,
			Email:   email,
		}
		if err := uc.perfiles.Create(perfil); err != nil {
			return nil, err
		}
	}
	return &dto.SyncResponse{
		UserUID:            perfil.UserUID,
		Email:              perfil.Email,
		EmisorID:           perfil.EmisorID,
		RequiereOnboarding: perfil.EmisorID == "",
	}, nil
}

// ActivarRUC crea el emisor con establecimiento 001, punto 100 y créditos
// semilla, todo en una transacción.
func (uc *AuthUseCase) ActivarRUC(ctx context.Context, userUID string, in dto.ActivarRUCRequest) (*dto.ActivarRUCResponse, error) {
	if len(in.RUC) != 13 || domsri.SoloDigitos(in.RUC) != in.RUC {
		return nil, domain.ErrEntradaInvalida
	}
	if in.RazonSocial == "" || in.DireccionMatriz == "" {
		return nil, domain.ErrEntradaInvalida
	}
	obligado := in.ObligadoContabilidad
	if obligado == "" {
		obligado = "NO"
	}
	if obligado != "SI" && obligado != "NO" {
		return nil, domain.ErrEntradaInvalida
	}

	existente, err := uc.emisores.GetByRUC(in.RUC)
	if err != nil {
		return nil, err
	}
	if existente != nil {
		return nil, domain.ErrDuplicado
	}

	now := time.Now().UTC()
	emisor := &entity.Emisor{
		ID:                   uuid.New().String(),
		UserUID:              userUID,
		RUC:                  in.RUC,
		RazonSocial:          in.RazonSocial,
		DireccionMatriz:      in.DireccionMatriz,
		Ambiente:             entity.AmbientePruebas,
		ObligadoContabilidad: obligado,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	err = uc.txRunner.RunEmision(ctx, func(repos facturacion.RepositoriosEmision) error {
		if err := repos.Emisores.Create(emisor); err != nil {
			return err
		}
		estab := &entity.Establecimiento{
			ID:        uuid.New().String(),
			EmisorID:  emisor.ID,
			Codigo:    EstablecimientoDefault,
			Direccion: in.DireccionMatriz,
			CreatedAt: now,
		}
		if err := repos.Estructura.CreateEstablecimiento(estab); err != nil {
			return err
		}
		punto := &entity.PuntoEmision{
			ID:                uuid.New().String(),
			EstablecimientoID: estab.ID,
			Codigo:            PuntoDefault,
			CreatedAt:         now,
		}
		if err := repos.Estructura.CreatePunto(punto); err != nil {
			return err
		}
		if err := repos.Creditos.Recargar(emisor.ID, CreditosSemilla); err != nil {
			return err
		}
		if err := repos.Creditos.RegistrarTransaccion(&entity.RegistroTransaccion{
			ID:       uuid.New().String(),
			EmisorID: emisor.ID,
			Tipo:     entity.TransaccionRecarga,
			Cantidad: CreditosSemilla,
			Detalle:  "créditos de activación",
		}); err != nil {
			return err
		}
		return repos.Perfiles.VincularEmisor(userUID, emisor.ID)
	})
	if err != nil {
		return nil, err
	}

	return &dto.ActivarRUCResponse{
		EmisorID:          emisor.ID,
		RUC:               emisor.RUC,
		Establecimiento:   EstablecimientoDefault,
		PuntoEmision:      PuntoDefault,
		CreditosIniciales: CreditosSemilla,
	}, nil
}
