// Package emisor implementa el perfil del emisor: consulta, carga del
// certificado .p12 y actualización de configuración.
package emisor

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/crisanro/kipu-core/internal/application/dto"
	"github.com/crisanro/kipu-core/internal/application/facturacion"
	"github.com/crisanro/kipu-core/internal/domain"
	"github.com/crisanro/kipu-core/internal/domain/entity"
	"github.com/crisanro/kipu-core/internal/domain/repository"
	"github.com/crisanro/kipu-core/internal/infrastructure/sri/signer"
)

// EmisorUseCase operaciones sobre el emisor autenticado.
type EmisorUseCase struct {
	emisores      repository.EmisorRepository
	creditos      repository.CreditoRepository
	storage       facturacion.ArtifactStore
	encryptionKey string
}

// NewEmisorUseCase construye el caso de uso.
func NewEmisorUseCase(
	emisores repository.EmisorRepository,
	creditos repository.CreditoRepository,
	storage facturacion.ArtifactStore,
	encryptionKey string,
) *EmisorUseCase {
	return &EmisorUseCase{
		emisores:      emisores,
		creditos:      creditos,
		storage:       storage,
		encryptionKey: encryptionKey,
	}
}

// ResolverID devuelve el ID del emisor del usuario autenticado.
func (uc *EmisorUseCase) ResolverID(ctx context.Context, userUID string) (string, error) {
	e, err := uc.emisores.GetByUserUID(userUID)
	if err != nil {
		return "", err
	}
	if e == nil {
		return "", domain.ErrNoEncontrado
	}
	return e.ID, nil
}

// Perfil devuelve el perfil del emisor del usuario autenticado.
func (uc *EmisorUseCase) Perfil(ctx context.Context, userUID string) (*dto.EmisorResponse, error) {
	e, err := uc.emisores.GetByUserUID(userUID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, domain.ErrNoEncontrado
	}
	saldo, err := uc.creditos.GetBalance(e.ID)
	if err != nil {
		return nil, err
	}
	resp := &dto.EmisorResponse{
		ID:                   e.ID,
		RUC:                  e.RUC,
		RazonSocial:          e.RazonSocial,
		NombreComercial:      e.NombreComercial,
		DireccionMatriz:      e.DireccionMatriz,
		Ambiente:             e.Ambiente,
		ObligadoContabilidad: e.ObligadoContabilidad,
		FirmaCargada:         e.P12Path != "",
		Creditos:             saldo,
	}
	if e.P12Expiration != nil {
		resp.FirmaExpiracion = e.P12Expiration.Format("2006-01-02")
	}
	return resp, nil
}

// CargarP12 valida el contenedor, verifica RUC y vigencia, cifra la contraseña
// y guarda el certificado en el bucket certificates.
func (uc *EmisorUseCase) CargarP12(ctx context.Context, userUID string, p12 []byte, password string) (*dto.UploadP12Response, error) {
	if len(p12) == 0 {
		return nil, fmt.Errorf("emisor: archivo .p12 vacío: %w", domain.ErrEntradaInvalida)
	}
	e, err := uc.emisores.GetByUserUID(userUID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, domain.ErrNoEncontrado
	}

	cred, err := signer.AbrirP12(p12, password)
	if err != nil {
		return nil, err
	}
	if err := signer.ValidarCredencial(cred, e.RUC, time.Now()); err != nil {
		return nil, err
	}

	cifrada, err := signer.CifrarPassword(uc.encryptionKey, password)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s/certificate_%d.p12", e.RUC, time.Now().Unix())
	path, err := uc.storage.Put(ctx, facturacion.BucketCertificados, key,
		bytes.NewReader(p12), int64(len(p12)), "application/x-pkcs12")
	if err != nil {
		return nil, fmt.Errorf("emisor: subir certificado: %w", err)
	}

	expira := cred.Certificado.NotAfter
	if err := uc.emisores.UpdateFirma(e.ID, path, cifrada, expira); err != nil {
		return nil, err
	}

	return &dto.UploadP12Response{
		Path:       path,
		RUC:        cred.RUC,
		Expiracion: expira.Format("2006-01-02"),
	}, nil
}

// ActualizarConfig cambia ambiente, nombre comercial y/o dirección matriz.
func (uc *EmisorUseCase) ActualizarConfig(ctx context.Context, userUID string, in dto.ConfigEmisorRequest) (*dto.EmisorResponse, error) {
	e, err := uc.emisores.GetByUserUID(userUID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, domain.ErrNoEncontrado
	}
	if in.Ambiente != "" {
		if in.Ambiente != entity.AmbientePruebas && in.Ambiente != entity.AmbienteProduccion {
			return nil, domain.ErrEntradaInvalida
		}
		e.Ambiente = in.Ambiente
	}
	if in.NombreComercial != "" {
		e.NombreComercial = in.NombreComercial
	}
	if in.DireccionMatriz != "" {
		e.DireccionMatriz = in.DireccionMatriz
	}
	e.UpdatedAt = time.Now().UTC()
	if err := uc.emisores.UpdateConfig(e); err != nil {
		return nil, err
	}
	return uc.Perfil(ctx, userUID)
}
