// Package estructura administra establecimientos y puntos de emisión.
package estructura

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/crisanro/kipu-core/internal/application/dto"
	"github.com/crisanro/kipu-core/internal/domain"
	"github.com/crisanro/kipu-core/internal/domain/entity"
	"github.com/crisanro/kipu-core/internal/domain/repository"
	domsri "github.com/crisanro/kipu-core/internal/domain/sri"
)

// EstructuraUseCase CRUD de la estructura del emisor.
type EstructuraUseCase struct {
	repo repository.EstructuraRepository
}

// NewEstructuraUseCase construye el caso de uso.
func NewEstructuraUseCase(repo repository.EstructuraRepository) *EstructuraUseCase {
	return &EstructuraUseCase{repo: repo}
}

func codigoValido(c string) bool {
	return len(c) == 3 && domsri.SoloDigitos(c) == c
}

// CrearEstablecimiento valida el código de 3 dígitos y lo crea.
func (uc *EstructuraUseCase) CrearEstablecimiento(ctx context.Context, emisorID string, in dto.CrearEstablecimientoRequest) (*dto.EstablecimientoResponse, error) {
	if !codigoValido(in.Codigo) {
		return nil, domain.ErrEntradaInvalida
	}
	e := &entity.Establecimiento{
		ID:        uuid.New().String(),
		EmisorID:  emisorID,
		Codigo:    in.Codigo,
		Nombre:    in.Nombre,
		Direccion: in.Direccion,
		CreatedAt: time.Now().UTC(),
	}
	if err := uc.repo.CreateEstablecimiento(e); err != nil {
		return nil, err
	}
	return &dto.EstablecimientoResponse{ID: e.ID, Codigo: e.Codigo, Nombre: e.Nombre, Direccion: e.Direccion}, nil
}

// ListEstablecimientos lista los establecimientos del emisor.
func (uc *EstructuraUseCase) ListEstablecimientos(ctx context.Context, emisorID string) ([]dto.EstablecimientoResponse, error) {
	filas, err := uc.repo.ListEstablecimientos(emisorID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.EstablecimientoResponse, 0, len(filas))
	for _, e := range filas {
		out = append(out, dto.EstablecimientoResponse{ID: e.ID, Codigo: e.Codigo, Nombre: e.Nombre, Direccion: e.Direccion})
	}
	return out, nil
}

// CrearPunto crea un punto de emisión bajo un establecimiento del emisor.
func (uc *EstructuraUseCase) CrearPunto(ctx context.Context, emisorID string, in dto.CrearPuntoRequest) (*dto.PuntoResponse, error) {
	if !codigoValido(in.Codigo) || !codigoValido(in.Establecimiento) {
		return nil, domain.ErrEntradaInvalida
	}
	estab, err := uc.repo.GetEstablecimiento(emisorID, in.Establecimiento)
	if err != nil {
		return nil, err
	}
	if estab == nil {
		return nil, domain.ErrNoEncontrado
	}
	p := &entity.PuntoEmision{
		ID:                uuid.New().String(),
		EstablecimientoID: estab.ID,
		Codigo:            in.Codigo,
		CreatedAt:         time.Now().UTC(),
	}
	if err := uc.repo.CreatePunto(p); err != nil {
		return nil, err
	}
	return &dto.PuntoResponse{ID: p.ID, Codigo: p.Codigo, SecuencialActual: p.SecuencialActual}, nil
}

// ListPuntos lista los puntos de un establecimiento del emisor.
func (uc *EstructuraUseCase) ListPuntos(ctx context.Context, emisorID, estabCodigo string) ([]dto.PuntoResponse, error) {
	estab, err := uc.repo.GetEstablecimiento(emisorID, estabCodigo)
	if err != nil {
		return nil, err
	}
	if estab == nil {
		return nil, domain.ErrNoEncontrado
	}
	filas, err := uc.repo.ListPuntos(estab.ID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.PuntoResponse, 0, len(filas))
	for _, p := range filas {
		out = append(out, dto.PuntoResponse{ID: p.ID, Codigo: p.Codigo, SecuencialActual: p.SecuencialActual})
	}
	return out, nil
}

// Arbol devuelve la vista jerárquica establecimiento -> puntos.
func (uc *EstructuraUseCase) Arbol(ctx context.Context, emisorID string) (*dto.ArbolEstructura, error) {
	estabs, err := uc.repo.ListEstablecimientos(emisorID)
	if err != nil {
		return nil, err
	}
	arbol := &dto.ArbolEstructura{Establecimientos: make([]dto.ArbolEstablecimiento, 0, len(estabs))}
	for _, e := range estabs {
		nodo := dto.ArbolEstablecimiento{
			EstablecimientoResponse: dto.EstablecimientoResponse{ID: e.ID, Codigo: e.Codigo, Nombre: e.Nombre, Direccion: e.Direccion},
		}
		puntos, err := uc.repo.ListPuntos(e.ID)
		if err != nil {
			return nil, err
		}
		for _, p := range puntos {
			nodo.Puntos = append(nodo.Puntos, dto.PuntoResponse{ID: p.ID, Codigo: p.Codigo, SecuencialActual: p.SecuencialActual})
		}
		arbol.Establecimientos = append(arbol.Establecimientos, nodo)
	}
	return arbol, nil
}

// Validar verifica que el par (establecimiento, punto) exista para el emisor.
func (uc *EstructuraUseCase) Validar(ctx context.Context, emisorID string, in dto.ValidarPuntoRequest) (*dto.ValidarPuntoResponse, error) {
	if !codigoValido(in.Establecimiento) || !codigoValido(in.PuntoEmision) {
		return nil, domain.ErrEntradaInvalida
	}
	p, err := uc.repo.GetPunto(emisorID, in.Establecimiento, in.PuntoEmision)
	if err != nil {
		return nil, err
	}
	return &dto.ValidarPuntoResponse{Valido: p != nil}, nil
}
