// Package apikeys gestiona las claves de integración kp_live_*.
package apikeys

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crisanro/kipu-core/internal/application/dto"
	"github.com/crisanro/kipu-core/internal/domain"
	"github.com/crisanro/kipu-core/internal/domain/entity"
	"github.com/crisanro/kipu-core/internal/domain/repository"
)

// PrefijoClave formato de las claves de integración.
const PrefijoClave = "kp_live_"

// ApiKeysUseCase ciclo de vida de las claves de integración.
type ApiKeysUseCase struct {
	repo repository.ApiKeyRepository
}

// NewApiKeysUseCase construye el caso de uso.
func NewApiKeysUseCase(repo repository.ApiKeyRepository) *ApiKeysUseCase {
	return &ApiKeysUseCase{repo: repo}
}

// Crear genera una clave kp_live_<48 hex>, guarda solo su hash SHA-256 y
// devuelve la clave cruda una única vez.
func (uc *ApiKeysUseCase) Crear(ctx context.Context, emisorID string, in dto.CrearApiKeyRequest) (*dto.ApiKeyCreada, error) {
	if in.Nombre == "" {
		return nil, domain.ErrEntradaInvalida
	}
	aleatorio := make([]byte, 24)
	if _, err := rand.Read(aleatorio); err != nil {
		return nil, fmt.Errorf("apikeys: generar clave: %w", err)
	}
	cruda := PrefijoClave + hex.EncodeToString(aleatorio)
	hash := sha256.Sum256([]byte(cruda))
	prefix := cruda[:len(PrefijoClave)+8]

	k := &entity.ApiKey{
		ID:        uuid.New().String(),
		EmisorID:  emisorID,
		KeyHash:   hex.EncodeToString(hash[:]),
		KeyPrefix: prefix,
		Nombre:    in.Nombre,
		CreatedAt: time.Now().UTC(),
	}
	if err := uc.repo.Create(k); err != nil {
		return nil, err
	}
	return &dto.ApiKeyCreada{ID: k.ID, Nombre: k.Nombre, Key: cruda, Prefix: prefix}, nil
}

// Listar devuelve las claves del emisor sin material sensible.
func (uc *ApiKeysUseCase) Listar(ctx context.Context, emisorID string) ([]dto.ApiKeyResumen, error) {
	filas, err := uc.repo.ListByEmisor(emisorID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ApiKeyResumen, 0, len(filas))
	for _, k := range filas {
		r := dto.ApiKeyResumen{
			ID:        k.ID,
			Nombre:    k.Nombre,
			Prefix:    k.KeyPrefix,
			Revocada:  k.Revocada,
			CreatedAt: k.CreatedAt.Format(time.RFC3339),
		}
		if k.LastUsedAt != nil {
			r.LastUsedAt = k.LastUsedAt.Format(time.RFC3339)
		}
		out = append(out, r)
	}
	return out, nil
}

// Revocar marca la clave como revocada; las peticiones con ella pasan a 403.
func (uc *ApiKeysUseCase) Revocar(ctx context.Context, emisorID, id string) error {
	ok, err := uc.repo.Revocar(id, emisorID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNoEncontrado
	}
	return nil
}

// Autenticar resuelve una clave cruda a su emisor; clave desconocida o
// revocada retorna ErrNoAutorizado.
func (uc *ApiKeysUseCase) Autenticar(ctx context.Context, clave string) (*entity.ApiKey, error) {
	if clave == "" {
		return nil, domain.ErrNoAutorizado
	}
	hash := sha256.Sum256([]byte(clave))
	k, err := uc.repo.GetActivaByHash(hex.EncodeToString(hash[:]))
	if err != nil {
		return nil, err
	}
	if k == nil {
		return nil, domain.ErrNoAutorizado
	}
	return k, nil
}
