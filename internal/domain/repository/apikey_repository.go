package repository

import "github.com/crisanro/kipu-core/internal/domain/entity"

// ApiKeyRepository puerto de las claves de integración.
type ApiKeyRepository interface {
	Create(k *entity.ApiKey) error
	ListByEmisor(emisorID string) ([]*entity.ApiKey, error)
	// GetActivaByHash busca una clave no revocada por su hash SHA-256 y
	// actualiza last_used_at.
	GetActivaByHash(keyHash string) (*entity.ApiKey, error)
	Revocar(id, emisorID string) (bool, error)
}
