package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/crisanro/kipu-core/internal/domain/entity"
	"github.com/crisanro/kipu-core/internal/domain/repository"
)

var _ repository.ApiKeyRepository = (*ApiKeyRepo)(nil)

// ApiKeyRepo implementación de ApiKeyRepository (usable con pool o tx).
type ApiKeyRepo struct {
	q Querier
}

// NewApiKeyRepository construye el adaptador. Pasar pool o tx (Querier).
func NewApiKeyRepository(q Querier) *ApiKeyRepo {
	return &ApiKeyRepo{q: q}
}

// Create persiste la clave (solo el hash).
func (r *ApiKeyRepo) Create(k *entity.ApiKey) error {
	query := `
		INSERT INTO api_keys (id, emisor_id, key_hash, key_prefix, nombre, revocada, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.q.Exec(context.Background(), query,
		k.ID, k.EmisorID, k.KeyHash, k.KeyPrefix, k.Nombre, k.Revocada, k.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

// ListByEmisor lista las claves del emisor.
func (r *ApiKeyRepo) ListByEmisor(emisorID string) ([]*entity.ApiKey, error) {
	query := `
		SELECT id, emisor_id, key_hash, key_prefix, nombre, revocada, last_used_at, created_at
		FROM api_keys WHERE emisor_id = $1 ORDER BY created_at DESC`
	rows, err := r.q.Query(context.Background(), query, emisorID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var out []*entity.ApiKey
	for rows.Next() {
		var k entity.ApiKey
		if err := rows.Scan(&k.ID, &k.EmisorID, &k.KeyHash, &k.KeyPrefix, &k.Nombre, &k.Revocada, &k.LastUsedAt, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		out = append(out, &k)
	}
	return out, rows.Err()
}

// GetActivaByHash busca una clave no revocada y sella last_used_at.
func (r *ApiKeyRepo) GetActivaByHash(keyHash string) (*entity.ApiKey, error) {
	query := `
		UPDATE api_keys SET last_used_at = now()
		WHERE key_hash = $1 AND NOT revocada
		RETURNING id, emisor_id, key_hash, key_prefix, nombre, revocada, last_used_at, created_at`
	var k entity.ApiKey
	err := r.q.QueryRow(context.Background(), query, keyHash).Scan(
		&k.ID, &k.EmisorID, &k.KeyHash, &k.KeyPrefix, &k.Nombre, &k.Revocada, &k.LastUsedAt, &k.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get api key: %w", err)
	}
	return &k, nil
}

// Revocar marca la clave como revocada dentro del emisor.
func (r *ApiKeyRepo) Revocar(id, emisorID string) (bool, error) {
	tag, err := r.q.Exec(context.Background(),
		`UPDATE api_keys SET revocada = true WHERE id = $1 AND emisor_id = $2`, id, emisorID)
	if err != nil {
		return false, fmt.Errorf("revocar api key: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
