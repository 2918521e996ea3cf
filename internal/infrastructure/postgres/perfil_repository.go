package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/crisanro/kipu-core/internal/domain"
	"github.com/crisanro/kipu-core/internal/domain/entity"
	"github.com/crisanro/kipu-core/internal/domain/repository"
)

var _ repository.PerfilRepository = (*PerfilRepo)(nil)

// PerfilRepo implementación de PerfilRepository (usable con pool o tx).
type PerfilRepo struct {
	q Querier
}

// NewPerfilRepository construye el adaptador. Pasar pool o tx (Querier).
func NewPerfilRepository(q Querier) *PerfilRepo {
	return &PerfilRepo{q: q}
}

// Create persiste un perfil nuevo.
func (r *PerfilRepo) Create(p *entity.Perfil) error {
	query := `
		INSERT INTO perfiles (id, user_uid, email, emisor_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())`
	_, err := r.q.Exec(context.Background(), query,
		p.ID, p.UserUID, nullIfEmpty(p.Email), nullIfEmpty(p.EmisorID),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicado
		}
		return fmt.Errorf("insert perfil: %w", err)
	}
	return nil
}

// GetByUID obtiene el perfil por UID del proveedor de identidad.
func (r *PerfilRepo) GetByUID(userUID string) (*entity.Perfil, error) {
	query := `
		SELECT id, user_uid, email, emisor_id, created_at, updated_at
		FROM perfiles WHERE user_uid = $1`
	var p entity.Perfil
	var email, emisorID *string
	err := r.q.QueryRow(context.Background(), query, userUID).Scan(
		&p.ID, &p.UserUID, &email, &emisorID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get perfil: %w", err)
	}
	p.Email = deref(email)
	p.EmisorID = deref(emisorID)
	return &p, nil
}

// VincularEmisor enlaza el perfil con su emisor tras activar el RUC.
func (r *PerfilRepo) VincularEmisor(userUID, emisorID string) error {
	_, err := r.q.Exec(context.Background(),
		`UPDATE perfiles SET emisor_id = $2, updated_at = now() WHERE user_uid = $1`, userUID, emisorID)
	if err != nil {
		return fmt.Errorf("vincular emisor: %w", err)
	}
	return nil
}
