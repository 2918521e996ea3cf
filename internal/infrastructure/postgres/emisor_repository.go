package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/crisanro/kipu-core/internal/domain"
	"github.com/crisanro/kipu-core/internal/domain/entity"
	"github.com/crisanro/kipu-core/internal/domain/repository"
)

var _ repository.EmisorRepository = (*EmisorRepo)(nil)

// EmisorRepo implementación de EmisorRepository (usable con pool o tx).
type EmisorRepo struct {
	q Querier
}

// NewEmisorRepository construye el adaptador. Pasar pool o tx (Querier).
func NewEmisorRepository(q Querier) *EmisorRepo {
	return &EmisorRepo{q: q}
}

const columnasEmisor = `id, user_uid, ruc, razon_social, nombre_comercial, direccion_matriz,
	ambiente, obligado_contabilidad, p12_path, p12_password, p12_expiration, created_at, updated_at`

// Create persiste un nuevo emisor.
func (r *EmisorRepo) Create(e *entity.Emisor) error {
	query := `
		INSERT INTO emisores (` + columnasEmisor + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.q.Exec(context.Background(), query,
		e.ID, e.UserUID, e.RUC, e.RazonSocial, nullIfEmpty(e.NombreComercial), e.DireccionMatriz,
		e.Ambiente, e.ObligadoContabilidad, nullIfEmpty(e.P12Path), nullIfEmpty(e.P12Password),
		e.P12Expiration, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicado
		}
		return fmt.Errorf("insert emisor: %w", err)
	}
	return nil
}

// GetByID obtiene un emisor por ID.
func (r *EmisorRepo) GetByID(id string) (*entity.Emisor, error) {
	return r.getBy("id = $1", id)
}

// GetByRUC obtiene un emisor por RUC.
func (r *EmisorRepo) GetByRUC(ruc string) (*entity.Emisor, error) {
	return r.getBy("ruc = $1", ruc)
}

// GetByUserUID obtiene el emisor del usuario del proveedor de identidad.
func (r *EmisorRepo) GetByUserUID(userUID string) (*entity.Emisor, error) {
	return r.getBy("user_uid = $1", userUID)
}

func (r *EmisorRepo) getBy(cond string, arg any) (*entity.Emisor, error) {
	query := `SELECT ` + columnasEmisor + ` FROM emisores WHERE ` + cond
	var e entity.Emisor
	var nombreComercial, p12Path, p12Password *string
	err := r.q.QueryRow(context.Background(), query, arg).Scan(
		&e.ID, &e.UserUID, &e.RUC, &e.RazonSocial, &nombreComercial, &e.DireccionMatriz,
		&e.Ambiente, &e.ObligadoContabilidad, &p12Path, &p12Password, &e.P12Expiration,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get emisor: %w", err)
	}
	e.NombreComercial = deref(nombreComercial)
	e.P12Path = deref(p12Path)
	e.P12Password = deref(p12Password)
	return &e, nil
}

// UpdateConfig actualiza ambiente, nombre comercial y dirección matriz.
func (r *EmisorRepo) UpdateConfig(e *entity.Emisor) error {
	query := `
		UPDATE emisores
		SET ambiente = $2, nombre_comercial = $3, direccion_matriz = $4, updated_at = $5
		WHERE id = $1`
	_, err := r.q.Exec(context.Background(), query,
		e.ID, e.Ambiente, nullIfEmpty(e.NombreComercial), e.DireccionMatriz, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update emisor: %w", err)
	}
	return nil
}

// UpdateFirma registra el certificado cargado.
func (r *EmisorRepo) UpdateFirma(id, p12Path, p12PasswordCifrada string, expiracion time.Time) error {
	query := `
		UPDATE emisores
		SET p12_path = $2, p12_password = $3, p12_expiration = $4, updated_at = now()
		WHERE id = $1`
	_, err := r.q.Exec(context.Background(), query, id, p12Path, p12PasswordCifrada, expiracion)
	if err != nil {
		return fmt.Errorf("update firma: %w", err)
	}
	return nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
