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

var _ repository.EstructuraRepository = (*EstructuraRepo)(nil)

// EstructuraRepo implementación de EstructuraRepository (usable con pool o tx).
type EstructuraRepo struct {
	q Querier
}

// NewEstructuraRepository construye el adaptador. Pasar pool o tx (Querier).
func NewEstructuraRepository(q Querier) *EstructuraRepo {
	return &EstructuraRepo{q: q}
}

// CreateEstablecimiento persiste un establecimiento.
func (r *EstructuraRepo) CreateEstablecimiento(e *entity.Establecimiento) error {
	query := `
		INSERT INTO establecimientos (id, emisor_id, codigo, nombre, direccion, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q.Exec(context.Background(), query,
		e.ID, e.EmisorID, e.Codigo, nullIfEmpty(e.Nombre), nullIfEmpty(e.Direccion), e.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicado
		}
		return fmt.Errorf("insert establecimiento: %w", err)
	}
	return nil
}

// ListEstablecimientos lista los establecimientos de un emisor.
func (r *EstructuraRepo) ListEstablecimientos(emisorID string) ([]*entity.Establecimiento, error) {
	query := `
		SELECT id, emisor_id, codigo, nombre, direccion, created_at
		FROM establecimientos WHERE emisor_id = $1 ORDER BY codigo`
	rows, err := r.q.Query(context.Background(), query, emisorID)
	if err != nil {
		return nil, fmt.Errorf("list establecimientos: %w", err)
	}
	defer rows.Close()

	var out []*entity.Establecimiento
	for rows.Next() {
		var e entity.Establecimiento
		var nombre, direccion *string
		if err := rows.Scan(&e.ID, &e.EmisorID, &e.Codigo, &nombre, &direccion, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan establecimiento: %w", err)
		}
		e.Nombre = deref(nombre)
		e.Direccion = deref(direccion)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// GetEstablecimiento obtiene un establecimiento por código dentro del emisor.
func (r *EstructuraRepo) GetEstablecimiento(emisorID, codigo string) (*entity.Establecimiento, error) {
	query := `
		SELECT id, emisor_id, codigo, nombre, direccion, created_at
		FROM establecimientos WHERE emisor_id = $1 AND codigo = $2`
	var e entity.Establecimiento
	var nombre, direccion *string
	err := r.q.QueryRow(context.Background(), query, emisorID, codigo).Scan(
		&e.ID, &e.EmisorID, &e.Codigo, &nombre, &direccion, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get establecimiento: %w", err)
	}
	e.Nombre = deref(nombre)
	e.Direccion = deref(direccion)
	return &e, nil
}

// CreatePunto persiste un punto de emisión.
func (r *EstructuraRepo) CreatePunto(p *entity.PuntoEmision) error {
	query := `
		INSERT INTO puntos_emision (id, establecimiento_id, codigo, secuencial_actual, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.q.Exec(context.Background(), query,
		p.ID, p.EstablecimientoID, p.Codigo, p.SecuencialActual, p.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicado
		}
		return fmt.Errorf("insert punto de emisión: %w", err)
	}
	return nil
}

// ListPuntos lista los puntos de un establecimiento.
func (r *EstructuraRepo) ListPuntos(establecimientoID string) ([]*entity.PuntoEmision, error) {
	query := `
		SELECT id, establecimiento_id, codigo, secuencial_actual, created_at
		FROM puntos_emision WHERE establecimiento_id = $1 ORDER BY codigo`
	rows, err := r.q.Query(context.Background(), query, establecimientoID)
	if err != nil {
		return nil, fmt.Errorf("list puntos: %w", err)
	}
	defer rows.Close()

	var out []*entity.PuntoEmision
	for rows.Next() {
		var p entity.PuntoEmision
		if err := rows.Scan(&p.ID, &p.EstablecimientoID, &p.Codigo, &p.SecuencialActual, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan punto: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// GetPunto resuelve (estab, punto) acotado al emisor.
func (r *EstructuraRepo) GetPunto(emisorID, estabCodigo, puntoCodigo string) (*entity.PuntoEmision, error) {
	query := `
		SELECT p.id, p.establecimiento_id, p.codigo, p.secuencial_actual, p.created_at
		FROM puntos_emision p
		JOIN establecimientos e ON e.id = p.establecimiento_id
		WHERE e.emisor_id = $1 AND e.codigo = $2 AND p.codigo = $3`
	var p entity.PuntoEmision
	err := r.q.QueryRow(context.Background(), query, emisorID, estabCodigo, puntoCodigo).Scan(
		&p.ID, &p.EstablecimientoID, &p.Codigo, &p.SecuencialActual, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get punto: %w", err)
	}
	return &p, nil
}

// GenerarSecuencial invoca la función de DB que avanza el secuencial bajo lock
// de fila y devuelve el valor asignado.
func (r *EstructuraRepo) GenerarSecuencial(puntoID string) (int64, error) {
	var sec int64
	err := r.q.QueryRow(context.Background(), `SELECT generar_secuencial($1)`, puntoID).Scan(&sec)
	if err != nil {
		return 0, fmt.Errorf("generar secuencial: %w", err)
	}
	return sec, nil
}
