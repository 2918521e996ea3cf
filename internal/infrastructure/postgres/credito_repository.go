package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/crisanro/kipu-core/internal/domain/entity"
	"github.com/crisanro/kipu-core/internal/domain/repository"
)

var _ repository.CreditoRepository = (*CreditoRepo)(nil)

// CreditoRepo implementación de CreditoRepository (usable con pool o tx).
type CreditoRepo struct {
	q Querier
}

// NewCreditoRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCreditoRepository(q Querier) *CreditoRepo {
	return &CreditoRepo{q: q}
}

// GetForUpdate bloquea la fila del ledger dentro de la transacción en curso.
func (r *CreditoRepo) GetForUpdate(emisorID string) (*entity.CreditoLedger, error) {
	query := `
		SELECT emisor_id, balance, updated_at
		FROM creditos WHERE emisor_id = $1
		FOR UPDATE`
	var l entity.CreditoLedger
	err := r.q.QueryRow(context.Background(), query, emisorID).Scan(&l.EmisorID, &l.Balance, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock creditos: %w", err)
	}
	return &l, nil
}

// GetBalance lee el saldo sin bloquear.
func (r *CreditoRepo) GetBalance(emisorID string) (int64, error) {
	var balance int64
	err := r.q.QueryRow(context.Background(),
		`SELECT balance FROM creditos WHERE emisor_id = $1`, emisorID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// Debitar descuenta exactamente 1 condicionado a balance > 0. El CHECK de la
// tabla impide saldos negativos incluso ante una condición de carrera.
func (r *CreditoRepo) Debitar(emisorID string) (bool, error) {
	query := `
		UPDATE creditos
		SET balance = balance - 1, updated_at = now()
		WHERE emisor_id = $1 AND balance > 0`
	tag, err := r.q.Exec(context.Background(), query, emisorID)
	if err != nil {
		return false, fmt.Errorf("debitar credito: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Recargar incrementa el balance, creando el ledger si no existe.
func (r *CreditoRepo) Recargar(emisorID string, cantidad int64) error {
	query := `
		INSERT INTO creditos (emisor_id, balance, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (emisor_id)
		DO UPDATE SET balance = creditos.balance + EXCLUDED.balance, updated_at = now()`
	_, err := r.q.Exec(context.Background(), query, emisorID, cantidad)
	if err != nil {
		return fmt.Errorf("recargar creditos: %w", err)
	}
	return nil
}

// RegistrarTransaccion inserta el asiento de auditoría (append-only).
func (r *CreditoRepo) RegistrarTransaccion(t *entity.RegistroTransaccion) error {
	query := `
		INSERT INTO registro_transacciones (id, emisor_id, tipo, cantidad, detalle, created_at)
		VALUES ($1, $2, $3, $4, $5, now())`
	_, err := r.q.Exec(context.Background(), query,
		t.ID, t.EmisorID, t.Tipo, t.Cantidad, nullIfEmpty(t.Detalle),
	)
	if err != nil {
		return fmt.Errorf("insert transaccion: %w", err)
	}
	return nil
}

// ListTransacciones devuelve los últimos asientos del emisor.
func (r *CreditoRepo) ListTransacciones(emisorID string, limite int) ([]*entity.RegistroTransaccion, error) {
	query := `
		SELECT id, emisor_id, tipo, cantidad, detalle, created_at
		FROM registro_transacciones
		WHERE emisor_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.q.Query(context.Background(), query, emisorID, limite)
	if err != nil {
		return nil, fmt.Errorf("list transacciones: %w", err)
	}
	defer rows.Close()

	var out []*entity.RegistroTransaccion
	for rows.Next() {
		var t entity.RegistroTransaccion
		var detalle *string
		if err := rows.Scan(&t.ID, &t.EmisorID, &t.Tipo, &t.Cantidad, &detalle, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaccion: %w", err)
		}
		t.Detalle = deref(detalle)
		out = append(out, &t)
	}
	return out, rows.Err()
}
