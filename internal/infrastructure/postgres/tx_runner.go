package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crisanro/kipu-core/internal/application/facturacion"
)

// Asegura que TxRunner implementa facturacion.TxRunner.
var _ facturacion.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunEmision inicia una transacción, ejecuta fn con los repos atados a la tx y
// hace Commit o Rollback.
func (r *TxRunner) RunEmision(ctx context.Context, fn func(repos facturacion.RepositoriosEmision) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	repos := facturacion.RepositoriosEmision{
		Emisores:   NewEmisorRepository(tx),
		Estructura: NewEstructuraRepository(tx),
		Facturas:   NewFacturaRepository(tx),
		Creditos:   NewCreditoRepository(tx),
		Perfiles:   NewPerfilRepository(tx),
	}

	if err := fn(repos); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
