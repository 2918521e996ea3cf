package repository

import "github.com/crisanro/kipu-core/internal/domain/entity"

// CreditoRepository puerto del ledger de créditos y su auditoría.
type CreditoRepository interface {
	// GetForUpdate bloquea la fila del ledger (SELECT … FOR UPDATE) dentro
	// de la transacción en curso. Devuelve nil si el emisor no tiene ledger.
	GetForUpdate(emisorID string) (*entity.CreditoLedger, error)
	GetBalance(emisorID string) (int64, error)

	// Debitar descuenta exactamente 1 condicionado a balance > 0; devuelve
	// false si no había saldo (la fila no cambió).
	Debitar(emisorID string) (bool, error)
	// Recargar incrementa el balance (crea el ledger si no existe).
	Recargar(emisorID string, cantidad int64) error

	RegistrarTransaccion(t *entity.RegistroTransaccion) error
	ListTransacciones(emisorID string, limite int) ([]*entity.RegistroTransaccion, error)
}
