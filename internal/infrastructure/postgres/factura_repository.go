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

var _ repository.FacturaRepository = (*FacturaRepo)(nil)

// FacturaRepo implementación de FacturaRepository (usable con pool o tx).
type FacturaRepo struct {
	q Querier
}

// NewFacturaRepository construye el adaptador. Pasar pool o tx (Querier).
func NewFacturaRepository(q Querier) *FacturaRepo {
	return &FacturaRepo{q: q}
}

const columnasFactura = `id, emisor_id, punto_emision_id, secuencial, clave_acceso,
	identificacion_comprador, razon_social_comprador, email_comprador,
	subtotal_sin_impuestos, subtotal_0, subtotal_iva, valor_iva, importe_total,
	estado, xml_path, pdf_path, fecha_emision, fecha_envio_sri, fecha_autorizacion,
	mensajes_sri, client_input_data, created_at, updated_at`

// Create persiste la fila de la factura.
func (r *FacturaRepo) Create(f *entity.Factura) error {
	query := `
		INSERT INTO facturas (` + columnasFactura + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`
	_, err := r.q.Exec(context.Background(), query,
		f.ID, f.EmisorID, nullIfEmpty(f.PuntoEmisionID), nullIfEmpty(f.Secuencial), nullIfEmpty(f.ClaveAcceso),
		f.IdentificacionComprador, f.RazonSocialComprador, nullIfEmpty(f.EmailComprador),
		f.SubtotalSinImpuestos, f.Subtotal0, f.SubtotalIVA, f.ValorIVA, f.ImporteTotal,
		f.Estado, nullIfEmpty(f.XMLPath), nullIfEmpty(f.PDFPath),
		f.FechaEmision, f.FechaEnvioSRI, f.FechaAutorizacion,
		nullIfEmpty(f.MensajesSRI), f.ClientInputData, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("secuencial duplicado para el punto de emisión: %w", err)
		}
		return fmt.Errorf("insert factura: %w", err)
	}
	return nil
}

// Update completa una fila PENDIENTE con los campos calculados de la emisión.
// Condicionado al estado de origen: si otra réplica ya la procesó no se toca
// la fila y se reporta conflicto (evita doble asignación y doble débito).
func (r *FacturaRepo) Update(f *entity.Factura) error {
	query := `
		UPDATE facturas
		SET punto_emision_id = $2, secuencial = $3, clave_acceso = $4,
		    subtotal_sin_impuestos = $5, subtotal_0 = $6, subtotal_iva = $7,
		    valor_iva = $8, importe_total = $9, estado = $10,
		    xml_path = $11, pdf_path = $12, updated_at = $13
		WHERE id = $1 AND estado = 'PENDIENTE'`
	tag, err := r.q.Exec(context.Background(), query,
		f.ID, nullIfEmpty(f.PuntoEmisionID), nullIfEmpty(f.Secuencial), nullIfEmpty(f.ClaveAcceso),
		f.SubtotalSinImpuestos, f.Subtotal0, f.SubtotalIVA, f.ValorIVA, f.ImporteTotal,
		f.Estado, nullIfEmpty(f.XMLPath), nullIfEmpty(f.PDFPath), f.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("secuencial duplicado para el punto de emisión: %w", err)
		}
		return fmt.Errorf("update factura: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("factura ya procesada por otra réplica: %w", domain.ErrConflicto)
	}
	return nil
}

// GetByID obtiene una factura por ID.
func (r *FacturaRepo) GetByID(id string) (*entity.Factura, error) {
	return r.getBy("id = $1", id)
}

// GetByClaveAcceso obtiene una factura por clave de acceso.
func (r *FacturaRepo) GetByClaveAcceso(clave string) (*entity.Factura, error) {
	return r.getBy("clave_acceso = $1", clave)
}

func (r *FacturaRepo) getBy(cond string, arg any) (*entity.Factura, error) {
	query := `SELECT ` + columnasFactura + ` FROM facturas WHERE ` + cond
	row := r.q.QueryRow(context.Background(), query, arg)
	f, err := scanFactura(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get factura: %w", err)
	}
	return f, nil
}

// ListByEmisor devuelve las últimas facturas del emisor.
func (r *FacturaRepo) ListByEmisor(emisorID string, limite int) ([]*entity.Factura, error) {
	query := `SELECT ` + columnasFactura + `
		FROM facturas WHERE emisor_id = $1
		ORDER BY created_at DESC LIMIT $2`
	rows, err := r.q.Query(context.Background(), query, emisorID, limite)
	if err != nil {
		return nil, fmt.Errorf("list facturas: %w", err)
	}
	defer rows.Close()
	return scanFacturas(rows)
}

// ListPorEstado lista un lote por estado sin bloquear filas.
func (r *FacturaRepo) ListPorEstado(estado string, limite int) ([]*entity.Factura, error) {
	query := `SELECT ` + columnasFactura + `
		FROM facturas WHERE estado = $1
		ORDER BY created_at ASC LIMIT $2`
	rows, err := r.q.Query(context.Background(), query, estado, limite)
	if err != nil {
		return nil, fmt.Errorf("list facturas %s: %w", estado, err)
	}
	defer rows.Close()
	return scanFacturas(rows)
}

// SeleccionarPorEstado toma un lote en el estado dado, más antiguas primero,
// con SKIP LOCKED para tolerar réplicas del worker. Requiere transacción.
func (r *FacturaRepo) SeleccionarPorEstado(estado string, limite int) ([]*entity.Factura, error) {
	query := `SELECT ` + columnasFactura + `
		FROM facturas WHERE estado = $1
		ORDER BY created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED`
	rows, err := r.q.Query(context.Background(), query, estado, limite)
	if err != nil {
		return nil, fmt.Errorf("seleccionar facturas %s: %w", estado, err)
	}
	defer rows.Close()
	return scanFacturas(rows)
}

// ActualizarMensajes persiste mensajes del SRI sin mover el estado.
func (r *FacturaRepo) ActualizarMensajes(id, mensajes string) error {
	_, err := r.q.Exec(context.Background(),
		`UPDATE facturas SET mensajes_sri = $2, updated_at = now() WHERE id = $1`, id, mensajes)
	if err != nil {
		return fmt.Errorf("actualizar mensajes: %w", err)
	}
	return nil
}

// MarcarRecibida avanza FIRMADO -> RECIBIDA y registra fecha_envio_sri.
func (r *FacturaRepo) MarcarRecibida(id string, fechaEnvio time.Time) (bool, error) {
	query := `
		UPDATE facturas
		SET estado = $2, fecha_envio_sri = $3, updated_at = now()
		WHERE id = $1 AND estado = $4`
	tag, err := r.q.Exec(context.Background(), query, id, entity.EstadoRecibida, fechaEnvio, entity.EstadoFirmado)
	if err != nil {
		return false, fmt.Errorf("marcar recibida: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarcarDevuelta avanza FIRMADO -> DEVUELTA con los mensajes del SRI.
func (r *FacturaRepo) MarcarDevuelta(id, mensajes string) (bool, error) {
	query := `
		UPDATE facturas
		SET estado = $2, mensajes_sri = $3, updated_at = now()
		WHERE id = $1 AND estado = $4`
	tag, err := r.q.Exec(context.Background(), query, id, entity.EstadoDevuelta, mensajes, entity.EstadoFirmado)
	if err != nil {
		return false, fmt.Errorf("marcar devuelta: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarcarAutorizada avanza RECIBIDA -> AUTORIZADO con el XML autorizado.
func (r *FacturaRepo) MarcarAutorizada(id, xmlPath string, fechaAutorizacion time.Time, mensajes string) (bool, error) {
	query := `
		UPDATE facturas
		SET estado = $2, xml_path = $3, fecha_autorizacion = $4, mensajes_sri = $5, updated_at = now()
		WHERE id = $1 AND estado = $6`
	tag, err := r.q.Exec(context.Background(), query,
		id, entity.EstadoAutorizado, xmlPath, fechaAutorizacion, nullIfEmpty(mensajes), entity.EstadoRecibida)
	if err != nil {
		return false, fmt.Errorf("marcar autorizada: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarcarRechazada avanza RECIBIDA -> RECHAZADO con los mensajes del SRI.
func (r *FacturaRepo) MarcarRechazada(id, mensajes string) (bool, error) {
	query := `
		UPDATE facturas
		SET estado = $2, mensajes_sri = $3, updated_at = now()
		WHERE id = $1 AND estado = $4`
	tag, err := r.q.Exec(context.Background(), query, id, entity.EstadoRechazado, mensajes, entity.EstadoRecibida)
	if err != nil {
		return false, fmt.Errorf("marcar rechazada: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ── scan helpers ──────────────────────────────────────────────────────────────

func scanFactura(row pgx.Row) (*entity.Factura, error) {
	var f entity.Factura
	var puntoID, secuencial, clave, email, xmlPath, pdfPath, mensajes *string
	err := row.Scan(
		&f.ID, &f.EmisorID, &puntoID, &secuencial, &clave,
		&f.IdentificacionComprador, &f.RazonSocialComprador, &email,
		&f.SubtotalSinImpuestos, &f.Subtotal0, &f.SubtotalIVA, &f.ValorIVA, &f.ImporteTotal,
		&f.Estado, &xmlPath, &pdfPath, &f.FechaEmision, &f.FechaEnvioSRI, &f.FechaAutorizacion,
		&mensajes, &f.ClientInputData, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	f.PuntoEmisionID = deref(puntoID)
	f.Secuencial = deref(secuencial)
	f.ClaveAcceso = deref(clave)
	f.EmailComprador = deref(email)
	f.XMLPath = deref(xmlPath)
	f.PDFPath = deref(pdfPath)
	f.MensajesSRI = deref(mensajes)
	return &f, nil
}

func scanFacturas(rows pgx.Rows) ([]*entity.Factura, error) {
	var out []*entity.Factura
	for rows.Next() {
		f, err := scanFactura(rows)
		if err != nil {
			return nil, fmt.Errorf("scan factura: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
