// Package worker implementa el scheduler de liquidación con el SRI: firma de
// facturas encoladas, envío a recepción y consulta de autorización.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/crisanro/kipu-core/internal/application/facturacion"
	"github.com/crisanro/kipu-core/internal/domain/entity"
	"github.com/crisanro/kipu-core/internal/domain/repository"
	infrasri "github.com/crisanro/kipu-core/internal/infrastructure/sri"
	"github.com/crisanro/kipu-core/pkg/config"
	"github.com/crisanro/kipu-core/pkg/logger"
)

// LoteMaximo filas tomadas por tick y por job.
const LoteMaximo = 15

// Liquidador ejecuta los tres jobs periódicos del ciclo de liquidación.
// La selección de filas usa FOR UPDATE SKIP LOCKED, por lo que varias réplicas
// no procesan la misma factura dos veces.
type Liquidador struct {
	txRunner    facturacion.TxRunner
	emitir      *facturacion.EmitirFacturaUseCase
	facturas    repository.FacturaRepository // atado al pool, para lecturas
	cliente     infrasri.ClienteSRI
	storage     facturacion.ArtifactStore
	notificador facturacion.Notificador
	mailer      facturacion.Mailer
	politica    string
	log         *logger.Logger

	intervaloFirma        time.Duration
	intervaloEnvio        time.Duration
	intervaloAutorizacion time.Duration

	// guardas de solapamiento: un tick que sigue corriendo hace que el
	// siguiente se salte.
	firmaEnCurso        atomic.Bool
	envioEnCurso        atomic.Bool
	autorizacionEnCurso atomic.Bool
}

// NewLiquidador construye el worker.
func NewLiquidador(
	txRunner facturacion.TxRunner,
	emitir *facturacion.EmitirFacturaUseCase,
	facturas repository.FacturaRepository,
	cliente infrasri.ClienteSRI,
	storage facturacion.ArtifactStore,
	notificador facturacion.Notificador,
	mailer facturacion.Mailer,
	cfg config.SRIConfig,
	politica string,
	log *logger.Logger,
) *Liquidador {
	return &Liquidador{
		txRunner:              txRunner,
		emitir:                emitir,
		facturas:              facturas,
		cliente:               cliente,
		storage:               storage,
		notificador:           notificador,
		mailer:                mailer,
		politica:              politica,
		log:                   log,
		intervaloFirma:        time.Duration(cfg.IntervaloFirma) * time.Second,
		intervaloEnvio:        time.Duration(cfg.IntervaloEnvio) * time.Second,
		intervaloAutorizacion: time.Duration(cfg.IntervaloAutorizacion) * time.Second,
	}
}

// Iniciar lanza las goroutines de los tres jobs; se detienen al cancelar ctx.
func (l *Liquidador) Iniciar(ctx context.Context) {
	go l.loop(ctx, l.intervaloFirma, &l.firmaEnCurso, l.tickFirma)
	go l.loop(ctx, l.intervaloEnvio, &l.envioEnCurso, l.tickEnvio)
	go l.loop(ctx, l.intervaloAutorizacion, &l.autorizacionEnCurso, l.tickAutorizacion)
	l.log.Info().
		Dur("firma", l.intervaloFirma).
		Dur("envio", l.intervaloEnvio).
		Dur("autorizacion", l.intervaloAutorizacion).
		Msg("worker de liquidación iniciado")
}

func (l *Liquidador) loop(ctx context.Context, intervalo time.Duration, enCurso *atomic.Bool, tick func(context.Context)) {
	ticker := time.NewTicker(intervalo)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !enCurso.CompareAndSwap(false, true) {
				continue // el tick anterior sigue corriendo
			}
			tick(ctx)
			enCurso.Store(false)
		}
	}
}

// ── Job de firma (PENDIENTE -> FIRMADO) ──────────────────────────────────────

// tickFirma retoma facturas encoladas por /invoices/emit y las emite con el
// mismo núcleo de la ruta síncrona. El Update condicionado a PENDIENTE evita
// el doble procesamiento entre réplicas.
func (l *Liquidador) tickFirma(ctx context.Context) {
	pendientes, err := l.facturas.ListPorEstado(entity.EstadoPendiente, LoteMaximo)
	if err != nil {
		l.log.Error().Err(err).Msg("firma: seleccionar pendientes")
		return
	}
	for _, f := range pendientes {
		if err := l.emitir.EmitirPendiente(ctx, f); err != nil {
			l.log.Warn().Str("factura", f.ID).Err(err).Msg("firma: emisión pendiente fallida")
		}
	}
}

// ── Job de envío (FIRMADO -> RECIBIDA | DEVUELTA) ────────────────────────────

type eventoPendiente struct {
	ev    facturacion.EventoFactura
	email string
	pdf   string
}

// tickEnvio toma un lote FIRMADO bajo SKIP LOCKED, envía cada XML firmado a
// recepción y avanza el estado según la respuesta. Errores de transporte
// dejan la fila intacta para el siguiente tick.
func (l *Liquidador) tickEnvio(ctx context.Context) {
	var eventos []eventoPendiente

	err := l.txRunner.RunEmision(ctx, func(repos facturacion.RepositoriosEmision) error {
		lote, err := repos.Facturas.SeleccionarPorEstado(entity.EstadoFirmado, LoteMaximo)
		if err != nil {
			return err
		}
		for _, f := range lote {
			emisor, err := repos.Emisores.GetByID(f.EmisorID)
			if err != nil || emisor == nil {
				l.log.Error().Str("factura", f.ID).Err(err).Msg("envio: emisor no disponible")
				continue
			}
			xmlFirmado, err := l.descargar(ctx, f.XMLPath)
			if err != nil {
				l.log.Error().Str("factura", f.ID).Err(err).Msg("envio: descargar XML firmado")
				continue
			}
			resp, err := l.cliente.EnviarRecepcion(ctx, xmlFirmado, emisor.Ambiente)
			if err != nil {
				// Error de transporte: la fila queda en FIRMADO y se reintenta.
				l.log.Warn().Str("factura", f.ID).Err(err).Msg("envio: recepción SRI no disponible")
				continue
			}
			if resp.Estado == infrasri.EstadoRecepcionRecibida {
				if _, err := repos.Facturas.MarcarRecibida(f.ID, time.Now().UTC()); err != nil {
					return err
				}
				l.log.Info().Str("factura", f.ID).Str("clave", f.ClaveAcceso).Msg("envio: RECIBIDA")
				continue
			}
			mensajes := serializarMensajes(resp.Mensajes)
			if _, err := repos.Facturas.MarcarDevuelta(f.ID, mensajes); err != nil {
				return err
			}
			l.log.Warn().Str("factura", f.ID).Str("clave", f.ClaveAcceso).Msg("envio: DEVUELTA")
			eventos = append(eventos, eventoPendiente{ev: facturacion.EventoFactura{
				UserUID:     emisor.UserUID,
				InvoiceID:   f.ID,
				ClaveAcceso: f.ClaveAcceso,
				Estado:      entity.EstadoDevuelta,
				MensajeSRI:  mensajes,
				Fecha:       time.Now().UTC().Format(time.RFC3339),
			}})
		}
		return nil
	})
	if err != nil {
		l.log.Error().Err(err).Msg("envio: tick fallido")
		return
	}
	l.despachar(ctx, eventos)
}

// ── Job de autorización (RECIBIDA -> AUTORIZADO | RECHAZADO) ─────────────────

// tickAutorizacion consulta la autorización de cada factura RECIBIDA. En
// AUTORIZADO sube el XML con el sello de la autoridad, estampa la fecha,
// descuenta el crédito bajo la política lazy y notifica.
func (l *Liquidador) tickAutorizacion(ctx context.Context) {
	var eventos []eventoPendiente

	err := l.txRunner.RunEmision(ctx, func(repos facturacion.RepositoriosEmision) error {
		lote, err := repos.Facturas.SeleccionarPorEstado(entity.EstadoRecibida, LoteMaximo)
		if err != nil {
			return err
		}
		for _, f := range lote {
			emisor, err := repos.Emisores.GetByID(f.EmisorID)
			if err != nil || emisor == nil {
				l.log.Error().Str("factura", f.ID).Err(err).Msg("autorizacion: emisor no disponible")
				continue
			}
			resp, err := l.cliente.ConsultarAutorizacion(ctx, f.ClaveAcceso, emisor.Ambiente)
			if err != nil {
				l.log.Warn().Str("factura", f.ID).Err(err).Msg("autorizacion: WS no disponible")
				continue
			}
			if resp.NumeroComprobantes == 0 || len(resp.Autorizaciones) == 0 {
				// El SRI aún no registra la autorización; reintentar luego.
				continue
			}
			aut := resp.Autorizaciones[0]
			mensajes := serializarMensajes(aut.Mensajes)

			switch aut.Estado {
			case infrasri.EstadoAutorizado:
				key := fmt.Sprintf("authorized/%s/%s.xml", emisor.RUC, f.ClaveAcceso)
				autorizado := []byte(aut.ComprobanteXML)
				xmlPath, err := l.storage.Put(ctx, facturacion.BucketFacturas, key,
					bytes.NewReader(autorizado), int64(len(autorizado)), "application/xml")
				if err != nil {
					l.log.Error().Str("factura", f.ID).Err(err).Msg("autorizacion: subir XML autorizado")
					continue
				}
				fecha := aut.FechaAutorizacion
				if fecha.IsZero() {
					fecha = time.Now().UTC()
				}
				avanzo, err := repos.Facturas.MarcarAutorizada(f.ID, xmlPath, fecha, mensajes)
				if err != nil {
					return err
				}
				if !avanzo {
					continue // otra réplica ya la procesó
				}
				if l.politica == config.DebitoLazy {
					if ok, err := repos.Creditos.Debitar(f.EmisorID); err != nil {
						return err
					} else if ok {
						_ = repos.Creditos.RegistrarTransaccion(&entity.RegistroTransaccion{
							ID:       uuid.New().String(),
							EmisorID: f.EmisorID,
							Tipo:     entity.TransaccionDebito,
							Cantidad: -1,
							Detalle:  "autorización " + f.ClaveAcceso,
						})
					}
				}
				l.log.Info().Str("factura", f.ID).Str("clave", f.ClaveAcceso).Msg("autorizacion: AUTORIZADO")
				eventos = append(eventos, eventoPendiente{
					ev: facturacion.EventoFactura{
						UserUID:     emisor.UserUID,
						InvoiceID:   f.ID,
						ClaveAcceso: f.ClaveAcceso,
						Estado:      entity.EstadoAutorizado,
						MensajeSRI:  mensajes,
						Fecha:       fecha.Format(time.RFC3339),
					},
					email: f.EmailComprador,
					pdf:   f.PDFPath,
				})

			case infrasri.EstadoNoAutorizado:
				avanzo, err := repos.Facturas.MarcarRechazada(f.ID, mensajes)
				if err != nil {
					return err
				}
				if !avanzo {
					continue
				}
				l.log.Warn().Str("factura", f.ID).Str("clave", f.ClaveAcceso).Msg("autorizacion: RECHAZADO")
				eventos = append(eventos, eventoPendiente{ev: facturacion.EventoFactura{
					UserUID:     emisor.UserUID,
					InvoiceID:   f.ID,
					ClaveAcceso: f.ClaveAcceso,
					Estado:      entity.EstadoRechazado,
					MensajeSRI:  mensajes,
					Fecha:       time.Now().UTC().Format(time.RFC3339),
				}})

			default:
				// Estado de autoridad no contemplado: se guarda tal cual y la
				// fila se reintenta en el siguiente tick.
				registro := aut.Estado
				if mensajes != "" {
					registro += ": " + mensajes
				}
				if err := repos.Facturas.ActualizarMensajes(f.ID, registro); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		l.log.Error().Err(err).Msg("autorizacion: tick fallido")
		return
	}
	l.despachar(ctx, eventos)
}

// despachar entrega webhooks y correos fuera de la transacción; los fallos se
// registran y se descartan (at-most-once).
func (l *Liquidador) despachar(ctx context.Context, eventos []eventoPendiente) {
	for _, e := range eventos {
		if err := l.notificador.NotificarCambioEstado(ctx, e.ev); err != nil {
			l.log.Warn().Str("factura", e.ev.InvoiceID).Err(err).Msg("webhook de notificación fallido")
		}
		if e.ev.Estado == entity.EstadoAutorizado && e.email != "" && e.pdf != "" {
			pdf, err := l.descargar(ctx, e.pdf)
			if err != nil {
				l.log.Warn().Str("factura", e.ev.InvoiceID).Err(err).Msg("no se pudo descargar la RIDE para el correo")
				continue
			}
			if err := l.mailer.EnviarRIDE(e.email, e.ev.ClaveAcceso, pdf); err != nil {
				l.log.Warn().Str("factura", e.ev.InvoiceID).Err(err).Msg("correo de RIDE fallido")
			}
		}
	}
}

// descargar trae un artefacto completo desde su ruta canónica "<bucket>/<key>".
func (l *Liquidador) descargar(ctx context.Context, ruta string) ([]byte, error) {
	bucket, key, ok := partirRuta(ruta)
	if !ok {
		return nil, fmt.Errorf("worker: ruta de artefacto inválida %q", ruta)
	}
	rc, err := l.storage.Get(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func partirRuta(ruta string) (bucket, key string, ok bool) {
	for i := 0; i < len(ruta); i++ {
		if ruta[i] == '/' {
			if i == 0 || i == len(ruta)-1 {
				return "", "", false
			}
			return ruta[:i], ruta[i+1:], true
		}
	}
	return "", "", false
}

// serializarMensajes deja los mensajes del SRI como JSON legible en la columna
// mensajes_sri.
func serializarMensajes(mensajes []infrasri.MensajeSRI) string {
	if len(mensajes) == 0 {
		return ""
	}
	out, err := json.Marshal(mensajes)
	if err != nil {
		return fmt.Sprintf("%v", mensajes)
	}
	return string(out)
}
