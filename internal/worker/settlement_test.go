package worker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisanro/kipu-core/internal/application/facturacion"
	"github.com/crisanro/kipu-core/internal/domain/entity"
	infrasri "github.com/crisanro/kipu-core/internal/infrastructure/sri"
	"github.com/crisanro/kipu-core/pkg/config"
	"github.com/crisanro/kipu-core/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fakes en memoria: repos, storage, SOAP, webhook y correo.
// ──────────────────────────────────────────────────────────────────────────────

type fakeEmisores struct{ emisores map[string]*entity.Emisor }

func (f *fakeEmisores) Create(e *entity.Emisor) error                  { f.emisores[e.ID] = e; return nil }
func (f *fakeEmisores) GetByID(id string) (*entity.Emisor, error)      { return f.emisores[id], nil }
func (f *fakeEmisores) GetByRUC(ruc string) (*entity.Emisor, error)    { return nil, nil }
func (f *fakeEmisores) GetByUserUID(uid string) (*entity.Emisor, error) { return nil, nil }
func (f *fakeEmisores) UpdateConfig(e *entity.Emisor) error            { return nil }
func (f *fakeEmisores) UpdateFirma(id, p, c string, exp time.Time) error { return nil }

type fakeFacturas struct{ filas map[string]*entity.Factura }

func (f *fakeFacturas) Create(x *entity.Factura) error { f.filas[x.ID] = x; return nil }
func (f *fakeFacturas) Update(x *entity.Factura) error { f.filas[x.ID] = x; return nil }
func (f *fakeFacturas) GetByID(id string) (*entity.Factura, error) { return f.filas[id], nil }
func (f *fakeFacturas) GetByClaveAcceso(c string) (*entity.Factura, error) { return nil, nil }
func (f *fakeFacturas) ListByEmisor(e string, l int) ([]*entity.Factura, error) { return nil, nil }

func (f *fakeFacturas) ListPorEstado(estado string, limite int) ([]*entity.Factura, error) {
	return f.SeleccionarPorEstado(estado, limite)
}

func (f *fakeFacturas) SeleccionarPorEstado(estado string, limite int) ([]*entity.Factura, error) {
	var out []*entity.Factura
	for _, fila := range f.filas {
		if fila.Estado == estado && len(out) < limite {
			out = append(out, fila)
		}
	}
	return out, nil
}

func (f *fakeFacturas) ActualizarMensajes(id, m string) error {
	if fila, ok := f.filas[id]; ok {
		fila.MensajesSRI = m
	}
	return nil
}

func (f *fakeFacturas) transicion(id, desde, hacia string, aplicar func(*entity.Factura)) (bool, error) {
	fila, ok := f.filas[id]
	if !ok || fila.Estado != desde {
		return false, nil
	}
	fila.Estado = hacia
	aplicar(fila)
	return true, nil
}

func (f *fakeFacturas) MarcarRecibida(id string, fecha time.Time) (bool, error) {
	return f.transicion(id, entity.EstadoFirmado, entity.EstadoRecibida, func(x *entity.Factura) {
		x.FechaEnvioSRI = &fecha
	})
}

func (f *fakeFacturas) MarcarDevuelta(id, mensajes string) (bool, error) {
	return f.transicion(id, entity.EstadoFirmado, entity.EstadoDevuelta, func(x *entity.Factura) {
		x.MensajesSRI = mensajes
	})
}

func (f *fakeFacturas) MarcarAutorizada(id, xmlPath string, fecha time.Time, mensajes string) (bool, error) {
	return f.transicion(id, entity.EstadoRecibida, entity.EstadoAutorizado, func(x *entity.Factura) {
		x.XMLPath = xmlPath
		x.FechaAutorizacion = &fecha
		x.MensajesSRI = mensajes
	})
}

func (f *fakeFacturas) MarcarRechazada(id, mensajes string) (bool, error) {
	return f.transicion(id, entity.EstadoRecibida, entity.EstadoRechazado, func(x *entity.Factura) {
		x.MensajesSRI = mensajes
	})
}

type fakeCreditos struct {
	balances      map[string]int64
	transacciones []*entity.RegistroTransaccion
}

func (f *fakeCreditos) GetForUpdate(e string) (*entity.CreditoLedger, error) {
	b, ok := f.balances[e]
	if !ok {
		return nil, nil
	}
	return &entity.CreditoLedger{EmisorID: e, Balance: b}, nil
}
func (f *fakeCreditos) GetBalance(e string) (int64, error) { return f.balances[e], nil }
func (f *fakeCreditos) Debitar(e string) (bool, error) {
	if f.balances[e] <= 0 {
		return false, nil
	}
	f.balances[e]--
	return true, nil
}
func (f *fakeCreditos) Recargar(e string, c int64) error { f.balances[e] += c; return nil }
func (f *fakeCreditos) RegistrarTransaccion(t *entity.RegistroTransaccion) error {
	f.transacciones = append(f.transacciones, t)
	return nil
}
func (f *fakeCreditos) ListTransacciones(e string, l int) ([]*entity.RegistroTransaccion, error) {
	return f.transacciones, nil
}

type fakeTxRunner struct{ repos facturacion.RepositoriosEmision }

func (r *fakeTxRunner) RunEmision(ctx context.Context, fn func(facturacion.RepositoriosEmision) error) error {
	return fn(r.repos)
}

type fakeStorage struct{ objetos map[string][]byte }

func (s *fakeStorage) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, ct string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.objetos[bucket+"/"+key] = data
	return bucket + "/" + key, nil
}
func (s *fakeStorage) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	data, ok := s.objetos[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("objeto %s/%s no existe", bucket, key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
func (s *fakeStorage) Delete(ctx context.Context, bucket, key string) error {
	delete(s.objetos, bucket+"/"+key)
	return nil
}
func (s *fakeStorage) Presign(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	return "https://example.com/" + bucket + "/" + key, nil
}

type stubClienteSRI struct {
	recepcion        *infrasri.RespuestaRecepcion
	recepcionErr     error
	autorizacion     *infrasri.RespuestaAutorizacion
	autorizacionErr  error
	llamadasRecep    int
	llamadasAutoriza int
}

func (s *stubClienteSRI) EnviarRecepcion(ctx context.Context, xml []byte, amb string) (*infrasri.RespuestaRecepcion, error) {
	s.llamadasRecep++
	return s.recepcion, s.recepcionErr
}
func (s *stubClienteSRI) ConsultarAutorizacion(ctx context.Context, clave, amb string) (*infrasri.RespuestaAutorizacion, error) {
	s.llamadasAutoriza++
	return s.autorizacion, s.autorizacionErr
}

type fakeNotificador struct{ eventos []facturacion.EventoFactura }

func (n *fakeNotificador) NotificarCambioEstado(ctx context.Context, ev facturacion.EventoFactura) error {
	n.eventos = append(n.eventos, ev)
	return nil
}

type fakeMailer struct{ enviados []string }

func (m *fakeMailer) EnviarRIDE(to, clave string, pdf []byte) error {
	m.enviados = append(m.enviados, to)
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Armado del escenario
// ──────────────────────────────────────────────────────────────────────────────

const (
	testEmisorID = "emisor-1"
	testClave    = "1503202401179001167400110011000000000011234567813"
)

type escenario struct {
	liq      *Liquidador
	facturas *fakeFacturas
	creditos *fakeCreditos
	storage  *fakeStorage
	notifica *fakeNotificador
	mailer   *fakeMailer
	cliente  *stubClienteSRI
}

func nuevoEscenario(t *testing.T, politica string, cliente *stubClienteSRI) *escenario {
	t.Helper()
	exp := time.Now().Add(365 * 24 * time.Hour)
	emisores := &fakeEmisores{emisores: map[string]*entity.Emisor{
		testEmisorID: {
			ID: testEmisorID, UserUID: "uid-1", RUC: "1790011674001",
			RazonSocial: "Emisor", DireccionMatriz: "Quito",
			Ambiente: "1", ObligadoContabilidad: "NO",
			P12Path: "certificates/1790011674001/certificate_1.p12", P12Expiration: &exp,
		},
	}}
	facturas := &fakeFacturas{filas: map[string]*entity.Factura{}}
	creditos := &fakeCreditos{balances: map[string]int64{testEmisorID: 10}}
	storage := &fakeStorage{objetos: map[string][]byte{}}
	notifica := &fakeNotificador{}
	mailer := &fakeMailer{}

	repos := facturacion.RepositoriosEmision{
		Emisores: emisores,
		Facturas: facturas,
		Creditos: creditos,
	}
	log := logger.New(logger.Config{Env: "production", Level: "error"})
	liq := NewLiquidador(
		&fakeTxRunner{repos: repos}, nil, facturas, cliente, storage, notifica, mailer,
		config.SRIConfig{IntervaloFirma: 20, IntervaloEnvio: 20, IntervaloAutorizacion: 60},
		politica, log,
	)
	return &escenario{liq: liq, facturas: facturas, creditos: creditos, storage: storage, notifica: notifica, mailer: mailer, cliente: cliente}
}

func facturaFirmada(e *escenario) *entity.Factura {
	f := &entity.Factura{
		ID:          "f-1",
		EmisorID:    testEmisorID,
		ClaveAcceso: testClave,
		Estado:      entity.EstadoFirmado,
		XMLPath:     "invoices/signed/1790011674001/" + testClave + ".xml",
		PDFPath:     "invoices/signed/1790011674001/" + testClave + ".pdf",
		EmailComprador: "cliente@example.com",
		CreatedAt:   time.Now().UTC(),
	}
	e.facturas.filas[f.ID] = f
	e.storage.objetos[f.XMLPath] = []byte(`<factura id="comprobante"/>`)
	e.storage.objetos[f.PDFPath] = []byte("%PDF-1.7")
	return f
}

// ──────────────────────────────────────────────────────────────────────────────
// Envío (recepción)
// ──────────────────────────────────────────────────────────────────────────────

func TestTickEnvio_Recibida(t *testing.T) {
	e := nuevoEscenario(t, config.DebitoEager, &stubClienteSRI{
		recepcion: &infrasri.RespuestaRecepcion{Estado: infrasri.EstadoRecepcionRecibida},
	})
	f := facturaFirmada(e)

	e.liq.tickEnvio(context.Background())

	assert.Equal(t, entity.EstadoRecibida, f.Estado)
	require.NotNil(t, f.FechaEnvioSRI)
	assert.Empty(t, e.notifica.eventos, "RECIBIDA no es transición terminal")
}

// Escenario S5: la recepción devuelve el comprobante con un mensaje de error.
func TestTickEnvio_Devuelta(t *testing.T) {
	e := nuevoEscenario(t, config.DebitoEager, &stubClienteSRI{
		recepcion: &infrasri.RespuestaRecepcion{
			Estado: infrasri.EstadoRecepcionDevuelta,
			Mensajes: []infrasri.MensajeSRI{
				{Identificador: "35", Mensaje: "ARCHIVO NO CUMPLE ESTRUCTURA XML", Tipo: "ERROR"},
			},
		},
	})
	f := facturaFirmada(e)

	e.liq.tickEnvio(context.Background())

	assert.Equal(t, entity.EstadoDevuelta, f.Estado)
	assert.Contains(t, f.MensajesSRI, "ARCHIVO NO CUMPLE ESTRUCTURA XML")

	require.Len(t, e.notifica.eventos, 1)
	assert.Equal(t, entity.EstadoDevuelta, e.notifica.eventos[0].Estado)
	assert.Equal(t, "uid-1", e.notifica.eventos[0].UserUID)
	assert.Equal(t, testClave, e.notifica.eventos[0].ClaveAcceso)
}

// Un error de transporte deja la fila en FIRMADO para el siguiente tick.
func TestTickEnvio_ErrorDeTransporte(t *testing.T) {
	e := nuevoEscenario(t, config.DebitoEager, &stubClienteSRI{
		recepcionErr: fmt.Errorf("timeout"),
	})
	f := facturaFirmada(e)

	e.liq.tickEnvio(context.Background())

	assert.Equal(t, entity.EstadoFirmado, f.Estado)
	assert.Empty(t, e.notifica.eventos)

	// El siguiente tick reintenta
	e.liq.tickEnvio(context.Background())
	assert.Equal(t, 2, e.cliente.llamadasRecep)
}

// ──────────────────────────────────────────────────────────────────────────────
// Autorización
// ──────────────────────────────────────────────────────────────────────────────

func respuestaAutorizada(fecha time.Time) *infrasri.RespuestaAutorizacion {
	return &infrasri.RespuestaAutorizacion{
		ClaveAcceso:        testClave,
		NumeroComprobantes: 1,
		Autorizaciones: []infrasri.Autorizacion{{
			Estado:             infrasri.EstadoAutorizado,
			NumeroAutorizacion: testClave,
			FechaAutorizacion:  fecha,
			ComprobanteXML:     `<factura id="comprobante"><numeroAutorizacion/></factura>`,
		}},
	}
}

// Escenario S6: autorización exitosa con política lazy.
func TestTickAutorizacion_Autorizado(t *testing.T) {
	fecha := time.Date(2024, 3, 15, 10, 35, 0, 0, time.UTC)
	e := nuevoEscenario(t, config.DebitoLazy, &stubClienteSRI{
		autorizacion: respuestaAutorizada(fecha),
	})
	f := facturaFirmada(e)
	f.Estado = entity.EstadoRecibida

	e.liq.tickAutorizacion(context.Background())

	assert.Equal(t, entity.EstadoAutorizado, f.Estado)
	assert.Equal(t, "invoices/authorized/1790011674001/"+testClave+".xml", f.XMLPath,
		"el xml_path apunta al comprobante con el sello de la autoridad")
	require.NotNil(t, f.FechaAutorizacion)
	assert.True(t, f.FechaAutorizacion.Equal(fecha), "la fecha viene del timestamp de la autoridad")

	// El XML autorizado quedó en el bucket
	_, ok := e.storage.objetos[f.XMLPath]
	assert.True(t, ok)

	// Débito lazy observable aquí
	assert.Equal(t, int64(9), e.creditos.balances[testEmisorID])
	require.Len(t, e.creditos.transacciones, 1)
	assert.Equal(t, entity.TransaccionDebito, e.creditos.transacciones[0].Tipo)

	// Webhook terminal + correo con la RIDE
	require.Len(t, e.notifica.eventos, 1)
	assert.Equal(t, entity.EstadoAutorizado, e.notifica.eventos[0].Estado)
	assert.Equal(t, []string{"cliente@example.com"}, e.mailer.enviados)
}

// Con política eager el worker no vuelve a debitar en la autorización.
func TestTickAutorizacion_EagerNoDebita(t *testing.T) {
	e := nuevoEscenario(t, config.DebitoEager, &stubClienteSRI{
		autorizacion: respuestaAutorizada(time.Now().UTC()),
	})
	f := facturaFirmada(e)
	f.Estado = entity.EstadoRecibida

	e.liq.tickAutorizacion(context.Background())

	assert.Equal(t, entity.EstadoAutorizado, f.Estado)
	assert.Equal(t, int64(10), e.creditos.balances[testEmisorID], "sin doble débito")
}

func TestTickAutorizacion_NoAutorizado(t *testing.T) {
	e := nuevoEscenario(t, config.DebitoLazy, &stubClienteSRI{
		autorizacion: &infrasri.RespuestaAutorizacion{
			ClaveAcceso:        testClave,
			NumeroComprobantes: 1,
			Autorizaciones: []infrasri.Autorizacion{{
				Estado:   infrasri.EstadoNoAutorizado,
				Mensajes: []infrasri.MensajeSRI{{Identificador: "60", Mensaje: "CLAVE EN PROCESAMIENTO", Tipo: "ERROR"}},
			}},
		},
	})
	f := facturaFirmada(e)
	f.Estado = entity.EstadoRecibida

	e.liq.tickAutorizacion(context.Background())

	assert.Equal(t, entity.EstadoRechazado, f.Estado)
	assert.Contains(t, f.MensajesSRI, "CLAVE EN PROCESAMIENTO")
	assert.Equal(t, int64(10), e.creditos.balances[testEmisorID], "no se debita un rechazo")
	require.Len(t, e.notifica.eventos, 1)
	assert.Equal(t, entity.EstadoRechazado, e.notifica.eventos[0].Estado)
}

// Estado de autoridad desconocido: se guarda tal cual y la fila se reintenta.
func TestTickAutorizacion_EstadoDesconocido(t *testing.T) {
	e := nuevoEscenario(t, config.DebitoLazy, &stubClienteSRI{
		autorizacion: &infrasri.RespuestaAutorizacion{
			ClaveAcceso:        testClave,
			NumeroComprobantes: 1,
			Autorizaciones:     []infrasri.Autorizacion{{Estado: "EN PROCESO"}},
		},
	})
	f := facturaFirmada(e)
	f.Estado = entity.EstadoRecibida

	e.liq.tickAutorizacion(context.Background())

	assert.Equal(t, entity.EstadoRecibida, f.Estado)
	assert.Contains(t, f.MensajesSRI, "EN PROCESO")
}

// Propiedad 7: repetir un tick sobre una fila ya avanzada no produce cambios.
func TestTicks_Idempotencia(t *testing.T) {
	fecha := time.Date(2024, 3, 15, 10, 35, 0, 0, time.UTC)
	e := nuevoEscenario(t, config.DebitoLazy, &stubClienteSRI{
		autorizacion: respuestaAutorizada(fecha),
	})
	f := facturaFirmada(e)
	f.Estado = entity.EstadoRecibida

	e.liq.tickAutorizacion(context.Background())
	require.Equal(t, entity.EstadoAutorizado, f.Estado)
	saldo := e.creditos.balances[testEmisorID]
	eventos := len(e.notifica.eventos)

	// Segundo tick: la fila terminal ya no se selecciona
	e.liq.tickAutorizacion(context.Background())
	assert.Equal(t, entity.EstadoAutorizado, f.Estado)
	assert.Equal(t, saldo, e.creditos.balances[testEmisorID], "sin doble débito al repetir el tick")
	assert.Len(t, e.notifica.eventos, eventos, "sin doble webhook")
}

// Monotonicidad (propiedad 6): ninguna transición sale de un estado terminal.
func TestTransiciones_Monotonia(t *testing.T) {
	e := nuevoEscenario(t, config.DebitoLazy, &stubClienteSRI{})
	f := facturaFirmada(e)
	f.Estado = entity.EstadoAutorizado

	avanzo, err := e.facturas.MarcarRecibida(f.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, avanzo)
	avanzo, err = e.facturas.MarcarRechazada(f.ID, "x")
	require.NoError(t, err)
	assert.False(t, avanzo)
	assert.Equal(t, entity.EstadoAutorizado, f.Estado)
	assert.True(t, entity.EsTerminal(f.Estado))
}

func TestSerializarMensajes(t *testing.T) {
	assert.Equal(t, "", serializarMensajes(nil))
	out := serializarMensajes([]infrasri.MensajeSRI{{Identificador: "35", Mensaje: "X", Tipo: "ERROR"}})
	assert.True(t, strings.Contains(out, `"identificador":"35"`), out)
}
