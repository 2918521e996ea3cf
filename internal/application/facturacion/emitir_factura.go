// Package facturacion contiene el núcleo de emisión: asignación atómica de
// secuencial y clave de acceso bajo débito de créditos, cálculo de totales,
// construcción y firma del XML, renderizado de la RIDE y subida de artefactos.
package facturacion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crisanro/kipu-core/internal/application/dto"
	"github.com/crisanro/kipu-core/internal/domain"
	"github.com/crisanro/kipu-core/internal/domain/entity"
	domsri "github.com/crisanro/kipu-core/internal/domain/sri"
	infrasri "github.com/crisanro/kipu-core/internal/infrastructure/sri"
	"github.com/crisanro/kipu-core/pkg/config"
	"github.com/crisanro/kipu-core/pkg/logger"
	pkgsri "github.com/crisanro/kipu-core/pkg/sri"
)

// EmitirFacturaUseCase orquesta la emisión completa de una factura. Las dos
// rutas de emisión (síncrona por API key y encolada por el worker) pasan por
// el mismo núcleo, con una sola política de débito activa por despliegue.
type EmitirFacturaUseCase struct {
	txRunner    TxRunner
	calculadora *domsri.Calculadora
	xmlBuilder  *infrasri.XMLBuilderService
	firmador    pkgsri.Firmador
	credenciales AlmacenCredenciales
	storage     ArtifactStore
	ride        GeneradorRIDE
	politica    string // config.DebitoEager | config.DebitoLazy
	zona        *time.Location
	log         *logger.Logger
}

// NewEmitirFacturaUseCase construye el caso de uso. La fecha de emisión y el
// código numérico de la clave de acceso usan hora de America/Guayaquil.
func NewEmitirFacturaUseCase(
	txRunner TxRunner,
	calculadora *domsri.Calculadora,
	xmlBuilder *infrasri.XMLBuilderService,
	firmador pkgsri.Firmador,
	credenciales AlmacenCredenciales,
	storage ArtifactStore,
	ride GeneradorRIDE,
	politica string,
	log *logger.Logger,
) *EmitirFacturaUseCase {
	zona, err := time.LoadLocation("America/Guayaquil")
	if err != nil {
		zona = time.FixedZone("ECT", -5*3600)
	}
	return &EmitirFacturaUseCase{
		txRunner:     txRunner,
		calculadora:  calculadora,
		xmlBuilder:   xmlBuilder,
		firmador:     firmador,
		credenciales: credenciales,
		storage:      storage,
		ride:         ride,
		politica:     politica,
		zona:         zona,
		log:          log,
	}
}

// Emitir ejecuta la emisión síncrona completa: al retornar, la factura está en
// FIRMADO con sus artefactos subidos.
func (uc *EmitirFacturaUseCase) Emitir(ctx context.Context, emisorID string, in dto.EmitirFacturaRequest) (*dto.EmitirFacturaResponse, error) {
	raw, _ := json.Marshal(in)
	return uc.emitir(ctx, emisorID, in, raw, "")
}

// Encolar crea la fila en PENDIENTE con el payload crudo; el worker de firma
// la procesará en su siguiente tick.
func (uc *EmitirFacturaUseCase) Encolar(ctx context.Context, emisorID string, in dto.EmitirFacturaRequest) (*dto.EncolarFacturaResponse, error) {
	if err := validarEntrada(in); err != nil {
		return nil, err
	}
	raw, _ := json.Marshal(in)
	now := time.Now().UTC()
	f := &entity.Factura{
		ID:                      uuid.New().String(),
		EmisorID:                emisorID,
		IdentificacionComprador: in.IdentificacionComprador,
		RazonSocialComprador:    in.RazonSocialComprador,
		EmailComprador:          in.EmailComprador,
		Estado:                  entity.EstadoPendiente,
		ClientInputData:         raw,
		FechaEmision:            now,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	err := uc.txRunner.RunEmision(ctx, func(repos RepositoriosEmision) error {
		return repos.Facturas.Create(f)
	})
	if err != nil {
		return nil, err
	}
	return &dto.EncolarFacturaResponse{InvoiceID: f.ID, Estado: f.Estado}, nil
}

// EmitirPendiente retoma una fila PENDIENTE (ruta asíncrona) y la lleva a
// FIRMADO con el mismo núcleo de la ruta síncrona.
func (uc *EmitirFacturaUseCase) EmitirPendiente(ctx context.Context, f *entity.Factura) error {
	var in dto.EmitirFacturaRequest
	if err := json.Unmarshal(f.ClientInputData, &in); err != nil {
		return fmt.Errorf("facturacion: payload encolado ilegible: %w", err)
	}
	_, err := uc.emitir(ctx, f.EmisorID, in, f.ClientInputData, f.ID)
	return err
}

// emitir es el núcleo compartido. facturaID no vacío reutiliza la fila
// PENDIENTE en lugar de insertar una nueva.
func (uc *EmitirFacturaUseCase) emitir(ctx context.Context, emisorID string, in dto.EmitirFacturaRequest, raw []byte, facturaID string) (*dto.EmitirFacturaResponse, error) {
	if err := validarEntrada(in); err != nil {
		return nil, err
	}

	var resp *dto.EmitirFacturaResponse
	// Artefactos subidos dentro de la tx; si la tx falla se borran best-effort.
	var subidos []string

	err := uc.txRunner.RunEmision(ctx, func(repos RepositoriosEmision) error {
		// 1) Emisor + créditos bajo lock de fila.
		emisor, err := repos.Emisores.GetByID(emisorID)
		if err != nil {
			return err
		}
		if emisor == nil {
			return domain.ErrNoEncontrado
		}
		ledger, err := repos.Creditos.GetForUpdate(emisorID)
		if err != nil {
			return err
		}
		if ledger == nil || ledger.Balance <= 0 {
			return domain.ErrCreditosInsuficientes
		}
		now := time.Now()
		if emisor.P12Path == "" {
			return domain.ErrFirmaFaltante
		}
		if emisor.P12Expiration == nil || emisor.P12Expiration.Before(now) {
			return domain.ErrFirmaExpirada
		}

		// 2) Punto de emisión acotado al emisor.
		punto, err := repos.Estructura.GetPunto(emisorID, in.Establecimiento, in.PuntoEmision)
		if err != nil {
			return err
		}
		if punto == nil {
			return domain.ErrPuntoEmisionDesconocido
		}

		// 3) Secuencial atómico (función de DB con lock de fila).
		sec, err := repos.Estructura.GenerarSecuencial(punto.ID)
		if err != nil {
			return err
		}
		secuencial := fmt.Sprintf("%09d", sec)

		// 4) Totales.
		calculo, err := uc.calculadora.Calcular(lineasDesdeDTO(in.Items))
		if err != nil {
			return err
		}

		// 5) Clave de acceso con fecha y hora de Guayaquil.
		nowLocal := now.In(uc.zona)
		clave, err := domsri.GenerarClaveAcceso(domsri.ClaveAccesoParams{
			FechaEmision: nowLocal,
			CodDoc:       pkgsri.DocFactura,
			RUC:          emisor.RUC,
			Ambiente:     emisor.Ambiente,
			Serie:        in.Establecimiento + in.PuntoEmision,
			Secuencial:   secuencial,
			TipoEmision:  pkgsri.EmisionNormal,
		})
		if err != nil {
			return err
		}

		f := &entity.Factura{
			ID:                      facturaID,
			EmisorID:                emisorID,
			PuntoEmisionID:          punto.ID,
			Secuencial:              secuencial,
			ClaveAcceso:             clave,
			IdentificacionComprador: in.IdentificacionComprador,
			RazonSocialComprador:    in.RazonSocialComprador,
			EmailComprador:          in.EmailComprador,
			SubtotalSinImpuestos:    calculo.TotalSinImpuestos,
			Subtotal0:               calculo.Subtotal0,
			SubtotalIVA:             calculo.SubtotalIVA,
			ValorIVA:                calculo.TotalIVA,
			ImporteTotal:            calculo.ImporteTotal,
			Estado:                  entity.EstadoFirmado,
			FechaEmision:            now.UTC(),
			ClientInputData:         raw,
			CreatedAt:               now.UTC(),
			UpdatedAt:               now.UTC(),
		}
		if f.ID == "" {
			f.ID = uuid.New().String()
		}

		// 6) XML + firma XAdES-BES.
		xmlBytes, err := uc.xmlBuilder.Build(&infrasri.FacturaBuildContext{
			Factura:           f,
			Emisor:            emisor,
			EstabCodigo:       in.Establecimiento,
			PuntoCodigo:       in.PuntoEmision,
			Calculo:           calculo,
			FechaEmisionLocal: nowLocal,
			InfoAdicional:     camposAdicionales(in),
		})
		if err != nil {
			return err
		}
		cred, err := uc.credenciales.Abrir(ctx, emisor)
		if err != nil {
			return err
		}
		firmado, err := uc.firmador.Firmar(xmlBytes, cred)
		if err != nil {
			return fmt.Errorf("facturacion: firmar XML: %w", err)
		}

		// 7) RIDE.
		var pdfBuf bytes.Buffer
		if err := uc.ride.Generar(&RIDE{
			Emisor:      emisor,
			Factura:     f,
			EstabCodigo: in.Establecimiento,
			PuntoCodigo: in.PuntoEmision,
			Detalles:    calculo.Detalles,
		}, &pdfBuf); err != nil {
			return fmt.Errorf("facturacion: renderizar RIDE: %w", err)
		}

		// 8) Artefactos bajo rutas canónicas.
		xmlKey := fmt.Sprintf("signed/%s/%s.xml", emisor.RUC, clave)
		pdfKey := fmt.Sprintf("signed/%s/%s.pdf", emisor.RUC, clave)
		xmlPath, err := uc.storage.Put(ctx, BucketFacturas, xmlKey, bytes.NewReader(firmado), int64(len(firmado)), "application/xml")
		if err != nil {
			return fmt.Errorf("facturacion: subir XML: %w", err)
		}
		subidos = append(subidos, xmlPath)
		pdfPath, err := uc.storage.Put(ctx, BucketFacturas, pdfKey, bytes.NewReader(pdfBuf.Bytes()), int64(pdfBuf.Len()), "application/pdf")
		if err != nil {
			return fmt.Errorf("facturacion: subir PDF: %w", err)
		}
		subidos = append(subidos, pdfPath)
		f.XMLPath = xmlPath
		f.PDFPath = pdfPath

		// 9) Upsert de la fila en FIRMADO.
		if facturaID == "" {
			if err := repos.Facturas.Create(f); err != nil {
				return err
			}
		} else {
			if err := repos.Facturas.Update(f); err != nil {
				return err
			}
		}

		// 10) Débito eager. La política lazy difiere el descuento a AUTORIZADO.
		saldo := ledger.Balance
		if uc.politica == config.DebitoEager {
			ok, err := repos.Creditos.Debitar(emisorID)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrCreditosInsuficientes
			}
			saldo--
			_ = repos.Creditos.RegistrarTransaccion(&entity.RegistroTransaccion{
				ID:       uuid.New().String(),
				EmisorID: emisorID,
				Tipo:     entity.TransaccionDebito,
				Cantidad: -1,
				Detalle:  "emisión " + clave,
			})
		}

		resp = &dto.EmitirFacturaResponse{
			InvoiceID:         f.ID,
			ClaveAcceso:       clave,
			Secuencial:        secuencial,
			Estado:            f.Estado,
			XMLPath:           xmlPath,
			PDFPath:           pdfPath,
			CreditosRestantes: saldo,
		}
		return nil
	})
	if err != nil {
		uc.limpiarArtefactos(subidos)
		return nil, err
	}
	return resp, nil
}

// limpiarArtefactos borra best-effort los blobs subidos por una emisión que
// terminó en rollback; la consistencia exige que no queden artefactos sin fila.
func (uc *EmitirFacturaUseCase) limpiarArtefactos(rutas []string) {
	if len(rutas) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, ruta := range rutas {
		bucket, key, ok := partirRuta(ruta)
		if !ok {
			continue
		}
		if err := uc.storage.Delete(ctx, bucket, key); err != nil {
			uc.log.Warn().Str("ruta", ruta).Err(err).Msg("no se pudo limpiar artefacto huérfano")
		}
	}
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

func validarEntrada(in dto.EmitirFacturaRequest) error {
	if len(in.Establecimiento) != 3 || len(in.PuntoEmision) != 3 {
		return fmt.Errorf("facturacion: establecimiento y punto deben ser de 3 dígitos: %w", domain.ErrEntradaInvalida)
	}
	if in.IdentificacionComprador == "" || in.RazonSocialComprador == "" {
		return fmt.Errorf("facturacion: faltan datos del comprador: %w", domain.ErrEntradaInvalida)
	}
	if len(in.Items) == 0 {
		return fmt.Errorf("facturacion: la factura no tiene ítems: %w", domain.ErrEntradaInvalida)
	}
	return nil
}

func lineasDesdeDTO(items []dto.FacturaItemRequest) []domsri.LineaEntrada {
	lineas := make([]domsri.LineaEntrada, len(items))
	for i, it := range items {
		lineas[i] = domsri.LineaEntrada{
			CodigoPrincipal: it.CodigoPrincipal,
			Descripcion:     it.Descripcion,
			Cantidad:        it.Cantidad,
			PrecioUnitario:  it.PrecioUnitario,
			Descuento:       it.Descuento,
			TarifaIVA:       it.TarifaIva,
		}
	}
	return lineas
}

func camposAdicionales(in dto.EmitirFacturaRequest) []infrasri.CampoAdicional {
	var campos []infrasri.CampoAdicional
	if in.EmailComprador != "" {
		campos = append(campos, infrasri.CampoAdicional{Nombre: "email", Valor: in.EmailComprador})
	}
	return campos
}
