// Package sri implementa la infraestructura de comprobantes electrónicos SRI:
// generación del XML de factura v1.1.0 y cliente SOAP de recepción/autorización.
package sri

import (
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/crisanro/kipu-core/internal/domain/entity"
	domsri "github.com/crisanro/kipu-core/internal/domain/sri"
	pkgsri "github.com/crisanro/kipu-core/pkg/sri"
)

// ComprobanteID es el valor del atributo id del nodo raíz; la Reference de la
// firma XAdES apunta a //*[@id='comprobante'].
const ComprobanteID = "comprobante"

// VersionFactura versión del esquema de factura soportada.
const VersionFactura = "1.1.0"

// CampoAdicional par nombre/valor para <infoAdicional>.
type CampoAdicional struct {
	Nombre string
	Valor  string
}

// FacturaBuildContext datos necesarios para construir el XML de la factura.
type FacturaBuildContext struct {
	Factura     *entity.Factura
	Emisor      *entity.Emisor
	EstabCodigo string
	PuntoCodigo string
	Calculo     *domsri.ResultadoCalculo
	// FechaEmisionLocal fecha de emisión ya convertida a America/Guayaquil.
	FechaEmisionLocal time.Time
	InfoAdicional     []CampoAdicional
}

// XMLBuilderService construye el XML de factura (sin firma XAdES).
type XMLBuilderService struct{}

// NewXMLBuilderService crea el servicio.
func NewXMLBuilderService() *XMLBuilderService {
	return &XMLBuilderService{}
}

// Build genera el documento <factura id="comprobante" version="1.1.0"> con
// infoTributaria, infoFactura, detalles e infoAdicional opcional.
func (s *XMLBuilderService) Build(ctx *FacturaBuildContext) ([]byte, error) {
	if ctx == nil || ctx.Factura == nil || ctx.Emisor == nil || ctx.Calculo == nil {
		return nil, fmt.Errorf("sri: faltan factura, emisor o cálculo en el contexto")
	}
	f := ctx.Factura
	e := ctx.Emisor

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("factura")
	root.CreateAttr("id", ComprobanteID)
	root.CreateAttr("version", VersionFactura)

	// ---- infoTributaria
	it := root.CreateElement("infoTributaria")
	writeText(it, "ambiente", e.Ambiente)
	writeText(it, "tipoEmision", pkgsri.EmisionNormal)
	writeText(it, "razonSocial", e.RazonSocial)
	if e.NombreComercial != "" {
		writeText(it, "nombreComercial", e.NombreComercial)
	}
	writeText(it, "ruc", e.RUC)
	writeText(it, "claveAcceso", f.ClaveAcceso)
	writeText(it, "codDoc", pkgsri.DocFactura)
	writeText(it, "estab", ctx.EstabCodigo)
	writeText(it, "ptoEmi", ctx.PuntoCodigo)
	writeText(it, "secuencial", f.Secuencial)
	writeText(it, "dirMatriz", e.DireccionMatriz)

	// ---- infoFactura
	inf := root.CreateElement("infoFactura")
	writeText(inf, "fechaEmision", ctx.FechaEmisionLocal.Format("02/01/2006"))
	writeText(inf, "dirEstablecimiento", e.DireccionMatriz)
	writeText(inf, "obligadoContabilidad", e.ObligadoContabilidad)
	writeText(inf, "tipoIdentificacionComprador", pkgsri.TipoIdentificacion(f.IdentificacionComprador))
	writeText(inf, "razonSocialComprador", f.RazonSocialComprador)
	writeText(inf, "identificacionComprador", f.IdentificacionComprador)
	writeText(inf, "totalSinImpuestos", domsri.Redondear(ctx.Calculo.TotalSinImpuestos))
	writeText(inf, "totalDescuento", domsri.Redondear(ctx.Calculo.TotalDescuento))

	tci := inf.CreateElement("totalConImpuestos")
	for _, agg := range ctx.Calculo.Agregados {
		ti := tci.CreateElement("totalImpuesto")
		writeText(ti, "codigo", agg.Codigo)
		writeText(ti, "codigoPorcentaje", agg.CodigoPorcentaje)
		writeText(ti, "baseImponible", domsri.Redondear(agg.BaseImponible))
		writeText(ti, "valor", domsri.Redondear(agg.Valor))
	}

	writeText(inf, "propina", "0.00")
	writeText(inf, "importeTotal", domsri.Redondear(ctx.Calculo.ImporteTotal))
	writeText(inf, "moneda", "DOLAR")

	// ---- detalles
	dets := root.CreateElement("detalles")
	for _, d := range ctx.Calculo.Detalles {
		det := dets.CreateElement("detalle")
		writeText(det, "codigoPrincipal", d.CodigoPrincipal)
		writeText(det, "descripcion", d.Descripcion)
		writeText(det, "cantidad", d.Cantidad.StringFixed(6))
		writeText(det, "precioUnitario", d.PrecioUnitario.StringFixed(6))
		writeText(det, "descuento", domsri.Redondear(d.Descuento))
		writeText(det, "precioTotalSinImpuesto", domsri.Redondear(d.BaseImponible))
		imps := det.CreateElement("impuestos")
		imp := imps.CreateElement("impuesto")
		writeText(imp, "codigo", pkgsri.CodigoImpuestoIVA)
		writeText(imp, "codigoPorcentaje", d.CodigoPorcentaje)
		writeText(imp, "tarifa", fmt.Sprintf("%d", d.Tarifa))
		writeText(imp, "baseImponible", domsri.Redondear(d.BaseImponible))
		writeText(imp, "valor", domsri.Redondear(d.ValorIVA))
	}

	// ---- infoAdicional (opcional)
	if len(ctx.InfoAdicional) > 0 {
		ia := root.CreateElement("infoAdicional")
		for _, campo := range ctx.InfoAdicional {
			c := ia.CreateElement("campoAdicional")
			c.CreateAttr("nombre", campo.Nombre)
			c.SetText(campo.Valor)
		}
	}

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("sri: serializar factura: %w", err)
	}
	return asegurarIDComprobante(out), nil
}

// asegurarIDComprobante garantiza que el tag de apertura lleve id="comprobante";
// la firma referencia //*[@id='comprobante'] y sin el atributo el SRI rechaza.
func asegurarIDComprobante(xmlBytes []byte) []byte {
	s := string(xmlBytes)
	idx := strings.Index(s, "<factura")
	if idx < 0 {
		return xmlBytes
	}
	fin := strings.Index(s[idx:], ">")
	if fin < 0 {
		return xmlBytes
	}
	apertura := s[idx : idx+fin]
	if strings.Contains(apertura, `id="`+ComprobanteID+`"`) {
		return xmlBytes
	}
	parcheada := "<factura id=\"" + ComprobanteID + "\"" + apertura[len("<factura"):]
	return []byte(s[:idx] + parcheada + s[idx+fin:])
}

func writeText(parent *etree.Element, tag, value string) {
	parent.CreateElement(tag).SetText(value)
}
