// Package pdf implementa la Representación Impresa del Documento Electrónico
// (RIDE) de una factura SRI.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  EMISOR: Razón Social + RUC  │  FACTURA Nº + clave acceso   │
//	│  ─────────────────────────────────────────────────────────  │
//	│  AUTORIZACIÓN: número / fecha (o PENDIENTE en rojo) + QR     │
//	│  COMPRADOR: identificación + razón social                    │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Cant | Descripción | P.Unit | Desc | IVA | Subtotal  │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOTALES: Subtotal / Subtotal 0% / IVA / TOTAL               │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"fmt"
	"io"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/crisanro/kipu-core/internal/application/facturacion"
	domsri "github.com/crisanro/kipu-core/internal/domain/sri"
	pkgsri "github.com/crisanro/kipu-core/pkg/sri"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 16, Green: 78, Blue: 139}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorAlert   = &props.Color{Red: 200, Green: 30, Blue: 30}
)

var _ facturacion.GeneradorRIDE = (*MarotoRIDEGenerator)(nil)

// MarotoRIDEGenerator implementa facturacion.GeneradorRIDE usando Maroto v2.
type MarotoRIDEGenerator struct{}

// NewMarotoRIDEGenerator construye el generador.
func NewMarotoRIDEGenerator() *MarotoRIDEGenerator { return &MarotoRIDEGenerator{} }

// Generar renderiza la RIDE y la escribe en w.
func (g *MarotoRIDEGenerator) Generar(ride *facturacion.RIDE, w io.Writer) error {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Factura Electrónica SRI", true).
		WithAuthor(ride.Emisor.RazonSocial, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(ride))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(autorizacionRow(ride))
	m.AddRows(compradorRow(ride))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	for _, r := range tableDetailRows(ride.Detalles) {
		m.AddRows(r)
	}

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalsRows(ride)...)

	doc, err := m.Generate()
	if err != nil {
		return fmt.Errorf("pdf: generar documento: %w", err)
	}
	if _, err := w.Write(doc.GetBytes()); err != nil {
		return fmt.Errorf("pdf: escribir RIDE: %w", err)
	}
	return nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

// headerRow: razón social + RUC (izq) y número + clave de acceso (der).
func headerRow(ride *facturacion.RIDE) core.Row {
	numFac := ride.Factura.NumeroCompleto(ride.EstabCodigo, ride.PuntoCodigo)
	fecha := ride.Factura.FechaEmision.Format("02/01/2006")

	return row.New(20).Add(
		col.New(7).Add(
			text.New(ride.Emisor.RazonSocial, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("RUC: "+ride.Emisor.RUC, props.Text{Size: 9, Top: 9, Color: colorGray}),
			text.New(ride.Emisor.DireccionMatriz, props.Text{Size: 8, Top: 14, Color: colorGray}),
		),
		col.New(5).Add(
			text.New("FACTURA ELECTRÓNICA", props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right, Color: colorPrimary, Top: 1,
			}),
			text.New(numFac, props.Text{Style: fontstyle.Bold, Size: 12, Align: align.Right, Top: 6}),
			text.New("Fecha: "+fecha, props.Text{Size: 8, Align: align.Right, Top: 13, Color: colorGray}),
			text.New("Ambiente: "+nombreAmbiente(ride.Emisor.Ambiente), props.Text{
				Size: 8, Align: align.Right, Top: 17, Color: colorGray,
			}),
		),
	)
}

// autorizacionRow: estado de autorización + QR de consulta pública.
func autorizacionRow(ride *facturacion.RIDE) core.Row {
	qr := pkgsri.URLConsultaPorClave(ride.Factura.ClaveAcceso)

	izq := col.New(9)
	if ride.Autorizada {
		izq.Add(
			text.New("NÚMERO DE AUTORIZACIÓN", props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1}),
			text.New(ride.NumeroAutorizacion, props.Text{Size: 8, Top: 6}),
		)
		if ride.FechaAutorizacion != nil {
			izq.Add(text.New("Fecha autorización: "+ride.FechaAutorizacion.Format("02/01/2006 15:04:05"),
				props.Text{Size: 8, Top: 11, Color: colorGray}))
		}
	} else {
		izq.Add(
			text.New("PENDIENTE DE AUTORIZACIÓN", props.Text{
				Style: fontstyle.Bold, Size: 10, Color: colorAlert, Top: 4,
			}),
		)
	}
	izq.Add(text.New("Clave de acceso: "+ride.Factura.ClaveAcceso, props.Text{Size: 7, Top: 17, Color: colorGray}))

	return row.New(26).Add(
		izq,
		col.New(3).Add(code.NewQr(qr, props.Rect{Center: true, Percent: 95})),
	)
}

// compradorRow: identificación y razón social del comprador.
func compradorRow(ride *facturacion.RIDE) core.Row {
	return row.New(12).Add(
		col.New(12).Add(
			text.New("DATOS DEL COMPRADOR", props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1}),
			text.New(fmt.Sprintf("%s   |   Identificación: %s",
				ride.Factura.RazonSocialComprador,
				ride.Factura.IdentificacionComprador,
			), props.Text{Size: 8, Top: 7, Color: colorGray}),
		),
	)
}

func tableHeaderRow() core.Row {
	header := props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary}
	headerR := props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Align: align.Right}
	return row.New(7).Add(
		col.New(1).Add(text.New("Cant.", header)),
		col.New(5).Add(text.New("Descripción", header)),
		col.New(2).Add(text.New("P. Unitario", headerR)),
		col.New(1).Add(text.New("Desc.", headerR)),
		col.New(1).Add(text.New("IVA %", headerR)),
		col.New(2).Add(text.New("Subtotal", headerR)),
	)
}

func tableDetailRows(detalles []domsri.DetalleCalculado) []core.Row {
	cell := props.Text{Size: 8}
	cellR := props.Text{Size: 8, Align: align.Right}
	rows := make([]core.Row, 0, len(detalles))
	for _, d := range detalles {
		rows = append(rows, row.New(6).Add(
			col.New(1).Add(text.New(d.Cantidad.String(), cell)),
			col.New(5).Add(text.New(d.Descripcion, cell)),
			col.New(2).Add(text.New(d.PrecioUnitario.StringFixed(2), cellR)),
			col.New(1).Add(text.New(d.Descuento.StringFixed(2), cellR)),
			col.New(1).Add(text.New(fmt.Sprintf("%d", d.Tarifa), cellR)),
			col.New(2).Add(text.New(d.BaseImponible.StringFixed(2), cellR)),
		))
	}
	return rows
}

func totalsRows(ride *facturacion.RIDE) []core.Row {
	f := ride.Factura
	etiqueta := props.Text{Size: 9, Align: align.Right}
	valor := props.Text{Size: 9, Align: align.Right}
	total := props.Text{Style: fontstyle.Bold, Size: 11, Align: align.Right, Color: colorPrimary}

	fila := func(nombre, monto string, estilo props.Text) core.Row {
		return row.New(5).Add(
			col.New(8),
			col.New(2).Add(text.New(nombre, etiqueta)),
			col.New(2).Add(text.New(monto, estilo)),
		)
	}
	return []core.Row{
		fila("Subtotal:", f.SubtotalSinImpuestos.StringFixed(2), valor),
		fila("Subtotal 0%:", f.Subtotal0.StringFixed(2), valor),
		fila("IVA:", f.ValorIVA.StringFixed(2), valor),
		fila("TOTAL:", f.ImporteTotal.StringFixed(2), total),
	}
}

func nombreAmbiente(ambiente string) string {
	if ambiente == pkgsri.AmbienteProduccion {
		return "PRODUCCIÓN"
	}
	return "PRUEBAS"
}
