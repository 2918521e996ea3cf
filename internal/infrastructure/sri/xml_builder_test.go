package sri

import (
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisanro/kipu-core/internal/domain/entity"
	domsri "github.com/crisanro/kipu-core/internal/domain/sri"
)

func contextoDePrueba(t *testing.T) *FacturaBuildContext {
	t.Helper()
	calc, err := domsri.NewCalculadora(false).Calcular([]domsri.LineaEntrada{
		{
			CodigoPrincipal: "SKU-1",
			Descripcion:     "Consultoría",
			Cantidad:        decimal.NewFromInt(1),
			PrecioUnitario:  decimal.NewFromInt(100),
			TarifaIVA:       decimal.NewFromInt(15),
		},
	})
	require.NoError(t, err)

	exp := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &FacturaBuildContext{
		Factura: &entity.Factura{
			ID:                      "f-1",
			Secuencial:              "000000001",
			ClaveAcceso:             "1503202401179001167400110011000000000011234567813",
			IdentificacionComprador: "0992645324001",
			RazonSocialComprador:    "Comprador S.A.",
		},
		Emisor: &entity.Emisor{
			RUC:                  "1790011674001",
			RazonSocial:          "Emisor Cía. Ltda.",
			NombreComercial:      "Emisor",
			DireccionMatriz:      "Av. Amazonas N34-451",
			Ambiente:             "1",
			ObligadoContabilidad: "SI",
			P12Expiration:        &exp,
		},
		EstabCodigo:       "001",
		PuntoCodigo:       "100",
		Calculo:           calc,
		FechaEmisionLocal: time.Date(2024, 3, 15, 10, 30, 0, 0, time.FixedZone("ECT", -5*3600)),
		InfoAdicional:     []CampoAdicional{{Nombre: "email", Valor: "cliente@example.com"}},
	}
}

func TestBuild_EstructuraFactura(t *testing.T) {
	svc := NewXMLBuilderService()
	out, err := svc.Build(contextoDePrueba(t))
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(out))
	root := doc.Root()
	require.Equal(t, "factura", root.Tag)
	assert.Equal(t, ComprobanteID, root.SelectAttrValue("id", ""), "id=comprobante es obligatorio para la firma")
	assert.Equal(t, VersionFactura, root.SelectAttrValue("version", ""))

	it := root.FindElement("infoTributaria")
	require.NotNil(t, it)
	assert.Equal(t, "1790011674001", it.FindElement("ruc").Text())
	assert.Equal(t, "01", it.FindElement("codDoc").Text())
	assert.Equal(t, "001", it.FindElement("estab").Text())
	assert.Equal(t, "100", it.FindElement("ptoEmi").Text())
	assert.Equal(t, "000000001", it.FindElement("secuencial").Text())
	assert.Len(t, it.FindElement("claveAcceso").Text(), 49)

	inf := root.FindElement("infoFactura")
	require.NotNil(t, inf)
	assert.Equal(t, "15/03/2024", inf.FindElement("fechaEmision").Text())
	assert.Equal(t, "SI", inf.FindElement("obligadoContabilidad").Text())
	assert.Equal(t, "04", inf.FindElement("tipoIdentificacionComprador").Text(), "RUC del comprador -> 04")
	assert.Equal(t, "100.00", inf.FindElement("totalSinImpuestos").Text())
	assert.Equal(t, "115.00", inf.FindElement("importeTotal").Text())
	assert.Equal(t, "DOLAR", inf.FindElement("moneda").Text())

	imp := inf.FindElement("totalConImpuestos/totalImpuesto")
	require.NotNil(t, imp)
	assert.Equal(t, "2", imp.FindElement("codigo").Text())
	assert.Equal(t, "4", imp.FindElement("codigoPorcentaje").Text())
	assert.Equal(t, "15.00", imp.FindElement("valor").Text())

	detalles := root.FindElements("detalles/detalle")
	require.Len(t, detalles, 1)
	assert.Equal(t, "Consultoría", detalles[0].FindElement("descripcion").Text())
	assert.Equal(t, "100.00", detalles[0].FindElement("precioTotalSinImpuesto").Text())

	campo := root.FindElement("infoAdicional/campoAdicional")
	require.NotNil(t, campo)
	assert.Equal(t, "email", campo.SelectAttrValue("nombre", ""))
	assert.Equal(t, "cliente@example.com", campo.Text())
}

func TestAsegurarIDComprobante(t *testing.T) {
	// Con el atributo presente no toca nada
	conID := []byte(`<?xml version="1.0"?><factura id="comprobante" version="1.1.0"><x/></factura>`)
	assert.Equal(t, conID, asegurarIDComprobante(conID))

	// Sin el atributo lo parcha en el tag de apertura
	sinID := []byte(`<?xml version="1.0"?><factura version="1.1.0"><x/></factura>`)
	parchada := string(asegurarIDComprobante(sinID))
	assert.True(t, strings.Contains(parchada, `<factura id="comprobante" version="1.1.0">`), parchada)
}

func TestBuild_ContextoIncompleto(t *testing.T) {
	svc := NewXMLBuilderService()
	_, err := svc.Build(nil)
	assert.Error(t, err)
	_, err = svc.Build(&FacturaBuildContext{})
	assert.Error(t, err)
}
