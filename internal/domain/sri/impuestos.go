package sri

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/crisanro/kipu-core/internal/domain"
	pkgsri "github.com/crisanro/kipu-core/pkg/sri"
)

// LineaEntrada es una línea de factura normalizada desde el payload del cliente.
type LineaEntrada struct {
	CodigoPrincipal string
	Descripcion     string
	Cantidad        decimal.Decimal
	PrecioUnitario  decimal.Decimal
	Descuento       decimal.Decimal
	TarifaIVA       decimal.Decimal // 0.15 y 15 son equivalentes
}

// DetalleCalculado línea con base imponible e IVA calculados.
type DetalleCalculado struct {
	CodigoPrincipal  string
	Descripcion      string
	Cantidad         decimal.Decimal
	PrecioUnitario   decimal.Decimal
	Descuento        decimal.Decimal
	BaseImponible    decimal.Decimal // cantidad*precioUnitario - descuento
	Tarifa           int64
	CodigoPorcentaje string
	ValorIVA         decimal.Decimal
}

// AgregadoImpuesto total de impuesto por tarifa para <totalConImpuestos>.
type AgregadoImpuesto struct {
	Codigo           string // "2" = IVA
	CodigoPorcentaje string
	Tarifa           int64
	BaseImponible    decimal.Decimal
	Valor            decimal.Decimal
}

// ResultadoCalculo detalle por línea, agregados por tarifa y totales de la factura.
type ResultadoCalculo struct {
	Detalles  []DetalleCalculado
	Agregados []AgregadoImpuesto

	TotalSinImpuestos decimal.Decimal
	TotalDescuento    decimal.Decimal
	TotalIVA          decimal.Decimal
	ImporteTotal      decimal.Decimal
	Subtotal0         decimal.Decimal
	SubtotalIVA       decimal.Decimal // bases gravadas con tarifa > 0
}

// Calculadora normaliza líneas y agrega bases por tarifa IVA. La aritmética
// interna usa precisión completa de decimal; el redondeo a 2 decimales ocurre
// solo al formatear (XML / RIDE / respuestas).
type Calculadora struct {
	lenient bool
}

// NewCalculadora construye la calculadora. En modo lenient una tarifa
// desconocida degrada a la fila 0% en lugar de fallar.
func NewCalculadora(lenient bool) *Calculadora {
	return &Calculadora{lenient: lenient}
}

// Calcular procesa las líneas y devuelve detalles, agregados y totales.
// Tarifas en (0,1) se interpretan como fracción y se multiplican por 100.
func (c *Calculadora) Calcular(lineas []LineaEntrada) (*ResultadoCalculo, error) {
	if len(lineas) == 0 {
		return nil, fmt.Errorf("sri: factura sin líneas: %w", domain.ErrEntradaInvalida)
	}

	res := &ResultadoCalculo{
		Detalles: make([]DetalleCalculado, 0, len(lineas)),
	}
	porTarifa := make(map[int64]*AgregadoImpuesto)

	for i, ln := range lineas {
		if ln.Cantidad.LessThanOrEqual(decimal.Zero) || ln.PrecioUnitario.LessThan(decimal.Zero) {
			return nil, fmt.Errorf("sri: línea %d con cantidad o precio inválido: %w", i+1, domain.ErrEntradaInvalida)
		}
		if ln.Descuento.LessThan(decimal.Zero) {
			return nil, fmt.Errorf("sri: línea %d con descuento negativo: %w", i+1, domain.ErrEntradaInvalida)
		}

		tarifa, err := c.normalizarTarifa(ln.TarifaIVA)
		if err != nil {
			return nil, fmt.Errorf("sri: línea %d: %w", i+1, err)
		}
		fila := pkgsri.TarifasIVA[tarifa]

		base := ln.Cantidad.Mul(ln.PrecioUnitario).Sub(ln.Descuento)
		if base.LessThan(decimal.Zero) {
			return nil, fmt.Errorf("sri: línea %d con descuento mayor a la base: %w", i+1, domain.ErrEntradaInvalida)
		}
		valor := base.Mul(decimal.NewFromInt(tarifa)).Div(decimal.NewFromInt(100))

		res.Detalles = append(res.Detalles, DetalleCalculado{
			CodigoPrincipal:  ln.CodigoPrincipal,
			Descripcion:      ln.Descripcion,
			Cantidad:         ln.Cantidad,
			PrecioUnitario:   ln.PrecioUnitario,
			Descuento:        ln.Descuento,
			BaseImponible:    base,
			Tarifa:           tarifa,
			CodigoPorcentaje: fila.CodigoPorcentaje,
			ValorIVA:         valor,
		})

		agg, ok := porTarifa[tarifa]
		if !ok {
			agg = &AgregadoImpuesto{
				Codigo:           pkgsri.CodigoImpuestoIVA,
				CodigoPorcentaje: fila.CodigoPorcentaje,
				Tarifa:           tarifa,
			}
			porTarifa[tarifa] = agg
		}
		agg.BaseImponible = agg.BaseImponible.Add(base)
		agg.Valor = agg.Valor.Add(valor)

		res.TotalSinImpuestos = res.TotalSinImpuestos.Add(base)
		res.TotalDescuento = res.TotalDescuento.Add(ln.Descuento)
		res.TotalIVA = res.TotalIVA.Add(valor)
		if tarifa == 0 {
			res.Subtotal0 = res.Subtotal0.Add(base)
		} else {
			res.SubtotalIVA = res.SubtotalIVA.Add(base)
		}
	}

	// Agregados en orden de primera aparición de cada tarifa
	visto := make(map[int64]bool)
	for _, d := range res.Detalles {
		if visto[d.Tarifa] {
			continue
		}
		visto[d.Tarifa] = true
		res.Agregados = append(res.Agregados, *porTarifa[d.Tarifa])
	}

	res.ImporteTotal = res.TotalSinImpuestos.Add(res.TotalIVA)
	return res, nil
}

// normalizarTarifa convierte la tarifa del cliente a un porcentaje entero del
// catálogo. Valores en (0,1) se multiplican por 100 (0.15 ≡ 15).
func (c *Calculadora) normalizarTarifa(t decimal.Decimal) (int64, error) {
	uno := decimal.NewFromInt(1)
	if t.GreaterThan(decimal.Zero) && t.LessThan(uno) {
		t = t.Mul(decimal.NewFromInt(100))
	}
	if !t.Equal(t.Truncate(0)) {
		if c.lenient {
			return 0, nil
		}
		return 0, fmt.Errorf("tarifa %s: %w", t.String(), domain.ErrTarifaDesconocida)
	}
	tarifa := t.IntPart()
	if _, ok := pkgsri.TarifasIVA[tarifa]; !ok {
		if c.lenient {
			return 0, nil
		}
		return 0, fmt.Errorf("tarifa %d: %w", tarifa, domain.ErrTarifaDesconocida)
	}
	return tarifa, nil
}

// Redondear formatea un monto a 2 decimales (mitades alejándose de cero),
// la única frontera donde se pierde precisión.
func Redondear(d decimal.Decimal) string {
	return d.StringFixed(2)
}
