// Package sri implementa la lógica de dominio de comprobantes electrónicos
// SRI: clave de acceso con dígito verificador módulo 11 y cálculo de
// impuestos/totales de factura.
package sri

import (
	"fmt"
	"strings"
	"time"
)

// ClaveAccesoParams campos que componen la clave de acceso de 49 dígitos.
// Todos los campos se limpian a dígitos y se rellenan a su ancho fijo.
type ClaveAccesoParams struct {
	FechaEmision   time.Time // fecha local del emisor (America/Guayaquil)
	CodDoc         string    // tipo de comprobante, ej: "01" factura
	RUC            string    // 13 dígitos
	Ambiente       string    // "1" | "2"
	Serie          string    // estab+ptoEmi, 6 dígitos
	Secuencial     string    // 9 dígitos
	CodigoNumerico string    // 8 dígitos; si va vacío se deriva de la hora
	TipoEmision    string    // "1"
}

// GenerarClaveAcceso construye la clave de 49 dígitos:
// ddmmaaaa(8) + codDoc(2) + ruc(13) + ambiente(1) + serie(6) + secuencial(9) +
// codigoNumerico(8) + tipoEmision(1) + dígito verificador(1).
// Cualquier desviación del largo esperado es un error duro.
func GenerarClaveAcceso(p ClaveAccesoParams) (string, error) {
	fecha := p.FechaEmision.Format("02012006")

	codigo := p.CodigoNumerico
	if codigo == "" {
		// HHMMSS + centésimas de segundo de la misma marca de tiempo
		codigo = p.FechaEmision.Format("150405") + fmt.Sprintf("%02d", p.FechaEmision.Nanosecond()/10_000_000)
	}

	var sb strings.Builder
	for _, campo := range []struct {
		valor string
		ancho int
	}{
		{fecha, 8},
		{p.CodDoc, 2},
		{p.RUC, 13},
		{p.Ambiente, 1},
		{p.Serie, 6},
		{p.Secuencial, 9},
		{codigo, 8},
		{p.TipoEmision, 1},
	} {
		limpio := SoloDigitos(campo.valor)
		if len(limpio) > campo.ancho {
			return "", fmt.Errorf("sri: campo %q excede %d dígitos", campo.valor, campo.ancho)
		}
		sb.WriteString(strings.Repeat("0", campo.ancho-len(limpio)))
		sb.WriteString(limpio)
	}

	base := sb.String()
	if len(base) != 48 {
		return "", fmt.Errorf("sri: base de clave de acceso con %d dígitos, se esperaban 48", len(base))
	}
	dv, err := DigitoVerificador(base)
	if err != nil {
		return "", err
	}
	clave := base + fmt.Sprintf("%d", dv)
	if len(clave) != 49 {
		return "", fmt.Errorf("sri: clave de acceso con %d dígitos, se esperaban 49", len(clave))
	}
	return clave, nil
}

// DigitoVerificador calcula el dígito módulo 11 del SRI sobre una cadena de
// dígitos: pesos 2..7 cíclicos de derecha a izquierda; v = 11 - (suma mod 11);
// 11 -> 0 y 10 -> 1.
func DigitoVerificador(base string) (int, error) {
	if base == "" {
		return 0, fmt.Errorf("sri: base vacía para dígito verificador")
	}
	peso := 2
	suma := 0
	for i := len(base) - 1; i >= 0; i-- {
		c := base[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("sri: carácter no numérico %q en la base", c)
		}
		suma += int(c-'0') * peso
		peso++
		if peso > 7 {
			peso = 2
		}
	}
	v := 11 - (suma % 11)
	switch v {
	case 11:
		return 0, nil
	case 10:
		return 1, nil
	default:
		return v, nil
	}
}

// ValidarClaveAcceso verifica largo, que todo sean dígitos y que el dígito 49
// coincida con el módulo 11 de los primeros 48.
func ValidarClaveAcceso(clave string) error {
	if len(clave) != 49 {
		return fmt.Errorf("sri: clave de acceso con %d dígitos, se esperaban 49", len(clave))
	}
	if SoloDigitos(clave) != clave {
		return fmt.Errorf("sri: clave de acceso con caracteres no numéricos")
	}
	dv, err := DigitoVerificador(clave[:48])
	if err != nil {
		return err
	}
	if int(clave[48]-'0') != dv {
		return fmt.Errorf("sri: dígito verificador inválido: esperado %d, recibido %c", dv, clave[48])
	}
	return nil
}

// SoloDigitos descarta todo carácter no numérico de s.
func SoloDigitos(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
