package sri_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisanro/kipu-core/internal/domain/sri"
)

// ──────────────────────────────────────────────────────────────────────────────
// Vectores del módulo 11 calculados a mano con la regla del SRI:
// pesos 2..7 de derecha a izquierda, v = 11 - (suma mod 11), 11 -> 0, 10 -> 1.
// ──────────────────────────────────────────────────────────────────────────────

func TestDigitoVerificador_Vectores(t *testing.T) {
	casos := []struct {
		base     string
		esperado int
	}{
		{"0", 0},      // suma 0, v = 11 -> 0
		{"1", 9},      // 1*2 = 2, v = 9
		{"12", 4},     // 2*2 + 1*3 = 7, v = 4
		{"999999", 1}, // 9*27 = 243, 243 mod 11 = 1, v = 10 -> 1
	}
	for _, c := range casos {
		dv, err := sri.DigitoVerificador(c.base)
		require.NoError(t, err, "base %q", c.base)
		assert.Equal(t, c.esperado, dv, "base %q", c.base)
	}
}

func TestDigitoVerificador_RechazaNoNumerico(t *testing.T) {
	_, err := sri.DigitoVerificador("12a4")
	assert.Error(t, err)
}

func TestGenerarClaveAcceso_LargoYDigitos(t *testing.T) {
	fecha := time.Date(2024, 3, 15, 10, 30, 45, 120_000_000, time.FixedZone("ECT", -5*3600))
	clave, err := sri.GenerarClaveAcceso(sri.ClaveAccesoParams{
		FechaEmision: fecha,
		CodDoc:       "01",
		RUC:          "1790011674001",
		Ambiente:     "1",
		Serie:        "001100",
		Secuencial:   "000000001",
		TipoEmision:  "1",
	})
	require.NoError(t, err)
	assert.Len(t, clave, 49)
	assert.Equal(t, clave, sri.SoloDigitos(clave), "la clave debe ser solo dígitos")
	assert.NoError(t, sri.ValidarClaveAcceso(clave))

	// Componentes en posición fija
	assert.Equal(t, "15032024", clave[0:8], "fecha ddmmaaaa")
	assert.Equal(t, "01", clave[8:10], "codDoc")
	assert.Equal(t, "1790011674001", clave[10:23], "ruc")
	assert.Equal(t, "1", clave[23:24], "ambiente")
	assert.Equal(t, "001100", clave[24:30], "serie")
	assert.Equal(t, "000000001", clave[30:39], "secuencial")
	assert.Equal(t, "1", clave[47:48], "tipoEmision")
}

// TestGenerarClaveAcceso_Propiedad: para una familia de entradas, toda clave
// generada valida su propio dígito verificador (invariante 1 del sistema).
func TestGenerarClaveAcceso_Propiedad(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 500; i++ {
		clave, err := sri.GenerarClaveAcceso(sri.ClaveAccesoParams{
			FechaEmision:   base.AddDate(0, 0, i%365),
			CodDoc:         "01",
			RUC:            "0992645324001",
			Ambiente:       "2",
			Serie:          "002003",
			Secuencial:     fmt.Sprintf("%09d", i+1),
			CodigoNumerico: fmt.Sprintf("%08d", i*7919%100000000),
			TipoEmision:    "1",
		})
		require.NoError(t, err)
		require.Len(t, clave, 49)
		require.NoError(t, sri.ValidarClaveAcceso(clave), "clave %s", clave)
	}
}

func TestGenerarClaveAcceso_LimpiaEntradas(t *testing.T) {
	clave, err := sri.GenerarClaveAcceso(sri.ClaveAccesoParams{
		FechaEmision: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		CodDoc:       "01",
		RUC:          "179-0011674-001", // con guiones: se limpian
		Ambiente:     "1",
		Serie:        "001-100",
		Secuencial:   "42",
		TipoEmision:  "1",
	})
	require.NoError(t, err)
	assert.Equal(t, "1790011674001", clave[10:23])
	assert.Equal(t, "000000042", clave[30:39], "el secuencial se rellena a 9 dígitos")
}

func TestGenerarClaveAcceso_CampoExcedido(t *testing.T) {
	_, err := sri.GenerarClaveAcceso(sri.ClaveAccesoParams{
		FechaEmision: time.Now(),
		CodDoc:       "01",
		RUC:          "17900116740011", // 14 dígitos
		Ambiente:     "1",
		Serie:        "001100",
		Secuencial:   "000000001",
		TipoEmision:  "1",
	})
	assert.Error(t, err, "un RUC de 14 dígitos no cabe en la clave")
}

func TestValidarClaveAcceso_DetectaCorrupcion(t *testing.T) {
	clave, err := sri.GenerarClaveAcceso(sri.ClaveAccesoParams{
		FechaEmision: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		CodDoc:       "01",
		RUC:          "1790011674001",
		Ambiente:     "1",
		Serie:        "001100",
		Secuencial:   "000000007",
		TipoEmision:  "1",
	})
	require.NoError(t, err)

	// Alterar un dígito del cuerpo invalida el verificador
	corrupta := []byte(clave)
	if corrupta[20] == '9' {
		corrupta[20] = '0'
	} else {
		corrupta[20]++
	}
	assert.Error(t, sri.ValidarClaveAcceso(string(corrupta)))

	assert.Error(t, sri.ValidarClaveAcceso(clave[:48]), "largo incorrecto")
	assert.Error(t, sri.ValidarClaveAcceso(clave[:48]+"x"), "no numérica")
}
