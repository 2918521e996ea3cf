package sri

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ──────────────────────────────────────────────────────────────────────────────
// Respuestas enlatadas de los WS del SRI (recortadas a lo que parsea el cliente).
// ──────────────────────────────────────────────────────────────────────────────

const respuestaRecibida = `<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <ns2:validarComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.recepcion">
      <RespuestaRecepcionComprobante>
        <estado>RECIBIDA</estado>
        <comprobantes/>
      </RespuestaRecepcionComprobante>
    </ns2:validarComprobanteResponse>
  </soap:Body>
</soap:Envelope>`

const respuestaDevuelta = `<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <ns2:validarComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.recepcion">
      <RespuestaRecepcionComprobante>
        <estado>DEVUELTA</estado>
        <comprobantes>
          <comprobante>
            <claveAcceso>1503202401179001167400110011000000000011234567813</claveAcceso>
            <mensajes>
              <mensaje>
                <identificador>35</identificador>
                <mensaje>ARCHIVO NO CUMPLE ESTRUCTURA XML</mensaje>
                <informacionAdicional>detalle del error</informacionAdicional>
                <tipo>ERROR</tipo>
              </mensaje>
            </mensajes>
          </comprobante>
        </comprobantes>
      </RespuestaRecepcionComprobante>
    </ns2:validarComprobanteResponse>
  </soap:Body>
</soap:Envelope>`

const respuestaAutorizado = `<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <ns2:autorizacionComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.autorizacion">
      <RespuestaAutorizacionComprobante>
        <claveAccesoConsultada>1503202401179001167400110011000000000011234567813</claveAccesoConsultada>
        <numeroComprobantes>1</numeroComprobantes>
        <autorizaciones>
          <autorizacion>
            <estado>AUTORIZADO</estado>
            <numeroAutorizacion>1503202401179001167400110011000000000011234567813</numeroAutorizacion>
            <fechaAutorizacion>2024-03-15T10:35:00-05:00</fechaAutorizacion>
            <ambiente>PRUEBAS</ambiente>
            <comprobante><![CDATA[<factura id="comprobante"><infoTributaria/></factura>]]></comprobante>
            <mensajes/>
          </autorizacion>
        </autorizaciones>
      </RespuestaAutorizacionComprobante>
    </ns2:autorizacionComprobanteResponse>
  </soap:Body>
</soap:Envelope>`

const respuestaNoAutorizado = `<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <ns2:autorizacionComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.autorizacion">
      <RespuestaAutorizacionComprobante>
        <claveAccesoConsultada>1503202401179001167400110011000000000011234567813</claveAccesoConsultada>
        <numeroComprobantes>1</numeroComprobantes>
        <autorizaciones>
          <autorizacion>
            <estado>NO AUTORIZADO</estado>
            <fechaAutorizacion>2024-03-15T10:35:00-05:00</fechaAutorizacion>
            <ambiente>PRUEBAS</ambiente>
            <comprobante/>
            <mensajes>
              <mensaje>
                <identificador>60</identificador>
                <mensaje>CLAVE DE ACCESO EN PROCESAMIENTO</mensaje>
                <tipo>ERROR</tipo>
              </mensaje>
            </mensajes>
          </autorizacion>
        </autorizaciones>
      </RespuestaAutorizacionComprobante>
    </ns2:autorizacionComprobanteResponse>
  </soap:Body>
</soap:Envelope>`

func servidorSOAP(t *testing.T, respuesta string, capturar *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if capturar != nil {
			*capturar = string(body)
		}
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		_, _ = w.Write([]byte(respuesta))
	}))
}

func TestEnviarRecepcion_Recibida(t *testing.T) {
	var pedido string
	srv := servidorSOAP(t, respuestaRecibida, &pedido)
	defer srv.Close()

	cliente := NewSOAPClienteSRIConURLs(srv.URL, srv.URL)
	xmlFirmado := []byte("<factura id=\"comprobante\"/>")
	resp, err := cliente.EnviarRecepcion(context.Background(), xmlFirmado, "1")
	require.NoError(t, err)
	assert.Equal(t, EstadoRecepcionRecibida, resp.Estado)
	assert.Empty(t, resp.Mensajes)

	// El comprobante viaja en Base64 dentro de validarComprobante
	assert.Contains(t, pedido, "validarComprobante")
	assert.Contains(t, pedido, base64.StdEncoding.EncodeToString(xmlFirmado))
}

func TestEnviarRecepcion_Devuelta(t *testing.T) {
	srv := servidorSOAP(t, respuestaDevuelta, nil)
	defer srv.Close()

	cliente := NewSOAPClienteSRIConURLs(srv.URL, srv.URL)
	resp, err := cliente.EnviarRecepcion(context.Background(), []byte("<x/>"), "1")
	require.NoError(t, err)
	assert.Equal(t, EstadoRecepcionDevuelta, resp.Estado)
	require.Len(t, resp.Mensajes, 1)
	assert.Equal(t, "35", resp.Mensajes[0].Identificador)
	assert.Equal(t, "ARCHIVO NO CUMPLE ESTRUCTURA XML", resp.Mensajes[0].Mensaje)
}

func TestConsultarAutorizacion_Autorizado(t *testing.T) {
	var pedido string
	srv := servidorSOAP(t, respuestaAutorizado, &pedido)
	defer srv.Close()

	cliente := NewSOAPClienteSRIConURLs(srv.URL, srv.URL)
	clave := "1503202401179001167400110011000000000011234567813"
	resp, err := cliente.ConsultarAutorizacion(context.Background(), clave, "1")
	require.NoError(t, err)

	assert.Equal(t, clave, resp.ClaveAcceso)
	assert.Equal(t, 1, resp.NumeroComprobantes)
	require.Len(t, resp.Autorizaciones, 1)

	aut := resp.Autorizaciones[0]
	assert.Equal(t, EstadoAutorizado, aut.Estado)
	assert.Contains(t, aut.ComprobanteXML, `<factura id="comprobante">`, "el XML autorizado viaja embebido")
	assert.False(t, aut.FechaAutorizacion.IsZero())
	assert.Equal(t, 2024, aut.FechaAutorizacion.Year())

	assert.Contains(t, pedido, "<claveAccesoComprobante>"+clave+"</claveAccesoComprobante>")
}

func TestConsultarAutorizacion_NoAutorizado(t *testing.T) {
	srv := servidorSOAP(t, respuestaNoAutorizado, nil)
	defer srv.Close()

	cliente := NewSOAPClienteSRIConURLs(srv.URL, srv.URL)
	resp, err := cliente.ConsultarAutorizacion(context.Background(),
		"1503202401179001167400110011000000000011234567813", "1")
	require.NoError(t, err)
	require.Len(t, resp.Autorizaciones, 1)
	assert.Equal(t, EstadoNoAutorizado, resp.Autorizaciones[0].Estado)
	require.Len(t, resp.Autorizaciones[0].Mensajes, 1)
	assert.Equal(t, "CLAVE DE ACCESO EN PROCESAMIENTO", resp.Autorizaciones[0].Mensajes[0].Mensaje)
}

func TestLlamar_ErroresDeTransporte(t *testing.T) {
	// HTTP 500 es error (el worker deja la fila para reintento)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cliente := NewSOAPClienteSRIConURLs(srv.URL, srv.URL)
	_, err := cliente.EnviarRecepcion(context.Background(), []byte("<x/>"), "1")
	assert.Error(t, err)

	// Endpoint caído
	srv.Close()
	_, err = cliente.EnviarRecepcion(context.Background(), []byte("<x/>"), "1")
	assert.Error(t, err)
}

func TestParseFechaSRI_Formatos(t *testing.T) {
	for _, s := range []string{
		"2024-03-15T10:35:00-05:00",
		"2024-03-15T10:35:00.000-05:00",
		"15/03/2024 10:35:00",
	} {
		assert.False(t, parseFechaSRI(s).IsZero(), "formato %q", s)
	}
	assert.True(t, parseFechaSRI("no-es-fecha").IsZero())
}

func TestRespuestaInesperada(t *testing.T) {
	srv := servidorSOAP(t, `<?xml version="1.0"?><soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body/></soap:Envelope>`, nil)
	defer srv.Close()

	cliente := NewSOAPClienteSRIConURLs(srv.URL, srv.URL)
	_, err := cliente.EnviarRecepcion(context.Background(), []byte("<x/>"), "1")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "vacía o inesperada"))
}
