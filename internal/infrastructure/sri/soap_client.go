package sri

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	pkgsri "github.com/crisanro/kipu-core/pkg/sri"
)

// ── Constantes de entorno ──────────────────────────────────────────────────────

const (
	recepcionURLPruebas    = "https://celcer.sri.gob.ec/comprobantes-electronicos-ws/RecepcionComprobantesOffline"
	recepcionURLProduccion = "https://cel.sri.gob.ec/comprobantes-electronicos-ws/RecepcionComprobantesOffline"

	autorizacionURLPruebas    = "https://celcer.sri.gob.ec/comprobantes-electronicos-ws/AutorizacionComprobantesOffline"
	autorizacionURLProduccion = "https://cel.sri.gob.ec/comprobantes-electronicos-ws/AutorizacionComprobantesOffline"

	soapNS           = "http://schemas.xmlsoap.org/soap/envelope/"
	nsRecepcion      = "http://ec.gob.sri.ws.recepcion"
	nsAutorizacion   = "http://ec.gob.sri.ws.autorizacion"
	soapTimeout      = 8 * time.Second
	maxRespuestaSOAP = 4 << 20 // el XML autorizado viaja embebido en la respuesta
)

// Estados devueltos por los web services del SRI.
const (
	EstadoRecepcionRecibida = "RECIBIDA"
	EstadoRecepcionDevuelta = "DEVUELTA"
	EstadoAutorizado        = "AUTORIZADO"
	EstadoNoAutorizado      = "NO AUTORIZADO"
)

// ── Puerto (interfaz) ──────────────────────────────────────────────────────────

// MensajeSRI mensaje informativo o de error devuelto por el SRI.
type MensajeSRI struct {
	Identificador        string `xml:"identificador" json:"identificador"`
	Mensaje              string `xml:"mensaje" json:"mensaje"`
	InformacionAdicional string `xml:"informacionAdicional" json:"informacionAdicional,omitempty"`
	Tipo                 string `xml:"tipo" json:"tipo,omitempty"`
}

// RespuestaRecepcion resultado de validarComprobante.
type RespuestaRecepcion struct {
	Estado   string
	Mensajes []MensajeSRI
}

// Autorizacion un registro de autorización dentro de la respuesta.
type Autorizacion struct {
	Estado             string
	NumeroAutorizacion string
	FechaAutorizacion  time.Time
	Ambiente           string
	ComprobanteXML     string // XML con el sello de autorización embebido
	Mensajes           []MensajeSRI
}

// RespuestaAutorizacion resultado de autorizacionComprobante.
type RespuestaAutorizacion struct {
	ClaveAcceso        string
	NumeroComprobantes int
	Autorizaciones     []Autorizacion
}

// ClienteSRI puerto de salida hacia los web services SOAP del SRI.
// La implementación concreta usa net/http; para tests se inyecta un stub.
type ClienteSRI interface {
	// EnviarRecepcion envía el XML firmado (en Base64) al WS de recepción.
	EnviarRecepcion(ctx context.Context, xmlFirmado []byte, ambiente string) (*RespuestaRecepcion, error)
	// ConsultarAutorizacion consulta el estado de autorización por clave de acceso.
	ConsultarAutorizacion(ctx context.Context, claveAcceso, ambiente string) (*RespuestaAutorizacion, error)
}

// ── Implementación SOAP ────────────────────────────────────────────────────────

// SOAPClienteSRI implementa ClienteSRI contra los endpoints del SRI.
type SOAPClienteSRI struct {
	httpClient *http.Client

	// Sobreescribibles en tests (apuntan a un httptest.Server).
	urlRecepcionPruebas       string
	urlRecepcionProduccion    string
	urlAutorizacionPruebas    string
	urlAutorizacionProduccion string
}

// NewSOAPClienteSRI construye el cliente con el timeout de 8 s que exige el
// contrato de liquidación.
func NewSOAPClienteSRI() *SOAPClienteSRI {
	return &SOAPClienteSRI{
		httpClient:                &http.Client{Timeout: soapTimeout},
		urlRecepcionPruebas:       recepcionURLPruebas,
		urlRecepcionProduccion:    recepcionURLProduccion,
		urlAutorizacionPruebas:    autorizacionURLPruebas,
		urlAutorizacionProduccion: autorizacionURLProduccion,
	}
}

// NewSOAPClienteSRIConURLs construye el cliente contra endpoints arbitrarios
// (stubs en tests de integración).
func NewSOAPClienteSRIConURLs(recepcion, autorizacion string) *SOAPClienteSRI {
	return &SOAPClienteSRI{
		httpClient:                &http.Client{Timeout: soapTimeout},
		urlRecepcionPruebas:       recepcion,
		urlRecepcionProduccion:    recepcion,
		urlAutorizacionPruebas:    autorizacion,
		urlAutorizacionProduccion: autorizacion,
	}
}

// ── Estructuras SOAP de petición ──────────────────────────────────────────────

type soapEnvelope struct {
	XMLName  xml.Name `xml:"soapenv:Envelope"`
	XmlnsEnv string   `xml:"xmlns:soapenv,attr"`
	XmlnsEc  string   `xml:"xmlns:ec,attr"`
	Header   struct{} `xml:"soapenv:Header"`
	Body     soapBody `xml:"soapenv:Body"`
}

type soapBody struct {
	Content interface{}
}

func (b soapBody) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name.Local = "soapenv:Body"
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.Encode(b.Content); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

type validarComprobanteBody struct {
	XMLName xml.Name `xml:"ec:validarComprobante"`
	XML     string   `xml:"xml"` // comprobante firmado en Base64
}

type autorizacionComprobanteBody struct {
	XMLName     xml.Name `xml:"ec:autorizacionComprobante"`
	ClaveAcceso string   `xml:"claveAccesoComprobante"`
}

// ── Estructuras SOAP de respuesta ─────────────────────────────────────────────

type respuestaEnvelope struct {
	Body struct {
		ValidarResponse      *validarComprobanteResponse      `xml:"validarComprobanteResponse"`
		AutorizacionResponse *autorizacionComprobanteResponse `xml:"autorizacionComprobanteResponse"`
		Fault                *soapFault                       `xml:"Fault"`
	} `xml:"Body"`
}

type soapFault struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
}

type validarComprobanteResponse struct {
	Respuesta struct {
		Estado       string `xml:"estado"`
		Comprobantes struct {
			Comprobante []struct {
				ClaveAcceso string `xml:"claveAcceso"`
				Mensajes    struct {
					Mensaje []MensajeSRI `xml:"mensaje"`
				} `xml:"mensajes"`
			} `xml:"comprobante"`
		} `xml:"comprobantes"`
	} `xml:"RespuestaRecepcionComprobante"`
}

type autorizacionComprobanteResponse struct {
	Respuesta struct {
		ClaveAccesoConsultada string `xml:"claveAccesoConsultada"`
		NumeroComprobantes    string `xml:"numeroComprobantes"`
		Autorizaciones        struct {
			Autorizacion []struct {
				Estado             string `xml:"estado"`
				NumeroAutorizacion string `xml:"numeroAutorizacion"`
				FechaAutorizacion  string `xml:"fechaAutorizacion"`
				Ambiente           string `xml:"ambiente"`
				Comprobante        string `xml:"comprobante"`
				Mensajes           struct {
					Mensaje []MensajeSRI `xml:"mensaje"`
				} `xml:"mensajes"`
			} `xml:"autorizacion"`
		} `xml:"autorizaciones"`
	} `xml:"RespuestaAutorizacionComprobante"`
}

// ── Operaciones ───────────────────────────────────────────────────────────────

// EnviarRecepcion implementa ClienteSRI.
func (c *SOAPClienteSRI) EnviarRecepcion(ctx context.Context, xmlFirmado []byte, ambiente string) (*RespuestaRecepcion, error) {
	url := c.urlRecepcionPruebas
	if ambiente == pkgsri.AmbienteProduccion {
		url = c.urlRecepcionProduccion
	}
	body := &validarComprobanteBody{
		XML: base64.StdEncoding.EncodeToString(xmlFirmado),
	}
	raw, err := c.llamar(ctx, url, nsRecepcion, body)
	if err != nil {
		return nil, err
	}

	var env respuestaEnvelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("sri: parsear respuesta de recepción: %w", err)
	}
	if env.Body.Fault != nil {
		return nil, fmt.Errorf("sri: SOAP Fault [%s]: %s", env.Body.Fault.FaultCode, env.Body.Fault.FaultString)
	}
	if env.Body.ValidarResponse == nil {
		return nil, fmt.Errorf("sri: respuesta de recepción vacía o inesperada")
	}

	resp := &RespuestaRecepcion{Estado: env.Body.ValidarResponse.Respuesta.Estado}
	for _, comp := range env.Body.ValidarResponse.Respuesta.Comprobantes.Comprobante {
		resp.Mensajes = append(resp.Mensajes, comp.Mensajes.Mensaje...)
	}
	return resp, nil
}

// ConsultarAutorizacion implementa ClienteSRI.
func (c *SOAPClienteSRI) ConsultarAutorizacion(ctx context.Context, claveAcceso, ambiente string) (*RespuestaAutorizacion, error) {
	url := c.urlAutorizacionPruebas
	if ambiente == pkgsri.AmbienteProduccion {
		url = c.urlAutorizacionProduccion
	}
	body := &autorizacionComprobanteBody{ClaveAcceso: claveAcceso}
	raw, err := c.llamar(ctx, url, nsAutorizacion, body)
	if err != nil {
		return nil, err
	}

	var env respuestaEnvelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("sri: parsear respuesta de autorización: %w", err)
	}
	if env.Body.Fault != nil {
		return nil, fmt.Errorf("sri: SOAP Fault [%s]: %s", env.Body.Fault.FaultCode, env.Body.Fault.FaultString)
	}
	if env.Body.AutorizacionResponse == nil {
		return nil, fmt.Errorf("sri: respuesta de autorización vacía o inesperada")
	}

	r := env.Body.AutorizacionResponse.Respuesta
	resp := &RespuestaAutorizacion{ClaveAcceso: r.ClaveAccesoConsultada}
	fmt.Sscanf(r.NumeroComprobantes, "%d", &resp.NumeroComprobantes)
	for _, a := range r.Autorizaciones.Autorizacion {
		aut := Autorizacion{
			Estado:             a.Estado,
			NumeroAutorizacion: a.NumeroAutorizacion,
			Ambiente:           a.Ambiente,
			ComprobanteXML:     a.Comprobante,
			Mensajes:           a.Mensajes.Mensaje,
		}
		aut.FechaAutorizacion = parseFechaSRI(a.FechaAutorizacion)
		resp.Autorizaciones = append(resp.Autorizaciones, aut)
	}
	return resp, nil
}

// llamar serializa el envelope, hace el POST con timeout y devuelve el cuerpo crudo.
func (c *SOAPClienteSRI) llamar(ctx context.Context, url, ns string, content interface{}) ([]byte, error) {
	envelope := soapEnvelope{
		XmlnsEnv: soapNS,
		XmlnsEc:  ns,
		Body:     soapBody{Content: content},
	}
	payload, err := xml.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("sri: serializar envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, soapTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("sri: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("sri: timeout o cancelación: %w", ctx.Err())
		}
		return nil, fmt.Errorf("sri: llamada HTTP fallida: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxRespuestaSOAP))
	if err != nil {
		return nil, fmt.Errorf("sri: leer respuesta: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sri: WS respondió HTTP %d", resp.StatusCode)
	}
	return raw, nil
}

// parseFechaSRI tolera los dos formatos de timestamp que devuelve el WS.
func parseFechaSRI(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.000-07:00", "02/01/2006 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

var _ ClienteSRI = (*SOAPClienteSRI)(nil)
