// Package sri: puerto de firma digital de comprobantes XML (XAdES-BES, SRI).

package sri

import (
	"crypto/rsa"
	"crypto/x509"
)

// Credencial es el material de firma ya seleccionado de un contenedor PKCS#12:
// certificado firmante, cadena completa, llave privada RSA y el RUC extraído
// del certificado.
type Credencial struct {
	Certificado *x509.Certificate
	Cadena      []*x509.Certificate // certificado firmante primero
	Llave       *rsa.PrivateKey
	RUC         string
}

// Firmador firma un XML de factura y devuelve el XML con el nodo ds:Signature
// añadido como último hijo de <factura>.
type Firmador interface {
	Firmar(xmlBytes []byte, cred *Credencial) ([]byte, error)
}
