package signer

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/asn1"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/pkcs12"

	"github.com/crisanro/kipu-core/internal/domain"
	pkgsri "github.com/crisanro/kipu-core/pkg/sri"
)

// OIDs propietarios donde las CA ecuatorianas registran el RUC del titular.
var (
	oidRucBancoCentral = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 37746, 3, 11}
	oidRucSecurityData = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 37985, 3, 11}
	oidSubjectSerial   = asn1.ObjectIdentifier{2, 5, 4, 5}
)

// bolsaCert y bolsaLlave conservan los atributos PKCS#12 de cada bag
// (localKeyId y friendlyName) para el emparejamiento certificado↔llave.
type bolsaCert struct {
	cert         *x509.Certificate
	localKeyID   string
	friendlyName string
}

type bolsaLlave struct {
	llave        *rsa.PrivateKey
	localKeyID   string
	friendlyName string
}

// AbrirP12 decodifica el contenedor PKCS#12 y selecciona el certificado de
// firma con su llave privada. Los contenedores del Banco Central traen dos
// pares (cifrado y firma) más la cadena de la CA; los de CAs privadas traen
// uno solo.
func AbrirP12(data []byte, password string) (*pkgsri.Credencial, error) {
	blocks, err := pkcs12.ToPEM(data, password)
	if err != nil {
		return nil, fmt.Errorf("signer: decodificar p12: %w", domain.ErrFirmaInvalida)
	}

	var certs []bolsaCert
	var llaves []bolsaLlave
	for _, b := range blocks {
		switch b.Type {
		case "CERTIFICATE":
			c, err := x509.ParseCertificate(b.Bytes)
			if err != nil {
				continue
			}
			certs = append(certs, bolsaCert{
				cert:         c,
				localKeyID:   b.Headers["localKeyId"],
				friendlyName: b.Headers["friendlyName"],
			})
		case "PRIVATE KEY":
			k := parseLlaveRSA(b.Bytes)
			if k == nil {
				continue
			}
			llaves = append(llaves, bolsaLlave{
				llave:        k,
				localKeyID:   b.Headers["localKeyId"],
				friendlyName: b.Headers["friendlyName"],
			})
		}
	}

	firmante, err := seleccionarCertificado(certs)
	if err != nil {
		return nil, err
	}
	llave, err := seleccionarLlave(firmante, llaves)
	if err != nil {
		return nil, err
	}

	// Cadena: firmante primero, luego el resto (CA intermedias y raíz).
	cadena := []*x509.Certificate{firmante.cert}
	for _, b := range certs {
		if b.cert != firmante.cert {
			cadena = append(cadena, b.cert)
		}
	}

	return &pkgsri.Credencial{
		Certificado: firmante.cert,
		Cadena:      cadena,
		Llave:       llave,
		RUC:         ExtraerRUC(firmante.cert),
	}, nil
}

// seleccionarCertificado aplica la prioridad de selección: primero un
// certificado no-CA con digitalSignature y nonRepudiation, luego no-CA con
// digitalSignature, luego el primer no-CA.
func seleccionarCertificado(certs []bolsaCert) (*bolsaCert, error) {
	var candidatos []*bolsaCert
	for i := range certs {
		if !certs[i].cert.IsCA {
			candidatos = append(candidatos, &certs[i])
		}
	}
	if len(candidatos) == 0 {
		return nil, fmt.Errorf("signer: el contenedor no tiene certificado de firma: %w", domain.ErrFirmaInvalida)
	}
	for _, c := range candidatos {
		usage := c.cert.KeyUsage
		if usage&x509.KeyUsageDigitalSignature != 0 && usage&x509.KeyUsageContentCommitment != 0 {
			return c, nil
		}
	}
	for _, c := range candidatos {
		if c.cert.KeyUsage&x509.KeyUsageDigitalSignature != 0 {
			return c, nil
		}
	}
	return candidatos[0], nil
}

// seleccionarLlave empareja la llave privada con el certificado elegido:
// única llave -> esa; varias -> por localKeyId, por friendlyName con
// "signing key", y como último recurso la última bolsa (el orden empírico de
// los p12 del Banco Central deja la de firma al final).
func seleccionarLlave(cert *bolsaCert, llaves []bolsaLlave) (*rsa.PrivateKey, error) {
	switch len(llaves) {
	case 0:
		return nil, fmt.Errorf("signer: el contenedor no tiene llave privada: %w", domain.ErrFirmaInvalida)
	case 1:
		return llaves[0].llave, nil
	}
	if cert.localKeyID != "" {
		for _, k := range llaves {
			if k.localKeyID == cert.localKeyID {
				return k.llave, nil
			}
		}
	}
	for _, k := range llaves {
		if strings.Contains(strings.ToLower(k.friendlyName), "signing key") {
			return k.llave, nil
		}
	}
	return llaves[len(llaves)-1].llave, nil
}

func parseLlaveRSA(der []byte) *rsa.PrivateKey {
	if k, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return k
	}
	if k, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		if rsaKey, ok := k.(*rsa.PrivateKey); ok {
			return rsaKey
		}
	}
	return nil
}

// ExtraerRUC busca el RUC del titular en las extensiones propietarias de las
// CA ecuatorianas y, en su defecto, en el atributo serialNumber del subject.
func ExtraerRUC(cert *x509.Certificate) string {
	for _, ext := range cert.Extensions {
		if ext.Id.Equal(oidRucBancoCentral) || ext.Id.Equal(oidRucSecurityData) {
			if ruc := buscarRUC(string(ext.Value)); ruc != "" {
				return ruc
			}
		}
	}
	for _, atv := range cert.Subject.Names {
		if atv.Type.Equal(oidSubjectSerial) {
			if s, ok := atv.Value.(string); ok {
				if ruc := buscarRUC(s); ruc != "" {
					return ruc
				}
			}
		}
	}
	return ""
}

// buscarRUC devuelve la primera corrida de exactamente 13 dígitos dentro de s.
func buscarRUC(s string) string {
	inicio := -1
	for i := 0; i <= len(s); i++ {
		esDigito := i < len(s) && s[i] >= '0' && s[i] <= '9'
		if esDigito && inicio < 0 {
			inicio = i
		}
		if !esDigito && inicio >= 0 {
			if i-inicio == 13 {
				return s[inicio:i]
			}
			inicio = -1
		}
	}
	return ""
}

// ValidarCredencial verifica vigencia y, si se indica, que el RUC del
// certificado coincida con el del emisor.
func ValidarCredencial(cred *pkgsri.Credencial, rucEsperado string, now time.Time) error {
	if cred.Certificado.NotAfter.Before(now) {
		return fmt.Errorf("signer: certificado expirado el %s: %w",
			cred.Certificado.NotAfter.Format("2006-01-02"), domain.ErrFirmaExpirada)
	}
	if rucEsperado != "" && cred.RUC != "" && cred.RUC != rucEsperado {
		return fmt.Errorf("signer: RUC del certificado %s ≠ %s: %w", cred.RUC, rucEsperado, domain.ErrRucNoCoincide)
	}
	return nil
}
