package signer

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"math/big"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgsri "github.com/crisanro/kipu-core/pkg/sri"
)

const facturaMinima = `<?xml version="1.0" encoding="UTF-8"?>
<factura id="comprobante" version="1.1.0"><infoTributaria><ambiente>1</ambiente><ruc>1790011674001</ruc><claveAcceso>1503202401179001167400110011000000000011234567813</claveAcceso></infoTributaria><infoFactura><importeTotal>115.00</importeTotal></infoFactura></factura>`

func credencialDePrueba(t *testing.T) *pkgsri.Credencial {
	t.Helper()
	cert, llave := certConUso(t, "FIRMA PRUEBAS", x509.KeyUsageDigitalSignature|x509.KeyUsageContentCommitment, false, "1790011674001")
	return &pkgsri.Credencial{
		Certificado: cert,
		Cadena:      []*x509.Certificate{cert},
		Llave:       llave,
		RUC:         "1790011674001",
	}
}

func extraerFragmento(t *testing.T, firmado, apertura, cierre string) string {
	t.Helper()
	ini := strings.Index(firmado, apertura)
	require.GreaterOrEqual(t, ini, 0, "no se encontró %s", apertura)
	fin := strings.Index(firmado[ini:], cierre)
	require.GreaterOrEqual(t, fin, 0, "no se encontró %s", cierre)
	return firmado[ini : ini+fin+len(cierre)]
}

func digestValues(t *testing.T, signedInfo string) []string {
	t.Helper()
	re := regexp.MustCompile(`<ds:DigestValue>([^<]+)</ds:DigestValue>`)
	matches := re.FindAllStringSubmatch(signedInfo, -1)
	var out []string
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// TestFirmar_EstructuraYReferencias es el "canario" de la integración SRI:
// verifica que los digests de SignedInfo correspondan a la canonicalización
// recomputada, que el digest del certificado sea el SHA-256 del DER y que
// SignatureValue verifique contra la llave pública de KeyInfo (propiedad 5).
func TestFirmar_EstructuraYReferencias(t *testing.T) {
	cred := credencialDePrueba(t)
	svc := NewServicioFirmaConReloj(func() time.Time {
		return time.Date(2024, 3, 15, 15, 30, 45, 0, time.UTC)
	})

	firmadoBytes, err := svc.Firmar([]byte(facturaMinima), cred)
	require.NoError(t, err)
	firmado := string(firmadoBytes)

	// La firma va como último hijo de <factura>
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(firmadoBytes))
	root := doc.Root()
	require.Equal(t, "factura", root.Tag)
	hijos := root.ChildElements()
	require.NotEmpty(t, hijos)
	assert.Equal(t, "Signature", hijos[len(hijos)-1].Tag)

	// ── Referencia A: digest del documento canonicalizado sin firma ──────────
	canonicalDoc, err := Canonicalizar([]byte(facturaMinima))
	require.NoError(t, err)
	docDigest := sha256.Sum256(canonicalDoc)

	signedInfo := extraerFragmento(t, firmado, "<ds:SignedInfo", "</ds:SignedInfo>")
	digests := digestValues(t, signedInfo)
	require.Len(t, digests, 2)
	assert.Equal(t, base64.StdEncoding.EncodeToString(docDigest[:]), digests[0],
		"el DigestValue de la Reference URI=#comprobante debe ser el SHA-256 del documento canonicalizado")

	// ── Referencia B: digest de SignedProperties canonicalizado ─────────────
	signedProps := extraerFragmento(t, firmado, "<xades:SignedProperties", "</xades:SignedProperties>")
	canonicalProps, err := Canonicalizar([]byte(signedProps))
	require.NoError(t, err)
	propsDigest := sha256.Sum256(canonicalProps)
	assert.Equal(t, base64.StdEncoding.EncodeToString(propsDigest[:]), digests[1],
		"el DigestValue de la Reference a SignedProperties debe coincidir con la canonicalización recomputada")

	// Type exacto exigido por el perfil
	assert.Contains(t, signedInfo, `Type="http://uri.etsi.org/01903#SignedProperties"`)
	assert.Contains(t, signedInfo, `URI="#comprobante"`)
	assert.Contains(t, signedInfo, TransformEnveloped)

	// ── SignatureValue verifica contra la llave pública de KeyInfo ──────────
	canonicalSignedInfo, err := Canonicalizar([]byte(signedInfo))
	require.NoError(t, err)
	signHash := sha256.Sum256(canonicalSignedInfo)

	reSig := regexp.MustCompile(`<ds:SignatureValue>([^<]+)</ds:SignatureValue>`)
	m := reSig.FindStringSubmatch(firmado)
	require.Len(t, m, 2)
	firma, err := base64.StdEncoding.DecodeString(m[1])
	require.NoError(t, err)

	// Reconstruir la llave pública desde Modulus/Exponent de KeyInfo
	reMod := regexp.MustCompile(`<ds:Modulus>([^<]+)</ds:Modulus>`)
	reExp := regexp.MustCompile(`<ds:Exponent>([^<]+)</ds:Exponent>`)
	modB64 := reMod.FindStringSubmatch(firmado)
	expB64 := reExp.FindStringSubmatch(firmado)
	require.Len(t, modB64, 2)
	require.Len(t, expB64, 2)
	modBytes, err := base64.StdEncoding.DecodeString(modB64[1])
	require.NoError(t, err)
	expBytes, err := base64.StdEncoding.DecodeString(expB64[1])
	require.NoError(t, err)
	pub := &rsa.PublicKey{
		N: new(big.Int).SetBytes(modBytes),
		E: int(new(big.Int).SetBytes(expBytes).Int64()),
	}
	assert.NoError(t, rsa.VerifyPKCS1v15(pub, crypto.SHA256, signHash[:], firma),
		"SignatureValue debe verificar contra el módulo/exponente publicados en KeyInfo")
}

func TestFirmar_SigningCertificate(t *testing.T) {
	cred := credencialDePrueba(t)
	svc := NewServicioFirma()

	firmadoBytes, err := svc.Firmar([]byte(facturaMinima), cred)
	require.NoError(t, err)
	firmado := string(firmadoBytes)

	// CertDigest = SHA-256 del certificado DER
	certDigest := sha256.Sum256(cred.Certificado.Raw)
	assert.Contains(t, firmado, base64.StdEncoding.EncodeToString(certDigest[:]))

	// Serial en decimal, no en hex
	assert.Contains(t, firmado,
		"<ds:X509SerialNumber>"+cred.Certificado.SerialNumber.String()+"</ds:X509SerialNumber>")

	// Certificado completo en KeyInfo
	assert.Contains(t, firmado, base64.StdEncoding.EncodeToString(cred.Certificado.Raw))

	// DataObjectFormat apunta al comprobante
	assert.Contains(t, firmado, `ObjectReference="#comprobante"`)
	assert.Contains(t, firmado, "<xades:MimeType>text/xml</xades:MimeType>")
}

func TestFirmar_SigningTimeConRelojFijo(t *testing.T) {
	cred := credencialDePrueba(t)
	svc := NewServicioFirmaConReloj(func() time.Time {
		return time.Date(2024, 3, 15, 15, 30, 45, 0, time.UTC)
	})
	firmado, err := svc.Firmar([]byte(facturaMinima), cred)
	require.NoError(t, err)
	assert.Contains(t, string(firmado), "<xades:SigningTime>2024-03-15T15:30:45Z</xades:SigningTime>")
}

func TestNombreEmisorOrdenNativo(t *testing.T) {
	cred := credencialDePrueba(t)
	nombre := NombreEmisorOrdenNativo(cred.Certificado)
	assert.Contains(t, nombre, "CN=FIRMA PRUEBAS")
	assert.Contains(t, nombre, "SERIALNUMBER=1790011674001")
}

func TestFirmar_EntradasInvalidas(t *testing.T) {
	cred := credencialDePrueba(t)
	svc := NewServicioFirma()

	_, err := svc.Firmar(nil, cred)
	assert.Error(t, err)

	_, err = svc.Firmar([]byte(facturaMinima), nil)
	assert.Error(t, err)

	_, err = svc.Firmar([]byte("esto no es XML <"), cred)
	assert.Error(t, err)
}
