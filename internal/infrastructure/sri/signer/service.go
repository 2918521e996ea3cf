// Servicio de firma digital XAdES-BES para factura electrónica SRI.
// Añade el nodo ds:Signature como último hijo de <factura id="comprobante">.

package signer

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/asn1"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"

	pkgsri "github.com/crisanro/kipu-core/pkg/sri"
)

// ServicioFirma implementa pkg/sri.Firmador con el perfil XAdES-BES del SRI.
type ServicioFirma struct {
	// ahora permite fijar el SigningTime en tests; nil usa time.Now.
	ahora func() time.Time
}

// NewServicioFirma crea el servicio.
func NewServicioFirma() *ServicioFirma {
	return &ServicioFirma{}
}

// NewServicioFirmaConReloj crea el servicio con un reloj inyectado (tests).
func NewServicioFirmaConReloj(ahora func() time.Time) *ServicioFirma {
	return &ServicioFirma{ahora: ahora}
}

// Firmar implementa pkgsri.Firmador: produce la firma envuelta con las dos
// referencias del perfil (documento + SignedProperties) y la añade al XML.
func (s *ServicioFirma) Firmar(xmlBytes []byte, cred *pkgsri.Credencial) ([]byte, error) {
	if len(xmlBytes) == 0 {
		return nil, fmt.Errorf("signer: XML vacío")
	}
	if cred == nil || cred.Llave == nil || cred.Certificado == nil {
		return nil, fmt.Errorf("signer: credencial incompleta")
	}

	// 1) Digest del documento (C14N inclusive, sin la firma: aún no existe,
	//    que es exactamente lo que produce la transformada enveloped).
	canonicalDoc, err := Canonicalizar(xmlBytes)
	if err != nil {
		return nil, fmt.Errorf("signer: canonicalizar documento: %w", err)
	}
	docDigest := sha256.Sum256(canonicalDoc)

	// 2) SignedProperties: se canonicaliza exactamente el mismo fragmento que
	//    luego viaja dentro de la firma.
	now := time.Now()
	if s.ahora != nil {
		now = s.ahora()
	}
	signedProps := s.buildSignedProperties(cred, now.UTC())
	canonicalProps, err := Canonicalizar([]byte(signedProps))
	if err != nil {
		return nil, fmt.Errorf("signer: canonicalizar SignedProperties: %w", err)
	}
	propsDigest := sha256.Sum256(canonicalProps)

	// 3) SignedInfo con ambas referencias, canonicalizado y firmado RSA-SHA256.
	signedInfo := s.buildSignedInfo(
		base64.StdEncoding.EncodeToString(docDigest[:]),
		base64.StdEncoding.EncodeToString(propsDigest[:]),
	)
	canonicalSignedInfo, err := Canonicalizar([]byte(signedInfo))
	if err != nil {
		return nil, fmt.Errorf("signer: canonicalizar SignedInfo: %w", err)
	}
	signHash := sha256.Sum256(canonicalSignedInfo)
	signatureValue, err := rsa.SignPKCS1v15(rand.Reader, cred.Llave, crypto.SHA256, signHash[:])
	if err != nil {
		return nil, fmt.Errorf("signer: firmar SignedInfo: %w", err)
	}

	// 4) Nodo ds:Signature completo.
	signatureXML := s.buildFullSignature(
		signedInfo,
		base64.StdEncoding.EncodeToString(signatureValue),
		cred,
		signedProps,
	)

	// 5) Añadir como último hijo de <factura>.
	return s.injectSignature(xmlBytes, signatureXML)
}

// Canonicalizar aplica C14N inclusive (xml-c14n-20010315) al fragmento.
func Canonicalizar(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

func (s *ServicioFirma) buildSignedInfo(docDigestB64, propsDigestB64 string) string {
	var sb strings.Builder
	sb.WriteString(`<ds:SignedInfo xmlns:ds="` + NamespaceDS + `">`)
	sb.WriteString(`<ds:CanonicalizationMethod Algorithm="` + AlgC14N + `"/>`)
	sb.WriteString(`<ds:SignatureMethod Algorithm="` + AlgRSASHA256 + `"/>`)
	// Referencia A: el comprobante completo (enveloped + C14N)
	sb.WriteString(`<ds:Reference URI="` + SignedInfoReference + `">`)
	sb.WriteString(`<ds:Transforms><ds:Transform Algorithm="` + TransformEnveloped + `"/>`)
	sb.WriteString(`<ds:Transform Algorithm="` + AlgC14N + `"/></ds:Transforms>`)
	sb.WriteString(`<ds:DigestMethod Algorithm="` + AlgSHA256 + `"/>`)
	sb.WriteString(`<ds:DigestValue>` + docDigestB64 + `</ds:DigestValue>`)
	sb.WriteString(`</ds:Reference>`)
	// Referencia B: SignedProperties, con el Type exacto del perfil
	sb.WriteString(`<ds:Reference Type="` + TipoSignedProperties + `" URI="#` + SignedPropertiesID + `">`)
	sb.WriteString(`<ds:Transforms><ds:Transform Algorithm="` + AlgC14N + `"/></ds:Transforms>`)
	sb.WriteString(`<ds:DigestMethod Algorithm="` + AlgSHA256 + `"/>`)
	sb.WriteString(`<ds:DigestValue>` + propsDigestB64 + `</ds:DigestValue>`)
	sb.WriteString(`</ds:Reference>`)
	sb.WriteString(`</ds:SignedInfo>`)
	return sb.String()
}

// buildSignedProperties arma el fragmento xades:SignedProperties. Declara los
// namespaces sobre el propio nodo para que su canonicalización como fragmento
// independiente coincida con la del nodo embebido en la firma.
func (s *ServicioFirma) buildSignedProperties(cred *pkgsri.Credencial, signingTime time.Time) string {
	certDigest := sha256.Sum256(cred.Certificado.Raw)

	var sb strings.Builder
	sb.WriteString(`<xades:SignedProperties xmlns:ds="` + NamespaceDS + `" xmlns:xades="` + NamespaceXAdES + `" Id="` + SignedPropertiesID + `">`)
	sb.WriteString(`<xades:SignedSignatureProperties>`)
	sb.WriteString(`<xades:SigningTime>` + signingTime.Format("2006-01-02T15:04:05Z") + `</xades:SigningTime>`)
	sb.WriteString(`<xades:SigningCertificate><xades:Cert>`)
	sb.WriteString(`<xades:CertDigest><ds:DigestMethod Algorithm="` + AlgSHA256 + `"/>`)
	sb.WriteString(`<ds:DigestValue>` + base64.StdEncoding.EncodeToString(certDigest[:]) + `</ds:DigestValue></xades:CertDigest>`)
	sb.WriteString(`<xades:IssuerSerial>`)
	sb.WriteString(`<ds:X509IssuerName>` + escapeXML(NombreEmisorOrdenNativo(cred.Certificado)) + `</ds:X509IssuerName>`)
	sb.WriteString(`<ds:X509SerialNumber>` + cred.Certificado.SerialNumber.String() + `</ds:X509SerialNumber>`)
	sb.WriteString(`</xades:IssuerSerial>`)
	sb.WriteString(`</xades:Cert></xades:SigningCertificate>`)
	sb.WriteString(`</xades:SignedSignatureProperties>`)
	sb.WriteString(`<xades:SignedDataObjectProperties>`)
	sb.WriteString(`<xades:DataObjectFormat ObjectReference="` + SignedInfoReference + `">`)
	sb.WriteString(`<xades:Description>contenido comprobante</xades:Description>`)
	sb.WriteString(`<xades:MimeType>text/xml</xades:MimeType>`)
	sb.WriteString(`</xades:DataObjectFormat>`)
	sb.WriteString(`</xades:SignedDataObjectProperties>`)
	sb.WriteString(`</xades:SignedProperties>`)
	return sb.String()
}

func (s *ServicioFirma) buildFullSignature(signedInfoXML, signatureValueB64 string, cred *pkgsri.Credencial, signedPropsXML string) string {
	var sb strings.Builder
	sb.WriteString(`<ds:Signature xmlns:ds="` + NamespaceDS + `" xmlns:xades="` + NamespaceXAdES + `" Id="` + SignatureID + `">`)
	sb.WriteString(signedInfoXML)
	sb.WriteString(`<ds:SignatureValue>` + signatureValueB64 + `</ds:SignatureValue>`)

	// KeyInfo: cadena completa (firmante primero) + módulo y exponente RSA
	sb.WriteString(`<ds:KeyInfo><ds:X509Data>`)
	for _, c := range cred.Cadena {
		sb.WriteString(`<ds:X509Certificate>` + base64.StdEncoding.EncodeToString(c.Raw) + `</ds:X509Certificate>`)
	}
	sb.WriteString(`</ds:X509Data>`)
	pub := &cred.Llave.PublicKey
	sb.WriteString(`<ds:KeyValue><ds:RSAKeyValue>`)
	sb.WriteString(`<ds:Modulus>` + base64.StdEncoding.EncodeToString(pub.N.Bytes()) + `</ds:Modulus>`)
	sb.WriteString(`<ds:Exponent>` + base64.StdEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()) + `</ds:Exponent>`)
	sb.WriteString(`</ds:RSAKeyValue></ds:KeyValue>`)
	sb.WriteString(`</ds:KeyInfo>`)

	sb.WriteString(`<ds:Object><xades:QualifyingProperties Target="#` + SignatureID + `">`)
	sb.WriteString(signedPropsXML)
	sb.WriteString(`</xades:QualifyingProperties></ds:Object>`)
	sb.WriteString(`</ds:Signature>`)
	return sb.String()
}

// NombreEmisorOrdenNativo renderiza el DN del emisor del certificado en el
// orden en que viene en el certificado. pkix.Name.String() lo invierte (RFC
// 2253) y el SRI rechaza firmas con el orden invertido.
func NombreEmisorOrdenNativo(cert *x509.Certificate) string {
	var partes []string
	for _, atv := range cert.Issuer.Names {
		valor := fmt.Sprintf("%v", atv.Value)
		partes = append(partes, nombreAtributo(atv.Type)+"="+valor)
	}
	if len(partes) == 0 {
		return cert.Issuer.String()
	}
	return strings.Join(partes, ",")
}

func nombreAtributo(oid asn1.ObjectIdentifier) string {
	switch {
	case oid.Equal(asn1.ObjectIdentifier{2, 5, 4, 3}):
		return "CN"
	case oid.Equal(asn1.ObjectIdentifier{2, 5, 4, 11}):
		return "OU"
	case oid.Equal(asn1.ObjectIdentifier{2, 5, 4, 10}):
		return "O"
	case oid.Equal(asn1.ObjectIdentifier{2, 5, 4, 7}):
		return "L"
	case oid.Equal(asn1.ObjectIdentifier{2, 5, 4, 8}):
		return "ST"
	case oid.Equal(asn1.ObjectIdentifier{2, 5, 4, 6}):
		return "C"
	case oid.Equal(asn1.ObjectIdentifier{2, 5, 4, 5}):
		return "SERIALNUMBER"
	case oid.Equal(asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 1}):
		return "EMAILADDRESS"
	default:
		return oid.String()
	}
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}

// injectSignature parsea el XML y añade ds:Signature como último hijo del raíz.
func (s *ServicioFirma) injectSignature(xmlBytes []byte, signatureXML string) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("signer: parsear XML: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("signer: documento sin raíz")
	}

	sigDoc := etree.NewDocument()
	if err := sigDoc.ReadFromString(signatureXML); err != nil {
		return nil, fmt.Errorf("signer: parsear nodo Signature: %w", err)
	}
	sigRoot := sigDoc.Root()
	if sigRoot == nil {
		return nil, fmt.Errorf("signer: firma sin raíz")
	}
	root.AddChild(sigRoot)

	var out bytes.Buffer
	if _, err := doc.WriteTo(&out); err != nil {
		return nil, fmt.Errorf("signer: serializar XML firmado: %w", err)
	}
	return out.Bytes(), nil
}

var _ pkgsri.Firmador = (*ServicioFirma)(nil)
