// Constantes para firma XAdES-BES según la Ficha Técnica de Comprobantes
// Electrónicos del SRI.

package signer

// Namespaces y algoritmos XMLDSig / XAdES.
const (
	NamespaceDS    = "http://www.w3.org/2000/09/xmldsig#"
	NamespaceXAdES = "http://uri.etsi.org/01903/v1.3.2#"

	AlgC14N            = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	AlgRSASHA256       = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	AlgSHA256          = "http://www.w3.org/2001/04/xmlenc#sha256"
	TransformEnveloped = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"

	// TipoSignedProperties es el Type exacto de la Reference a SignedProperties;
	// el perfil del SRI lo exige sin sufijo de versión.
	TipoSignedProperties = "http://uri.etsi.org/01903#SignedProperties"
)

// IDs de los nodos de la firma. La Reference principal apunta al elemento
// raíz <factura id="comprobante">.
const (
	ComprobanteID       = "comprobante"
	SignatureID         = "Signature"
	SignedPropertiesID  = "Signature-SignedProperties"
	SignedInfoReference = "#" + ComprobanteID
)
