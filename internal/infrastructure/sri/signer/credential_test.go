package signer

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisanro/kipu-core/internal/domain"
	pkgsri "github.com/crisanro/kipu-core/pkg/sri"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers: certificados sintéticos con los KeyUsage de cada caso.
// ──────────────────────────────────────────────────────────────────────────────

func certConUso(t *testing.T, cn string, usage x509.KeyUsage, isCA bool, subjectSerial string) (*x509.Certificate, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	subject := pkix.Name{CommonName: cn}
	if subjectSerial != "" {
		subject.SerialNumber = subjectSerial
	}
	plantilla := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               subject,
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              usage,
		IsCA:                  isCA,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, plantilla, plantilla, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert, key
}

func TestSeleccionarCertificado_Prioridad(t *testing.T) {
	firma, _ := certConUso(t, "firma", x509.KeyUsageDigitalSignature|x509.KeyUsageContentCommitment, false, "")
	cifrado, _ := certConUso(t, "cifrado", x509.KeyUsageKeyEncipherment, false, "")
	ca, _ := certConUso(t, "ca", x509.KeyUsageCertSign, true, "")

	// Caso Banco Central: cifrado + firma + CA -> gana el de firma con
	// digitalSignature y nonRepudiation.
	elegido, err := seleccionarCertificado([]bolsaCert{
		{cert: cifrado}, {cert: firma}, {cert: ca},
	})
	require.NoError(t, err)
	assert.Equal(t, "firma", elegido.cert.Subject.CommonName)

	// Sin nonRepudiation: gana el que tenga digitalSignature
	soloDS, _ := certConUso(t, "solo-ds", x509.KeyUsageDigitalSignature, false, "")
	elegido, err = seleccionarCertificado([]bolsaCert{
		{cert: cifrado}, {cert: soloDS},
	})
	require.NoError(t, err)
	assert.Equal(t, "solo-ds", elegido.cert.Subject.CommonName)

	// Último recurso: primer no-CA
	elegido, err = seleccionarCertificado([]bolsaCert{
		{cert: ca}, {cert: cifrado},
	})
	require.NoError(t, err)
	assert.Equal(t, "cifrado", elegido.cert.Subject.CommonName)

	// Solo CA: no hay certificado de firma seleccionable
	_, err = seleccionarCertificado([]bolsaCert{{cert: ca}})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFirmaInvalida)
}

func TestSeleccionarLlave_Emparejamiento(t *testing.T) {
	cert, llaveFirma := certConUso(t, "firma", x509.KeyUsageDigitalSignature, false, "")
	_, llaveCifrado := certConUso(t, "cifrado", x509.KeyUsageKeyEncipherment, false, "")

	// Única llave: esa
	k, err := seleccionarLlave(&bolsaCert{cert: cert}, []bolsaLlave{{llave: llaveFirma}})
	require.NoError(t, err)
	assert.Equal(t, llaveFirma, k)

	// Por localKeyId
	k, err = seleccionarLlave(
		&bolsaCert{cert: cert, localKeyID: "02"},
		[]bolsaLlave{
			{llave: llaveCifrado, localKeyID: "01"},
			{llave: llaveFirma, localKeyID: "02"},
		})
	require.NoError(t, err)
	assert.Equal(t, llaveFirma, k)

	// Por friendlyName con "signing key"
	k, err = seleccionarLlave(
		&bolsaCert{cert: cert},
		[]bolsaLlave{
			{llave: llaveCifrado, friendlyName: "decryption key"},
			{llave: llaveFirma, friendlyName: "Signing Key de Juan"},
		})
	require.NoError(t, err)
	assert.Equal(t, llaveFirma, k)

	// Último recurso: la última bolsa (orden empírico: descifrado primero,
	// firma al final)
	k, err = seleccionarLlave(
		&bolsaCert{cert: cert},
		[]bolsaLlave{{llave: llaveCifrado}, {llave: llaveFirma}})
	require.NoError(t, err)
	assert.Equal(t, llaveFirma, k)

	// Sin llaves
	_, err = seleccionarLlave(&bolsaCert{cert: cert}, nil)
	assert.Error(t, err)
}

func TestExtraerRUC_SubjectSerialNumber(t *testing.T) {
	cert, _ := certConUso(t, "titular", x509.KeyUsageDigitalSignature, false, "RUC1790011674001EXT")
	assert.Equal(t, "1790011674001", ExtraerRUC(cert))

	sinRUC, _ := certConUso(t, "titular", x509.KeyUsageDigitalSignature, false, "")
	assert.Equal(t, "", ExtraerRUC(sinRUC))
}

func TestBuscarRUC(t *testing.T) {
	assert.Equal(t, "1790011674001", buscarRUC("x1790011674001y"))
	assert.Equal(t, "", buscarRUC("179001167400"), "12 dígitos no bastan")
	assert.Equal(t, "", buscarRUC("17900116740011"), "14 dígitos no es un RUC")
	assert.Equal(t, "0992645324001", buscarRUC("12 dígitos 179001167400 y luego 0992645324001"))
}

func TestValidarCredencial(t *testing.T) {
	cert, llave := certConUso(t, "titular", x509.KeyUsageDigitalSignature, false, "1790011674001")
	cred := &pkgsri.Credencial{
		Certificado: cert,
		Cadena:      []*x509.Certificate{cert},
		Llave:       llave,
		RUC:         ExtraerRUC(cert),
	}

	assert.NoError(t, ValidarCredencial(cred, "1790011674001", time.Now()))
	assert.ErrorIs(t, ValidarCredencial(cred, "0992645324001", time.Now()), domain.ErrRucNoCoincide)
	assert.ErrorIs(t, ValidarCredencial(cred, "1790011674001", time.Now().Add(2*365*24*time.Hour)), domain.ErrFirmaExpirada)
}
