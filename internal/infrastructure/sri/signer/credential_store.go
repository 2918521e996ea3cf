package signer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/crisanro/kipu-core/internal/domain"
	"github.com/crisanro/kipu-core/internal/domain/entity"
	pkgsri "github.com/crisanro/kipu-core/pkg/sri"
)

// DescargadorArtefactos es el subconjunto del object store que necesita el
// almacén de credenciales.
type DescargadorArtefactos interface {
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// AlmacenCredenciales descarga el .p12 del emisor, descifra su contraseña y
// selecciona el material de firma. El contenedor se abre fresco en cada firma;
// no se cachea la llave descifrada.
type AlmacenCredenciales struct {
	store        DescargadorArtefactos
	masterSecret string
}

// NewAlmacenCredenciales construye el almacén.
func NewAlmacenCredenciales(store DescargadorArtefactos, masterSecret string) *AlmacenCredenciales {
	return &AlmacenCredenciales{store: store, masterSecret: masterSecret}
}

// Abrir devuelve la credencial de firma del emisor lista para usar, validando
// vigencia y coincidencia de RUC.
func (a *AlmacenCredenciales) Abrir(ctx context.Context, emisor *entity.Emisor) (*pkgsri.Credencial, error) {
	if emisor.P12Path == "" {
		return nil, domain.ErrFirmaFaltante
	}
	bucket, key, err := partirRuta(emisor.P12Path)
	if err != nil {
		return nil, err
	}

	password, err := DescifrarPassword(a.masterSecret, emisor.P12Password)
	if err != nil {
		return nil, err
	}

	rc, err := a.store.Get(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("signer: descargar p12 %s: %w", emisor.P12Path, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("signer: leer p12: %w", err)
	}

	cred, err := AbrirP12(data, password)
	if err != nil {
		return nil, err
	}
	if err := ValidarCredencial(cred, emisor.RUC, time.Now()); err != nil {
		return nil, err
	}
	return cred, nil
}

// partirRuta separa la ruta canónica "<bucket>/<key>" del object store.
func partirRuta(ruta string) (bucket, key string, err error) {
	idx := strings.Index(ruta, "/")
	if idx <= 0 || idx == len(ruta)-1 {
		return "", "", fmt.Errorf("signer: ruta de artefacto inválida %q", ruta)
	}
	return ruta[:idx], ruta[idx+1:], nil
}
