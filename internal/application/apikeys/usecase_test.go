package apikeys_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisanro/kipu-core/internal/application/apikeys"
	"github.com/crisanro/kipu-core/internal/application/dto"
	"github.com/crisanro/kipu-core/internal/domain"
	"github.com/crisanro/kipu-core/internal/domain/entity"
)

type fakeApiKeyRepo struct {
	porHash map[string]*entity.ApiKey
}

func (f *fakeApiKeyRepo) Create(k *entity.ApiKey) error {
	f.porHash[k.KeyHash] = k
	return nil
}

func (f *fakeApiKeyRepo) ListByEmisor(emisorID string) ([]*entity.ApiKey, error) {
	var out []*entity.ApiKey
	for _, k := range f.porHash {
		if k.EmisorID == emisorID {
			out = append(out, k)
		}
	}
	return out, nil
}

func (f *fakeApiKeyRepo) GetActivaByHash(hash string) (*entity.ApiKey, error) {
	k, ok := f.porHash[hash]
	if !ok || k.Revocada {
		return nil, nil
	}
	return k, nil
}

func (f *fakeApiKeyRepo) Revocar(id, emisorID string) (bool, error) {
	for _, k := range f.porHash {
		if k.ID == id && k.EmisorID == emisorID {
			k.Revocada = true
			return true, nil
		}
	}
	return false, nil
}

var formatoClave = regexp.MustCompile(`^kp_live_[0-9a-f]{48}$`)

func TestCrear_FormatoYHash(t *testing.T) {
	repo := &fakeApiKeyRepo{porHash: map[string]*entity.ApiKey{}}
	uc := apikeys.NewApiKeysUseCase(repo)

	creada, err := uc.Crear(context.Background(), "emisor-1", dto.CrearApiKeyRequest{Nombre: "erp"})
	require.NoError(t, err)

	assert.Regexp(t, formatoClave, creada.Key, "formato kp_live_<48 hex>")
	assert.True(t, len(creada.Prefix) < len(creada.Key), "el prefijo es un recorte de la clave")
	assert.Equal(t, creada.Key[:len(creada.Prefix)], creada.Prefix)

	// Solo se persiste el hash SHA-256, nunca la clave cruda
	hash := sha256.Sum256([]byte(creada.Key))
	almacenada, ok := repo.porHash[hex.EncodeToString(hash[:])]
	require.True(t, ok, "la clave se indexa por su hash")
	assert.NotContains(t, almacenada.KeyHash, creada.Key)
	assert.Equal(t, "erp", almacenada.Nombre)
}

func TestAutenticar_RoundTrip(t *testing.T) {
	repo := &fakeApiKeyRepo{porHash: map[string]*entity.ApiKey{}}
	uc := apikeys.NewApiKeysUseCase(repo)

	creada, err := uc.Crear(context.Background(), "emisor-1", dto.CrearApiKeyRequest{Nombre: "erp"})
	require.NoError(t, err)

	k, err := uc.Autenticar(context.Background(), creada.Key)
	require.NoError(t, err)
	assert.Equal(t, "emisor-1", k.EmisorID)

	// Clave desconocida
	_, err = uc.Autenticar(context.Background(), "kp_live_000000000000000000000000000000000000000000000000")
	assert.ErrorIs(t, err, domain.ErrNoAutorizado)

	// Revocada
	require.NoError(t, uc.Revocar(context.Background(), "emisor-1", creada.ID))
	_, err = uc.Autenticar(context.Background(), creada.Key)
	assert.ErrorIs(t, err, domain.ErrNoAutorizado)
}

func TestCrear_NombreObligatorio(t *testing.T) {
	uc := apikeys.NewApiKeysUseCase(&fakeApiKeyRepo{porHash: map[string]*entity.ApiKey{}})
	_, err := uc.Crear(context.Background(), "emisor-1", dto.CrearApiKeyRequest{})
	assert.ErrorIs(t, err, domain.ErrEntradaInvalida)
}
