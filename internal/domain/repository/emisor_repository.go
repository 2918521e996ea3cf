package repository

import (
	"time"

	"github.com/crisanro/kipu-core/internal/domain/entity"
)

// EmisorRepository puerto de persistencia de emisores.
type EmisorRepository interface {
	Create(e *entity.Emisor) error
	GetByID(id string) (*entity.Emisor, error)
	GetByRUC(ruc string) (*entity.Emisor, error)
	GetByUserUID(userUID string) (*entity.Emisor, error)
	// UpdateConfig actualiza ambiente, nombre comercial y dirección matriz.
	UpdateConfig(e *entity.Emisor) error
	// UpdateFirma registra el certificado cargado (ruta, contraseña cifrada, expiración).
	UpdateFirma(id, p12Path, p12PasswordCifrada string, expiracion time.Time) error
}
