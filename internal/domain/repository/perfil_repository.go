package repository

import "github.com/crisanro/kipu-core/internal/domain/entity"

// PerfilRepository puerto de perfiles del proveedor de identidad.
type PerfilRepository interface {
	Create(p *entity.Perfil) error
	GetByUID(userUID string) (*entity.Perfil, error)
	VincularEmisor(userUID, emisorID string) error
}
