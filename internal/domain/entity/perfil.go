package entity

import "time"

// Perfil vincula un usuario del proveedor de identidad con su emisor.
// Un perfil sin emisor está pendiente de onboarding (activar RUC).
type Perfil struct {
	ID        string
	UserUID   string
	Email     string
	EmisorID  string // vacío hasta activar RUC
	CreatedAt time.Time
	UpdatedAt time.Time
}
