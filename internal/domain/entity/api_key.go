package entity

import "time"

// ApiKey credencial de integración de un emisor. Solo se almacena el hash
// SHA-256 de la clave cruda; el prefijo se guarda aparte para listados.
type ApiKey struct {
	ID         string
	EmisorID   string
	KeyHash    string // SHA-256 hex de la clave completa
	KeyPrefix  string // ej: "kp_live_a1b2c3d4"
	Nombre     string
	Revocada   bool
	LastUsedAt *time.Time
	CreatedAt  time.Time
}
