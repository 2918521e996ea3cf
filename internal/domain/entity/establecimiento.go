package entity

import "time"

// Establecimiento es una sucursal física del emisor. El código es de 3 dígitos
// y único por emisor.
type Establecimiento struct {
	ID        string
	EmisorID  string
	Codigo    string // 3 dígitos, ej: "001"
	Direccion string
	Nombre    string
	CreatedAt time.Time
}

// PuntoEmision es una caja registradora dentro de un establecimiento. El
// secuencial_actual avanza en exactamente 1 por cada asignación exitosa.
type PuntoEmision struct {
	ID                string
	EstablecimientoID string
	Codigo            string // 3 dígitos, ej: "100"
	SecuencialActual  int64
	CreatedAt         time.Time
}
