package dto

// CrearEstablecimientoRequest body para POST /structure/establishments.
type CrearEstablecimientoRequest struct {
	Codigo    string `json:"codigo"` // 3 dígitos
	Nombre    string `json:"nombre,omitempty"`
	Direccion string `json:"direccion,omitempty"`
}

// EstablecimientoResponse establecimiento en listados.
type EstablecimientoResponse struct {
	ID        string `json:"id"`
	Codigo    string `json:"codigo"`
	Nombre    string `json:"nombre,omitempty"`
	Direccion string `json:"direccion,omitempty"`
}

// CrearPuntoRequest body para POST /structure/issuing-points.
type CrearPuntoRequest struct {
	Establecimiento string `json:"establecimiento"` // código 3 dígitos
	Codigo          string `json:"codigo"`          // 3 dígitos
}

// PuntoResponse punto de emisión en listados.
type PuntoResponse struct {
	ID               string `json:"id"`
	Codigo           string `json:"codigo"`
	SecuencialActual int64  `json:"secuencial_actual"`
}

// ArbolEstructura vista jerárquica establecimiento -> puntos.
type ArbolEstructura struct {
	Establecimientos []ArbolEstablecimiento `json:"establecimientos"`
}

// ArbolEstablecimiento nodo del árbol.
type ArbolEstablecimiento struct {
	EstablecimientoResponse
	Puntos []PuntoResponse `json:"puntos"`
}

// ValidarPuntoRequest body para POST /structure/validate.
type ValidarPuntoRequest struct {
	Establecimiento string `json:"establecimiento"`
	PuntoEmision    string `json:"puntoEmision"`
}

// ValidarPuntoResponse indica si el par existe para el emisor.
type ValidarPuntoResponse struct {
	Valido bool `json:"valido"`
}
