package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNoEncontrado    = errors.New("recurso no encontrado")
	ErrEntradaInvalida = errors.New("entrada inválida")
	ErrDuplicado       = errors.New("recurso duplicado")
	ErrNoAutorizado    = errors.New("no autorizado")
	ErrProhibido       = errors.New("acceso denegado")
	ErrConflicto       = errors.New("conflicto con el estado actual")

	// Emisión de comprobantes
	ErrCreditosInsuficientes   = errors.New("créditos insuficientes")
	ErrFirmaFaltante           = errors.New("el emisor no tiene firma electrónica cargada")
	ErrFirmaExpirada           = errors.New("firma expirada")
	ErrFirmaInvalida           = errors.New("firma electrónica inválida o no descifrable")
	ErrRucNoCoincide           = errors.New("el RUC del certificado no coincide con el del emisor")
	ErrPuntoEmisionDesconocido = errors.New("punto de emisión desconocido")
	ErrTarifaDesconocida       = errors.New("tarifa de IVA no soportada")
)
