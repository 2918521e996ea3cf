package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/crisanro/kipu-core/internal/application/dto"
	"github.com/crisanro/kipu-core/internal/application/facturacion"
	"github.com/crisanro/kipu-core/internal/domain/repository"
	domsri "github.com/crisanro/kipu-core/internal/domain/sri"
)

// PublicHandler descarga pública de artefactos por clave de acceso.
type PublicHandler struct {
	facturas repository.FacturaRepository
	storage  facturacion.ArtifactStore
}

// NewPublicHandler construye el handler.
func NewPublicHandler(facturas repository.FacturaRepository, storage facturacion.ArtifactStore) *PublicHandler {
	return &PublicHandler{facturas: facturas, storage: storage}
}

// PDF streamea la RIDE.
// GET /public/pdf/:clave
func (h *PublicHandler) PDF(c *fiber.Ctx) error {
	return h.stream(c, "application/pdf", true)
}

// XML streamea el comprobante (firmado o autorizado).
// GET /public/xml/:clave
func (h *PublicHandler) XML(c *fiber.Ctx) error {
	return h.stream(c, "application/xml", false)
}

func (h *PublicHandler) stream(c *fiber.Ctx, contentType string, pdf bool) error {
	clave := c.Params("clave")
	if err := domsri.ValidarClaveAcceso(clave); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "clave de acceso inválida"})
	}
	f, err := h.facturas.GetByClaveAcceso(clave)
	if err != nil {
		return responderError(c, err)
	}
	if f == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "comprobante no encontrado"})
	}
	ruta := f.XMLPath
	if pdf {
		ruta = f.PDFPath
	}
	if ruta == "" {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "artefacto no disponible"})
	}
	bucket, key, ok := partirRuta(ruta)
	if !ok {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "ruta de artefacto inválida"})
	}
	rc, err := h.storage.Get(c.Context(), bucket, key)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "artefacto no disponible"})
	}
	c.Set(fiber.HeaderContentType, contentType)
	return c.SendStream(rc)
}

func partirRuta(ruta string) (bucket, key string, ok bool) {
	for i := 0; i < len(ruta); i++ {
		if ruta[i] == '/' {
			if i == 0 || i == len(ruta)-1 {
				return "", "", false
			}
			return ruta[:i], ruta[i+1:], true
		}
	}
	return "", "", false
}
