package httphandler

import (
	"github.com/gofiber/fiber/v2"
)

func (h *HttpHandler) Mount(router fiber.Router) error {
	r := router.Group("/v1/market")

	r.Get("/listings", h.GetListings)
	r.Post("/assets/batch", h.GetAssetsBatch)
	r.Get("/assets/:id", h.GetAsset)
	r.Get("/metadata/:hash", h.GetMetadata)
	r.Post("/metadata", h.PostMetadata)
	r.Post("/mint", h.PostMint)
	r.Post("/list", h.PostList)
	r.Post("/buy", h.PostBuy)
	r.Post("/cancel", h.PostCancel)
	return nil
}
