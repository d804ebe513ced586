package handler

import "github.com/labstack/echo/v4"

// RegisterSeatRoutes は /place 配下に座席APIを登録する
func RegisterSeatRoutes(e *echo.Echo, h *SeatHandler) {
	place := e.Group("/place")
	place.GET("/seats", h.List)
	place.GET("/seats/reserved", h.ListReserved)
	place.GET("/seats/:id", h.GetByID)
	place.PUT("/seats/reserve", h.Reserve)
	place.PUT("/seats/:id/cancel", h.Cancel)
}
