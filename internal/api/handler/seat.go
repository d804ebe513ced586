package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/place-seat-reservation/internal/domain/seat"
)

type SeatHandler struct {
	service SeatServiceInterface
}

func NewSeatHandler(s SeatServiceInterface) *SeatHandler {
	return &SeatHandler{service: s}
}

// ReserveSeatsRequest はリクエストボディ（ラベルのJSON配列）を検証用に包む
type ReserveSeatsRequest struct {
	Labels []string `validate:"dive,required,max=64"`
}

type SeatResponse struct {
	ID       int64  `json:"id" example:"1"`
	Label    string `json:"label" example:"2F-A3"`
	Reserved bool   `json:"reserved" example:"true"`
}

func toSeatResponse(s *seat.Seat) SeatResponse {
	return SeatResponse{ID: s.ID, Label: s.Label, Reserved: s.Reserved}
}

func toSeatResponses(seats []*seat.Seat) []SeatResponse {
	resp := make([]SeatResponse, len(seats))
	for i, s := range seats {
		resp[i] = toSeatResponse(s)
	}
	return resp
}

// List godoc
// @Summary 全座席を取得
// @Tags seats
// @Produce json
// @Success 200 {array} SeatResponse
// @Router /place/seats [get]
func (h *SeatHandler) List(c echo.Context) error {
	seats, err := h.service.GetAllSeats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSeatResponses(seats))
}

// ListReserved godoc
// @Summary 予約済み座席のラベル一覧
// @Tags seats
// @Produce json
// @Success 200 {array} string
// @Router /place/seats/reserved [get]
func (h *SeatHandler) ListReserved(c echo.Context) error {
	labels, err := h.service.GetReservedLabels(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, labels)
}

// GetByID godoc
// @Summary 座席を取得
// @Tags seats
// @Produce json
// @Param id path int true "座席ID"
// @Success 200 {object} SeatResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /place/seats/{id} [get]
func (h *SeatHandler) GetByID(c echo.Context) error {
	id, err := parseSeatID(c)
	if err != nil {
		return err
	}
	s, err := h.service.GetSeat(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSeatResponse(s))
}

// Reserve godoc
// @Summary 座席を一括予約
// @Description 指定した全座席を予約する。1席でも予約できなければ何も変更しない
// @Tags seats
// @Accept json
// @Produce json
// @Param request body []string true "座席ラベル"
// @Success 200 {array} SeatResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse "存在しない座席"
// @Failure 409 {object} api.ErrorResponse "座席が既に予約済み"
// @Router /place/seats/reserve [put]
func (h *SeatHandler) Reserve(c echo.Context) error {
	var req ReserveSeatsRequest
	if err := c.Bind(&req.Labels); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	seats, err := h.service.ReserveSeats(c.Request().Context(), req.Labels)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSeatResponses(seats))
}

// Cancel godoc
// @Summary 座席の予約を取り消す
// @Description 存在しないIDの場合は何もせず空のレスポンスを返す
// @Tags seats
// @Produce json
// @Param id path int true "座席ID"
// @Success 200 {object} SeatResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /place/seats/{id}/cancel [put]
func (h *SeatHandler) Cancel(c echo.Context) error {
	id, err := parseSeatID(c)
	if err != nil {
		return err
	}
	s, err := h.service.CancelReservation(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if s == nil {
		return c.NoContent(http.StatusOK)
	}
	return c.JSON(http.StatusOK, toSeatResponse(s))
}

func parseSeatID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "座席IDは数値で指定してください")
	}
	return id, nil
}
