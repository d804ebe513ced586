package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/place-seat-reservation/internal/domain/seat"
	"github.com/sanosuguru/place-seat-reservation/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Error string   `json:"error"`
	Code  int      `json:"code,omitempty"`
	Seats []string `json:"seats,omitempty"`
}

// StatusOf はドメインエラーに対応するHTTPステータスを返す
func StatusOf(err error) int {
	switch {
	case errors.Is(err, seat.ErrInvalidRequest),
		errors.Is(err, seat.ErrSeatNotReserved),
		errors.Is(err, seat.ErrLabelRequired),
		errors.Is(err, seat.ErrLabelTooLong):
		return http.StatusBadRequest
	case errors.Is(err, seat.ErrSeatNotFound):
		return http.StatusNotFound
	case seat.IsConflict(err):
		return http.StatusConflict
	case errors.Is(err, seat.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// CustomHTTPErrorHandler はカスタムエラーハンドラー
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		code    = StatusOf(err)
		message = "内部サーバーエラー"
		labels  = seat.LabelsOf(err)
	)

	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	case code == http.StatusServiceUnavailable:
		message = seat.ErrStorageUnavailable.Error()
	case code < http.StatusInternalServerError:
		message = err.Error()
	}

	// エラーログを出力（5xx エラーの場合）
	if code >= 500 {
		logger.FromContext(c.Request().Context()).Error("サーバーエラー",
			zap.Int("status", code),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	// JSONレスポンスを返す
	if err := c.JSON(code, ErrorResponse{
		Error: message,
		Code:  code,
		Seats: labels,
	}); err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}
