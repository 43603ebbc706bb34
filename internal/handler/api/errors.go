package api

import (
	"errors"

	"ChartDesk/internal/domain/models"
	xhttp "ChartDesk/pkg/http"
)

// toAppError maps domain errors onto stable API codes and statuses.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, models.ErrInvalidArgument):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrNoData):
		return xhttp.NotFoundError("no market data for the requested symbol").WithError(err)
	case models.IsUpstream(err):
		return xhttp.BadGatewayError("market data upstream unavailable").WithError(err)
	case errors.Is(err, models.ErrArchiveDisabled):
		return xhttp.ServiceUnavailableError("candle archive is not enabled").WithError(err)
	default:
		return xhttp.InternalError("internal error").WithError(err)
	}
}
