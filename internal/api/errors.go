package api

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"

	"spxbacktest/internal/gather"
	"spxbacktest/internal/strategy"
	"spxbacktest/pkg/spxbacktest"
)

// errorClass is how a backtest failure is reported on each transport.
type errorClass struct {
	status int        // HTTP status
	code   codes.Code // gRPC code
	wire   string     // spxbacktest.ErrorResponse.Code
}

// classify maps the backtest error taxonomy to transport codes.
func classify(err error) errorClass {
	var fe *gather.FetchError
	switch {
	case errors.Is(err, context.Canceled):
		return errorClass{http.StatusRequestTimeout, codes.Canceled, spxbacktest.CodeCanceled}
	case errors.Is(err, context.DeadlineExceeded):
		return errorClass{http.StatusGatewayTimeout, codes.DeadlineExceeded, spxbacktest.CodeCanceled}
	case errors.Is(err, strategy.ErrInvalidParameter),
		errors.Is(err, strategy.ErrInvalidDateRange),
		errors.Is(err, strategy.ErrInvalidSeries):
		return errorClass{http.StatusBadRequest, codes.InvalidArgument, spxbacktest.CodeInvalidArgument}
	case errors.Is(err, strategy.ErrInsufficientData):
		return errorClass{http.StatusUnprocessableEntity, codes.FailedPrecondition, spxbacktest.CodeInsufficientData}
	case errors.As(err, &fe):
		return errorClass{http.StatusBadGateway, codes.Unavailable, spxbacktest.CodeUpstream}
	default:
		return errorClass{http.StatusInternalServerError, codes.Internal, spxbacktest.CodeInternal}
	}
}
