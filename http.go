package auth

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Status int          `json:"status"`
	Errors []ErrorEntry `json:"errors"`
}

// DataResponse is the body of every successful request
type DataResponse struct {
	Status int `json:"status"`
	Data   any `json:"data,omitempty"`
}

var ErrInvalidBody = goerrors.New("Invalid request body", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode("INVALID_BODY")

var ErrRouteDisabled = goerrors.New("Route is not enabled", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound).
	WithTextCode("ROUTE_DISABLED")

// NewHTTPServer returns the fiber backed router. Errors that escape the
// route handlers are rendered by ErrorHandler.
func NewHTTPServer(appName string, logger Logger) router.Server[*fiber.App] {
	return router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		return fiber.New(fiber.Config{
			AppName:               appName,
			ErrorHandler:          ErrorHandler(logger),
			DisableStartupMessage: true,
		})
	})
}

// SendData writes data wrapped in the success envelope
func SendData(c router.Context, status int, data any) error {
	return c.JSON(status, DataResponse{
		Status: status,
		Data:   data,
	})
}

// SendError writes err in the error envelope. Anything that is not a
// client facing rich error is reported as ErrInternal.
func SendError(c router.Context, err error) error {
	richErr := PublicError(err)
	return c.JSON(richErr.Code, errorResponse(richErr))
}

func errorResponse(richErr *goerrors.Error) ErrorResponse {
	return ErrorResponse{
		Status: richErr.Code,
		Errors: ErrorEntries(richErr),
	}
}

// PublicError returns the error as it may be shown to a client
func PublicError(err error) *goerrors.Error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		if fiberErr.Code >= http.StatusInternalServerError {
			return ErrInternal
		}
		return goerrors.New(fiberErr.Message, goerrors.CategoryBadInput).
			WithCode(fiberErr.Code)
	}

	richErr := AsRichError(err)
	if richErr == nil {
		return ErrInternal
	}

	if richErr.Code == 0 || richErr.Code >= http.StatusInternalServerError {
		if richErr.TextCode == TextCodeEmailUnreachable {
			return richErr
		}
		return ErrInternal
	}

	return richErr
}

// logFailure records errors that are hidden behind ErrInternal
func logFailure(logger Logger, method, path string, err error) {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		logger.Error(
			"%s %s failed: %s [%s] %s",
			method, path, richErr.Message, richErr.Category,
			print.MaybePrettyJSON(richErr.Metadata),
		)
		return
	}
	logger.Error("%s %s failed: %v", method, path, err)
}

// ErrorHandler is the fiber error handler for the service. Internal errors
// are logged with their metadata and never leak to the client.
func ErrorHandler(logger Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = defLogger{}
	}

	return func(c *fiber.Ctx, err error) error {
		public := PublicError(err)
		if public == ErrInternal {
			logFailure(logger, c.Method(), c.Path(), err)
		}
		return c.Status(public.Code).JSON(errorResponse(public))
	}
}
