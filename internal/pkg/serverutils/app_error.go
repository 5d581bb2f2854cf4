package serverutils

import "github.com/gofiber/fiber/v2"

// AppError carries an HTTP status alongside a caller-visible message.
type AppError struct {
	Status  int
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

func NewAppError(status int, message string) *AppError {
	return &AppError{Status: status, Message: message}
}

func NotFoundError(message string) *AppError {
	return NewAppError(fiber.StatusNotFound, message)
}

func BadRequestError(message string) *AppError {
	return NewAppError(fiber.StatusBadRequest, message)
}

func ConflictError(message string) *AppError {
	return NewAppError(fiber.StatusConflict, message)
}
