package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dualsched/internal/importance"
	"dualsched/internal/sched"
)

// Response is the envelope of every API reply.
type Response struct {
	Code int         `json:"code"`    // business code
	Data interface{} `json:"data"`    // payload
	Msg  string      `json:"message"` // human readable outcome
}

// business codes
const (
	SUCCESS          = 0
	ERROR            = -1
	NOT_FOUND        = 40400
	VALIDATION_ERROR = 40001
	UNAVAILABLE      = 50300
)

var codeMessages = map[int]string{
	SUCCESS:          "ok",
	ERROR:            "failed",
	NOT_FOUND:        "not found",
	VALIDATION_ERROR: "invalid request",
	UNAVAILABLE:      "unavailable",
}

// Success writes a 200 reply.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code: SUCCESS,
		Data: data,
		Msg:  codeMessages[SUCCESS],
	})
}

// Error writes an error reply; msg names the violated constraint.
func Error(c *gin.Context, code int, msg string) {
	c.JSON(httpStatus(code), Response{
		Code: code,
		Data: nil,
		Msg:  msg,
	})
}

// Fail maps a domain error onto a business code.
func Fail(c *gin.Context, err error) {
	Error(c, codeFor(err), err.Error())
}

func codeFor(err error) int {
	switch {
	case errors.Is(err, sched.ErrUnknownTask), errors.Is(err, importance.ErrUnknownProcess):
		return NOT_FOUND
	case errors.Is(err, sched.ErrUnknownStrategy),
		errors.Is(err, sched.ErrInvalidClass),
		errors.Is(err, sched.ErrInvalidPolicy),
		errors.Is(err, sched.ErrInvalidTask),
		errors.Is(err, importance.ErrOverrideRange):
		return VALIDATION_ERROR
	default:
		return ERROR
	}
}

func httpStatus(code int) int {
	switch code {
	case NOT_FOUND:
		return http.StatusNotFound
	case VALIDATION_ERROR:
		return http.StatusBadRequest
	case UNAVAILABLE:
		return http.StatusServiceUnavailable
	case SUCCESS:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}
