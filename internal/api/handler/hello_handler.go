package handler

import (
	"math/rand/v2"
	"net/http"

	"github.com/labstack/echo/v4"
)

const greeting = "Hello World!"

type HelloHandler struct{}

func NewHelloHandler() *HelloHandler {
	return &HelloHandler{}
}

type helloResponse struct {
	Code    int32  `json:"code"`
	Message string `json:"message"`
}

// Text handles GET /hello.
//
// @Summary      Plain-text greeting
// @Tags         hello
// @Produce      plain
// @Success      200  {string}  string
// @Router       /hello [get]
func (h *HelloHandler) Text(c echo.Context) error {
	return c.String(http.StatusOK, greeting)
}

// JSON handles GET /hello/json; code is random on every call.
//
// @Summary      JSON greeting
// @Tags         hello
// @Produce      json
// @Success      200  {object}  helloResponse
// @Router       /hello/json [get]
func (h *HelloHandler) JSON(c echo.Context) error {
	return c.JSON(http.StatusOK, helloResponse{Code: rand.Int32(), Message: greeting})
}
