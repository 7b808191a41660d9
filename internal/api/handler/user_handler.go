package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/user-registry/internal/api/metrics"
	"github.com/99minutos/user-registry/internal/core/domain"
	"github.com/99minutos/user-registry/internal/core/ports"
)

// UserHandler handles HTTP requests for user registration and lookup.
// Errors are returned to the central HTTP error handler.
type UserHandler struct {
	service       ports.UserService
	batch         ports.BatchRegistrar
	metrics       *metrics.Metrics
	maxBatchItems int
}

func NewUserHandler(service ports.UserService, batch ports.BatchRegistrar, m *metrics.Metrics, maxBatchItems int) *UserHandler {
	return &UserHandler{
		service:       service,
		batch:         batch,
		metrics:       m,
		maxBatchItems: maxBatchItems,
	}
}

// --- Request / Response types ---

type batchRequest struct {
	Users []domain.CreateUserRequest `json:"users" validate:"required,min=1"`
}

type batchItemResponse struct {
	Index      int                `json:"index"`
	User       *domain.User       `json:"user,omitempty"`
	Error      string             `json:"error,omitempty"`
	Field      string             `json:"field,omitempty"`
	Violations []domain.Violation `json:"violations,omitempty"`
}

type batchResponse struct {
	Results []batchItemResponse `json:"results"`
}

// List handles GET /user.
//
// @Summary      List all users
// @Tags         users
// @Produce      json
// @Success      200  {array}   domain.User
// @Failure      503  {object}  ErrorResponse
// @Router       /user [get]
func (h *UserHandler) List(c echo.Context) error {
	users, err := h.service.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

// Create handles POST /user.
//
// @Summary      Register a new user
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      domain.CreateUserRequest  true  "User registration details"
// @Success      201   {object}  domain.User
// @Failure      400   {object}  ErrorResponse
// @Failure      409   {object}  ErrorResponse
// @Failure      503   {object}  ErrorResponse
// @Router       /user [post]
func (h *UserHandler) Create(c echo.Context) error {
	var req domain.CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	user, err := h.service.Register(c.Request().Context(), req)
	h.metrics.ObserveRegistration(err)
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderLocation, "/user/"+user.Username)
	return c.JSON(http.StatusCreated, user)
}

// FindByUsername handles GET /user/:username.
//
// @Summary      Get a user by username
// @Tags         users
// @Produce      json
// @Param        username  path      string  true  "Username (case-sensitive)"
// @Success      200       {object}  domain.User
// @Failure      404       {object}  ErrorResponse
// @Failure      503       {object}  ErrorResponse
// @Router       /user/{username} [get]
func (h *UserHandler) FindByUsername(c echo.Context) error {
	user, err := h.service.FindByUsername(c.Request().Context(), c.Param("username"))
	h.metrics.ObserveLookup(err)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// GetByID handles GET /user/id/:id.
//
// @Summary      Get a user by id
// @Tags         users
// @Produce      json
// @Param        id   path      int  true  "User id"
// @Success      200  {object}  domain.User
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      503  {object}  ErrorResponse
// @Router       /user/id/{id} [get]
func (h *UserHandler) GetByID(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "id must be a positive integer")
	}

	user, err := h.service.Get(c.Request().Context(), id)
	h.metrics.ObserveLookup(err)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// Batch handles POST /user/batch. Every item is registered independently;
// the response carries one outcome per item in input order.
//
// @Summary      Register several users
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      batchRequest  true  "Users to register"
// @Success      200   {object}  batchResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      503   {object}  ErrorResponse
// @Router       /user/batch [post]
func (h *UserHandler) Batch(c echo.Context) error {
	var req batchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.Users) > h.maxBatchItems {
		return echo.NewHTTPError(http.StatusBadRequest, "users must contain at most "+strconv.Itoa(h.maxBatchItems)+" items")
	}

	start := time.Now()
	h.metrics.BatchSize.Observe(float64(len(req.Users)))

	results, err := h.batch.Submit(c.Request().Context(), req.Users)
	if err != nil {
		return err
	}
	h.metrics.BatchDuration.Observe(time.Since(start).Seconds())

	resp := batchResponse{Results: make([]batchItemResponse, 0, len(results))}
	for _, r := range results {
		h.metrics.ObserveRegistration(r.Err)
		resp.Results = append(resp.Results, toBatchItem(r))
	}
	return c.JSON(http.StatusOK, resp)
}

func toBatchItem(r ports.RegistrationResult) batchItemResponse {
	item := batchItemResponse{Index: r.Index, User: r.User}
	if r.Err == nil {
		return item
	}

	var (
		verr     *domain.ValidationError
		conflict *domain.ConflictError
	)
	switch {
	case errors.As(r.Err, &verr):
		item.Error = "validation failed"
		item.Violations = verr.Violations
	case errors.As(r.Err, &conflict):
		item.Error = conflict.Error()
		item.Field = conflict.Field
	case errors.Is(r.Err, domain.ErrStorage):
		item.Error = "storage unavailable"
	default:
		item.Error = "internal server error"
	}
	return item
}
