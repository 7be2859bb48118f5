package appointment

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/telecare/telecare/internal/platform/auth"
	"github.com/telecare/telecare/pkg/apperrors"
)

// Handler exposes appointment operations over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// RegisterRoutes mounts the appointment endpoints on an authenticated group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/appointments", h.Book, auth.RequireRole(auth.RolePatient))
	g.GET("/appointments", h.List)
	g.GET("/appointments/:id", h.Get)
	g.PATCH("/appointments/:id", h.Update, auth.RequireRole(auth.RoleDoctor, auth.RoleAdmin))
}

func (h *Handler) Book(c echo.Context) error {
	var req BookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	view, err := h.svc.Book(ctx, auth.UserIDFromContext(ctx), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, view)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	view, err := h.svc.Get(ctx, callerFrom(c), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) List(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	ctx := c.Request().Context()
	views, err := h.svc.ListForCaller(ctx, callerFrom(c), limit, offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"appointments": views,
		"count":        len(views),
	})
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	view, err := h.svc.Update(ctx, callerFrom(c), id, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func callerFrom(c echo.Context) Caller {
	ctx := c.Request().Context()
	return Caller{UserID: auth.UserIDFromContext(ctx), Role: auth.RoleFromContext(ctx)}
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}
	return id, nil
}

func httpError(err error) error {
	var ae *apperrors.Error
	if errors.As(err, &ae) {
		return echo.NewHTTPError(ae.HTTPStatus(), ae.Message)
	}
	return err
}
