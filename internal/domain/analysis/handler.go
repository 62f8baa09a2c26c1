package analysis

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/labread/labread/internal/domain/catalog"
	"github.com/labread/labread/internal/domain/extraction"
	"github.com/labread/labread/internal/domain/interpretation"
	"github.com/labread/labread/internal/platform/auth"
	"github.com/labread/labread/internal/platform/render"
	"github.com/labread/labread/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the analysis endpoints on api. upload middleware
// runs only on POST /analyze, after authentication.
func (h *Handler) RegisterRoutes(api *echo.Group, upload ...echo.MiddlewareFunc) {
	// Read endpoints – viewer, analyst
	readGroup := api.Group("", auth.RequireRole(auth.RoleViewer, auth.RoleAnalyst))
	readGroup.GET("/catalog", h.GetCatalog)
	readGroup.GET("/analyses", h.ListAnalyses)
	readGroup.GET("/analyses/:id", h.GetAnalysis)
	readGroup.GET("/analyses/:id/export", h.ExportAnalysis)

	// Write endpoints – analyst
	writeGroup := api.Group("", auth.RequireRole(auth.RoleAnalyst))
	writeGroup.POST("/analyze", h.Analyze, upload...)
	writeGroup.POST("/interpret", h.Interpret)
}

// -- Catalog --

type catalogResponse struct {
	Groups []string                 `json:"groups"`
	Tests  []catalog.TestDefinition `json:"tests"`
}

func (h *Handler) GetCatalog(c echo.Context) error {
	cat := h.svc.Catalog()
	return c.JSON(http.StatusOK, catalogResponse{Groups: cat.Groups(), Tests: cat.Tests()})
}

// -- Analyze --

func (h *Handler) Analyze(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return bodyError(err, "multipart field \"file\" is required")
	}

	var strategy extraction.Strategy
	if v := c.FormValue("strategy"); v != "" {
		if strategy, err = extraction.ParseStrategy(v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}

	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unable to read upload")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return bodyError(err, "unable to read upload")
	}

	rep, err := h.svc.Analyze(c.Request().Context(), filepath.Base(fh.Filename), data, strategy)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rep)
}

// -- Interpret --

type interpretRequest struct {
	Values map[string]float64 `json:"values"`
	Units  map[string]string  `json:"units,omitempty"`
}

func (h *Handler) Interpret(c echo.Context) error {
	var req interpretRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Values == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "values is required")
	}

	readings := make(map[string]interpretation.Reading, len(req.Values))
	for k, v := range req.Values {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "value keys must not be empty")
		}
		readings[key] = interpretation.Reading{Value: v, Unit: strings.ToLower(strings.TrimSpace(req.Units[k]))}
	}

	rep, err := h.svc.Interpret(c.Request().Context(), readings)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rep)
}

// -- Stored analyses --

func (h *Handler) ListAnalyses(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Summary{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c.Request().URL.Path))
}

func (h *Handler) GetAnalysis(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rep, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) ExportAnalysis(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	format, err := render.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rep, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}

	data, err := Export(rep, format)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", ExportFilename(rep, format)))
	return c.Blob(http.StatusOK, format.ContentType(), data)
}

// httpError maps service errors onto HTTP statuses.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrUnsupportedFileType), errors.Is(err, ErrEmptyInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrOCRFailed):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "analysis not found")
	case errors.Is(err, ErrStoreDisabled):
		return echo.NewHTTPError(http.StatusNotImplemented, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
}

// bodyError keeps size-limit failures as 413 and reports anything else as
// a bad request.
func bodyError(err error, msg string) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "upload too large")
	}
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}
