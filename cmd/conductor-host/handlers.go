package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lyzr/composer/internal/ast"
	"github.com/lyzr/composer/internal/obslog"
)

// deployRequest is the wire shape accepted by POST /compositions/:name: a
// JSON-encoded ast.Node tree, the same shape internal/ast's Node marshals
// to/from.
type deployRequest struct {
	Composition json.RawMessage `json:"composition"`
}

// deployHandler encodes and registers a composition AST under :name.
// POST /compositions/:name
func deployHandler(h *host) echo.HandlerFunc {
	return func(c echo.Context) error {
		name := c.Param("name")
		if name == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "composition name is required"})
		}

		var req deployRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		}

		var root ast.Node
		if err := json.Unmarshal(req.Composition, &root); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid composition: %v", err)})
		}

		ctx := obslog.ContextWithTraceID(c.Request().Context(), c.Response().Header().Get(echo.HeaderXRequestID))
		enc, err := h.deploy(ctx, name, &root)
		if err != nil {
			h.log.Error("deploy failed", "name", name, "error", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}

		return c.JSON(http.StatusCreated, map[string]interface{}{
			"name":    name,
			"actions": enc.Actions,
		})
	}
}

// invokeHandler runs (or resumes) the named composition to a terminal result
// with the request body as params. POST /actions/:name/invoke
func invokeHandler(h *host) echo.HandlerFunc {
	return func(c echo.Context) error {
		name := c.Param("name")
		if name == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "action name is required"})
		}

		var params map[string]interface{}
		if err := c.Bind(&params); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		}

		ctx := obslog.ContextWithTraceID(c.Request().Context(), c.Response().Header().Get(echo.HeaderXRequestID))
		result, err := h.invoke(ctx, name, params)
		if err != nil {
			h.log.Error("invoke failed", "name", name, "error", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}

		// spec §6.4: a terminal result carries exactly one of params or error;
		// a malformed-request/internal failure carries code+message instead.
		if result.Message != "" {
			return c.JSON(result.Code, map[string]string{"error": result.Message})
		}
		if result.Error != nil {
			return c.JSON(http.StatusOK, map[string]interface{}{"error": result.Error})
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"params": result.Params})
	}
}
