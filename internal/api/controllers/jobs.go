package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v5"

	"github.com/datallboy/streamgrab/internal/app"
	"github.com/datallboy/streamgrab/internal/domain"
	"github.com/datallboy/streamgrab/internal/store"
)

const defaultHistoryLimit = 50

type JobsController struct {
	App *app.Context
}

// HandleStatus summarises the running batch.
func (ctrl *JobsController) HandleStatus(c *echo.Context) error {
	var resp StatusResponse
	if ctrl.App.Queue == nil {
		return c.JSON(http.StatusOK, resp)
	}

	for _, item := range ctrl.App.Queue.Items() {
		resp.Total++
		switch item.Status {
		case domain.StatusPending:
			resp.Pending++
		case domain.StatusCompleted:
			resp.Completed++
		case domain.StatusFailed:
			resp.Failed++
		}
	}

	if active, ok := ctrl.App.Queue.ActiveItem(); ok {
		resp.Active = &active
	}

	return c.JSON(http.StatusOK, resp)
}

// HandleList returns the live queue and, if a store is configured, recent history.
func (ctrl *JobsController) HandleList(c *echo.Context) error {
	resp := JobsResponse{Queue: []domain.QueueSnapshot{}}
	if ctrl.App.Queue != nil {
		resp.Queue = ctrl.App.Queue.Items()
	}

	if ctrl.App.Store != nil {
		limit := defaultHistoryLimit
		if raw := c.QueryParam("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a non-negative integer"})
			}
			limit = n
		}

		history, err := ctrl.App.Store.ListResults(c.Request().Context(), limit)
		if err != nil {
			ctrl.App.Logger.Error("Failed to list job history: %v", err)
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "could not read job history"})
		}
		resp.History = history
	}

	return c.JSON(http.StatusOK, resp)
}

// HandleGet looks a job up in the live queue first, then in the history.
func (ctrl *JobsController) HandleGet(c *echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing id"})
	}

	if ctrl.App.Queue != nil {
		if item, ok := ctrl.App.Queue.GetItem(id); ok {
			return c.JSON(http.StatusOK, item)
		}
	}

	if ctrl.App.Store != nil {
		res, err := ctrl.App.Store.GetResult(c.Request().Context(), id)
		if err == nil {
			return c.JSON(http.StatusOK, res)
		}
		if !errors.Is(err, store.ErrNotFound) {
			ctrl.App.Logger.Error("Failed to read job %s: %v", id, err)
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "could not read job history"})
		}
	}

	return c.JSON(http.StatusNotFound, ErrorResponse{Error: "job not found"})
}
