package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/username/bondflow/src/logger"
	"github.com/username/bondflow/src/models"
	"github.com/username/bondflow/src/processors"
	"github.com/username/bondflow/src/utils"
)

type ScheduleReader interface {
	GetSchedule(ctx context.Context, securityID int64) (models.Schedule, error)
}

type ScheduleHandler struct {
	store ScheduleReader
}

func NewScheduleHandler(store ScheduleReader) *ScheduleHandler {
	return &ScheduleHandler{store: store}
}

type scheduleResponse struct {
	models.Schedule
	FaceValueTrajectory []models.FaceValuePoint `json:"face_value_trajectory"`
}

func (h *ScheduleHandler) HandleGetSchedule(w http.ResponseWriter, r *http.Request) {
	secID, err := strconv.ParseInt(r.PathValue("secID"), 10, 64)
	if err != nil || secID <= 0 {
		utils.SendJSONError(w, "invalid security id", http.StatusBadRequest)
		return
	}

	schedule, err := h.store.GetSchedule(r.Context(), secID)
	if errors.Is(err, models.ErrNotFound) {
		utils.SendJSONError(w, "no schedule for this security", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).Error("Error loading schedule", "securityID", secID, "error", err)
		utils.SendJSONError(w, "failed to load schedule", http.StatusInternalServerError)
		return
	}

	resp := scheduleResponse{Schedule: schedule, FaceValueTrajectory: processors.ScheduleTrajectory(schedule)}
	if resp.FaceValueTrajectory == nil {
		resp.FaceValueTrajectory = []models.FaceValuePoint{}
	}
	writeJSONWithETag(w, r, resp)
}
