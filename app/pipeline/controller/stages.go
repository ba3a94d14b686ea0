package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyaparbazaar/featurex/pkg/db/models"
	"github.com/vyaparbazaar/featurex/pkg/pipeline"
)

// HandleStagesList returns the stages in execution order with their
// dependencies.
func (c *Controller) HandleStagesList(w http.ResponseWriter, _ *http.Request) {
	type stageInfo struct {
		Stage     string   `json:"stage"`
		DependsOn []string `json:"depends_on"`
	}
	out := make([]stageInfo, 0, len(pipeline.StageOrder))
	for _, s := range pipeline.StageOrder {
		out = append(out, stageInfo{Stage: s, DependsOn: pipeline.Dependencies(s)})
	}
	_ = json.NewEncoder(w).Encode(out)
}

// HandleStageStatus returns the watermark, last run and last validation
// report for one stage.
func (c *Controller) HandleStageStatus(w http.ResponseWriter, r *http.Request) {
	stage := mux.Vars(r)["stage"]
	if !pipeline.KnownStage(stage) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unknown stage"})
		return
	}

	status, err := c.App.Engine.Status(r.Context(), stage)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	_ = json.NewEncoder(w).Encode(status)
}

// HandleStageRun triggers one stage run in the background. The mode query
// parameter selects full or incremental, defaulting to incremental.
func (c *Controller) HandleStageRun(w http.ResponseWriter, r *http.Request) {
	stage := mux.Vars(r)["stage"]
	if !pipeline.KnownStage(stage) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unknown stage"})
		return
	}
	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = models.ModeIncremental
	}
	if mode != models.ModeFull && mode != models.ModeIncremental {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "mode must be full or incremental"})
		return
	}

	// Outlives the request; the run report lands in run_history either way.
	runCtx := context.WithoutCancel(r.Context())
	go func() {
		if _, err := c.App.Engine.Run(runCtx, stage, mode); err != nil {
			if errors.Is(err, pipeline.ErrRunInProgress) {
				c.App.Logger.Warn("Run already in progress", zap.String("stage", stage))
				return
			}
			c.App.Logger.Error("Stage run failed",
				zap.String("stage", stage), zap.String("mode", mode), zap.Error(err))
		}
	}()

	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"stage": stage, "mode": mode, "status": "started"})
}

// HandleRunAll triggers a background run of every stage in dependency order.
func (c *Controller) HandleRunAll(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = models.ModeIncremental
	}
	if mode != models.ModeFull && mode != models.ModeIncremental {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "mode must be full or incremental"})
		return
	}

	runCtx := context.WithoutCancel(r.Context())
	go func() {
		if _, err := c.App.Engine.RunAll(runCtx, mode); err != nil {
			c.App.Logger.Error("Pipeline run finished with errors",
				zap.String("mode", mode), zap.Error(err))
		}
	}()

	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"mode": mode, "status": "started"})
}

// HandleRunsList returns recent runs, newest first.
func (c *Controller) HandleRunsList(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	runs, err := c.App.Engine.State.RecentRuns(r.Context(), limit)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	_ = json.NewEncoder(w).Encode(runs)
}
