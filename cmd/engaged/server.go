package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/outreachkit/engage"
	"github.com/outreachkit/engage/process"
	"github.com/outreachkit/engage/upsell"
)

// newHandler returns the daemon's HTTP API.
//
//	POST /alerts          ingest a usage alert, starting an engagement if
//	                      the usage exceeds the threshold
//	POST /replies         deliver an account's reply to its engagement
//	GET  /instances/{id}  inspect an engagement; ?wait=true blocks until it
//	                      reaches a terminal status
func newHandler(
	e *engage.Engine,
	threshold float64,
	logger logging.Logger,
) http.Handler {
	s := &server{
		engine:    e,
		threshold: threshold,
		logger:    logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/alerts", s.alerts)
	mux.HandleFunc("/replies", s.replies)
	mux.HandleFunc("/instances/", s.instances)

	return mux
}

type server struct {
	engine    *engage.Engine
	threshold float64
	logger    logging.Logger
}

type alertRequest struct {
	AccountID       string  `json:"account_id"`
	EventID         string  `json:"event_id"`
	MetricType      string  `json:"metric_type"`
	CurrentUsage    float64 `json:"current_usage"`
	Threshold       float64 `json:"threshold"`
	AutomationLevel string  `json:"automation_level"`
}

type alertResponse struct {
	Started    bool   `json:"started"`
	InstanceID string `json:"instance_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

func (s *server) alerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req alertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if req.AccountID == "" || req.EventID == "" {
		writeError(w, http.StatusBadRequest, "account_id and event_id are required")
		return
	}

	level, ok := automationLevel(req.AutomationLevel)
	if !ok {
		writeError(w, http.StatusBadRequest, "unrecognized automation_level")
		return
	}

	threshold := req.Threshold
	if threshold == 0 {
		threshold = s.threshold
	}

	if req.CurrentUsage <= threshold {
		writeJSON(w, http.StatusOK, alertResponse{
			Started: false,
			Reason:  "usage below threshold",
		})
		return
	}

	input := upsell.Input{
		AccountID:       req.AccountID,
		EventID:         req.EventID,
		AutomationLevel: level,
		MetricType:      req.MetricType,
	}

	id, err := s.engine.Start(
		r.Context(),
		upsell.ProcessType,
		input.BusinessKey(),
		upsell.NewRoot(input),
	)
	if err != nil {
		logging.Log(s.logger, "unable to start engagement: %s", err)
		writeError(w, http.StatusInternalServerError, "unable to start engagement")
		return
	}

	writeJSON(w, http.StatusAccepted, alertResponse{
		Started:    true,
		InstanceID: id,
	})
}

type replyRequest struct {
	AccountID string `json:"account_id"`
	EventID   string `json:"event_id"`
	Message   string `json:"message"`
}

type replyResponse struct {
	Accepted bool `json:"accepted"`
}

func (s *server) replies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req replyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if req.AccountID == "" || req.EventID == "" {
		writeError(w, http.StatusBadRequest, "account_id and event_id are required")
		return
	}

	input := upsell.Input{
		AccountID: req.AccountID,
		EventID:   req.EventID,
	}

	accepted, err := s.engine.SendSignal(
		r.Context(),
		input.BusinessKey(),
		upsell.SignalReply,
		req.Message,
	)
	if err != nil {
		logging.Log(s.logger, "unable to deliver reply: %s", err)
		writeError(w, http.StatusInternalServerError, "unable to deliver reply")
		return
	}

	status := http.StatusAccepted
	if !accepted {
		// Nothing is waiting for this reply. It may be early, late, or a
		// duplicate; either way it is rejected, not buffered.
		status = http.StatusConflict
	}

	writeJSON(w, status, replyResponse{
		Accepted: accepted,
	})
}

type instanceResponse struct {
	InstanceID    string       `json:"instance_id"`
	ProcessType   string       `json:"process_type"`
	BusinessKey   string       `json:"business_key"`
	Status        string       `json:"status"`
	CurrentStep   int          `json:"current_step"`
	History       []stepRecord `json:"history"`
	Result        string       `json:"result,omitempty"`
	FailureReason string       `json:"failure_reason,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

type stepRecord struct {
	Name     string `json:"name"`
	Output   string `json:"output,omitempty"`
	Skipped  bool   `json:"skipped,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`
	Attempts int    `json:"attempts,omitempty"`
}

func (s *server) instances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/instances/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	var (
		inst *process.Instance
		err  error
	)

	if waitForResult(r.URL.Query().Get("wait")) {
		inst, err = s.engine.GetResult(r.Context(), id)
	} else {
		inst, err = s.engine.Get(r.Context(), id)
	}

	if err != nil {
		if errors.Is(err, engage.ErrInstanceNotFound) {
			writeError(w, http.StatusNotFound, "no such instance")
			return
		}

		logging.Log(s.logger, "unable to load instance %s: %s", id, err)
		writeError(w, http.StatusInternalServerError, "unable to load instance")
		return
	}

	resp := instanceResponse{
		InstanceID:    inst.InstanceID,
		ProcessType:   inst.ProcessType,
		BusinessKey:   inst.BusinessKey,
		Status:        string(inst.Status),
		CurrentStep:   inst.CurrentStep,
		History:       make([]stepRecord, len(inst.History)),
		Result:        inst.Result,
		FailureReason: inst.FailureReason,
		CreatedAt:     inst.CreatedAt,
		UpdatedAt:     inst.UpdatedAt,
	}

	for i, rec := range inst.History {
		resp.History[i] = stepRecord{
			Name:     rec.Name,
			Output:   rec.Output,
			Skipped:  rec.Skipped,
			Fallback: rec.Fallback,
			Attempts: len(rec.Attempts),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// automationLevel parses the alert's automation level, defaulting to hybrid.
func automationLevel(v string) (upsell.AutomationLevel, bool) {
	switch upsell.AutomationLevel(v) {
	case "":
		return upsell.Hybrid, true
	case upsell.FullAutomation:
		return upsell.FullAutomation, true
	case upsell.HumanIntervention:
		return upsell.HumanIntervention, true
	case upsell.Hybrid:
		return upsell.Hybrid, true
	default:
		return "", false
	}
}

func waitForResult(v string) bool {
	switch v {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{message})
}
