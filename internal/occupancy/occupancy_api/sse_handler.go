package occupancy_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"ms-seating/internal/logger"
	"ms-seating/internal/models"
	"ms-seating/internal/utils"
)

// SeatEventSource is the subscription side of sse.SeatEventEmitter.
type SeatEventSource interface {
	Subscribe(ctx context.Context) <-chan models.SeatStatusEvent
	SubscribeToSeat(ctx context.Context, seatID int64) <-chan models.SeatStatusEvent
}

// SSEHandler streams seat status changes as Server-Sent Events.
type SSEHandler struct {
	Logger    *logger.Logger
	Events    SeatEventSource
	Heartbeat time.Duration
}

func NewSSEHandler(log *logger.Logger, events SeatEventSource) *SSEHandler {
	return &SSEHandler{Logger: log, Events: events, Heartbeat: 25 * time.Second}
}

// HandleSeatStream streams every seat, or one seat with ?seat_id=.
func (h *SSEHandler) HandleSeatStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.WriteError(w, http.StatusInternalServerError, "Streaming unsupported", nil)
		return
	}

	ctx := r.Context()
	var events <-chan models.SeatStatusEvent
	scope := "all"
	if raw := r.URL.Query().Get("seat_id"); raw != "" {
		seatID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || seatID <= 0 {
			utils.WriteError(w, http.StatusBadRequest, "Invalid seat_id", err)
			return
		}
		events = h.Events.SubscribeToSeat(ctx, seatID)
		scope = raw
	} else {
		events = h.Events.Subscribe(ctx)
	}

	setupSSEHeaders(w)
	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"seat\":%q}\n\n", scope)
	flusher.Flush()
	h.Logger.Info("SSE", fmt.Sprintf("Client connected to seat events (%s)", scope))

	heartbeat := time.NewTicker(h.Heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize seat event: %v", err))
				continue
			}
			fmt.Fprintf(w, "event: seat\ndata: %s\n\n", data)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from seat events (%s)", scope))
			return
		}
	}
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}
