package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/behome-bridge/internal/bridge"
	"github.com/nerrad567/behome-bridge/internal/device"
	"github.com/nerrad567/behome-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/behome-bridge/internal/poller"
)

// maxQueryParamLen limits query parameter length to prevent DoS via oversized URL params.
const maxQueryParamLen = 100

// handleListDevices returns all devices, with optional query filters.
//
// Query parameters:
//   - platform: filter by platform (light, fan, climate, etc.)
//   - room: filter by suggested area name
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if platform := r.URL.Query().Get("platform"); platform != "" {
		if len(platform) > maxQueryParamLen {
			writeBadRequest(w, "platform exceeds maximum length")
			return
		}
		devices, err := s.registry.GetDevicesByPlatform(ctx, device.Platform(platform))
		if err != nil {
			writeInternalError(w, "failed to list devices")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
		return
	}

	if room := r.URL.Query().Get("room"); room != "" {
		if len(room) > maxQueryParamLen {
			writeBadRequest(w, "room exceeds maximum length")
			return
		}
		devices, err := s.registry.GetDevicesByRoom(ctx, room)
		if err != nil {
			writeInternalError(w, "failed to list devices")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
		return
	}

	// No filter: return all devices
	devices, err := s.registry.ListDevices(ctx)
	if err != nil {
		writeInternalError(w, "failed to list devices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, err := s.registry.GetDevice(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleDeviceStats returns device registry statistics.
func (s *Server) handleDeviceStats(w http.ResponseWriter, _ *http.Request) {
	stats := s.registry.GetStats()

	byPlatform := make(map[string]int, len(stats.ByPlatform))
	for platform, count := range stats.ByPlatform {
		byPlatform[string(platform)] = count
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total":       stats.TotalDevices,
		"by_platform": byPlatform,
		"online":      stats.Online,
		"offline":     stats.Offline,
	})
}

// handleGetDeviceState returns the current state of a device.
func (s *Server) handleGetDeviceState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, err := s.registry.GetDevice(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id":        dev.ID,
		"state":            dev.State,
		"raw_state":        dev.RawState,
		"online":           dev.Online,
		"state_updated_at": dev.StateUpdatedAt,
	})
}

// handleSendCommand dispatches a command to a device.
//
// This is an asynchronous operation: the command is published to the device's
// MQTT command topic, the bridge service translates and forwards it to the
// cloud, and the resulting state change arrives via WebSocket. The ack with
// the returned command_id is published on the device's ack topic.
func (s *Server) handleSendCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Verify the device exists and get its platform for topic routing
	dev, err := s.registry.GetDevice(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	var cmd bridge.Command
	if decodeErr := json.NewDecoder(r.Body).Decode(&cmd); decodeErr != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if cmd.Action == "" {
		writeBadRequest(w, "action field is required")
		return
	}
	if cmd.ID == "" {
		cmd.ID = uuid.New().String()
	}

	if s.mqtt == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "command dispatch unavailable")
		return
	}

	payload, marshalErr := json.Marshal(cmd)
	if marshalErr != nil {
		writeInternalError(w, "failed to encode command")
		return
	}

	topic := mqtt.Topics{}.DeviceCommand(string(dev.Platform), id)
	if pubErr := s.mqtt.Publish(topic, payload, 1, false); pubErr != nil {
		s.logger.Warn("command publish failed", "topic", topic, "error", pubErr)
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "command dispatch unavailable")
		return
	}

	s.logger.Info("device command dispatched",
		"device_id", id,
		"action", cmd.Action,
		"command_id", cmd.ID,
	)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"command_id": cmd.ID,
		"status":     "accepted",
		"message":    "command published, state update will follow via WebSocket",
	})
}

// handleRefreshDevices requests an immediate poll cycle.
func (s *Server) handleRefreshDevices(w http.ResponseWriter, _ *http.Request) {
	if err := s.poller.RefreshNow(); err != nil {
		if errors.Is(err, poller.ErrRefreshCooldown) {
			writeError(w, http.StatusTooManyRequests, "refresh_cooldown", "refresh requested too soon after the last cycle")
			return
		}
		writeInternalError(w, "failed to request refresh")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"status": "refresh requested"})
}
