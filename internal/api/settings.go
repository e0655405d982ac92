package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"wandbridge/internal/auth"
	"wandbridge/internal/config"
	"wandbridge/internal/events"
	"wandbridge/internal/wand"
)

// SettingsHandler handles runtime settings endpoints
type SettingsHandler struct {
	config     *config.Config
	eventStore *events.Store
}

// NewSettingsHandler creates new settings handler
func NewSettingsHandler(cfg *config.Config, eventStore *events.Store) *SettingsHandler {
	return &SettingsHandler{config: cfg, eventStore: eventStore}
}

// SettingsResponse is the current settings snapshot
type SettingsResponse struct {
	CastingColor       string   `json:"castingColor"`
	CastingColors      []string `json:"castingColors"`
	PayoffEnabled      bool     `json:"payoffEnabled"`
	SpellTimeout       string   `json:"spellTimeout"`
	DetectionThreshold float32  `json:"detectionThreshold"`
}

// SettingsUpdateRequest carries partial settings updates; nil fields are
// left unchanged
type SettingsUpdateRequest struct {
	CastingColor       *string  `json:"castingColor"`
	PayoffEnabled      *bool    `json:"payoffEnabled"`
	SpellTimeout       *string  `json:"spellTimeout"`
	DetectionThreshold *float32 `json:"detectionThreshold"`
}

// Get handles GET /api/settings
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.snapshot())
}

// Update handles POST /api/settings
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req SettingsUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	var changed []string

	if req.CastingColor != nil {
		if _, ok := wand.CastingColors[*req.CastingColor]; !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Unknown casting color: " + *req.CastingColor})
			return
		}
		if err := h.config.SetCastingColor(*req.CastingColor); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to save settings"})
			return
		}
		changed = append(changed, "castingColor="+*req.CastingColor)
	}

	if req.PayoffEnabled != nil {
		if err := h.config.SetPayoffEnabled(*req.PayoffEnabled); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to save settings"})
			return
		}
		changed = append(changed, fmt.Sprintf("payoffEnabled=%v", *req.PayoffEnabled))
	}

	if req.SpellTimeout != nil {
		d, err := time.ParseDuration(*req.SpellTimeout)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid spell timeout duration"})
			return
		}
		if err := h.config.SetSpellTimeout(d); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		changed = append(changed, "spellTimeout="+d.String())
	}

	if req.DetectionThreshold != nil {
		if err := h.config.SetDetectionThreshold(*req.DetectionThreshold); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		changed = append(changed, fmt.Sprintf("detectionThreshold=%v", *req.DetectionThreshold))
	}

	if len(changed) > 0 {
		username := ""
		if user := auth.GetUserFromContext(r.Context()); user != nil {
			username = user.Username
		}
		h.eventStore.Add(events.EventSettingsChange, username, getClientIP(r), true, strings.Join(changed, ", "))
	}

	writeJSON(w, http.StatusOK, h.snapshot())
}

func (h *SettingsHandler) snapshot() SettingsResponse {
	return SettingsResponse{
		CastingColor:       h.config.CastingColor(),
		CastingColors:      wand.CastingColorNames(),
		PayoffEnabled:      h.config.PayoffEnabled(),
		SpellTimeout:       h.config.SpellTimeout().String(),
		DetectionThreshold: h.config.DetectionThreshold(),
	}
}
