package api

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"wandbridge/internal/bridge"
	"wandbridge/internal/wand"
)

// WandHandler handles wand control endpoints. Calibration, macro and
// reset actions are audited by the bridge itself.
type WandHandler struct {
	bridge *bridge.Bridge
}

// NewWandHandler creates new wand handler
func NewWandHandler(br *bridge.Bridge) *WandHandler {
	return &WandHandler{bridge: br}
}

// StatusResponse describes the current wand connection
type StatusResponse struct {
	Connected    bool               `json:"connected"`
	Info         *wand.Info         `json:"info,omitempty"`
	Battery      *int               `json:"battery,omitempty"`
	BatteryState *wand.BatteryState `json:"batteryState,omitempty"`
	Mode         string             `json:"mode"`
}

// Status handles GET /api/wand/status
func (h *WandHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Connected: h.bridge.Connected(),
		Mode:      h.bridge.Mode(),
	}

	if resp.Connected {
		if info, err := h.bridge.WandInfo(); err == nil {
			resp.Info = &info
		}
		if level, err := h.bridge.Battery(); err == nil {
			state := wand.BatteryStateFromLevel(level)
			resp.Battery = &level
			resp.BatteryState = &state
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// SpellEntry pairs a spell's canonical name with its display name
type SpellEntry struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// Spells handles GET /api/wand/spells
func (h *WandHandler) Spells(w http.ResponseWriter, r *http.Request) {
	spells := make([]SpellEntry, len(wand.Spells))
	for i, s := range wand.Spells {
		spells[i] = SpellEntry{Name: s.Name, DisplayName: s.DisplayName()}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"spells": spells})
}

// Calibrate handles POST /api/wand/calibrate
// Runs the factory touch-pad calibration sequence; the wand must be held
// untouched while it runs.
func (h *WandHandler) Calibrate(w http.ResponseWriter, r *http.Request) {
	if err := h.bridge.Calibrate(r.Context()); err != nil {
		h.writeWandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// BuzzRequest represents buzz request body
type BuzzRequest struct {
	DurationMs uint16 `json:"durationMs"`
}

// Buzz handles POST /api/wand/buzz
func (h *WandHandler) Buzz(w http.ResponseWriter, r *http.Request) {
	req := BuzzRequest{DurationMs: 100}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
			return
		}
	}

	if err := h.bridge.Buzz(r.Context(), req.DurationMs); err != nil {
		h.writeWandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// LEDRequest represents LED request body
type LEDRequest struct {
	Group      byte   `json:"group"`
	R          byte   `json:"r"`
	G          byte   `json:"g"`
	B          byte   `json:"b"`
	DurationMs uint16 `json:"durationMs"`
}

// LED handles POST /api/wand/led
func (h *WandHandler) LED(w http.ResponseWriter, r *http.Request) {
	var req LEDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	if req.Group > byte(wand.LEDPommel) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "LED group must be 0-3"})
		return
	}

	color := wand.Color{R: req.R, G: req.G, B: req.B}
	if err := h.bridge.SetLED(r.Context(), wand.LEDGroup(req.Group), color, req.DurationMs); err != nil {
		h.writeWandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ClearLights handles POST /api/wand/lights/clear
func (h *WandHandler) ClearLights(w http.ResponseWriter, r *http.Request) {
	if err := h.bridge.ClearLights(r.Context()); err != nil {
		h.writeWandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// MacroRequest represents macro request body; steps are hex-encoded
// macro step bytes without the leading control opcode
type MacroRequest struct {
	Steps string `json:"steps"`
}

// Macro handles POST /api/wand/macro
func (h *WandHandler) Macro(w http.ResponseWriter, r *http.Request) {
	var req MacroRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	steps, err := hex.DecodeString(req.Steps)
	if err != nil || len(steps) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Steps must be a non-empty hex string"})
		return
	}

	if err := h.bridge.PlayMacro(r.Context(), steps); err != nil {
		h.writeWandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// PayoffRequest represents payoff request body
type PayoffRequest struct {
	Spell string `json:"spell"`
}

// Payoff handles POST /api/wand/payoff
// Plays the light and haptic effect of a spell without casting it.
func (h *WandHandler) Payoff(w http.ResponseWriter, r *http.Request) {
	var req PayoffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	if _, ok := wand.SpellByName(req.Spell); !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Unknown spell: " + req.Spell})
		return
	}

	if err := h.bridge.PlaySpellPayoff(r.Context(), req.Spell); err != nil {
		h.writeWandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Reset handles POST /api/wand/reset
func (h *WandHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.bridge.Reset(r.Context()); err != nil {
		h.writeWandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// writeWandError maps bridge errors to HTTP status codes
func (h *WandHandler) writeWandError(w http.ResponseWriter, err error) {
	if errors.Is(err, bridge.ErrNotConnected) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "No wand connected"})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}
