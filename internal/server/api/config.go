package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ayusman/palak/internal/blink"
	"github.com/ayusman/palak/internal/store"
)

// Reconfigurer applies a blink config to the running detector. *app.App satisfies it.
type Reconfigurer interface {
	BlinkConfig() blink.Config
	Reconfigure(blink.Config) error
}

// ConfigHandler serves GET and PUT /api/config.
type ConfigHandler struct {
	store  *store.Store
	live   Reconfigurer
	logger *zap.Logger
}

// NewConfigHandler creates a ConfigHandler. Either s or live may be nil.
func NewConfigHandler(s *store.Store, live Reconfigurer, logger *zap.Logger) *ConfigHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfigHandler{store: s, live: live, logger: logger}
}

// ServeHTTP implements http.Handler.
func (h *ConfigHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPut:
		h.put(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// current prefers the running config, then the persisted one, then defaults.
func (h *ConfigHandler) current() (blink.Config, error) {
	if h.live != nil {
		return h.live.BlinkConfig(), nil
	}
	if h.store != nil {
		cfg, err := h.store.Settings().BlinkConfig()
		if err == nil {
			return cfg, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return blink.Config{}, err
		}
	}
	return blink.DefaultConfig(), nil
}

func (h *ConfigHandler) get(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.current()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load config")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// put merges the request body over the current config, so a partial
// document changes only the fields it names.
func (h *ConfigHandler) put(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.current()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load config")
		return
	}

	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Apply before persisting so a config the detector rejects is never
	// saved and replayed at the next startup.
	if h.live != nil && cfg != h.live.BlinkConfig() {
		if err := h.live.Reconfigure(cfg); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to apply config")
			return
		}
	}

	if h.store != nil {
		if err := h.store.Settings().SaveBlinkConfig(cfg); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save config")
			return
		}
	}

	h.logger.Info("blink config updated",
		zap.Int("window_size", cfg.WindowSize),
		zap.Float64("calibration_min", cfg.CalibrationMin),
		zap.Float64("closure_ratio", cfg.ClosureRatio),
		zap.Float64("initial_baseline", cfg.InitialBaseline),
	)
	writeJSON(w, http.StatusOK, cfg)
}
