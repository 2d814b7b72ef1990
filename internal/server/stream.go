package server

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/ayusman/palak/internal/capture"
)

// StreamHandler serves the pipeline's preview frames as MJPEG. It never reads
// the camera, so viewers cannot steal frames from blink detection.
type StreamHandler struct {
	preview *capture.Preview
	logger  *zap.Logger
}

// NewStreamHandler creates a new StreamHandler over preview.
func NewStreamHandler(preview *capture.Preview, logger *zap.Logger) *StreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamHandler{preview: preview, logger: logger}
}

// ServeHTTP streams each new preview frame until the client leaves.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	stop := h.preview.Watch()
	defer stop()

	var (
		seq  uint64
		sent int
	)
	defer func() {
		h.logger.Debug("mjpeg client left", zap.Int("frames", sent))
	}()

	for {
		data, next, err := h.preview.Next(r.Context(), seq)
		if err != nil {
			return
		}
		seq = next

		_, err = fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(data))
		if err == nil {
			_, err = w.Write(data)
		}
		if err == nil {
			_, err = fmt.Fprint(w, "\r\n")
		}
		if err != nil {
			return
		}
		sent++

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}
