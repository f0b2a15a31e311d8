// Package server exposes the transfer pipeline over HTTP: a multipart
// submit endpoint, model metadata, and a WebSocket stream of progress
// milestones. Gallery browsing and remote import live elsewhere; this
// surface is deliberately thin.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"hairshop/internal/imaging"
	"hairshop/internal/transfer"
)

const maxUploadBytes = 32 << 20

// Server wraps the HTTP surface around a transfer service.
type Server struct {
	addr     string
	svc      *transfer.Service
	log      *slog.Logger
	hub      *progressHub
	upgrader websocket.Upgrader
	server   *http.Server
}

// New creates a server listening on addr.
func New(addr string, svc *transfer.Service, log *slog.Logger) *Server {
	return &Server{
		addr: addr,
		svc:  svc,
		log:  log,
		hub:  newProgressHub(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Start runs the server until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.run()

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	r.HandleFunc("/api/model", s.handleModel).Methods("GET")
	r.HandleFunc("/api/styles", s.handleStyles).Methods("GET")
	r.HandleFunc("/api/transfer", s.handleTransfer).Methods("POST")
	r.HandleFunc("/ws/progress", s.handleProgress).Methods("GET")

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: r,
	}

	go func() {
		<-ctx.Done()
		s.log.Info("Shutting down server...")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(ctxShutdown)
	}()

	s.log.Info("Server starting", "addr", s.addr)
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.ModelInfo())
}

func (s *Server) handleStyles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"styles":         transfer.Styles(),
		"smoothness_min": transfer.MinSmoothness,
		"smoothness_max": transfer.MaxSmoothness,
	})
}

// handleTransfer accepts a multipart form with face and hair image
// files plus style/smoothness/enhance fields, runs the pipeline, and
// responds with the result PNG or a classified JSON failure.
func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("ValidationError", "invalid multipart form: "+err.Error(), ""))
		return
	}

	req, err := s.requestFromForm(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("ValidationError", err.Error(), ""))
		return
	}

	res := s.svc.Transfer(r.Context(), req, func(fraction float64, description string) {
		s.hub.publish(progressEvent{Fraction: fraction, Description: description})
	})
	if res.Failed() {
		status := http.StatusUnprocessableEntity
		if res.Err.Kind == transfer.KindValidation {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, errorBody(string(res.Err.Kind), res.Err.Message, res.Log))
		return
	}

	stats := imaging.Summarize(res.Image)
	s.log.Debug("transfer result",
		"width", stats.Width, "height", stats.Height, "mean", stats.Mean)

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Transfer-Log", strconv.Quote(res.Log))
	if err := png.Encode(w, res.Image); err != nil {
		s.log.Error("failed to write result image", "error", err)
	}
}

func (s *Server) requestFromForm(r *http.Request) (transfer.Request, error) {
	defaults := s.svc.Defaults()
	req := transfer.Request{
		Style:      transfer.Style(defaults.Style),
		Smoothness: defaults.Smoothness,
	}

	face, err := decodeFormImage(r, "face")
	if err != nil {
		return req, err
	}
	hair, err := decodeFormImage(r, "hair")
	if err != nil {
		return req, err
	}
	req.Face = face
	req.Hair = hair

	if v := r.FormValue("style"); v != "" {
		style, err := transfer.ParseStyle(v)
		if err != nil {
			return req, err
		}
		req.Style = style
	}
	if v := r.FormValue("smoothness"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, err
		}
		req.Smoothness = n
	}
	if v := r.FormValue("enhance"); v != "" {
		req.Enhance, _ = strconv.ParseBool(v)
	}
	return req, nil
}

func decodeFormImage(r *http.Request, field string) (image.Image, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("%s image is required", field)
	}
	defer file.Close()

	img, err := imaging.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("could not decode %s image: %w", field, err)
	}
	return img, nil
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	s.hub.register <- conn

	// Drain reads so pings and close frames are processed.
	go func() {
		defer func() { s.hub.unregister <- conn }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

type progressEvent struct {
	Fraction    float64 `json:"fraction"`
	Description string  `json:"description"`
}

// progressHub fans progress events out to connected websocket clients.
type progressHub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
}

func newProgressHub() *progressHub {
	return &progressHub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

func (h *progressHub) publish(ev progressEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		// Slow consumer; drop rather than stall the pipeline.
	}
}

func (h *progressHub) run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					delete(h.clients, client)
					client.Close()
				}
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func errorBody(kind, message, log string) map[string]string {
	body := map[string]string{
		"error":   kind,
		"message": message,
	}
	if log != "" {
		body["log"] = log
	}
	return body
}
