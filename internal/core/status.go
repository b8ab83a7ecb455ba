package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/keepmind9/hashbang/internal/logger"
	"github.com/keepmind9/hashbang/pkg/constants"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusReport is the body served on /status
type StatusReport struct {
	Snapshot
	Instances []InstanceStatus `json:"instances"`
	Time      time.Time        `json:"time"`
}

// StatusServer serves metrics, instance status and a health check over HTTP
type StatusServer struct {
	controller *Controller
	gatherer   prometheus.Gatherer
	server     *http.Server
	listener   net.Listener
}

// NewStatusServer creates a server for c. A nil gatherer means the default one.
func NewStatusServer(addr string, c *Controller, gatherer prometheus.Gatherer) *StatusServer {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &StatusServer{controller: c, gatherer: gatherer}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: constants.StatusHTTPTimeout,
	}
	return s
}

// Handler returns the HTTP routes
func (s *StatusServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(constants.HTTPSuccessStatusCode)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

func (s *StatusServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	report := StatusReport{
		Snapshot:  s.controller.Supervisor().Snapshot(),
		Instances: s.controller.List(FilterAll),
		Time:      time.Now().UTC(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		logger.WithField("error", err).Warn("status-encode-failed")
	}
}

// Start binds the listener and serves in the background
func (s *StatusServer) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	s.listener = ln

	logger.WithField("address", ln.Addr().String()).Info("status-server-listening")
	go func() {
		// When Shutdown() is called, Serve will return ErrServerClosed
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithField("error", err).Error("status-server-error")
		}
		logger.Info("status-server-stopped")
	}()
	return nil
}

// Addr is the bound address once started
func (s *StatusServer) Addr() string {
	if s.listener == nil {
		return s.server.Addr
	}
	return s.listener.Addr().String()
}

// Shutdown stops the server gracefully, forcing it closed on timeout
func (s *StatusServer) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		_ = s.server.Close()
		return err
	}
	return nil
}

// FetchStatus queries a running status server
func FetchStatus(ctx context.Context, addr string) (*StatusReport, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.StatusHTTPTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/status", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach status server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != constants.HTTPSuccessStatusCode {
		return nil, fmt.Errorf("status server returned %s", resp.Status)
	}
	var report StatusReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("failed to decode status: %w", err)
	}
	return &report, nil
}
