// Package server exposes the JSON dashboard API: expiring-device listings,
// manual reconciliation runs, configuration status and the Zoho setup flow.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/support-tools/fortisync/internal/app"
	"github.com/support-tools/fortisync/internal/calendar"
	"github.com/support-tools/fortisync/internal/model"
)

const (
	readHeaderTimeout = 2 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// SyncFunc runs one full reconciliation and returns its result.
type SyncFunc func(ctx context.Context) (model.SyncResult, error)

// DevicesFunc returns the current expiring devices without calendar writes.
type DevicesFunc func(ctx context.Context) ([]*model.ExpiringDevice, error)

// Server is the dashboard HTTP API.
type Server struct {
	app     *app.App
	logger  *logrus.Logger
	sync    SyncFunc
	devices DevicesFunc
	mux     *http.ServeMux
}

// New returns a dashboard server. The sync and device listing capabilities
// are injected so a run always builds a fresh collaborator context.
func New(a *app.App, syncFn SyncFunc, devicesFn DevicesFunc) *Server {
	s := &Server{
		app:     a,
		logger:  a.Logger,
		sync:    syncFn,
		devices: devicesFn,
		mux:     http.NewServeMux(),
	}

	s.registerRoutes()

	return s
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Debug("dashboard API request")

		next.ServeHTTP(w, r)
	})
}

// ListenAndServe serves the dashboard API until the context is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.app.Config.ListenAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.WithField("listen", s.app.Config.ListenAddress).Info("dashboard API listening")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/config", s.handleConfig)
	s.mux.HandleFunc("/api/devices", s.handleDevices)
	s.mux.HandleFunc("/api/sync", s.handleSync)
	s.mux.HandleFunc("/api/zoho/auth-status", s.handleZohoAuthStatus)
	s.mux.HandleFunc("/api/zoho/exchange-code", s.handleZohoExchangeCode)
	s.mux.HandleFunc("/api/zoho/logout", s.handleZohoLogout)
}

// zohoClient builds a short-lived Zoho client for a setup/status request.
func (s *Server) zohoClient() *calendar.Zoho {
	return calendar.NewZohoClient(s.app.Config.Zoho, s.app.Config.EventTemplate(), s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	configured := s.app.Config.ZohoConfigured() && s.zohoClient().Authorized()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"configured": configured,
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, sanitizedConfig(s.app.Config))
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.devices(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("device listing failed")
		writeError(w, http.StatusInternalServerError, err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(devices),
		"devices": devices,
	})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result, err := s.sync(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("manual reconciliation run failed")
		writeError(w, http.StatusInternalServerError, err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"result":  result,
	})
}

func (s *Server) handleZohoAuthStatus(w http.ResponseWriter, _ *http.Request) {
	authorized := s.app.Config.Zoho != nil && s.zohoClient().Authorized()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"authorized": authorized,
	})
}

func (s *Server) handleZohoExchangeCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload struct {
		Code string `json:"code"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "missing authorization code",
		})

		return
	}

	zohoCfg := s.app.Config.Zoho
	if zohoCfg == nil || zohoCfg.ClientID == "" || zohoCfg.ClientSecret == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "save the zoho client id and client secret first",
		})

		return
	}

	if err := s.zohoClient().ExchangeCode(r.Context(), payload.Code); err != nil {
		s.logger.WithError(err).Error("zoho code exchange failed")
		writeError(w, http.StatusInternalServerError, err)

		return
	}

	s.logger.Info("zoho oauth code exchanged")

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handleZohoLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.app.Config.Zoho == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
		return
	}

	if err := s.zohoClient().Logout(); err != nil {
		s.logger.WithError(err).Error("zoho logout failed")
		writeError(w, http.StatusInternalServerError, err)

		return
	}

	s.logger.Info("zoho logout completed")

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// sanitizedConfig flags and masks secrets before the configuration leaves
// the process.
func sanitizedConfig(cfg *app.Configuration) map[string]interface{} {
	out := map[string]interface{}{
		"filter_days_min": cfg.FilterDaysMin,
		"filter_days_max": cfg.FilterDaysMax,
		"sync_schedule":   cfg.SyncSchedule,
		"technicians":     cfg.TechnicianRoster(),
		"event":           cfg.EventTemplate(),
	}

	if cfg.Zoho != nil {
		out["zoho"] = map[string]interface{}{
			"dc":                cfg.Zoho.DC,
			"client_id":         cfg.Zoho.ClientID,
			"client_secret":     "",
			"has_client_secret": cfg.Zoho.ClientSecret != "",
			"owner":             cfg.Zoho.Owner,
			"app":               cfg.Zoho.App,
			"form":              cfg.Zoho.Form,
			"report":            cfg.Zoho.Report,
		}
	}

	if cfg.FortiCare != nil {
		out["forticare"] = map[string]interface{}{
			"api_id":            cfg.FortiCare.APIID,
			"password":          "",
			"has_password":      cfg.FortiCare.Password != "",
			"account_id":        cfg.FortiCare.AccountID,
			"client_id":         cfg.FortiCare.ClientID,
			"auth_endpoint":     cfg.FortiCare.AuthEndpoint,
			"products_endpoint": cfg.FortiCare.ProductsEndpoint,
		}
	}

	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   err.Error(),
	})
}
