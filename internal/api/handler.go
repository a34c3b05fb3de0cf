package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"dropinbox/internal/config"
	"dropinbox/internal/domain"
	"dropinbox/internal/provider"
)

// maxRequestBody bounds the fetchEmails request body.
const maxRequestBody = 1 << 16

// RateLimiter is satisfied by redisstore.Store.
type RateLimiter interface {
	RateLimit(ctx context.Context, ip string, action string, limit int, window time.Duration) (bool, error)
}

type Handler struct {
	cfg      *config.Config
	provider provider.Provider
	limiter  RateLimiter
	log      logrus.FieldLogger
}

// New wires the forwarding endpoints. limiter may be nil to disable rate
// limiting.
func New(cfg *config.Config, prov provider.Provider, limiter RateLimiter, log logrus.FieldLogger) *Handler {
	return &Handler{
		cfg:      cfg,
		provider: prov,
		limiter:  limiter,
		log:      log.WithField("provider", prov.Name()),
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: h.log, NoColor: true}))
	r.Use(middleware.Recoverer)

	c := cors.New(cors.Options{
		AllowedOrigins: h.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	r.Use(c.Handler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		// Every method is routed here so non-POST calls get the JSON 405.
		r.HandleFunc("/generateEmail", h.generateEmail)
		r.HandleFunc("/fetchEmails", h.fetchEmails)
	})

	return r
}

func (h *Handler) generateEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.methodNotAllowed(w, r)
		return
	}
	if !h.checkRateLimit(w, r, "create", h.cfg.RateLimitCreatePerMin) {
		return
	}

	sess, err := h.provider.CreateMailbox(r.Context())
	if err != nil {
		h.logger(r).WithError(err).Error("failed to create mailbox")
		writeJSON(w, http.StatusInternalServerError, domain.ErrorResponse{Error: "Internal Server Error"})
		return
	}

	writeJSON(w, http.StatusOK, domain.GenerateEmailResponse{
		GeneratedEmail:     sess.Address,
		GeneratedSessionID: sess.SessionID,
		Expiration:         sess.ExpiresAt,
	})
}

func (h *Handler) fetchEmails(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.methodNotAllowed(w, r)
		return
	}
	if !h.checkRateLimit(w, r, "fetch", h.cfg.RateLimitFetchPerMin) {
		return
	}

	var req domain.FetchEmailsRequest
	err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, domain.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if req.SessionID == "" {
		h.logger(r).WithError(domain.ErrSessionAbsent).Debug("fetch without session id")
		writeJSON(w, http.StatusOK, domain.FetchEmailsResponse{Mails: []domain.Message{}})
		return
	}

	mails, err := h.provider.ListMessages(r.Context(), req.SessionID)
	if err != nil {
		h.logger(r).WithError(err).WithField("session_id", req.SessionID).Error("failed to fetch mails")
		writeJSON(w, http.StatusInternalServerError, domain.ErrorResponse{Error: "Internal Server Error"})
		return
	}
	if mails == nil {
		mails = []domain.Message{}
	}

	writeJSON(w, http.StatusOK, domain.FetchEmailsResponse{Mails: mails})
}

func (h *Handler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.logger(r).WithError(domain.ErrInvalidMethod).WithField("method", r.Method).Debug("rejected request")
	w.Header().Set("Allow", http.MethodPost)
	writeJSON(w, http.StatusMethodNotAllowed, domain.ErrorResponse{Error: "Method Not Allowed"})
}

func (h *Handler) checkRateLimit(w http.ResponseWriter, r *http.Request, action string, limit int) bool {
	if h.limiter == nil || limit <= 0 {
		return true
	}

	allowed, err := h.limiter.RateLimit(r.Context(), clientIP(r), action, limit, time.Minute)
	if err != nil {
		// Fail open: a Redis outage must not take the endpoints down.
		h.logger(r).WithError(err).Warn("rate limiter unavailable")
		return true
	}
	if !allowed {
		writeJSON(w, http.StatusTooManyRequests, domain.ErrorResponse{Error: "Rate limit exceeded"})
		return false
	}
	return true
}

func (h *Handler) logger(r *http.Request) logrus.FieldLogger {
	return h.log.WithField("request_id", middleware.GetReqID(r.Context()))
}

// clientIP prefers X-Real-IP, then the first X-Forwarded-For hop, then the
// peer address.
func clientIP(r *http.Request) string {
	ip := r.RemoteAddr
	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		ip = xrip
	} else if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		ip = strings.TrimSpace(parts[0])
	}
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return ip
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
