package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jekabolt/delivery-analytics/internal/auth"
	"github.com/jekabolt/delivery-analytics/internal/entity"
	gerr "github.com/jekabolt/delivery-analytics/internal/errors"
	"github.com/jekabolt/delivery-analytics/internal/form"
	"github.com/jekabolt/delivery-analytics/internal/middleware"
)

const maxBodySize = 1 << 16

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("can't write response", slog.String("err", err.Error()))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := gerr.HTTPStatus(err)
	resp := errorResponse{Error: http.StatusText(status)}

	switch status {
	case http.StatusBadRequest, http.StatusForbidden, http.StatusTooManyRequests:
		resp.Error = err.Error()
	case http.StatusUnauthorized:
		slog.Default().InfoContext(r.Context(), "unauthorized request",
			slog.String("err", err.Error()),
			slog.String("client_ip", middleware.GetClientIP(r.Context())),
		)
	}
	if status >= http.StatusInternalServerError {
		slog.Default().ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
			slog.String("err", err.Error()),
		)
	}

	var verr *form.ValidationError
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}
	writeJSON(w, status, resp)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.d.Health != nil {
		if err := s.d.Health(r.Context()); err != nil {
			slog.Default().ErrorContext(r.Context(), "health check failed", slog.String("err", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req form.LoginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: malformed body", gerr.ErrInvalidRequest))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, err)
		return
	}
	if s.d.Limiter != nil {
		email := strings.ToLower(strings.TrimSpace(req.Email))
		if err := s.d.Limiter.CheckLogin(middleware.GetClientIP(r.Context()), email); err != nil {
			writeError(w, r, err)
			return
		}
	}

	token, err := s.d.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

// analyticsQuery parses and validates the query and narrows its companies to
// the caller's scope.
func (s *Server) analyticsQuery(r *http.Request) (*form.AnalyticsQuery, entity.OrderFilters, error) {
	q, err := form.ParseAnalyticsQuery(r.URL.Query())
	if err != nil {
		return nil, entity.OrderFilters{}, err
	}
	if err := q.Validate(); err != nil {
		return nil, entity.OrderFilters{}, err
	}
	p, err := auth.PrincipalFromContext(r.Context())
	if err != nil {
		return nil, entity.OrderFilters{}, err
	}
	f := q.Filters()
	if f.CompanyIds, err = auth.Scope(p, f.CompanyIds); err != nil {
		return nil, entity.OrderFilters{}, err
	}
	return q, f, nil
}

func (s *Server) customers(w http.ResponseWriter, r *http.Request) {
	q, f, err := s.analyticsQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if q.Compare {
		res, err := s.d.Analytics.CompareCustomerMetrics(r.Context(), f)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}
	res, err := s.d.Analytics.CustomerMetrics(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) cohorts(w http.ResponseWriter, r *http.Request) {
	q, f, err := s.analyticsQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.d.Analytics.Cohorts(r.Context(), f, q.CohortGranularity())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res == nil {
		res = []entity.CohortData{}
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) churn(w http.ResponseWriter, r *http.Request) {
	q, f, err := s.analyticsQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.d.Analytics.ChurnRisk(r.Context(), f, q.Limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res == nil {
		res = []entity.CustomerChurnRisk{}
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) distribution(w http.ResponseWriter, r *http.Request) {
	_, f, err := s.analyticsQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.d.Analytics.SpendDistribution(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) platforms(w http.ResponseWriter, r *http.Request) {
	_, f, err := s.analyticsQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.d.Analytics.MultiPlatform(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) {
	if s.d.Files == nil {
		writeError(w, r, fmt.Errorf("%w: snapshot storage", gerr.ErrNotConfigured))
		return
	}
	q, f, err := s.analyticsQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	snap, err := s.d.Analytics.Snapshot(r.Context(), f, q.CohortGranularity(), q.Limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	obj, err := s.d.Files.UploadSnapshot(r.Context(), snap)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, obj)
}
