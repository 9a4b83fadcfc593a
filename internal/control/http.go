package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"quizroom-backend/api"
	"quizroom-backend/internal/config"
	"quizroom-backend/internal/game"
	"quizroom-backend/internal/middleware"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/golang-jwt/jwt"
)

// API serves the operator dashboard over HTTP and websocket.
type API struct {
	surface *Surface
	cfg     config.AdminConfig
	logger  *slog.Logger
}

// NewAPI builds the operator API around a control surface.
func NewAPI(surface *Surface, cfg config.AdminConfig, logger *slog.Logger) *API {
	return &API{surface: surface, cfg: cfg, logger: logger}
}

// Handler returns the routed operator API wrapped in the default
// middleware chain.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /admin/login", a.handleLogin)

	mux.Handle("POST /admin/start", a.requireToken(a.handleControl("start", func() any {
		return controlResult{Applied: a.surface.Start()}
	})))
	mux.Handle("POST /admin/stop", a.requireToken(a.handleControl("stop", func() any {
		return controlResult{Applied: a.surface.Stop()}
	})))
	mux.Handle("POST /admin/pause", a.requireToken(a.handleControl("pause", func() any {
		return pauseResult{Serving: a.surface.PauseOrResume()}
	})))
	mux.Handle("POST /admin/reset", a.requireToken(a.handleControl("reset", func() any {
		a.surface.ResetScoresAndNames()
		return controlResult{Applied: true}
	})))
	mux.Handle("POST /admin/leaderboard", a.requireToken(a.handleControl("leaderboard", func() any {
		return leaderboardResult{Rows: a.surface.BroadcastLeaderboard()}
	})))

	mux.Handle("GET /admin/stats", a.requireToken(http.HandlerFunc(a.handleStats)))
	mux.Handle("GET /admin/scoreboard", a.requireToken(http.HandlerFunc(a.handleScoreboard)))
	mux.Handle("GET /admin/players", a.requireToken(http.HandlerFunc(a.handlePlayers)))
	mux.Handle("GET /admin/logs", a.requireToken(http.HandlerFunc(a.handleLogs)))
	mux.Handle("GET /admin/live", a.requireToken(http.HandlerFunc(a.handleLive)))

	return middleware.ApplyDefaults(mux)
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type controlResult struct {
	Applied bool `json:"applied"`
}

type pauseResult struct {
	Serving bool `json:"serving"`
}

type leaderboardResult struct {
	Rows []api.LeaderboardRow `json:"rows"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(r.Context(), w, http.StatusBadRequest, api.AdminError{
			Code:    api.InvalidRequestCode,
			Message: "invalid login request",
			Err:     err,
		})
		return
	}

	if a.cfg.Password == "" || req.Password != a.cfg.Password {
		a.writeError(r.Context(), w, http.StatusUnauthorized, api.AdminError{
			Code:    api.UnauthorizedCode,
			Message: "wrong operator password",
		})
		return
	}

	token, err := a.newToken()
	if err != nil {
		a.writeError(r.Context(), w, http.StatusInternalServerError, api.AdminError{
			Code:    api.InternalServerErrorCode,
			Message: "could not issue token",
			Err:     err,
		})
		return
	}
	a.writeJSON(r.Context(), w, loginResponse{Token: token})
}

// handleControl wraps one control operation. A rejected no-op (start
// while started, stop while stopped) is a logged warning inside the
// controller, surfaced as applied=false, never an HTTP error.
func (a *API) handleControl(name string, op func() any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.logger.Info("operator control", slog.String("op", name))
		a.writeJSON(r.Context(), w, op())
	}
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(r.Context(), w, a.surface.Statistics())
}

func (a *API) handleScoreboard(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(r.Context(), w, a.surface.ScoreboardRows())
}

func (a *API) handlePlayers(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(r.Context(), w, a.surface.ActivePlayers())
}

func (a *API) handleLogs(w http.ResponseWriter, r *http.Request) {
	max := 1000
	if raw := r.URL.Query().Get("max"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			a.writeError(r.Context(), w, http.StatusBadRequest, api.AdminError{
				Code:    api.InvalidRequestCode,
				Message: "invalid max query",
				Err:     err,
			})
			return
		}
		max = parsed
	}
	a.writeJSON(r.Context(), w, a.surface.DrainLogs(max))
}

// liveSnapshot is one push of the dashboard feed.
type liveSnapshot struct {
	Stats      Statistics   `json:"stats"`
	Scoreboard []game.Entry `json:"scoreboard"`
}

// handleLive streams statistics and scoreboard snapshots over a
// websocket until the dashboard disconnects.
func (a *API) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		// Accept already wrote a status code and error message.
		a.logger.Error("live feed accept", slog.Any("error", err))
		return
	}
	conn.SetReadLimit(a.cfg.ReadLimit)
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())

	ticker := time.NewTicker(a.cfg.LiveFeed)
	defer ticker.Stop()

	for {
		snapshot := liveSnapshot{
			Stats:      a.surface.Statistics(),
			Scoreboard: a.surface.ScoreboardRows(),
		}
		if err := wsjson.Write(ctx, conn, snapshot); err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// newToken issues an operator token signed with the configured secret.
func (a *API) newToken() (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "operator",
		"iat":  time.Now().Unix(),
	})
	return token.SignedString([]byte(a.cfg.JWTSecret))
}

// checkToken validates an operator bearer token.
func (a *API) checkToken(token string) error {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(a.cfg.JWTSecret), nil
	})
	if err != nil {
		return err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return errors.New("invalid jwt claims")
	}
	if role, _ := claims["role"].(string); role != "operator" {
		return errors.New("token has no operator role")
	}
	return nil
}

// requireToken guards an endpoint behind the operator bearer token.
// The live feed also accepts the token as a query parameter because
// browser websockets cannot set headers.
func (a *API) requireToken(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if err := a.checkToken(token); err != nil {
			a.writeError(r.Context(), w, http.StatusForbidden, api.AdminError{
				Code:    api.InvalidTokenCode,
				Message: "invalid operator token",
				Err:     err,
			})
			return
		}
		h.ServeHTTP(w, r)
	})
}

func (a *API) writeJSON(ctx context.Context, w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.ErrorContext(ctx, "encode response", slog.Any("error", err))
	}
}

func (a *API) writeError(ctx context.Context, w http.ResponseWriter, status int, adminErr api.AdminError) {
	a.logger.ErrorContext(ctx, "admin api error",
		slog.Any("error", adminErr),
		slog.Any("error_code", adminErr.Code),
		slog.Int("status_code", status))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(adminErr); err != nil {
		a.logger.ErrorContext(ctx, "encode error response", slog.Any("error", err))
	}
}
