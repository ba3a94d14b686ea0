package controller

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vyaparbazaar/featurex/app/pipeline/types"
	"github.com/vyaparbazaar/featurex/pkg/utils"
)

// User is an operator account allowed to trigger runs.
type User struct {
	Username string `json:"username"`
	Hash     []byte `json:"hash"`
	Role     string `json:"role"`
}

type Controller struct {
	App        *types.App
	AdminToken string
	Users      map[string]User
	JWTSecret  []byte
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	adminToken := utils.Env("ADMIN_TOKEN", "devtoken")
	adminUser := utils.Env("ADMIN_USER", "admin")
	jwtSecret := []byte(utils.Env("SESSION_SECRET", "change-me-please"))

	phash, _ := utils.HashOrRead(app.Cfg.AdminSecret)
	users := map[string]User{
		adminUser: {Username: adminUser, Hash: phash, Role: "admin"},
	}

	return &Controller{
		App:        app,
		AdminToken: adminToken,
		Users:      users,
		JWTSecret:  jwtSecret,
	}
}

// WithCORS is a middleware that adds CORS headers to the response.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.Handle("/api/health", http.HandlerFunc(c.HandleHealth)).Methods(http.MethodGet)

	r.HandleFunc("/api/auth/login", c.HandleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/logout", c.HandleLogout).Methods(http.MethodPost)

	r.Handle("/api/stages", c.RequireAuth(http.HandlerFunc(c.HandleStagesList))).Methods(http.MethodGet)
	r.Handle("/api/stages/{stage}/status", c.RequireAuth(http.HandlerFunc(c.HandleStageStatus))).Methods(http.MethodGet)
	r.Handle("/api/stages/{stage}/run", c.RequireAuth(http.HandlerFunc(c.HandleStageRun))).Methods(http.MethodPost)
	r.Handle("/api/run-all", c.RequireAuth(http.HandlerFunc(c.HandleRunAll))).Methods(http.MethodPost)
	r.Handle("/api/runs", c.RequireAuth(http.HandlerFunc(c.HandleRunsList))).Methods(http.MethodGet)

	return r, nil
}
