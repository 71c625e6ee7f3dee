package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cfg "github.com/example/chirp/internal/config"
	"github.com/gorilla/mux"
	_ "modernc.org/sqlite"
)

// Signing key and token TTL, loaded once at startup and read-only afterwards.
var (
	jwtSecret []byte
	jwtTTL    = 24 * time.Hour
)

type App struct {
	DB          DB
	rateLimiter *RateLimiter
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write json: %v", err)
	}
}

// newRouter builds the full request pipeline: security headers, CORS, the
// authentication filter, request logging, then the authorization policy, and
// finally the route handlers.
func newRouter(app *App) *mux.Router {
	r := mux.NewRouter()

	r.Use(SecurityHeaders)
	r.Use(app.CORS)
	r.Use(app.Authenticate)
	r.Use(app.Logging)
	r.Use(app.Authorize)

	// Health check endpoints (no auth required)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")
	r.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if p, ok := app.DB.(interface{ ping() bool }); ok {
			if !p.ping() {
				w.WriteHeader(503)
				w.Write([]byte(`{"ready":false}`))
				return
			}
		}
		w.WriteHeader(200)
		w.Write([]byte(`{"ready":true}`))
	}).Methods("GET")

	// Authentication endpoints, rate limited per client IP
	auth := r.PathPrefix("/api/auth").Subrouter()
	auth.Use(app.RateLimit)
	auth.HandleFunc("/register", app.HandleRegister).Methods("POST")
	auth.HandleFunc("/login", app.HandleLogin).Methods("POST")

	// User endpoints
	users := r.PathPrefix("/api/users").Subrouter()
	users.HandleFunc("/search", app.HandleSearchUsers).Methods("GET")
	users.HandleFunc("/username/{username}", app.HandleGetUserByUsername).Methods("GET")
	users.HandleFunc("/{id}", app.HandleGetUser).Methods("GET")
	users.HandleFunc("/{id}", app.HandleUpdateUser).Methods("PUT")

	// Post endpoints
	posts := r.PathPrefix("/api/posts").Subrouter()
	posts.HandleFunc("", app.HandleCreatePost).Methods("POST")
	posts.HandleFunc("/user/{userId}", app.HandleGetUserPosts).Methods("GET")
	posts.HandleFunc("/{id}", app.HandleGetPost).Methods("GET")
	posts.HandleFunc("/{id}/like", app.HandleLikePost).Methods("POST")
	posts.HandleFunc("/{id}/like", app.HandleUnlikePost).Methods("DELETE")

	// Timeline endpoints
	timeline := r.PathPrefix("/api/timeline").Subrouter()
	timeline.HandleFunc("/home", app.HandleHomeTimeline).Methods("GET")
	timeline.HandleFunc("/public", app.HandlePublicTimeline).Methods("GET")
	timeline.HandleFunc("/user/{userId}", app.HandleUserTimeline).Methods("GET")

	return r
}

func main() {
	c, err := cfg.New()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	jwtSecret = []byte(c.JwtSecret)
	jwtTTL = time.Duration(c.JwtExpirationMs) * time.Millisecond

	var db DB
	switch c.DBAdapter {
	case "sqlite":
		s, err := NewSQLiteDB(c.SQLiteFile)
		if err != nil {
			log.Fatalf("sqlite init: %v", err)
		}
		db = s
	case "postgres":
		dsn, err := c.BuildPostgresDSN()
		if err != nil {
			log.Fatalf("postgres config error: %v", err)
		}

		log.Println("Applying database migrations...")
		if err := ApplyMigrations("./migrations", dsn); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}

		p, err := NewPostgresDB(dsn)
		if err != nil {
			log.Fatalf("postgres init: %v", err)
		}
		db = p
		log.Println("Connected to PostgreSQL database")
	case "memory":
		log.Println("Using in-memory database (not recommended for production)")
		db = NewMemoryDB()
	default:
		log.Fatalf("unsupported DB_ADAPTER: %s (supported: postgres, sqlite, memory)", c.DBAdapter)
	}

	app := &App{DB: db, rateLimiter: NewRateLimiter(c.AuthRateLimitPerMinute)}
	r := newRouter(app)

	srv := &http.Server{Handler: r, Addr: ":" + c.Port, ReadTimeout: 5 * time.Second, WriteTimeout: 10 * time.Second}

	go func() {
		fmt.Println("Starting server on", c.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown failed:%+v", err)
	}
	if closer, ok := app.DB.(interface{ close() error }); ok {
		_ = closer.close()
	}
	fmt.Println("Server exited properly")
}
