package api

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/MultiX0/dbgate/db"
	"github.com/MultiX0/dbgate/functions"
)

var Reset = "\033[0m"
var Red = "\033[31m"
var Green = "\033[32m"

type APIServer struct {
	addr    string
	engine  *functions.Engine
	configs *db.ConfigService
}

func NewAPIServer(addr string, engine *functions.Engine, configs *db.ConfigService) *APIServer {
	return &APIServer{
		addr:    addr,
		engine:  engine,
		configs: configs,
	}
}

type wrappedWriter struct {
	http.ResponseWriter
	statusCode    int
	headerWritten bool
}

func (w *wrappedWriter) WriteHeader(statusCode int) {
	if w.headerWritten {
		return
	}

	w.ResponseWriter.WriteHeader(statusCode)
	w.statusCode = statusCode
	w.headerWritten = true
}

func (w *wrappedWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *APIServer) Router() *mux.Router {
	router := mux.NewRouter()

	queryRoute := router.PathPrefix("/api/query").Subrouter()
	queryRoute.HandleFunc("/data", s.FetchData).Methods("POST")
	queryRoute.HandleFunc("/count", s.FetchCount).Methods("POST")
	queryRoute.HandleFunc("/delete", s.DeleteData).Methods("POST")
	queryRoute.HandleFunc("/schema", s.TableSchema).Methods("POST")

	configRoute := router.PathPrefix("/api/configs").Subrouter()
	configRoute.HandleFunc("", s.ListConfigs).Methods("GET")
	configRoute.HandleFunc("/{id}", s.GetConfig).Methods("GET")
	configRoute.HandleFunc("", s.CreateConfig).Methods("POST")
	configRoute.HandleFunc("/{id}", s.UpdateConfig).Methods("PUT")
	configRoute.HandleFunc("/{id}", s.DeleteConfig).Methods("DELETE")

	adminRoute := router.PathPrefix("/admin").Subrouter()
	adminRoute.HandleFunc("/health", s.HealthCheck).Methods("GET")

	return router
}

func (s *APIServer) Run() error {
	middlewareChain := MiddlwareChain(
		RequestLoggerMiddleware,
	)

	server := http.Server{
		Addr:    s.addr,
		Handler: middlewareChain(s.Router()),
	}
	log.Printf("Server has started %s", s.addr)
	return server.ListenAndServe()
}

func RequestLoggerMiddleware(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &wrappedWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		var ip string
		xForwardedFor := r.Header.Get("X-Forwarded-For")
		if xForwardedFor != "" {
			ips := strings.Split(xForwardedFor, ",")
			if len(ips) > 0 {
				ip = strings.TrimSpace(ips[0])
			}
		}
		if ip == "" {
			ip = r.RemoteAddr
		}

		next.ServeHTTP(wrapped, r)

		var color string
		if wrapped.statusCode >= 200 && wrapped.statusCode < 300 {
			color = Green
		} else {
			color = Red
		}

		log.Printf("%s[ %d %s ]%s %s %s %v", color, wrapped.statusCode, r.Method, Reset, ip, r.URL.Path, time.Since(start))
	}
}

type Middleware func(http.Handler) http.HandlerFunc

func MiddlwareChain(middlewares ...Middleware) Middleware {
	return func(next http.Handler) http.HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}

		return next.ServeHTTP
	}
}
