package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"jsonmock/handler"
	"jsonmock/store"
)

const (
	defaultPort     = 3000
	defaultDataFile = "mock-data.json"
)

// statusRecorder captures the response status for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// loggingMiddleware tags each request with an id and logs method, path,
// status and duration.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		log.Printf("[%s] %s %s -> %d (%s)", reqID, r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

func main() {
	port := defaultPort
	if len(os.Args) > 1 {
		p, err := strconv.Atoi(os.Args[1])
		if err != nil {
			log.Printf("invalid port %q, using %d", os.Args[1], defaultPort)
		} else {
			port = p
		}
	}
	dataFile := defaultDataFile
	if len(os.Args) > 2 {
		dataFile = os.Args[2]
	}

	s, err := store.New(dataFile)
	if err != nil {
		log.Fatalf("failed to open store at %s: %v", dataFile, err)
	}

	h := handler.New(s)
	wrapped := loggingMiddleware(h)

	addr := fmt.Sprintf(":%d", port)
	log.Printf("jsonmock listening on %s (data=%s)", addr, dataFile)
	if err := http.ListenAndServe(addr, wrapped); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
