package main

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/closedroom/portal/internal/api"
	"github.com/closedroom/portal/internal/db"
	"github.com/closedroom/portal/internal/middleware"
	"github.com/closedroom/portal/internal/utils"
)

func main() {
	addr := utils.SafeEnv("PORTAL_ADDR", ":8080")
	commit := os.Getenv("PORTAL_COMMIT")

	store, err := openStore()
	if err != nil {
		log.Fatalf("open store: %v", err)
	}

	mux := http.NewServeMux()
	api.NewRouter(store, middleware.SignToken).Register(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"name":   "ClosedRoom API",
			"commit": commit,
		})
	})

	handler := middleware.NoStore(middleware.CORS(middleware.WithAuth(mux)))

	log.Printf("portal server listening on %s", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// openStore picks SQLite when PORTAL_DB names a file, else the in-memory
// store (dev mode, seed via POST /api/seed).
func openStore() (api.Store, error) {
	path := os.Getenv("PORTAL_DB")
	if path == "" {
		log.Printf("PORTAL_DB not set, using in-memory store")
		return api.NewMemoryStore(), nil
	}
	conn, err := sql.Open("sqlite3", db.DSN(path))
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(conn); err != nil {
		return nil, err
	}
	return db.NewStore(conn)
}
