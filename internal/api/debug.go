package api

import (
    "encoding/json"
    "net/http"
    "os"
    "time"

    "sigscore/internal/buildinfo"
)

func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
    info := map[string]any{
        "build": buildinfo.Info(),
        "time":  time.Now().UTC().Format(time.RFC3339),
        "config": map[string]any{
            "PORT":               os.Getenv("PORT"),
            "WEBHOOK_WORKERS":    os.Getenv("WEBHOOK_WORKERS"),
            "WEBHOOK_RATE_LIMIT": os.Getenv("WEBHOOK_RATE_LIMIT"),
            "HAS_DATABASE_URL":   os.Getenv("DATABASE_URL") != "",
            "HAS_REDIS_URL":      os.Getenv("REDIS_URL") != "",
        },
    }
    w.Header().Set("Content-Type", "application/json")
    _ = json.NewEncoder(w).Encode(info)
}
