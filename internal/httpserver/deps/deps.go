package deps

import (
	"time"

	"github.com/MrSnakeDoc/warden/internal/logger"
	"github.com/MrSnakeDoc/warden/internal/store/file"
	"github.com/MrSnakeDoc/warden/internal/watcher"
)

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	TimeNow      func() time.Time      // for testing, defaults to time.Now
	AllowedCIDRS []string              // IPs allowed to access the ops endpoints
	TrustProxy   bool                  // true if running behind a trusted reverse proxy
	Store        *file.Store           // file-backed record store
	Sessions     *watcher.SessionTable // live watcher sessions
	DataDir      string                // directory holding the table files
}
