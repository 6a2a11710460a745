package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/fulmenhq/gofulmen/crucible"
)

// Build metadata, injected from main via SetVersionInfo.
var (
	AppVersion   = "dev"
	AppCommit    = "unknown"
	AppBuildDate = "unknown"
)

var (
	versionMu   sync.RWMutex
	appIdentity *appidentity.Identity
	edgeInfo    *EdgeInfo
)

func SetVersionInfo(version, commit, buildDate string) {
	versionMu.Lock()
	defer versionMu.Unlock()
	AppVersion = version
	AppCommit = commit
	AppBuildDate = buildDate
}

func SetAppIdentity(identity *appidentity.Identity) {
	versionMu.Lock()
	defer versionMu.Unlock()
	appIdentity = identity
}

// SetEdgeInfo publishes a summary of the router tables on /version.
func SetEdgeInfo(info EdgeInfo) {
	versionMu.Lock()
	defer versionMu.Unlock()
	edgeInfo = &info
}

// VersionResponse represents the version information response
type VersionResponse struct {
	App          AppInfo     `json:"app"`
	Dependencies DepInfo     `json:"dependencies"`
	Runtime      RuntimeInfo `json:"runtime"`
	Edge         *EdgeInfo   `json:"edge,omitempty"`
}

type AppInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version,omitempty"`
}

type DepInfo struct {
	Gofulmen string `json:"gofulmen"`
	Crucible string `json:"crucible"`
}

type RuntimeInfo struct {
	Platform      string `json:"platform"`
	NumCPU        int    `json:"num_cpu"`
	NumGoroutines int    `json:"num_goroutines"`
}

// EdgeInfo counts the loaded tables without exposing their contents.
type EdgeInfo struct {
	Redirects         int    `json:"redirects"`
	ProtectedPrefixes int    `json:"protected_prefixes"`
	RateLimitBackend  string `json:"rate_limit_backend"`
	RateLimitRule     string `json:"rate_limit_rule"`
}

func binaryName() string {
	if appIdentity != nil && appIdentity.BinaryName != "" {
		return appIdentity.BinaryName
	}
	if len(os.Args) > 0 && os.Args[0] != "" {
		return filepath.Base(os.Args[0])
	}
	return "unknown"
}

// VersionHandler reports build, dependency and runtime details.
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	deps := crucible.GetVersion()

	versionMu.RLock()
	response := VersionResponse{
		App: AppInfo{
			Name:      binaryName(),
			Version:   AppVersion,
			Commit:    AppCommit,
			BuildDate: AppBuildDate,
			GoVersion: runtime.Version(),
		},
		Dependencies: DepInfo{
			Gofulmen: deps.Gofulmen,
			Crucible: deps.Crucible,
		},
		Runtime: RuntimeInfo{
			Platform:      runtime.GOOS + "/" + runtime.GOARCH,
			NumCPU:        runtime.NumCPU(),
			NumGoroutines: runtime.NumGoroutine(),
		},
		Edge: edgeInfo,
	}
	versionMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}
