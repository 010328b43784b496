package metrics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// SysHealth is a runtime snapshot included in the health report.
type SysHealth struct {
	AllocMB      uint64 `json:"allocMB"`
	SysMB        uint64 `json:"sysMB"`
	NumGC        uint32 `json:"numGC"`
	Goroutines   int    `json:"goroutines"`
	DataDiskSize string `json:"dataDiskSize,omitempty"`
}

// GetSysHealth collects memory and goroutine figures. When dataPath is set
// the size of that directory is included.
func GetSysHealth(dataPath string) SysHealth {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	h := SysHealth{
		AllocMB:    m.Alloc / 1024 / 1024,
		SysMB:      m.Sys / 1024 / 1024,
		NumGC:      m.NumGC,
		Goroutines: runtime.NumGoroutine(),
	}
	if dataPath != "" {
		h.DataDiskSize = calculateDirSize(dataPath)
	}
	return h
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health is the body of GET /health.
type Health struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Timestamp time.Time `json:"timestamp"`
	Runtime   SysHealth `json:"runtime"`
}

// CheckHealth pings the database and reports whether the service is healthy.
func CheckHealth(ctx context.Context, db Pinger, dataPath string) (Health, bool) {
	h := Health{
		Status:    "OK",
		Database:  "connected",
		Timestamp: time.Now().UTC(),
		Runtime:   GetSysHealth(dataPath),
	}
	if err := db.Ping(ctx); err != nil {
		h.Status = "ERROR"
		h.Database = "disconnected"
		return h, false
	}
	return h, true
}

func calculateDirSize(path string) string {
	var size int64
	_ = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})

	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
