package health

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"sentinel/internal/policystore"
)

// CheckDatabaseHealth probes the policy store's SQLite connection,
// matching check_database_health.
func CheckDatabaseHealth(store *policystore.Store) CheckFunc {
	return func(ctx context.Context) (ComponentHealth, error) {
		health := ComponentHealth{Component: "database"}
		if store == nil {
			health.Status = Unhealthy
			health.Message = "policy store not initialized"
			return health, nil
		}

		if err := store.VerifyDatabaseIntegrity(ctx); err != nil {
			health.Status = Degraded
			health.Message = fmt.Sprintf("database integrity check failed: %v", err)
			return health, nil
		}
		if !store.IsDatabaseHealthy() {
			health.Status = Degraded
			health.Message = "database marked as unhealthy"
			return health, nil
		}

		stats, err := store.GetStats(ctx)
		if err != nil {
			health.Status = Degraded
			health.Message = fmt.Sprintf("failed to query database: %v", err)
			return health, nil
		}

		health.Status = Healthy
		hitRate := 0.0
		if total := stats.CacheMetrics.Hits + stats.CacheMetrics.Misses; total > 0 {
			hitRate = float64(stats.CacheMetrics.Hits) / float64(total) * 100
		}
		health.Details = map[string]any{
			"policy_count":   stats.PolicyCount,
			"threat_count":   stats.ThreatCount,
			"cache_hit_rate": int64(hitRate),
		}
		return health, nil
	}
}

// CheckQuarantineHealth probes the quarantine vault directory's existence
// and available disk space, matching check_quarantine_health.
func CheckQuarantineHealth(dir string) CheckFunc {
	return func(ctx context.Context) (ComponentHealth, error) {
		health := ComponentHealth{Component: "quarantine"}

		if _, err := os.Stat(dir); err != nil {
			health.Status = Degraded
			health.Message = fmt.Sprintf("quarantine directory does not exist: %s", dir)
			return health, nil
		}

		var stat syscall.Statfs_t
		if err := syscall.Statfs(dir, &stat); err != nil {
			health.Status = Degraded
			health.Message = "failed to check quarantine disk space"
			return health, nil
		}

		availableMB := (stat.Bavail * uint64(stat.Bsize)) / (1024 * 1024)
		if availableMB < 1024 {
			health.Status = Degraded
			health.Message = fmt.Sprintf("low disk space in quarantine: %dMB available", availableMB)
		} else {
			health.Status = Healthy
			health.Message = "quarantine directory accessible"
		}
		health.Details = map[string]any{"path": dir, "available_mb": int64(availableMB)}
		return health, nil
	}
}

// CheckDiskSpace probes available space under path, matching
// check_disk_space's severity thresholds (<1GB unhealthy, <5GB degraded).
func CheckDiskSpace(path string) CheckFunc {
	return func(ctx context.Context) (ComponentHealth, error) {
		health := ComponentHealth{Component: "disk"}

		var stat syscall.Statfs_t
		if err := syscall.Statfs(path, &stat); err != nil {
			health.Status = Degraded
			health.Message = fmt.Sprintf("failed to check disk space at %s", path)
			return health, nil
		}

		availableGB := (stat.Bavail * uint64(stat.Bsize)) / (1024 * 1024 * 1024)
		switch {
		case availableGB < 1:
			health.Status = Unhealthy
			health.Message = fmt.Sprintf("critical: less than 1GB free at %s", path)
		case availableGB < 5:
			health.Status = Degraded
			health.Message = fmt.Sprintf("warning: less than 5GB free at %s", path)
		default:
			health.Status = Healthy
		}
		health.Details = map[string]any{"path": path, "available_gb": int64(availableGB)}
		return health, nil
	}
}

// CheckMemoryUsage parses /proc/self/status for resident memory usage,
// matching check_memory_usage's 1GB/2GB thresholds.
func CheckMemoryUsage() CheckFunc {
	return func(ctx context.Context) (ComponentHealth, error) {
		health := ComponentHealth{Component: "memory"}

		f, err := os.Open("/proc/self/status")
		if err != nil {
			health.Status = Degraded
			health.Message = fmt.Sprintf("failed to read process status: %v", err)
			return health, nil
		}
		defer f.Close()

		var rssKB uint64
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "VmRSS:") {
				continue
			}
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				rssKB, _ = strconv.ParseUint(fields[1], 10, 64)
			}
			break
		}

		rssMB := rssKB / 1024
		switch {
		case rssMB > 2048:
			health.Status = Unhealthy
			health.Message = fmt.Sprintf("high memory usage: %dMB", rssMB)
		case rssMB > 1024:
			health.Status = Degraded
			health.Message = fmt.Sprintf("elevated memory usage: %dMB", rssMB)
		default:
			health.Status = Healthy
			health.Message = fmt.Sprintf("memory usage: %dMB", rssMB)
		}
		health.Details = map[string]any{"rss_mb": int64(rssMB)}
		return health, nil
	}
}

// CheckIPCHealth reports health based on the current active-connection
// count, matching check_ipc_health's 500/1000 thresholds.
func CheckIPCHealth(activeConnections func() int) CheckFunc {
	return func(ctx context.Context) (ComponentHealth, error) {
		health := ComponentHealth{Component: "ipc"}
		n := activeConnections()

		switch {
		case n > 1000:
			health.Status = Unhealthy
			health.Message = fmt.Sprintf("too many IPC connections: %d", n)
		case n > 500:
			health.Status = Degraded
			health.Message = fmt.Sprintf("high IPC connection count: %d", n)
		default:
			health.Status = Healthy
			health.Message = fmt.Sprintf("%d active connections", n)
		}
		health.Details = map[string]any{"active_connections": n}
		return health, nil
	}
}
