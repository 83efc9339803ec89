package monitoring

import (
	"context"
	"database/sql"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemSnapshot is the admin view of the host and the service's data.
type SystemSnapshot struct {
	CPUPercent    float64 `json:"cpuPercent"`
	MemoryUsedMB  uint64  `json:"memoryUsedMb"`
	MemoryTotalMB uint64  `json:"memoryTotalMb"`
	MemoryPercent float64 `json:"memoryPercent"`
	DiskUsedGB    float64 `json:"diskUsedGb"`
	DiskTotalGB   float64 `json:"diskTotalGb"`
	DiskPercent   float64 `json:"diskPercent"`
	UptimeSeconds uint64  `json:"uptimeSeconds"`
	Users         int     `json:"users"`
	Recipes       int     `json:"recipes"`
	OpenTickets   int     `json:"openTickets"`
}

// SystemStats samples host usage with gopsutil and row counts from the database.
type SystemStats struct {
	db       *sql.DB
	diskPath string
	sample   time.Duration
}

// NewSystemStats creates a SystemStats reporting disk usage for diskPath.
func NewSystemStats(db *sql.DB, diskPath string) *SystemStats {
	if diskPath == "" {
		diskPath = "/"
	}
	return &SystemStats{db: db, diskPath: diskPath, sample: 200 * time.Millisecond}
}

// Snapshot collects the current figures. Host metrics that cannot be read are left at zero.
func (s *SystemStats) Snapshot(ctx context.Context) (SystemSnapshot, error) {
	var snap SystemSnapshot
	err := s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM users), (SELECT COUNT(*) FROM recipes),
			(SELECT COUNT(*) FROM support_tickets WHERE status IN ('open', 'in_progress'))`).
		Scan(&snap.Users, &snap.Recipes, &snap.OpenTickets)
	if err != nil {
		return snap, err
	}

	if pct, err := cpu.PercentWithContext(ctx, s.sample, false); err == nil && len(pct) > 0 {
		snap.CPUPercent = round1(pct[0])
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		snap.MemoryUsedMB = vm.Used / 1024 / 1024
		snap.MemoryTotalMB = vm.Total / 1024 / 1024
		snap.MemoryPercent = round1(vm.UsedPercent)
	}
	if du, err := disk.UsageWithContext(ctx, s.diskPath); err == nil {
		snap.DiskUsedGB = round1(float64(du.Used) / (1 << 30))
		snap.DiskTotalGB = round1(float64(du.Total) / (1 << 30))
		snap.DiskPercent = round1(du.UsedPercent)
	}
	if up, err := host.UptimeWithContext(ctx); err == nil {
		snap.UptimeSeconds = up
	}
	return snap, nil
}

func round1(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
