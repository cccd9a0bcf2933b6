// Package diagnostics collects host resource metrics for the doctor command.
package diagnostics

import (
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemMetrics holds system-wide resource usage.
type SystemMetrics struct {
	CPUModel   string  `json:"cpu_model"`
	CPUCores   int     `json:"cpu_cores"`
	CPUPercent float64 `json:"cpu_percent"`

	MemTotalMB float64 `json:"mem_total_mb"`
	MemUsedMB  float64 `json:"mem_used_mb"`
	MemPercent float64 `json:"mem_percent"`

	DiskTotalGB float64 `json:"disk_total_gb"`
	DiskUsedGB  float64 `json:"disk_used_gb"`
	DiskPercent float64 `json:"disk_percent"`

	LoadAvg1  float64 `json:"load_avg_1"`
	LoadAvg5  float64 `json:"load_avg_5"`
	LoadAvg15 float64 `json:"load_avg_15"`
}

// Collector gathers system statistics. Hardware identity is cached after
// the first collection.
type Collector struct {
	mu            sync.Mutex
	infoCollected bool
	cpuModel      string
	cpuCores      int
}

// NewCollector creates a system metrics collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Collect gathers current system statistics. Each probe is best-effort:
// a failing source leaves its fields zeroed rather than failing the whole
// collection.
func (c *Collector) Collect() SystemMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := SystemMetrics{}
	c.collectHardwareInfo(&stats)
	c.collectCPUUsage(&stats)
	c.collectMemory(&stats)
	c.collectDisk(&stats)
	c.collectLoadAvg(&stats)
	return stats
}

func (c *Collector) collectHardwareInfo(stats *SystemMetrics) {
	if !c.infoCollected {
		c.cpuCores = runtime.NumCPU()
		if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
			c.cpuModel = infos[0].ModelName
		}
		c.infoCollected = true
	}
	stats.CPUModel = c.cpuModel
	stats.CPUCores = c.cpuCores
}

func (c *Collector) collectCPUUsage(stats *SystemMetrics) {
	percents, err := cpu.Percent(0, false)
	if err != nil || len(percents) == 0 {
		return
	}
	stats.CPUPercent = percents[0]
}

func (c *Collector) collectMemory(stats *SystemMetrics) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return
	}
	stats.MemTotalMB = float64(vm.Total) / 1024 / 1024
	stats.MemUsedMB = float64(vm.Used) / 1024 / 1024
	stats.MemPercent = vm.UsedPercent
}

func (c *Collector) collectDisk(stats *SystemMetrics) {
	path := "/"
	if runtime.GOOS == "windows" {
		path = "C:"
	}
	usage, err := disk.Usage(path)
	if err != nil {
		return
	}
	stats.DiskTotalGB = float64(usage.Total) / 1024 / 1024 / 1024
	stats.DiskUsedGB = float64(usage.Used) / 1024 / 1024 / 1024
	stats.DiskPercent = usage.UsedPercent
}

func (c *Collector) collectLoadAvg(stats *SystemMetrics) {
	if runtime.GOOS == "windows" {
		return
	}
	avg, err := load.Avg()
	if err != nil {
		return
	}
	stats.LoadAvg1 = avg.Load1
	stats.LoadAvg5 = avg.Load5
	stats.LoadAvg15 = avg.Load15
}
