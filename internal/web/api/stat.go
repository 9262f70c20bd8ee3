package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ixugo/goddd/pkg/system"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

type getSystemStatsOutput struct {
	Hostname    string  `json:"hostname"`
	OS          string  `json:"os"`
	UptimeSec   uint64  `json:"uptime_sec"`
	CPUPercent  float64 `json:"cpu_percent"`
	MemTotal    uint64  `json:"mem_total"`
	MemUsed     uint64  `json:"mem_used"`
	MemPercent  float64 `json:"mem_percent"`
	DiskTotal   uint64  `json:"disk_total"`
	DiskUsed    uint64  `json:"disk_used"`
	DiskPercent float64 `json:"disk_percent"`
}

// getSystemStats 主机资源占用，供运维页面展示
// 视频解码吃 CPU，快照和事件库吃磁盘，这两项是重点关注对象
func (uc *Usecase) getSystemStats(_ *gin.Context, _ *struct{}) (*getSystemStatsOutput, error) {
	out := getSystemStatsOutput{}

	if info, err := host.Info(); err == nil {
		out.Hostname = info.Hostname
		out.OS = info.Platform
		out.UptimeSec = info.Uptime
	}
	if percents, err := cpu.Percent(200*time.Millisecond, false); err == nil && len(percents) > 0 {
		out.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		out.MemTotal = vm.Total
		out.MemUsed = vm.Used
		out.MemPercent = vm.UsedPercent
	}
	if du, err := disk.Usage(system.Getwd()); err == nil {
		out.DiskTotal = du.Total
		out.DiskUsed = du.Used
		out.DiskPercent = du.UsedPercent
	}
	return &out, nil
}
