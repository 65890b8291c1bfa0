// Package collector gathers process and host metrics reported next to the
// render delay measurements.
package collector

import (
	"fmt"
	"runtime"

	"github.com/and161185/liveperf/model"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// CollectRuntimeMetrics reads the Go runtime memory and scheduler stats. Every
// call also counts one poll: PollCount is a delta that storage accumulates.
func CollectRuntimeMetrics() []model.Metric {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	gauges := []struct {
		id string
		v  float64
	}{
		{"Alloc", float64(m.Alloc)},
		{"GCCPUFraction", m.GCCPUFraction},
		{"GCSys", float64(m.GCSys)},
		{"HeapAlloc", float64(m.HeapAlloc)},
		{"HeapInuse", float64(m.HeapInuse)},
		{"HeapObjects", float64(m.HeapObjects)},
		{"LastGC", float64(m.LastGC)},
		{"NumGC", float64(m.NumGC)},
		{"NumGoroutine", float64(runtime.NumGoroutine())},
		{"PauseTotalNs", float64(m.PauseTotalNs)},
		{"StackInuse", float64(m.StackInuse)},
		{"Sys", float64(m.Sys)},
		{"TotalAlloc", float64(m.TotalAlloc)},
	}

	res := make([]model.Metric, 0, len(gauges)+1)
	for _, g := range gauges {
		res = append(res, *model.NewGauge(g.id, g.v))
	}
	return append(res, *model.NewCounter("PollCount", 1))
}

// CollectGopsutilMetrics reads host memory and per-CPU utilization. Values
// that cannot be read are skipped.
func CollectGopsutilMetrics() []model.Metric {
	var res []model.Metric

	if vm, err := mem.VirtualMemory(); err == nil {
		res = append(res,
			*model.NewGauge("TotalMemory", float64(vm.Total)),
			*model.NewGauge("FreeMemory", float64(vm.Free)),
		)
	}

	if perCPU, err := cpu.Percent(0, true); err == nil {
		for i, p := range perCPU {
			res = append(res, *model.NewGauge(fmt.Sprintf("CPUutilization%d", i+1), p))
		}
	}
	return res
}
