package scheduler

import (
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

// Auto-sizing bounds. Separation holds a full model plus working buffers
// in memory, so one worker per 4GB of system memory is a safe ceiling.
const (
	bytesPerWorker = 4 << 30
	maxAutoWorkers = 4
)

// resolvePoolSize returns the configured pool size, or derives one from
// system memory when the configuration says 0.
func resolvePoolSize(configured int, log *zap.SugaredLogger) int {
	if configured > 0 {
		return configured
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		log.Warnw("Could not read system memory, using one worker", "error", err)
		return 1
	}

	size := int(vm.Total / bytesPerWorker)
	if size < 1 {
		size = 1
	}
	if size > maxAutoWorkers {
		size = maxAutoWorkers
	}
	log.Infow("Auto-sized worker pool",
		"total_memory_gb", vm.Total>>30, "pool_size", size)
	return size
}
