package runner

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// hostLoad is a point-in-time snapshot of host resource usage.
type hostLoad struct {
	CPUPercent    float64
	MemoryPercent float64
}

// snapshotLoad samples current CPU and memory utilisation.
func snapshotLoad(ctx context.Context) (hostLoad, error) {
	var load hostLoad

	cpuPercents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return load, fmt.Errorf("sampling cpu: %w", err)
	}
	if len(cpuPercents) > 0 {
		load.CPUPercent = cpuPercents[0]
	}

	memInfo, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return load, fmt.Errorf("sampling memory: %w", err)
	}
	load.MemoryPercent = memInfo.UsedPercent

	return load, nil
}

// replaceFile moves src over dst, falling back to copy+remove when the
// two paths live on different filesystems.
func replaceFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening converted file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying converted file: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing destination: %w", err)
	}

	return os.Remove(src)
}
