package probe

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/prometheus/procfs"

	"github.com/mozilla-ai/mcpreg/internal/contracts"
	"github.com/mozilla-ai/mcpreg/internal/domain"
	"github.com/mozilla-ai/mcpreg/internal/errors"
)

// zombieState is the process state reported in /proc/<pid>/stat for zombies.
const zombieState = "Z"

var (
	_ contracts.HealthProbe = (*ProcessProbe)(nil)
	_ contracts.MetricProbe = (*ProcessProbe)(nil)
)

// ProcessProbe checks stdio servers against the OS process table.
// The process is located by the 'pid' metadata key, or else by the 'process_name' key matched as a substring
// of the process name or command line. When neither key is present the server is assumed to be alive.
type ProcessProbe struct {
	fs procfs.FS
}

// NewProcessProbe creates a ProcessProbe reading the proc filesystem mounted at mountPoint.
// An empty mountPoint uses procfs.DefaultMountPoint.
func NewProcessProbe(mountPoint string) (*ProcessProbe, error) {
	if strings.TrimSpace(mountPoint) == "" {
		mountPoint = procfs.DefaultMountPoint
	}
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("opening proc filesystem at %s: %w", mountPoint, err)
	}
	return &ProcessProbe{fs: fs}, nil
}

// Probe implements contracts.HealthProbe.
func (p *ProcessProbe) Probe(ctx context.Context, server domain.ServerDescriptor) (contracts.ProbeResult, error) {
	if err := ctx.Err(); err != nil {
		return contracts.ProbeResult{}, fmt.Errorf("%w: %w", errors.ErrHealthCheck, err)
	}

	proc, found, err := p.find(ctx, server)
	if err != nil {
		return contracts.ProbeResult{}, err
	}
	if !found {
		if !hasProcessHint(server) {
			return contracts.ProbeResult{Healthy: true, Message: "no process hint, assuming alive"}, nil
		}
		return contracts.ProbeResult{Healthy: false, Message: "no matching process"}, nil
	}

	stat, err := proc.Stat()
	if err != nil {
		// The process exited between lookup and stat.
		return contracts.ProbeResult{Healthy: false, Message: fmt.Sprintf("pid %d vanished", proc.PID)}, nil
	}
	if stat.State == zombieState {
		return contracts.ProbeResult{Healthy: false, Message: fmt.Sprintf("pid %d is a zombie", proc.PID)}, nil
	}

	return contracts.ProbeResult{
		Healthy: true,
		Message: fmt.Sprintf("pid %d (%s) running", proc.PID, stat.Comm),
	}, nil
}

// Collect implements contracts.MetricProbe, reporting memory_usage as the share of total memory resident in the
// server process.
func (p *ProcessProbe) Collect(ctx context.Context, server domain.ServerDescriptor) (map[string]float64, error) {
	proc, found, err := p.find(ctx, server)
	if err != nil || !found {
		return nil, err
	}

	stat, err := proc.Stat()
	if err != nil {
		return nil, fmt.Errorf("reading stat for pid %d: %w", proc.PID, err)
	}
	meminfo, err := p.fs.Meminfo()
	if err != nil {
		return nil, fmt.Errorf("reading meminfo: %w", err)
	}
	if meminfo.MemTotal == nil || *meminfo.MemTotal == 0 {
		return nil, nil
	}

	totalBytes := float64(*meminfo.MemTotal) * 1024
	return map[string]float64{
		domain.MetricMemoryUsage: float64(stat.ResidentMemory()) / totalBytes * 100,
	}, nil
}

// find locates the server's process. found is false when no process matches or no hint is present.
func (p *ProcessProbe) find(ctx context.Context, server domain.ServerDescriptor) (procfs.Proc, bool, error) {
	if raw := strings.TrimSpace(server.Metadata[domain.MetadataKeyPID]); raw != "" {
		pid, err := strconv.Atoi(raw)
		if err != nil || pid <= 0 {
			return procfs.Proc{}, false, fmt.Errorf("%w: server '%s' has invalid pid '%s'", errors.ErrHealthCheck, server.Name, raw)
		}
		proc, err := p.fs.Proc(pid)
		if err != nil {
			return procfs.Proc{}, false, nil
		}
		return proc, true, nil
	}

	name := strings.TrimSpace(server.Metadata[domain.MetadataKeyProcessName])
	if name == "" {
		return procfs.Proc{}, false, nil
	}

	procs, err := p.fs.AllProcs()
	if err != nil {
		return procfs.Proc{}, false, fmt.Errorf("%w: listing processes: %w", errors.ErrHealthCheck, err)
	}
	for _, proc := range procs {
		if err := ctx.Err(); err != nil {
			return procfs.Proc{}, false, fmt.Errorf("%w: %w", errors.ErrHealthCheck, err)
		}
		if matchesProcess(proc, name) {
			if stat, err := proc.Stat(); err == nil && stat.State == zombieState {
				continue
			}
			return proc, true, nil
		}
	}

	return procfs.Proc{}, false, nil
}

func matchesProcess(proc procfs.Proc, name string) bool {
	if comm, err := proc.Comm(); err == nil && strings.Contains(comm, name) {
		return true
	}
	if cmdline, err := proc.CmdLine(); err == nil && strings.Contains(strings.Join(cmdline, " "), name) {
		return true
	}
	return false
}

func hasProcessHint(server domain.ServerDescriptor) bool {
	return strings.TrimSpace(server.Metadata[domain.MetadataKeyPID]) != "" ||
		strings.TrimSpace(server.Metadata[domain.MetadataKeyProcessName]) != ""
}
