// Copyright 2026 zombiecoder1
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package builtin

import (
	"context"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/zombiecoder1/zombiecursor/internal/tool"
	"github.com/zombiecoder1/zombiecursor/pkg/errors"
)

// SystemTool reports host and gateway process information. Read only; it
// never signals, spawns or kills anything.
type SystemTool struct {
	root string
}

// NewSystemTool builds the system info tool. root is used as the default
// mount point for disk_usage.
func NewSystemTool(root string) *SystemTool {
	return &SystemTool{root: root}
}

func (t *SystemTool) Name() string { return "system" }

func (t *SystemTool) Description() string {
	return "Report host, memory, disk and gateway process information"
}

func (t *SystemTool) Capability() tool.Capability { return tool.CapabilitySystem }

func (t *SystemTool) Operations() []tool.OpSpec {
	return []tool.OpSpec{
		{Name: "system_info", Description: "Operating system, architecture and CPU count"},
		{Name: "memory_usage", Description: "Host memory usage"},
		{
			Name:        "disk_usage",
			Description: "Disk usage of the filesystem holding a path",
			Params: []tool.ParamSpec{
				{Name: "path", Type: "string", Required: false, Description: "Path to inspect, defaults to the project root"},
			},
		},
		{Name: "process_info", Description: "Resource usage of the gateway process"},
	}
}

func (t *SystemTool) Execute(ctx context.Context, op string, params map[string]any) (any, error) {
	switch op {
	case "system_info":
		return t.systemInfo(ctx)
	case "memory_usage":
		return t.memoryUsage(ctx)
	case "disk_usage":
		path := t.root
		if p, ok := params["path"].(string); ok {
			path = p
		}
		return t.diskUsage(ctx, path)
	case "process_info":
		return t.processInfo(ctx)
	default:
		return nil, errors.Newf(errors.KindInvalidToolParameters, "unknown operation %q", op)
	}
}

func (t *SystemTool) systemInfo(ctx context.Context) (any, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "reading host info")
	}
	return map[string]any{
		"hostname":   info.Hostname,
		"os":         info.OS,
		"platform":   info.Platform,
		"kernel":     info.KernelVersion,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
		"uptime_sec": info.Uptime,
		"go_version": runtime.Version(),
	}, nil
}

func (t *SystemTool) memoryUsage(ctx context.Context) (any, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "reading memory stats")
	}
	return map[string]any{
		"total":        vm.Total,
		"available":    vm.Available,
		"used":         vm.Used,
		"used_percent": vm.UsedPercent,
	}, nil
}

func (t *SystemTool) diskUsage(ctx context.Context, path string) (any, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading disk usage for %s", path)
	}
	return map[string]any{
		"path":         usage.Path,
		"total":        usage.Total,
		"free":         usage.Free,
		"used":         usage.Used,
		"used_percent": usage.UsedPercent,
	}, nil
}

func (t *SystemTool) processInfo(ctx context.Context) (any, error) {
	p, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return nil, errors.Wrap(err, "inspecting gateway process")
	}
	out := map[string]any{
		"pid":        p.Pid,
		"goroutines": runtime.NumGoroutine(),
	}
	if mi, merr := p.MemoryInfoWithContext(ctx); merr == nil {
		out["rss"] = mi.RSS
		out["vms"] = mi.VMS
	}
	if threads, terr := p.NumThreadsWithContext(ctx); terr == nil {
		out["threads"] = threads
	}
	if created, cerr := p.CreateTimeWithContext(ctx); cerr == nil {
		out["start_time_ms"] = created
	}
	return out, nil
}
