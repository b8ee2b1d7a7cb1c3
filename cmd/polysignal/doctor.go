package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/liamashdown/polysignal/internal/config"
)

// printDoctor reports the environment polysignal runs in. Probe failures are
// printed in place of the value.
func printDoctor(ctx context.Context, w io.Writer, cfg *config.Config, cacheDir string) {
	fmt.Fprintln(w, "Polysignal doctor")

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	row := func(k, v string) { fmt.Fprintf(tw, "%s\t%s\n", k, v) }

	row("version", version)
	row("go", fmt.Sprintf("%s (%s/%s)", runtime.Version(), runtime.GOOS, runtime.GOARCH))

	if info, err := host.InfoWithContext(ctx); err != nil {
		row("platform", "unknown: "+err.Error())
	} else {
		row("platform", fmt.Sprintf("%s %s (kernel %s)", info.Platform, info.PlatformVersion, info.KernelVersion))
		row("host", info.Hostname)
	}

	if n, err := cpu.CountsWithContext(ctx, true); err != nil {
		row("cpus", "unknown: "+err.Error())
	} else {
		row("cpus", fmt.Sprintf("%d", n))
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		row("memory", "unknown: "+err.Error())
	} else {
		row("memory", fmt.Sprintf("%s total, %s available", humanize.Bytes(vm.Total), humanize.Bytes(vm.Available)))
	}

	if exe, err := os.Executable(); err == nil {
		row("executable", exe)
	}

	row("cache_backend", cfg.Cache.Backend)
	row("cache_dir", cacheDir+cacheDirState(cacheDir))
	row("catalog", cfg.Catalog.BaseURL)
	row("ledger", fmt.Sprintf("%s (auth %s)", cfg.Ledger.BaseURL, cfg.Ledger.AuthMode))
	_ = tw.Flush()
}

func cacheDirState(dir string) string {
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		return " (not created yet)"
	case err != nil:
		return " (" + err.Error() + ")"
	case !info.IsDir():
		return " (not a directory)"
	}
	return ""
}
