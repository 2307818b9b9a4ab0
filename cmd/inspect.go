package cmd

import (
	"fmt"

	"github.com/deploymenttheory/frostbite-extract/internal/config"
	"github.com/deploymenttheory/frostbite-extract/internal/graph"
	"github.com/deploymenttheory/frostbite-extract/internal/layout"
	"github.com/spf13/cobra"
)

// inspectCmd is a thin command delegating to the internal graph
// package's query interface: a one-line RunE handler over an internal
// package. Unlike extract, it never reads a byte of CAS data.
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print packages, superbundles, and bundle counts without extracting",
	RunE:  runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg := config.Instance
	if cfg.DataDir == "" {
		return fmt.Errorf("inspect: --data-dir is required")
	}

	resolver, err := layout.Load(cfg.DataDir, cfg.PatchDir)
	if err != nil {
		return fmt.Errorf("inspect: loading layout: %w", err)
	}

	g, err := graph.Build(resolver)
	if err != nil {
		return fmt.Errorf("inspect: building graph: %w", err)
	}

	fmt.Printf("packages (dependency-topological, Patch layer first):\n")
	for _, pkg := range g.Packages() {
		fmt.Printf("  %-6s %-30s superbundles=%d deps=%v\n",
			pkg.Layer.String(), pkg.Name, len(pkg.Superbundles), pkg.Dependencies)
	}

	fmt.Printf("\nsuperbundles:\n")
	for _, sb := range g.Superbundles() {
		kind := "shared"
		if sb.Split {
			kind = "split"
		}
		status := "ok"
		if sb.Unavailable {
			status = "unavailable"
		}
		fmt.Printf("  %-30s %-7s bundles=%-5d %s\n", sb.Name, kind, len(sb.Bundles), status)
	}
	for _, pkg := range g.Packages() {
		for _, sb := range pkg.Superbundles {
			kind := "shared"
			if sb.Split {
				kind = "split"
			}
			status := "ok"
			if sb.Unavailable {
				status = "unavailable"
			}
			fmt.Printf("  %-30s %-7s bundles=%-5d %s (owner=%s)\n", sb.Name, kind, len(sb.Bundles), status, pkg.Name)
		}
	}

	return nil
}
