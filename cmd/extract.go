package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/deploymenttheory/frostbite-extract/internal/cache"
	"github.com/deploymenttheory/frostbite-extract/internal/cas"
	"github.com/deploymenttheory/frostbite-extract/internal/compression"
	"github.com/deploymenttheory/frostbite-extract/internal/config"
	"github.com/deploymenttheory/frostbite-extract/internal/extract"
	"github.com/deploymenttheory/frostbite-extract/internal/graph"
	"github.com/deploymenttheory/frostbite-extract/internal/layout"
	"github.com/deploymenttheory/frostbite-extract/internal/obslog"
	"github.com/deploymenttheory/frostbite-extract/internal/sink"
	"github.com/spf13/cobra"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Build the game graph and extract every reachable part",
	Long: `extract resolves the layout, package, superbundle, and bundle
graph described by --data-dir (and --patch-dir, if given), then walks
every EBX, RES, CHUNK, and TOC-resource part it finds, decompressing
each through the CAS reader and writing it under --output-dir.`,
	RunE: runExtract,
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg := config.Instance
	if cfg.DataDir == "" {
		return fmt.Errorf("extract: --data-dir is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolver, err := layout.Load(cfg.DataDir, cfg.PatchDir)
	if err != nil {
		return fmt.Errorf("extract: loading layout: %w", err)
	}

	var layoutHash string
	var source graph.PartSource

	if cfg.CacheFile != "" {
		layoutHash, err = cache.HashLayoutDescriptors(
			joinLayout(cfg.DataDir), joinLayout(cfg.PatchDir),
		)
		if err == nil {
			if snap, ok := cache.Load(cfg.CacheFile, layoutHash); ok {
				obslog.LogInfo("graph cache hit", map[string]interface{}{"cache_file": cfg.CacheFile})
				source = snap
			}
		}
	}

	if source == nil {
		g, err := graph.Build(resolver)
		if err != nil {
			return fmt.Errorf("extract: building graph: %w", err)
		}
		source = g

		if cfg.CacheFile != "" && layoutHash != "" {
			if err := cache.Save(cfg.CacheFile, layoutHash, g); err != nil {
				obslog.LogWarn("failed to write graph cache", map[string]interface{}{"error": err.Error()})
			}
		}
	}

	decomp := compression.NewLZ4Decompressor()
	casReader := cas.NewReader(resolver, decomp, cas.DefaultMaxOpenHandles)
	defer casReader.Close()

	driver := &extract.Driver{
		Graph:   source,
		CAS:     casReader,
		Sink:    sink.FileSink{Root: cfg.OutputDir},
		Workers: cfg.Workers,
	}

	obslog.LogInfo("extraction starting", map[string]interface{}{
		"data_dir": cfg.DataDir, "patch_dir": cfg.PatchDir,
		"output_dir": cfg.OutputDir, "workers": cfg.Workers,
	})

	summary := driver.Run(ctx)

	obslog.LogInfo("extraction complete", map[string]interface{}{
		"extracted":           summary.Extracted,
		"skipped_unavailable": summary.SkippedUnavailable,
		"failed":              summary.Failed,
	})
	for _, e := range summary.Errors {
		obslog.LogError("part failed", e.Err, map[string]interface{}{
			"kind": e.Kind.String(), "identity": e.Identity,
		})
	}

	return nil
}

func joinLayout(root string) string {
	if root == "" {
		return ""
	}
	return root + string(os.PathSeparator) + layout.LayoutFileName
}
