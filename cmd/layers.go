package main

import (
	"context"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/region-cli/internal/batch"
	"github.com/sells-group/region-cli/internal/boundary"
	"github.com/sells-group/region-cli/internal/config"
	"github.com/sells-group/region-cli/internal/fetcher"
)

var layerFlags []string

// parseLayerFlag parses "name=path:field". The field is taken after the last
// colon so Windows drive letters survive.
func parseLayerFlag(s string) (config.LayerConfig, error) {
	name, rest, ok := strings.Cut(s, "=")
	i := strings.LastIndex(rest, ":")
	if !ok || name == "" || i <= 0 || i == len(rest)-1 {
		return config.LayerConfig{}, eris.Errorf("invalid --layer %q, want name=path:field", s)
	}
	return config.LayerConfig{Name: name, Path: rest[:i], CodeField: rest[i+1:]}, nil
}

// applyLayerFlags replaces the configured layers when --layer was given.
func applyLayerFlags() error {
	if len(layerFlags) == 0 {
		return nil
	}
	layers := make([]config.LayerConfig, 0, len(layerFlags))
	for _, f := range layerFlags {
		l, err := parseLayerFlag(f)
		if err != nil {
			return err
		}
		layers = append(layers, l)
	}
	cfg.Layers = layers
	return nil
}

// loadLayers loads every configured layer concurrently, keeping config order.
// http(s) paths are downloaded into the cache directory first.
func loadLayers(ctx context.Context, layerCfgs []config.LayerConfig, dl config.DownloadConfig) ([]batch.Layer, error) {
	layers := make([]batch.Layer, len(layerCfgs))
	hf := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  dl.UserAgent,
		Timeout:    dl.Timeout,
		MaxRetries: dl.MaxRetries,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, lc := range layerCfgs {
		g.Go(func() error {
			path := lc.Path
			if fetcher.IsRemote(path) {
				local, err := hf.FetchCached(gctx, path, cacheDir(dl))
				if err != nil {
					return eris.Wrapf(err, "layer %s", lc.Name)
				}
				path = local
			}
			st, err := boundary.Load(boundary.Source{Name: lc.Name, Path: path, CodeField: lc.CodeField})
			if err != nil {
				return err
			}
			if st.Len() == 0 {
				zap.L().Warn("layer has no shapes, every point will get an empty code", zap.String("layer", lc.Name))
			}
			layers[i] = batch.Layer{Column: lc.OutputColumn(), Store: st}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "load layers")
	}
	return layers, nil
}

func cacheDir(dl config.DownloadConfig) string {
	if dl.CacheDir == "" {
		return ".region-cache"
	}
	return dl.CacheDir
}

type layerReport struct {
	Name     string      `yaml:"name"`
	Column   string      `yaml:"column"`
	Source   string      `yaml:"source"`
	Polygons int         `yaml:"polygons"`
	Skipped  int         `yaml:"skipped"`
	Vertices int         `yaml:"vertices"`
	Bounds   *[4]float64 `yaml:"bounds,omitempty,flow"` // min lon, min lat, max lon, max lat
}

func buildLayerReport(layers []batch.Layer) []layerReport {
	out := make([]layerReport, len(layers))
	for i, l := range layers {
		r := layerReport{
			Name:     l.Store.Name(),
			Column:   l.Column,
			Source:   l.Store.Source(),
			Polygons: l.Store.Len(),
			Skipped:  l.Store.Skipped(),
		}
		for j := range l.Store.Len() {
			r.Vertices += l.Store.At(j).NumVertices()
		}
		if b := l.Store.Bounds(); b != nil && !b.IsEmpty() {
			r.Bounds = &[4]float64{b.Min(0), b.Min(1), b.Max(0), b.Max(1)}
		}
		out[i] = r
	}
	return out
}

var layersCmd = &cobra.Command{
	Use:   "layers",
	Short: "Load the configured boundary layers and print a summary",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := applyLayerFlags(); err != nil {
			return err
		}
		if err := cfg.Validate("layers"); err != nil {
			return err
		}

		layers, err := loadLayers(cmd.Context(), cfg.Layers, cfg.Download)
		if err != nil {
			return err
		}

		save, _ := cmd.Flags().GetBool("save")
		if save || cfg.Store.SaveLayers {
			if err := saveLayers(cmd.Context(), layers); err != nil {
				return err
			}
		}

		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close() //nolint:errcheck
		return eris.Wrap(enc.Encode(map[string]any{"layers": buildLayerReport(layers)}), "layers: encode report")
	},
}

func init() {
	layersCmd.Flags().StringArrayVar(&layerFlags, "layer", nil, "boundary layer as name=path:field (repeatable, overrides config)")
	layersCmd.Flags().Bool("save", false, "store layer polygons as EWKB in the SQLite database")
	rootCmd.AddCommand(layersCmd)
}
