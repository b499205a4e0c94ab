package batch

import (
	"go.uber.org/zap"

	"github.com/sells-group/region-cli/internal/locate"
)

// LayerStats counts how each layer's assignments were resolved.
type LayerStats struct {
	Layer     string `json:"layer" yaml:"layer"`
	Contained int    `json:"contained" yaml:"contained"`
	Nearest   int    `json:"nearest" yaml:"nearest"`
	NotFound  int    `json:"not_found" yaml:"not_found"`
}

// Stats summarises a run.
type Stats struct {
	Read     int          `json:"read" yaml:"read"`
	Retired  int          `json:"retired" yaml:"retired"`
	Rejected int          `json:"rejected" yaml:"rejected"`
	Written  int          `json:"written" yaml:"written"`
	Groups   int          `json:"groups" yaml:"groups"`
	Layers   []LayerStats `json:"layers" yaml:"layers"`
}

func newStats(columns []string) *Stats {
	s := &Stats{Layers: make([]LayerStats, len(columns))}
	for i, c := range columns {
		s.Layers[i].Layer = c
	}
	return s
}

func (s *Stats) record(layer int, r locate.Result) {
	ls := &s.Layers[layer]
	switch r.Match {
	case locate.Contained:
		ls.Contained++
	case locate.NearestFallback:
		ls.Nearest++
	default:
		ls.NotFound++
	}
}

// Log writes the summary at info level.
func (s *Stats) Log(log *zap.Logger) {
	log.Info("batch complete",
		zap.Int("read", s.Read),
		zap.Int("retired", s.Retired),
		zap.Int("rejected", s.Rejected),
		zap.Int("written", s.Written),
		zap.Int("groups", s.Groups),
	)
	for _, ls := range s.Layers {
		log.Info("layer summary",
			zap.String("layer", ls.Layer),
			zap.Int("contained", ls.Contained),
			zap.Int("nearest", ls.Nearest),
			zap.Int("not_found", ls.NotFound),
		)
	}
}
