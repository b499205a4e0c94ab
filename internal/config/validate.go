package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/region-cli/internal/fetcher"
)

var knownSinks = map[string]bool{"psv": true, "sqlite": true, "postgres": true}

// Validate checks that the settings needed by a command are present.
// Modes: "assign", "serve", "layers".
func (c *Config) Validate(mode string) error {
	var problems []string

	if len(c.Layers) == 0 {
		problems = append(problems, "at least one layer is required")
	}
	seen := map[string]bool{}
	for i, l := range c.Layers {
		switch {
		case l.Name == "":
			problems = append(problems, fmt.Sprintf("layers[%d].name is required", i))
		case seen[l.OutputColumn()]:
			problems = append(problems, "duplicate layer column "+l.OutputColumn())
		}
		seen[l.OutputColumn()] = true
		switch {
		case l.Path == "":
			problems = append(problems, fmt.Sprintf("layers[%d].path is required", i))
		case fetcher.IsRemote(l.Path) && !strings.HasSuffix(strings.ToLower(urlPath(l.Path)), ".zip"):
			problems = append(problems, fmt.Sprintf("layers[%d].path must be a .zip bundle when remote", i))
		}
		if l.CodeField == "" {
			problems = append(problems, fmt.Sprintf("layers[%d].code_field is required", i))
		}
	}

	switch mode {
	case "assign":
		if c.Points.Path == "" {
			problems = append(problems, "points.path is required")
		}
		if len(c.Output.Sinks) == 0 {
			problems = append(problems, "output.sinks must name at least one sink")
		}
		for _, s := range c.Output.Sinks {
			if !knownSinks[strings.ToLower(strings.TrimSpace(s))] {
				problems = append(problems, "unknown sink "+s)
			}
		}
		if c.Output.HasSink("psv") && c.Output.Path == "" {
			problems = append(problems, "output.path is required for the psv sink")
		}
		if c.Output.HasSink("sqlite") && c.Store.SQLitePath == "" {
			problems = append(problems, "store.sqlite_path is required for the sqlite sink")
		}
		if c.Output.HasSink("postgres") && c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for the postgres sink")
		}
		if c.Batch.Concurrency < 1 {
			problems = append(problems, "batch.concurrency must be at least 1")
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be between 1 and 65535")
		}
	case "layers":
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(problems, "; "))
	}
	return nil
}

func urlPath(p string) string {
	u, err := url.Parse(p)
	if err != nil {
		return p
	}
	return u.Path
}
