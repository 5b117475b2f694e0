package mapper

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"
)

// Project is everything a viewer needs before it can start.
type Project struct {
	ID        string
	Workspace string
	Times     []string
	Artifacts []Artifact
	Indices   []Index
	Extent    orb.Bound
}

// Bootstrap loads a project in order: capabilities, artifacts, indices and
// finally the extent. Each step relies on the previous one having
// succeeded; the first failure aborts the chain.
func (c *Client) Bootstrap(ctx context.Context, project string) (*Project, error) {
	p := &Project{ID: project, Workspace: Workspace(project)}

	times, err := c.Capabilities(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("bootstrap %s: %w", project, err)
	}
	p.Times = times

	if p.Artifacts, err = c.Artifacts(ctx, project); err != nil {
		return nil, fmt.Errorf("bootstrap %s: %w", project, err)
	}
	if p.Indices, err = c.Indices(ctx, project); err != nil {
		return nil, fmt.Errorf("bootstrap %s: %w", project, err)
	}
	if p.Extent, err = c.BBox(ctx, project); err != nil {
		return nil, fmt.Errorf("bootstrap %s: %w", project, err)
	}

	c.log.Info().Str("project", project).Int("times", len(p.Times)).
		Int("artifacts", len(p.Artifacts)).Int("indices", len(p.Indices)).Msg("project loaded")
	return p, nil
}

// Shapefiles returns the vector artifacts.
func (p *Project) Shapefiles() []Artifact {
	var out []Artifact
	for _, a := range p.Artifacts {
		if a.Type == ArtifactShapefile {
			out = append(out, a)
		}
	}
	return out
}
