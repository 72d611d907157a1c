package cliutil

import (
	"github.com/Paintersrp/berth/internal/compose"
	"github.com/Paintersrp/berth/internal/graph"
)

// ProjectDocument bundles a loaded manifest with its dependency graph.
type ProjectDocument struct {
	Project *compose.Project
	Graph   *graph.Graph
	Sources []string
}

// LoadProject loads a manifest and derives its dependency graph.
func LoadProject(opts compose.LoadOptions) (*ProjectDocument, error) {
	project, err := compose.Load(opts)
	if err != nil {
		return nil, err
	}
	g, err := graph.Build(project)
	if err != nil {
		return nil, err
	}
	return &ProjectDocument{Project: project, Graph: g, Sources: project.Sources}, nil
}
