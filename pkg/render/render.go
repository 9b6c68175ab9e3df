// Package render draws skeleton hierarchies as Graphviz documents: DOT text
// for tooling and SVG for quick visual inspection of a rig's topology.
package render

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/boneforge/boneforge/pkg/errors"
	"github.com/boneforge/boneforge/pkg/skeleton"
)

// Option configures rendering.
type Option func(*config)

type config struct {
	maxDepth int
}

// WithMaxDepth limits how many joint levels below the root are drawn.
// Zero (the default) draws the whole hierarchy.
func WithMaxDepth(depth int) Option {
	return func(c *config) { c.maxDepth = depth }
}

// ToDOT renders the hierarchy as a DOT digraph. Joints appear in stable
// arena order so the output is deterministic. Rotating joints show their
// Euler sequence; end sites are drawn dashed. Edges are labeled with the
// bone length.
func ToDOT(s *skeleton.Skeleton, opts ...Option) string {
	var cfg config
	for _, o := range opts {
		o(&cfg)
	}

	var b strings.Builder
	b.WriteString("digraph skeleton {\n")
	b.WriteString("  rankdir=TB;\n")
	b.WriteString("  node [shape=box, fontname=\"Helvetica\"];\n")

	depth := depths(s)
	for _, i := range s.Indices() {
		if cfg.maxDepth > 0 && depth[i] > cfg.maxDepth {
			continue
		}
		j, _ := s.Joint(i)
		if s.IsLeaf(i) {
			fmt.Fprintf(&b, "  n%d [label=%q, style=dashed];\n", i, j.Name)
		} else {
			fmt.Fprintf(&b, "  n%d [label=%q];\n", i, fmt.Sprintf("%s\n%s", j.Name, j.Order))
		}
	}
	for _, i := range s.Indices() {
		if i == s.Root() {
			continue
		}
		if cfg.maxDepth > 0 && depth[i] > cfg.maxDepth {
			continue
		}
		p, _ := s.Parent(i)
		fmt.Fprintf(&b, "  n%d -> n%d [label=%q];\n", p, i, fmt.Sprintf("%.2f", s.Offset(i).Len()))
	}
	b.WriteString("}\n")
	return b.String()
}

// RenderSVG renders the hierarchy to SVG via Graphviz.
func RenderSVG(ctx context.Context, s *skeleton.Skeleton, opts ...Option) ([]byte, error) {
	dot := ToDOT(s, opts...)

	g, err := graphviz.New(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "initialize graphviz")
	}
	defer g.Close()

	graph, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "parse generated dot")
	}
	defer graph.Close()

	var buf bytes.Buffer
	if err := g.Render(ctx, graph, graphviz.SVG, &buf); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "render svg")
	}
	return buf.Bytes(), nil
}

// depths maps each joint to its distance from the root.
func depths(s *skeleton.Skeleton) map[int]int {
	d := map[int]int{s.Root(): 0}
	var walk func(i int)
	walk = func(i int) {
		for _, c := range s.Children(i) {
			d[c] = d[i] + 1
			walk(c)
		}
	}
	walk(s.Root())
	return d
}
