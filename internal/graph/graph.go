// Package graph builds the static dependency graph of a compose
// topology. It orders services, rejects cycles and renders Graphviz
// output; executing the graph is the orchestrator's job, not ours.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Paintersrp/berth/internal/compose"
)

var errNilProject = errors.New("cannot build graph from a nil project")

// Graph represents service startup dependencies.
type Graph struct {
	services   map[string]*compose.Service
	edges      map[string][]string
	reverse    map[string][]string
	conditions map[string]map[string]string
	order      []string
}

// Build constructs the dependency graph and validates acyclicity.
func Build(project *compose.Project) (*Graph, error) {
	if project == nil {
		return nil, errNilProject
	}

	g := &Graph{
		services:   make(map[string]*compose.Service, len(project.Services)),
		edges:      make(map[string][]string, len(project.Services)),
		reverse:    make(map[string][]string, len(project.Services)),
		conditions: make(map[string]map[string]string),
	}
	for _, name := range project.ServicesSorted() {
		svc := project.Services[name]
		g.services[name] = svc
		if _, ok := g.edges[name]; !ok {
			g.edges[name] = nil
		}
		if svc == nil {
			continue
		}
		for _, target := range svc.DependsOn.Services() {
			dep, _ := svc.DependsOn.Get(target)
			g.edges[name] = append(g.edges[name], target)
			g.reverse[target] = append(g.reverse[target], name)
			if _, ok := g.edges[target]; !ok {
				g.edges[target] = nil
			}
			if g.conditions[name] == nil {
				g.conditions[name] = make(map[string]string)
			}
			g.conditions[name][target] = dep.EffectiveCondition()
		}
	}

	order, err := topoSort(g.edges)
	if err != nil {
		return nil, err
	}
	g.order = order
	return g, nil
}

// Services returns service names ordered with dependents before their
// dependencies.
func (g *Graph) Services() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// StartupOrder returns service names in the order an orchestrator
// would start them: dependencies first.
func (g *Graph) StartupOrder() []string {
	out := make([]string, len(g.order))
	for i, name := range g.order {
		out[len(g.order)-1-i] = name
	}
	return out
}

// Dependencies returns the direct dependency targets of a service.
func (g *Graph) Dependencies(name string) []string {
	deps := g.edges[name]
	out := make([]string, len(deps))
	copy(out, deps)
	return out
}

// Dependents returns services that depend on the provided service.
func (g *Graph) Dependents(name string) []string {
	deps := g.reverse[name]
	out := make([]string, len(deps))
	copy(out, deps)
	return out
}

// Condition returns the startup condition attached to an edge.
func (g *Graph) Condition(from, to string) string {
	if conds, ok := g.conditions[from]; ok {
		if cond, ok := conds[to]; ok {
			return cond
		}
	}
	return compose.ConditionStarted
}

// Roots returns services no other service depends on, sorted.
func (g *Graph) Roots() []string {
	var roots []string
	for name := range g.edges {
		if len(g.reverse[name]) == 0 {
			roots = append(roots, name)
		}
	}
	sort.Strings(roots)
	return roots
}

// DOT renders the graph in Graphviz dot format with edges labeled by
// their startup condition.
func (g *Graph) DOT() string {
	var b strings.Builder
	b.WriteString("digraph services {\n")

	for _, svc := range g.order {
		label := svc
		if spec := g.services[svc]; spec != nil && spec.Image != "" {
			label += `\n` + spec.Image
		}
		b.WriteString(fmt.Sprintf("  %q [label=\"%s\"];\n", svc, label))
	}

	for _, from := range g.order {
		for _, to := range g.edges[from] {
			b.WriteString(fmt.Sprintf("  %q -> %q [label=%q];\n", from, to, g.Condition(from, to)))
		}
	}

	b.WriteString("}\n")
	return b.String()
}

func topoSort(edges map[string][]string) ([]string, error) {
	indegree := make(map[string]int)
	for from := range edges {
		if _, ok := indegree[from]; !ok {
			indegree[from] = 0
		}
		for _, to := range edges[from] {
			indegree[to]++
		}
	}
	queue := make([]string, 0, len(indegree))
	for node, deg := range indegree {
		if deg == 0 {
			queue = append(queue, node)
		}
	}
	sort.Strings(queue)
	order := make([]string, 0, len(indegree))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)
		ready := make([]string, 0)
		for _, dep := range edges[node] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
		sort.Strings(ready)
		queue = append(queue, ready...)
	}
	if len(order) != len(indegree) {
		cycle := detectCycle(edges)
		return nil, fmt.Errorf("dependency cycle detected: %s", strings.Join(cycle, " -> "))
	}
	return order, nil
}

func detectCycle(edges map[string][]string) []string {
	visited := make(map[string]bool)
	stack := make([]string, 0)

	var dfs func(string) []string
	dfs = func(node string) []string {
		visited[node] = true
		stack = append(stack, node)
		for _, next := range edges[node] {
			onStack := false
			for _, cur := range stack {
				if cur == next {
					onStack = true
					break
				}
			}
			if onStack {
				return appendStack(stack, next)
			}
			if !visited[next] {
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		return nil
	}

	nodes := make([]string, 0, len(edges))
	for node := range edges {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	for _, node := range nodes {
		if !visited[node] {
			if cycle := dfs(node); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

func appendStack(stack []string, target string) []string {
	idx := -1
	for i, node := range stack {
		if node == target {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil
	}
	out := make([]string, 0, len(stack)-idx+1)
	for i := idx; i < len(stack); i++ {
		out = append(out, stack[i])
	}
	out = append(out, target)
	return out
}
