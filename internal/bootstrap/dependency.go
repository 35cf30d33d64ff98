package bootstrap

import (
	"slices"
	"strings"
)

// ResolveDependencies orders names so that every subsystem comes after the
// subsystems it depends on. Among subsystems whose dependencies are
// satisfied, registration order wins, so a graph without edges keeps the
// registration order unchanged.
//
// It fails with ErrDependency for unknown dependencies, self-dependencies and
// cycles.
func ResolveDependencies(names []string, deps map[string][]string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}

	index := make(map[string]int, len(names))
	for i, name := range names {
		if _, exists := index[name]; exists {
			return nil, ErrDuplicateRegistration.WithMessagef("duplicate subsystem name: %s", name)
		}
		index[name] = i
	}

	// 验证所有依赖都存在
	for _, name := range names {
		for _, dep := range deps[name] {
			if _, exists := index[dep]; !exists {
				return nil, ErrDependency.WithMessagef("subsystem %q depends on %q which is not registered", name, dep)
			}
		}
	}

	// 检测循环依赖
	if err := validateNoCycles(names, deps); err != nil {
		return nil, err
	}

	return topologicalSort(names, deps, index), nil
}

// validateNoCycles checks for circular dependencies in the graph.
// Uses DFS with three-color marking: white (unvisited), gray (in progress), black (done).
func validateNoCycles(names []string, graph map[string][]string) error {
	const (
		white = 0 // 未访问
		gray  = 1 // 正在访问（在当前 DFS 路径中）
		black = 2 // 已完成
	)

	color := make(map[string]int, len(names))
	var path []string

	var dfs func(node string) error
	dfs = func(node string) error {
		color[node] = gray
		path = append(path, node)

		for _, dep := range graph[node] {
			switch color[dep] {
			case gray:
				// 发现循环，截取循环路径
				start := slices.Index(path, dep)
				cycle := append(slices.Clone(path[start:]), dep)
				return ErrDependency.WithMessagef("circular dependency detected: %s", strings.Join(cycle, " -> "))
			case white:
				if err := dfs(dep); err != nil {
					return err
				}
			}
		}

		path = path[:len(path)-1]
		color[node] = black
		return nil
	}

	// Visit in registration order so the reported cycle is deterministic.
	for _, name := range names {
		if color[name] == white {
			if err := dfs(name); err != nil {
				return err
			}
		}
	}
	return nil
}

// topologicalSort runs Kahn's algorithm, always taking the ready node with
// the lowest registration index. The graph is known to be acyclic.
func topologicalSort(names []string, graph map[string][]string, index map[string]int) []string {
	inDegree := make(map[string]int, len(names))
	reverseDeps := make(map[string][]string)
	for _, name := range names {
		for _, dep := range graph[name] {
			reverseDeps[dep] = append(reverseDeps[dep], name)
			inDegree[name]++
		}
	}

	byIndex := func(a, b string) int { return index[a] - index[b] }

	var ready []string
	for _, name := range names {
		if inDegree[name] == 0 {
			ready = append(ready, name)
		}
	}

	result := make([]string, 0, len(names))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		result = append(result, name)

		for _, dependent := range reverseDeps[name] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				pos, _ := slices.BinarySearchFunc(ready, dependent, byIndex)
				ready = slices.Insert(ready, pos, dependent)
			}
		}
	}
	return result
}
