package intent

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ShayCichocki/intentflow/pkg/models"
)

// ValidateDependencies returns copies of nodes whose dependencies only
// reference existing, strictly lower priorities, without duplicates.
func ValidateDependencies(nodes []models.IntentNode) []models.IntentNode {
	exists := make(map[int]bool, len(nodes))
	for _, n := range nodes {
		exists[n.Priority] = true
	}

	out := make([]models.IntentNode, len(nodes))
	for i, n := range nodes {
		c := n.Clone()
		seen := make(map[int]bool, len(n.Dependencies))
		c.Dependencies = make([]int, 0, len(n.Dependencies))
		for _, d := range n.Dependencies {
			if d >= n.Priority || !exists[d] || seen[d] {
				continue
			}
			seen[d] = true
			c.Dependencies = append(c.Dependencies, d)
		}
		out[i] = c
	}
	return out
}

// DetectCyclicDependency reports whether the priority references of nodes
// form a cycle. References to missing priorities are ignored.
func DetectCyclicDependency(nodes []models.IntentNode) bool {
	byPriority := make(map[int]models.IntentNode, len(nodes))
	for _, n := range nodes {
		byPriority[n.Priority] = n
	}

	// 0 = unvisited, 1 = in progress, 2 = done.
	colors := make(map[int]int, len(nodes))
	var visit func(p int) bool
	visit = func(p int) bool {
		colors[p] = 1
		for _, d := range byPriority[p].Dependencies {
			if _, ok := byPriority[d]; !ok {
				continue
			}
			switch colors[d] {
			case 1:
				return true
			case 0:
				if visit(d) {
					return true
				}
			}
		}
		colors[p] = 2
		return false
	}

	for _, n := range nodes {
		if colors[n.Priority] == 0 && visit(n.Priority) {
			return true
		}
	}
	return false
}

// ExecutionOrder returns nodes sorted by ascending priority.
func ExecutionOrder(nodes []models.IntentNode) []models.IntentNode {
	out := append([]models.IntentNode(nil), nodes...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}

// GenerateSummary renders one numbered line per intent, e.g.
//
//	1. 创建网站 [create_website]
//	2. 部署到云端 [deploy] (依赖: 任务1)
func GenerateSummary(nodes []models.IntentNode) string {
	var sb strings.Builder
	for i, n := range ExecutionOrder(nodes) {
		if i > 0 {
			sb.WriteByte('\n')
		}
		desc := n.Description
		if desc == "" {
			desc = n.Intent
		}
		fmt.Fprintf(&sb, "%d. %s [%s]", n.Priority, desc, n.Intent)
		if len(n.Dependencies) > 0 {
			deps := make([]string, len(n.Dependencies))
			for j, d := range n.Dependencies {
				deps[j] = strconv.Itoa(d)
			}
			fmt.Fprintf(&sb, " (依赖: 任务%s)", strings.Join(deps, ", "))
		}
	}
	return sb.String()
}
