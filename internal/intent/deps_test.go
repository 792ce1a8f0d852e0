package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ShayCichocki/intentflow/pkg/models"
)

func TestValidateDependenciesOnlyLowerPriorities(t *testing.T) {
	nodes := []models.IntentNode{
		{Priority: 1, Dependencies: []int{1, 2}},
		{Priority: 2, Dependencies: []int{1, 1, 3}},
		{Priority: 3, Dependencies: []int{0, 2, 1, 9}},
	}
	out := ValidateDependencies(nodes)

	assert.Empty(t, out[0].Dependencies)
	assert.Equal(t, []int{1}, out[1].Dependencies)
	assert.Equal(t, []int{2, 1}, out[2].Dependencies)
	for _, n := range out {
		for _, d := range n.Dependencies {
			assert.Less(t, d, n.Priority)
		}
	}
	assert.False(t, DetectCyclicDependency(out))
	assert.Equal(t, []int{1, 2}, nodes[0].Dependencies, "input untouched")
}

func TestDetectCyclicDependency(t *testing.T) {
	assert.False(t, DetectCyclicDependency(nil))
	assert.False(t, DetectCyclicDependency([]models.IntentNode{
		{Priority: 1}, {Priority: 2, Dependencies: []int{1}}, {Priority: 3, Dependencies: []int{1, 2}},
	}))
	assert.True(t, DetectCyclicDependency([]models.IntentNode{
		{Priority: 1, Dependencies: []int{2}}, {Priority: 2, Dependencies: []int{1}},
	}))
	assert.True(t, DetectCyclicDependency([]models.IntentNode{{Priority: 1, Dependencies: []int{1}}}))
	assert.False(t, DetectCyclicDependency([]models.IntentNode{{Priority: 1, Dependencies: []int{5}}}))
}

func TestExecutionOrderAndSummary(t *testing.T) {
	nodes := []models.IntentNode{
		{Intent: "deploy", Priority: 3, Description: "部署", Dependencies: []int{1, 2}},
		{Intent: "create_website", Priority: 1, Description: "创建网站"},
		{Intent: "test", Priority: 2, Description: "测试", Dependencies: []int{1}},
	}

	ordered := ExecutionOrder(nodes)
	assert.Equal(t, 1, ordered[0].Priority)
	assert.Equal(t, 3, ordered[2].Priority)
	assert.Equal(t, 3, nodes[0].Priority, "input order untouched")

	want := "1. 创建网站 [create_website]\n" +
		"2. 测试 [test] (依赖: 任务1)\n" +
		"3. 部署 [deploy] (依赖: 任务1, 2)"
	assert.Equal(t, want, GenerateSummary(nodes))
}
