package intent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/intentflow/internal/classifier"
	"github.com/ShayCichocki/intentflow/internal/llm"
	"github.com/ShayCichocki/intentflow/pkg/models"
)

func fixedLLM(content string, err error) llm.Completer {
	return llm.CompleterFunc(func(ctx context.Context, req llm.Request) (llm.Response, error) {
		return llm.Response{Content: content}, err
	})
}

func TestDetectMultipleIntents(t *testing.T) {
	r := New()
	assert.True(t, r.DetectMultipleIntents("创建网站并部署到云端"))
	assert.True(t, r.DetectMultipleIntents("write the tests then deploy"))
	assert.True(t, r.DetectMultipleIntents("创建文件，部署"))
	assert.False(t, r.DetectMultipleIntents("创建网站"))
	assert.False(t, r.DetectMultipleIntents("deploy the app"))
}

func TestRuleBasedSplitWebsiteAndDeploy(t *testing.T) {
	nodes := New().RuleBasedSplit("创建网站并部署到云端", models.Context{})

	require.Len(t, nodes, 2)
	assert.Equal(t, "创建网站", nodes[0].Description)
	assert.Equal(t, "create_website", nodes[0].Intent)
	assert.Equal(t, 1, nodes[0].Priority)
	assert.Empty(t, nodes[0].Dependencies)

	assert.Equal(t, "部署到云端", nodes[1].Description)
	assert.Equal(t, "deploy", nodes[1].Intent)
	assert.Equal(t, 2, nodes[1].Priority)
	assert.Equal(t, []int{1}, nodes[1].Dependencies)
	assert.Equal(t, 0.6, nodes[1].Confidence)
}

func TestRuleBasedSplitPatterns(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"首先创建html文件，然后编辑样式，最后部署到vercel", []string{"创建html文件", "编辑样式", "部署到vercel"}},
		{"先分析数据再生成报告", []string{"分析数据", "生成报告"}},
		{"写测试然后部署", []string{"写测试", "部署"}},
		{"write tests then deploy", []string{"write tests", "deploy"}},
		{"创建文件；搜索文档", []string{"创建文件", "搜索文档"}},
		{"创建网站", []string{"创建网站"}},
	}
	r := New()
	for _, tc := range tests {
		nodes := r.RuleBasedSplit(tc.text, models.Context{})
		got := make([]string, len(nodes))
		for i, n := range nodes {
			got[i] = n.Description
			if i > 0 {
				assert.Equal(t, []int{i}, n.Dependencies, tc.text)
			}
		}
		assert.Equal(t, tc.want, got, tc.text)
	}
}

func TestRuleBasedSplitEntities(t *testing.T) {
	nodes := New().RuleBasedSplit("创建html页面并部署到vercel", models.Context{})
	require.Len(t, nodes, 2)
	assert.Equal(t, "HTML", nodes[0].Entities["fileType"])
	assert.Equal(t, "vercel", nodes[1].Entities["platform"])
}

func TestRuleBasedSplitEmpty(t *testing.T) {
	nodes := New().RuleBasedSplit("  ", models.Context{})
	require.Len(t, nodes, 1)
	assert.Equal(t, models.IntentUnknown, nodes[0].Intent)
	assert.Equal(t, 0.1, nodes[0].Confidence)
}

func TestClassifyMultipleEmptyInput(t *testing.T) {
	rec, err := New().ClassifyMultiple(context.Background(), "", models.Context{})
	require.NoError(t, err)
	require.Len(t, rec.Intents, 1)
	assert.Equal(t, models.IntentUnknown, rec.Intents[0].Intent)
	assert.Equal(t, 0.1, rec.Intents[0].Confidence)
	assert.False(t, rec.Multiple)
}

func TestClassifyMultipleSingleUsesClassifier(t *testing.T) {
	var calls int32
	c := classifier.Func(func(ctx context.Context, text string, mctx models.Context) (classifier.Classification, error) {
		atomic.AddInt32(&calls, 1)
		return classifier.Classification{Intent: "deploy", Entities: map[string]string{"platform": "aws"}, Confidence: 0.95}, nil
	})
	rec, err := New(WithClassifier(c)).ClassifyMultiple(context.Background(), "deploy to aws", models.Context{})
	require.NoError(t, err)

	assert.Equal(t, SourceClassifier, rec.Source)
	require.Len(t, rec.Intents, 1)
	assert.Equal(t, "deploy", rec.Intents[0].Intent)
	assert.Equal(t, 0.95, rec.Intents[0].Confidence)
	assert.EqualValues(t, 1, calls)
}

func TestClassifyMultipleUsesLLM(t *testing.T) {
	resp := "```json\n" + `{"intents":[
		{"intent":"create_website","description":"创建网站","entities":{"fileType":"HTML"},"dependencies":[],"confidence":0.9},
		{"intent":"deploy","description":"部署到云端","entities":{"platform":"aws","replicas":2},"dependencies":[1,1,2,7],"confidence":0.85}
	]}` + "\n```"
	r := New(WithLLM(fixedLLM(resp, nil)))

	rec, err := r.ClassifyMultiple(context.Background(), "创建网站并部署到云端", models.Context{})
	require.NoError(t, err)
	assert.Equal(t, SourceLLM, rec.Source)
	assert.True(t, rec.Multiple)
	require.Len(t, rec.Intents, 2)
	assert.Equal(t, []int{1}, rec.Intents[1].Dependencies, "self, duplicate and missing refs dropped")
	assert.Equal(t, "2", rec.Intents[1].Entities["replicas"])
	assert.Equal(t, 1, r.Stats().LLMSplits)
}

func TestClassifyMultipleFallsBackToRules(t *testing.T) {
	tests := map[string]llm.Completer{
		"no llm":       nil,
		"llm error":    fixedLLM("", errors.New("rate limited")),
		"invalid json": fixedLLM("sorry, I cannot", nil),
		"empty list":   fixedLLM(`{"intents":[]}`, nil),
	}
	for name, c := range tests {
		t.Run(name, func(t *testing.T) {
			r := New(WithLLM(c))
			rec, err := r.ClassifyMultiple(context.Background(), "创建网站并部署到云端", models.Context{})
			require.NoError(t, err)
			assert.Equal(t, SourceRules, rec.Source)
			require.Len(t, rec.Intents, 2)
			assert.Equal(t, []int{1}, rec.Intents[1].Dependencies)
		})
	}
}

func TestClassifyMultipleContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().ClassifyMultiple(ctx, "创建网站并部署", models.Context{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEnrichIntents(t *testing.T) {
	c := classifier.Func(func(ctx context.Context, text string, mctx models.Context) (classifier.Classification, error) {
		if text == "boom" {
			return classifier.Classification{}, errors.New("classifier down")
		}
		return classifier.Classification{Intent: "search", Entities: map[string]string{"query": text}, Confidence: 0.77}, nil
	})
	r := New(WithClassifier(c), WithEnrichConcurrency(2))

	in := []models.IntentNode{
		{Intent: "create_file", Priority: 1, Description: "a", Entities: map[string]string{"query": "old", "fileType": "HTML"}},
		{Intent: models.IntentUnknown, Priority: 2, Description: "b"},
		{Intent: "deploy", Priority: 3, Description: "boom", Confidence: 0.6},
	}
	out, err := r.EnrichIntents(context.Background(), in, models.Context{})
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, "create_file", out[0].Intent, "known intent kept")
	assert.Equal(t, "a", out[0].Entities["query"], "classifier entities win")
	assert.Equal(t, "HTML", out[0].Entities["fileType"])
	assert.Equal(t, 0.77, out[0].Confidence)

	assert.Equal(t, "search", out[1].Intent, "unknown intent replaced")
	assert.Equal(t, 0.5, out[2].Confidence)
	assert.Equal(t, "deploy", out[2].Intent)

	assert.Equal(t, "old", in[0].Entities["query"], "input not mutated")
}

func TestClassifyMultipleWithEnrichment(t *testing.T) {
	r := New(WithEnrichment(true))
	rec, err := r.ClassifyMultiple(context.Background(), "创建网站并部署到vercel", models.Context{})
	require.NoError(t, err)
	require.Len(t, rec.Intents, 2)
	assert.Equal(t, "vercel", rec.Intents[1].Entities["platform"])
	assert.Equal(t, 0.7, rec.Intents[1].Confidence)
}
