package slots

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/intentflow/internal/llm"
	"github.com/ShayCichocki/intentflow/internal/toolmask"
	"github.com/ShayCichocki/intentflow/pkg/models"
)

type memHistory struct {
	mu      sync.Mutex
	records []Record
	err     error
}

func (h *memHistory) RecordFilling(_ context.Context, r Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.records = append(h.records, r)
	return nil
}

func (h *memHistory) RecentFillings(_ context.Context, userID, intentType string, limit int) ([]Record, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return nil, h.err
	}
	var out []Record
	for i := len(h.records) - 1; i >= 0 && len(out) < limit; i-- {
		r := h.records[i]
		if r.UserID == userID && r.IntentType == intentType {
			out = append(out, r)
		}
	}
	return out, nil
}

type askCall struct {
	question string
	options  []string
}

func scriptedAsk(answers map[string]string, calls *[]askCall) AskUserFunc {
	return func(_ context.Context, q string, opts []string) (string, error) {
		*calls = append(*calls, askCall{q, opts})
		for slot, a := range answers {
			if Prompts[slot] == q {
				return a, nil
			}
		}
		return "", nil
	}
}

func TestValidateSlots_CreateFile(t *testing.T) {
	v := ValidateSlots("create_file", map[string]string{})
	assert.False(t, v.Valid)
	assert.Equal(t, []string{"fileType"}, v.MissingRequired)
	assert.Equal(t, 0.0, v.Completeness)

	v = ValidateSlots("create_file", map[string]string{"fileType": "HTML"})
	assert.True(t, v.Valid)
	assert.Empty(t, v.MissingRequired)
	assert.Equal(t, 100.0, v.Completeness)
}

func TestValidateSlots_NoRequiredIsComplete(t *testing.T) {
	v := ValidateSlots("create_website", nil)
	assert.True(t, v.Valid)
	assert.Equal(t, 100.0, v.Completeness)

	v = ValidateSlots("never_heard_of_it", nil)
	assert.True(t, v.Valid)
	assert.Equal(t, 100.0, v.Completeness)
}

func TestValidateSlots_BlankCountsAsMissing(t *testing.T) {
	v := ValidateSlots("deploy", map[string]string{"platform": "  "})
	assert.Equal(t, []string{"platform"}, v.MissingRequired)
}

func TestInferFromContext(t *testing.T) {
	tests := []struct {
		name     string
		slots    []string
		mctx     models.Context
		entities map[string]string
		want     map[string]string
	}{
		{
			name:  "file type from current file",
			slots: []string{"fileType"},
			mctx:  models.Context{CurrentFile: "src/app.py"},
			want:  map[string]string{"fileType": "Python"},
		},
		{
			name:  "file type from project type",
			slots: []string{"fileType"},
			mctx:  models.Context{ProjectType: "web"},
			want:  map[string]string{"fileType": "HTML"},
		},
		{
			name:     "target from entities",
			slots:    []string{"target"},
			mctx:     models.Context{CurrentFile: "/tmp/other.go"},
			entities: map[string]string{"target": "index.html"},
			want:     map[string]string{"target": "index.html"},
		},
		{
			name:  "target from current file name",
			slots: []string{"target"},
			mctx:  models.Context{CurrentFile: "/tmp/other.go"},
			want:  map[string]string{"target": "other.go"},
		},
		{
			name:  "platform from project config",
			slots: []string{"platform"},
			mctx:  models.Context{ProjectConfig: map[string]string{"deployPlatform": "netlify"}},
			want:  map[string]string{"platform": "netlify"},
		},
		{
			name:  "platform default",
			slots: []string{"platform"},
			want:  map[string]string{"platform": "vercel"},
		},
		{
			name:  "data source from data file",
			slots: []string{"dataSource"},
			mctx:  models.Context{CurrentFile: "sales.CSV"},
			want:  map[string]string{"dataSource": "sales.CSV"},
		},
		{
			name:  "no data source from code file",
			slots: []string{"dataSource"},
			mctx:  models.Context{CurrentFile: "main.go"},
			want:  map[string]string{},
		},
		{
			name:  "slot without rule",
			slots: []string{"query"},
			mctx:  models.Context{CurrentFile: "main.go"},
			want:  map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferFromContext(tt.slots, tt.mctx, tt.entities))
		})
	}
}

func TestFillSlots_EntitiesThenContext(t *testing.T) {
	f := New()
	node := models.IntentNode{
		Intent:   "deploy",
		Entities: map[string]string{"target": "dist"},
	}

	res, err := f.FillSlots(context.Background(), node, models.Context{}, nil)
	require.NoError(t, err)

	assert.True(t, res.Valid)
	assert.Equal(t, "dist", res.Slots["target"])
	assert.Equal(t, SourceEntity, res.Sources["target"])
	assert.Equal(t, "vercel", res.Slots["platform"])
	assert.Equal(t, SourceContext, res.Sources["platform"])
	assert.True(t, res.ToolAvailable)

	p, ok := res.Params().(models.DeployParams)
	require.True(t, ok)
	assert.Equal(t, "vercel", p.Platform)
}

func TestFillSlots_AsksForMissingRequired(t *testing.T) {
	var calls []askCall
	f := New()
	node := models.IntentNode{Intent: "create_file"}

	res, err := f.FillSlots(context.Background(), node, models.Context{}, scriptedAsk(map[string]string{"fileType": " Go "}, &calls))
	require.NoError(t, err)

	require.Len(t, calls, 1)
	assert.Equal(t, Prompts["fileType"], calls[0].question)
	assert.Equal(t, Choices["fileType"], calls[0].options)
	assert.Equal(t, "Go", res.Slots["fileType"])
	assert.Equal(t, SourceUser, res.Sources["fileType"])
	assert.Equal(t, 100.0, res.Completeness)
}

func TestFillSlots_FreeTextHasNoOptions(t *testing.T) {
	var calls []askCall
	f := New()

	res, err := f.FillSlots(context.Background(), models.IntentNode{Intent: "search"}, models.Context{}, scriptedAsk(nil, &calls))
	require.NoError(t, err)

	require.Len(t, calls, 1)
	assert.Nil(t, calls[0].options)
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"query"}, res.MissingRequired)
}

func TestFillSlots_NoCallbackLeavesMissing(t *testing.T) {
	res, err := New().FillSlots(context.Background(), models.IntentNode{Intent: "create_file"}, models.Context{}, nil)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, 0.0, res.Completeness)
}

func TestFillSlots_Aborted(t *testing.T) {
	ask := func(context.Context, string, []string) (string, error) { return "", ErrAborted }

	_, err := New().FillSlots(context.Background(), models.IntentNode{Intent: "create_file"}, models.Context{}, ask)
	assert.ErrorIs(t, err, ErrAborted)
}

func TestFillSlots_AskErrorIsSwallowed(t *testing.T) {
	ask := func(context.Context, string, []string) (string, error) { return "", errors.New("tty closed") }

	res, err := New().FillSlots(context.Background(), models.IntentNode{Intent: "create_file"}, models.Context{}, ask)
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

func TestFillSlots_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().FillSlots(ctx, models.IntentNode{Intent: "deploy"}, models.Context{}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFillSlots_OptionalFromLLM(t *testing.T) {
	var prompts []string
	completer := llm.CompleterFunc(func(_ context.Context, req llm.Request) (llm.Response, error) {
		p := req.Messages[0].Content
		prompts = append(prompts, p)
		switch {
		case strings.Contains(p, `"target"`):
			return llm.Response{Content: `"index.html"`}, nil
		case strings.Contains(p, `"template"`):
			return llm.Response{Content: CannotInfer}, nil
		}
		return llm.Response{}, errors.New("unexpected")
	})

	f := New(WithLLM(completer))
	node := models.IntentNode{Intent: "create_file", Description: "创建HTML首页", Entities: map[string]string{"fileType": "HTML"}}

	res, err := f.FillSlots(context.Background(), node, models.Context{}, nil)
	require.NoError(t, err)

	assert.Len(t, prompts, 2)
	assert.Equal(t, "index.html", res.Slots["target"])
	assert.Equal(t, SourceLLM, res.Sources["target"])
	assert.NotContains(t, res.Slots, "template")
}

func TestFillSlots_LLMAnswerRejection(t *testing.T) {
	tests := []struct {
		name    string
		content string
		err     error
	}{
		{"too long", strings.Repeat("很", 51), nil},
		{"sentinel inside sentence", "抱歉，无法推断。", nil},
		{"provider error", "", errors.New("boom")},
		{"empty", "   ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := llm.CompleterFunc(func(context.Context, llm.Request) (llm.Response, error) {
				return llm.Response{Content: tt.content}, tt.err
			})
			f := New(WithLLM(completer))
			node := models.IntentNode{Intent: "deploy", Entities: map[string]string{"platform": "aws"}}

			res, err := f.FillSlots(context.Background(), node, models.Context{}, nil)
			require.NoError(t, err)
			assert.Equal(t, map[string]string{"platform": "aws"}, res.Slots)
		})
	}
}

func TestFillSlots_LLMSkippedWhenRequiredMissing(t *testing.T) {
	called := false
	completer := llm.CompleterFunc(func(context.Context, llm.Request) (llm.Response, error) {
		called = true
		return llm.Response{Content: "x"}, nil
	})

	_, err := New(WithLLM(completer)).FillSlots(context.Background(), models.IntentNode{Intent: "create_file"}, models.Context{}, nil)
	require.NoError(t, err)
	assert.False(t, called)
}

func TestFillSlots_ToolAvailability(t *testing.T) {
	mask := toolmask.New(toolmask.Config{DefaultAvailable: true})
	require.NoError(t, mask.Register(toolmask.Tool{Name: "deploy"}))
	mask.SetToolAvailability("deploy", false)

	f := New(WithToolMask(mask))
	res, err := f.FillSlots(context.Background(), models.IntentNode{Intent: "deploy"}, models.Context{}, nil)
	require.NoError(t, err)
	assert.False(t, res.ToolAvailable)

	res, err = f.FillSlots(context.Background(), models.IntentNode{Intent: "create_file"}, models.Context{}, nil)
	require.NoError(t, err)
	assert.True(t, res.ToolAvailable, "unregistered tools are not blocked")
}

func TestHistory_RecordAndLearn(t *testing.T) {
	h := &memHistory{}
	f := New(WithHistoryStore(h))
	ctx := context.Background()

	f.RecordFillingHistory(ctx, "u1", &Result{Intent: "deploy", Slots: map[string]string{"platform": "netlify"}})
	assert.Nil(t, f.LearnUserPreference(ctx, "u1", "deploy"), "one occurrence is not a preference")

	f.RecordFillingHistory(ctx, "u1", &Result{Intent: "deploy", Slots: map[string]string{"platform": "aws"}})
	f.RecordFillingHistory(ctx, "u1", &Result{Intent: "deploy", Slots: map[string]string{"platform": "netlify"}})
	f.RecordFillingHistory(ctx, "u2", &Result{Intent: "deploy", Slots: map[string]string{"platform": "aws"}})

	assert.Equal(t, map[string]string{"platform": "netlify"}, f.LearnUserPreference(ctx, "u1", "deploy"))
	assert.Nil(t, f.LearnUserPreference(ctx, "", "deploy"))
}

func TestHistory_ErrorsAreSwallowed(t *testing.T) {
	h := &memHistory{err: errors.New("db locked")}
	f := New(WithHistoryStore(h))

	f.RecordFillingHistory(context.Background(), "u1", &Result{Intent: "deploy", Slots: map[string]string{"platform": "aws"}})
	assert.Nil(t, f.LearnUserPreference(context.Background(), "u1", "deploy"))
}

func TestFillSlots_PreferenceOrdersChoices(t *testing.T) {
	h := &memHistory{}
	for i := 0; i < 2; i++ {
		h.records = append(h.records, Record{UserID: "u1", IntentType: "create_file", Entities: map[string]string{"fileType": "Go"}})
	}
	var calls []askCall
	f := New(WithHistoryStore(h))

	_, err := f.FillSlots(context.Background(), models.IntentNode{Intent: "create_file"}, models.Context{UserID: "u1"}, scriptedAsk(nil, &calls))
	require.NoError(t, err)

	require.Len(t, calls, 1)
	assert.Equal(t, "Go", calls[0].options[0])
	assert.Len(t, calls[0].options, len(Choices["fileType"]))
	assert.Equal(t, "HTML", Choices["fileType"][0], "shared table must not be reordered")
}

func TestSummarize(t *testing.T) {
	res := &Result{
		Intent:     "edit_file",
		Slots:      map[string]string{},
		Validation: Validation{MissingRequired: []string{"target"}, Completeness: 66.6},
	}
	s := Summarize(res)
	assert.Equal(t, 67, s.Completeness)
	assert.Equal(t, "edit_file: 67% complete, missing target", s.String())

	assert.Equal(t, Summary{}, Summarize(nil))
}
