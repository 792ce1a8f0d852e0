package classifier

import "strings"

// IntentKeywords lists the trigger words of one intent type.
type IntentKeywords struct {
	Intent   string
	Keywords []string
}

// DefaultIntentKeywords is the single source of truth for keyword-based
// intent detection. It is shared by KeywordClassifier and the multi-intent
// recognizer. Order matters: on equal match counts the earlier entry wins,
// so specific intents precede generic ones like create_file.
var DefaultIntentKeywords = []IntentKeywords{
	{
		Intent:   "deploy",
		Keywords: []string{"部署", "发布", "上线", "deploy", "publish", "release"},
	},
	{
		Intent:   "create_website",
		Keywords: []string{"网站", "网页", "页面", "website", "web page", "landing page", "homepage"},
	},
	{
		Intent:   "analyze_data",
		Keywords: []string{"分析", "统计", "数据", "报表", "analyze", "analyse", "analysis", "statistics", "report"},
	},
	{
		Intent:   "test",
		Keywords: []string{"测试", "单元测试", "test", "unit test"},
	},
	{
		Intent:   "search",
		Keywords: []string{"搜索", "查找", "查询", "search", "find", "look up", "lookup"},
	},
	{
		Intent:   "edit_file",
		Keywords: []string{"修改", "编辑", "更新", "重构", "edit", "modify", "update", "change", "refactor"},
	},
	{
		Intent:   "create_file",
		Keywords: []string{"创建", "新建", "生成", "编写", "create", "new file", "generate", "write", "make"},
	},
}

// Match is the outcome of keyword matching.
type Match struct {
	// Intent is the winning intent type, or "unknown".
	Intent string
	// Matched lists the keywords of the winning intent found in the text.
	Matched []string
}

// MatchKeywords scores every intent by the number of its keywords found in
// text and returns the best one.
func MatchKeywords(table []IntentKeywords, text string) Match {
	lower := strings.ToLower(text)
	best := Match{Intent: unknownIntent}
	for _, entry := range table {
		var hits []string
		for _, kw := range entry.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				hits = append(hits, kw)
			}
		}
		if len(hits) > len(best.Matched) {
			best = Match{Intent: entry.Intent, Matched: hits}
		}
	}
	return best
}

// GuessIntent returns the intent type suggested by DefaultIntentKeywords,
// or "unknown".
func GuessIntent(text string) string {
	return MatchKeywords(DefaultIntentKeywords, text).Intent
}
