package slots

// Definition lists the slot names an intent type needs.
type Definition struct {
	Required []string
	Optional []string
}

// Definitions maps intent types to their slots. Intent types not listed
// have no slots.
var Definitions = map[string]Definition{
	"create_file": {
		Required: []string{"fileType"},
		Optional: []string{"target", "template"},
	},
	"edit_file": {
		Required: []string{"target"},
		Optional: []string{"change"},
	},
	"create_website": {
		Optional: []string{"framework", "style"},
	},
	"deploy": {
		Required: []string{"platform"},
		Optional: []string{"target", "environment"},
	},
	"analyze_data": {
		Required: []string{"dataSource"},
		Optional: []string{"analysisType", "outputFormat"},
	},
	"search": {
		Required: []string{"query"},
		Optional: []string{"scope"},
	},
	"test": {
		Optional: []string{"target", "framework"},
	},
}

// Prompts are the questions asked for each slot.
var Prompts = map[string]string{
	"fileType":     "请选择文件类型",
	"target":       "请输入目标文件名",
	"template":     "请输入模板名称",
	"change":       "请描述要做的修改",
	"framework":    "请选择框架",
	"style":        "请描述网站风格",
	"platform":     "请选择部署平台",
	"environment":  "请选择部署环境",
	"dataSource":   "请输入数据文件路径",
	"analysisType": "请选择分析类型",
	"outputFormat": "请选择输出格式",
	"query":        "请输入搜索内容",
	"scope":        "请输入搜索范围",
}

// Choices are the closed option lists of enumerable slots.
var Choices = map[string][]string{
	"fileType":     {"HTML", "CSS", "JavaScript", "TypeScript", "Python", "Go", "Markdown", "JSON"},
	"platform":     {"vercel", "netlify", "github-pages", "heroku", "aws", "aliyun", "tencent", "docker"},
	"analysisType": {"统计分析", "趋势分析", "相关性分析", "可视化"},
	"environment":  {"development", "staging", "production"},
}

// projectFileTypes is the fileType default per project type.
var projectFileTypes = map[string]string{
	"web":        "HTML",
	"frontend":   "JavaScript",
	"node":       "JavaScript",
	"typescript": "TypeScript",
	"python":     "Python",
	"go":         "Go",
	"docs":       "Markdown",
}

// DefaultPlatform is used when the project does not name one.
const DefaultPlatform = "vercel"

// Lookup returns the slot definition of intentType.
func Lookup(intentType string) Definition {
	return Definitions[intentType]
}

// PromptFor returns the question for slot, falling back to a generic one.
func PromptFor(slot string) string {
	if p, ok := Prompts[slot]; ok {
		return p
	}
	return "请输入 " + slot
}
