package classifier

import (
	"path/filepath"
	"regexp"
	"strings"
)

// DataExtensions are the file extensions treated as data sources.
var DataExtensions = map[string]bool{
	".csv":  true,
	".json": true,
	".xlsx": true,
	".xls":  true,
	".tsv":  true,
}

var fileTypePatterns = []struct {
	re   *regexp.Regexp
	name string
}{
	{regexp.MustCompile(`(?i)\bhtml\b`), "HTML"},
	{regexp.MustCompile(`(?i)\bcss\b`), "CSS"},
	{regexp.MustCompile(`(?i)\btypescript\b|\bts\b`), "TypeScript"},
	{regexp.MustCompile(`(?i)\bjavascript\b|\bjs\b`), "JavaScript"},
	{regexp.MustCompile(`(?i)\bpython\b|\bpy\b`), "Python"},
	{regexp.MustCompile(`(?i)\bgolang\b|\bgo\b`), "Go"},
	{regexp.MustCompile(`(?i)\bmarkdown\b|\bmd\b`), "Markdown"},
	{regexp.MustCompile(`(?i)\bjson\b`), "JSON"},
	{regexp.MustCompile(`(?i)\bya?ml\b`), "YAML"},
}

var extensionFileTypes = map[string]string{
	".html": "HTML",
	".htm":  "HTML",
	".css":  "CSS",
	".js":   "JavaScript",
	".jsx":  "JavaScript",
	".ts":   "TypeScript",
	".tsx":  "TypeScript",
	".py":   "Python",
	".go":   "Go",
	".md":   "Markdown",
	".json": "JSON",
	".yaml": "YAML",
	".yml":  "YAML",
	".csv":  "CSV",
}

var platformPatterns = []struct {
	re   *regexp.Regexp
	name string
}{
	{regexp.MustCompile(`(?i)vercel`), "vercel"},
	{regexp.MustCompile(`(?i)netlify`), "netlify"},
	{regexp.MustCompile(`(?i)github\s*pages`), "github-pages"},
	{regexp.MustCompile(`(?i)heroku`), "heroku"},
	{regexp.MustCompile(`(?i)\baws\b|amazon|亚马逊`), "aws"},
	{regexp.MustCompile(`(?i)阿里云|aliyun`), "aliyun"},
	{regexp.MustCompile(`(?i)腾讯云|tencent`), "tencent"},
	{regexp.MustCompile(`(?i)docker`), "docker"},
}

var fileNameRe = regexp.MustCompile(`[\w\-./]+\.(?:html?|css|jsx?|tsx?|py|go|md|json|ya?ml|csv|tsv|xlsx?|txt)\b`)

// FileTypeForExtension maps a file name or extension to a file type label.
func FileTypeForExtension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" && strings.HasPrefix(name, ".") {
		ext = strings.ToLower(name)
	}
	return extensionFileTypes[ext]
}

// ExtractFileType finds a file type mentioned by name or implied by a file name.
func ExtractFileType(text string) string {
	if name := ExtractTarget(text); name != "" {
		if ft := FileTypeForExtension(name); ft != "" {
			return ft
		}
	}
	for _, p := range fileTypePatterns {
		if p.re.MatchString(text) {
			return p.name
		}
	}
	return ""
}

// ExtractPlatform finds a deployment platform.
func ExtractPlatform(text string) string {
	for _, p := range platformPatterns {
		if p.re.MatchString(text) {
			return p.name
		}
	}
	return ""
}

// ExtractTarget returns the first file name in text.
func ExtractTarget(text string) string {
	return fileNameRe.FindString(text)
}

// ExtractDataSource returns the first data file name in text.
func ExtractDataSource(text string) string {
	for _, name := range fileNameRe.FindAllString(text, -1) {
		if DataExtensions[strings.ToLower(filepath.Ext(name))] {
			return name
		}
	}
	return ""
}

// ExtractEntities runs every extractor and returns the non-empty results.
func ExtractEntities(text string) map[string]string {
	out := make(map[string]string)
	set := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	set("fileType", ExtractFileType(text))
	set("platform", ExtractPlatform(text))
	set("target", ExtractTarget(text))
	set("dataSource", ExtractDataSource(text))
	return out
}
