package models

import (
	"sort"
	"strings"
)

// TaskKind identifies a known kind of task.
type TaskKind string

const (
	KindCreateFile    TaskKind = "create_file"
	KindEditFile      TaskKind = "edit_file"
	KindCreateWebsite TaskKind = "create_website"
	KindDeploy        TaskKind = "deploy"
	KindAnalyzeData   TaskKind = "analyze_data"
	KindSearch        TaskKind = "search"
	KindTest          TaskKind = "test"
	// KindOpaque carries kinds this module does not know about.
	KindOpaque TaskKind = "opaque"
)

// Valid returns true if the kind is a known value.
func (k TaskKind) Valid() bool {
	switch k {
	case KindCreateFile, KindEditFile, KindCreateWebsite, KindDeploy,
		KindAnalyzeData, KindSearch, KindTest, KindOpaque:
		return true
	default:
		return false
	}
}

// Params is the typed parameter record of a task.
type Params interface {
	// Kind returns the task kind the record belongs to.
	Kind() TaskKind
	// Map returns the non-empty parameters keyed by slot name.
	Map() map[string]any
	// Len returns the number of non-empty parameters.
	Len() int
}

// CreateFileParams parameterises KindCreateFile.
type CreateFileParams struct {
	FileType string `json:"fileType,omitempty"`
	Target   string `json:"target,omitempty"`
	Template string `json:"template,omitempty"`
}

func (p CreateFileParams) Kind() TaskKind { return KindCreateFile }
func (p CreateFileParams) Map() map[string]any {
	return stringMap("fileType", p.FileType, "target", p.Target, "template", p.Template)
}
func (p CreateFileParams) Len() int { return len(p.Map()) }

// EditFileParams parameterises KindEditFile.
type EditFileParams struct {
	Target   string `json:"target,omitempty"`
	FileType string `json:"fileType,omitempty"`
	Change   string `json:"change,omitempty"`
}

func (p EditFileParams) Kind() TaskKind { return KindEditFile }
func (p EditFileParams) Map() map[string]any {
	return stringMap("target", p.Target, "fileType", p.FileType, "change", p.Change)
}
func (p EditFileParams) Len() int { return len(p.Map()) }

// WebsiteParams parameterises KindCreateWebsite.
type WebsiteParams struct {
	FileType  string `json:"fileType,omitempty"`
	Framework string `json:"framework,omitempty"`
	Style     string `json:"style,omitempty"`
}

func (p WebsiteParams) Kind() TaskKind { return KindCreateWebsite }
func (p WebsiteParams) Map() map[string]any {
	return stringMap("fileType", p.FileType, "framework", p.Framework, "style", p.Style)
}
func (p WebsiteParams) Len() int { return len(p.Map()) }

// DeployParams parameterises KindDeploy.
type DeployParams struct {
	Platform    string `json:"platform,omitempty"`
	Target      string `json:"target,omitempty"`
	Environment string `json:"environment,omitempty"`
}

func (p DeployParams) Kind() TaskKind { return KindDeploy }
func (p DeployParams) Map() map[string]any {
	return stringMap("platform", p.Platform, "target", p.Target, "environment", p.Environment)
}
func (p DeployParams) Len() int { return len(p.Map()) }

// AnalyzeDataParams parameterises KindAnalyzeData.
type AnalyzeDataParams struct {
	DataSource   string `json:"dataSource,omitempty"`
	AnalysisType string `json:"analysisType,omitempty"`
	OutputFormat string `json:"outputFormat,omitempty"`
}

func (p AnalyzeDataParams) Kind() TaskKind { return KindAnalyzeData }
func (p AnalyzeDataParams) Map() map[string]any {
	return stringMap("dataSource", p.DataSource, "analysisType", p.AnalysisType, "outputFormat", p.OutputFormat)
}
func (p AnalyzeDataParams) Len() int { return len(p.Map()) }

// SearchParams parameterises KindSearch.
type SearchParams struct {
	Query string `json:"query,omitempty"`
	Scope string `json:"scope,omitempty"`
}

func (p SearchParams) Kind() TaskKind { return KindSearch }
func (p SearchParams) Map() map[string]any {
	return stringMap("query", p.Query, "scope", p.Scope)
}
func (p SearchParams) Len() int { return len(p.Map()) }

// TestParams parameterises KindTest.
type TestParams struct {
	Target    string `json:"target,omitempty"`
	Framework string `json:"framework,omitempty"`
}

func (p TestParams) Kind() TaskKind { return KindTest }
func (p TestParams) Map() map[string]any {
	return stringMap("target", p.Target, "framework", p.Framework)
}
func (p TestParams) Len() int { return len(p.Map()) }

// OpaqueParams carries an unrecognized task type with its raw parameters.
type OpaqueParams struct {
	Type   string         `json:"type"`
	Values map[string]any `json:"values,omitempty"`
}

func (p OpaqueParams) Kind() TaskKind { return KindOpaque }
func (p OpaqueParams) Map() map[string]any {
	out := make(map[string]any, len(p.Values))
	for k, v := range p.Values {
		out[k] = v
	}
	return out
}
func (p OpaqueParams) Len() int { return len(p.Values) }

// ParamsFromSlots builds the typed record for kind from a slot map.
// Unknown kinds produce OpaqueParams tagged with the original type name.
func ParamsFromSlots(kind string, slots map[string]string) Params {
	switch TaskKind(kind) {
	case KindCreateFile:
		return CreateFileParams{FileType: slots["fileType"], Target: slots["target"], Template: slots["template"]}
	case KindEditFile:
		return EditFileParams{Target: slots["target"], FileType: slots["fileType"], Change: slots["change"]}
	case KindCreateWebsite:
		return WebsiteParams{FileType: slots["fileType"], Framework: slots["framework"], Style: slots["style"]}
	case KindDeploy:
		return DeployParams{Platform: slots["platform"], Target: slots["target"], Environment: slots["environment"]}
	case KindAnalyzeData:
		return AnalyzeDataParams{DataSource: slots["dataSource"], AnalysisType: slots["analysisType"], OutputFormat: slots["outputFormat"]}
	case KindSearch:
		return SearchParams{Query: slots["query"], Scope: slots["scope"]}
	case KindTest:
		return TestParams{Target: slots["target"], Framework: slots["framework"]}
	}
	values := make(map[string]any, len(slots))
	for k, v := range slots {
		if v != "" {
			values[k] = v
		}
	}
	return OpaqueParams{Type: kind, Values: values}
}

// KindOf maps a free-form type name onto a TaskKind, falling back to KindOpaque.
func KindOf(name string) TaskKind {
	k := TaskKind(strings.ToLower(strings.TrimSpace(name)))
	if k.Valid() {
		return k
	}
	return KindOpaque
}

// ParamKeys returns the sorted parameter names of p.
func ParamKeys(p Params) []string {
	if p == nil {
		return nil
	}
	m := p.Map()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func stringMap(kv ...string) map[string]any {
	out := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			out[kv[i]] = kv[i+1]
		}
	}
	return out
}
