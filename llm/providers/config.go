package providers

import "time"

// BaseProviderConfig 所有 Provider 共享的基础配置字段。
// 通过嵌入此结构体，各 Provider 的 Config 自动获得 APIKey、BaseURL、Model、Timeout 等共享字段，
// 避免重复定义。
type BaseProviderConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	APIKeys []string      `json:"api_keys,omitempty" yaml:"api_keys,omitempty"` // 多 API Key 支持，轮询使用
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"`
	Models  []string      `json:"models,omitempty" yaml:"models,omitempty"` // 可用模型白名单
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// AuthorityDomains lists registrable domains (e.g. "nih.gov") that the
	// operator trusts enough to retain a second grounding citation for when
	// the domain's results mix content types (a PDF alongside an ordinary
	// page). Every other domain is capped at one citation.
	AuthorityDomains []string `json:"authority_domains,omitempty" yaml:"authority_domains,omitempty"`
}

// AuthoritySet returns AuthorityDomains as a lookup set for citations.Dedup.
func (b BaseProviderConfig) AuthoritySet() map[string]bool {
	if len(b.AuthorityDomains) == 0 {
		return nil
	}
	set := make(map[string]bool, len(b.AuthorityDomains))
	for _, d := range b.AuthorityDomains {
		set[d] = true
	}
	return set
}

// OpenAIConfig OpenAI Provider 配置（Responses API 形态）
type OpenAIConfig struct {
	BaseProviderConfig `yaml:",inline"`
	Organization       string `json:"organization,omitempty" yaml:"organization,omitempty"`
	UseResponsesAPI    bool   `json:"use_responses_api,omitempty" yaml:"use_responses_api,omitempty"` // 启用新的 Responses API (2025)
	// GroundingToolType names the tool the vendor expects for web-search grounding.
	// The tool name has been renamed across rollouts (web_search vs web_search_preview);
	// callers pin the value their account actually supports.
	GroundingToolType string `json:"grounding_tool_type,omitempty" yaml:"grounding_tool_type,omitempty"`
}

// GeminiConfig Gemini Provider 配置
type GeminiConfig struct {
	BaseProviderConfig `yaml:",inline"`
	ProjectID          string `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	Region             string `json:"region,omitempty" yaml:"region,omitempty"`
	AuthType           string `json:"auth_type,omitempty" yaml:"auth_type,omitempty"` // "api_key"(默认) | "oauth"
}
