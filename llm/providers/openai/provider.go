package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/relaylayer/llmrouter/llm"
	"github.com/relaylayer/llmrouter/llm/citations"
	"github.com/relaylayer/llmrouter/llm/detector"
	"github.com/relaylayer/llmrouter/llm/providers"
	"github.com/relaylayer/llmrouter/llm/providers/openaicompat"
	"go.uber.org/zap"
)

// previousResponseIDKey 是 Responses API 中 previous_response_id 的 context key。
type previousResponseIDKey struct{}

// WithPreviousResponseID 在 ctx 中写入 previous_response_id。
func WithPreviousResponseID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, previousResponseIDKey{}, id)
}

// PreviousResponseIDFromContext 从 ctx 读取 previous_response_id。
func PreviousResponseIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(previousResponseIDKey{}).(string)
	return v, ok && v != ""
}

// OpenAIProvider 实现 OpenAI LLM 提供者.
// 支持传统 Chat Completions API 和新的 Responses API (2025).
// 传统 API 通过嵌入的 openaicompat.Provider 处理；Responses API 通过 Completion 覆写实现.
type OpenAIProvider struct {
	*openaicompat.Provider
	openaiCfg providers.OpenAIConfig
}

// NewOpenAIProvider 创建新的 OpenAI 提供者实例.
func NewOpenAIProvider(cfg providers.OpenAIConfig, logger *zap.Logger) *OpenAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	p := &OpenAIProvider{
		Provider: openaicompat.New(openaicompat.Config{
			ProviderName:  "openai",
			APIKey:        cfg.APIKey,
			BaseURL:       cfg.BaseURL,
			DefaultModel:  cfg.Model,
			FallbackModel: "gpt-5.2", // 2026: GPT-5.2
			Timeout:       cfg.Timeout,
		}, logger),
		openaiCfg: cfg,
	}

	// Set custom headers for OpenAI (Organization support)
	p.SetBuildHeaders(func(req *http.Request, apiKey string) {
		req.Header.Set("Authorization", "Bearer "+apiKey)
		if cfg.Organization != "" {
			req.Header.Set("OpenAI-Organization", cfg.Organization)
		}
		req.Header.Set("Content-Type", "application/json")
	})

	return p
}

// Completion 覆写基类方法，支持 Responses API 路由.
// 当 UseResponsesAPI 启用或请求要求 grounding 时走 /v1/responses，否则委托给
// openaicompat.Provider.Completion —— grounded 请求必须使用 Responses 端点，
// 不能因为 operator 未显式开启 UseResponsesAPI 而静默跳过工具挂载/引用抽取.
func (p *OpenAIProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if !p.openaiCfg.UseResponsesAPI && !req.Grounded {
		return p.Provider.Completion(ctx, req)
	}

	// Apply rewriter chain (与基类保持一致)
	rewrittenReq, err := p.RewriterChain.Execute(ctx, req)
	if err != nil {
		return nil, &llm.Error{
			Code: llm.ErrInvalidRequest, Message: fmt.Sprintf("request rewrite failed: %v", err),
			HTTPStatus: http.StatusBadRequest, Provider: p.Name(),
		}
	}
	req = rewrittenReq

	apiKey := p.Provider.Cfg.APIKey
	if c, ok := llm.CredentialOverrideFromContext(ctx); ok {
		if strings.TrimSpace(c.APIKey) != "" {
			apiKey = strings.TrimSpace(c.APIKey)
		}
	}

	toolType := p.openaiCfg.GroundingToolType
	if toolType == "" {
		toolType = "web_search"
	}

	resp, err := p.completionWithResponsesAPI(ctx, req, apiKey, toolType)
	if err != nil && req.Grounded && isUnsupportedToolType(err) {
		// 厂商在不同批次下对 grounding 工具名做过重命名 (web_search <-> web_search_preview)。
		// 失败一次后用另一个名字重试，而不是整体判定为不支持 grounding。
		alt := alternateToolType(toolType)
		resp, err = p.completionWithResponsesAPI(ctx, req, apiKey, alt)
	}
	return resp, err
}

// alternateToolType 在 web_search 与 web_search_preview 之间切换。
func alternateToolType(current string) string {
	if current == "web_search_preview" {
		return "web_search"
	}
	return "web_search_preview"
}

// isUnsupportedToolType 判断上游是否因为工具名不被支持而拒绝了请求。
func isUnsupportedToolType(err error) bool {
	e, ok := err.(*llm.Error)
	if !ok {
		return false
	}
	if e.Code != llm.ErrInvalidRequest {
		return false
	}
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "tool") && (strings.Contains(msg, "not supported") || strings.Contains(msg, "unknown") || strings.Contains(msg, "invalid"))
}

// --- Responses API Types (2025) ---

type openAIResponsesRequest struct {
	Model              string                 `json:"model"`
	Input              []openAIResponsesInput `json:"input"`
	MaxOutputTokens    int                    `json:"max_output_tokens,omitempty"`
	Temperature        float32                `json:"temperature,omitempty"`
	TopP               float32                `json:"top_p,omitempty"`
	Tools              []any                  `json:"tools,omitempty"`
	ToolChoice         any                    `json:"tool_choice,omitempty"`
	PreviousResponseID string                 `json:"previous_response_id,omitempty"`
	Store              bool                   `json:"store,omitempty"`
	Metadata           map[string]string      `json:"metadata,omitempty"`
}

// groundingTool 声明 Responses API 的 web-search 工具。类型名随发布批次变化，
// 由调用方 (OpenAIConfig.GroundingToolType) 钉死使用哪一个。
type groundingTool struct {
	Type string `json:"type"`
}

type openAIResponsesInput struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponsesResponse struct {
	ID          string                  `json:"id"`
	Object      string                  `json:"object"`
	CreatedAt   int64                   `json:"created_at"`
	Status      string                  `json:"status"`
	CompletedAt int64                   `json:"completed_at,omitempty"`
	Model       string                  `json:"model"`
	Output      []openAIResponsesOutput `json:"output"`
	Usage       *providers.OpenAICompatUsage `json:"usage,omitempty"`
}

type openAIResponsesOutput struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Status  string          `json:"status"`
	Role    string          `json:"role"`
	Content []openAIContent `json:"content"`
}

type openAIContent struct {
	Type        string              `json:"type"`
	Text        string              `json:"text,omitempty"`
	Annotations []openAIAnnotation  `json:"annotations,omitempty"`
	ID          string              `json:"id,omitempty"`
	Name        string              `json:"name,omitempty"`
	Arguments   json.RawMessage     `json:"arguments,omitempty"`
}

// openAIAnnotation 是 Responses API 内联引用标注 (type == "url_citation")。
type openAIAnnotation struct {
	Type       string `json:"type"`
	URL        string `json:"url"`
	Title      string `json:"title"`
	StartIndex int    `json:"start_index"`
	EndIndex   int    `json:"end_index"`
}

// completionWithResponsesAPI 使用新的 Responses API (/v1/responses).
func (p *OpenAIProvider) completionWithResponsesAPI(ctx context.Context, req *llm.ChatRequest, apiKey string, groundingToolType string) (*llm.ChatResponse, error) {
	input := make([]openAIResponsesInput, 0, len(req.Messages))
	for _, msg := range req.Messages {
		input = append(input, openAIResponsesInput{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	var tools []any
	for _, t := range providers.ConvertToolsToOpenAI(req.Tools) {
		tools = append(tools, t)
	}
	if req.Grounded {
		tools = append(tools, groundingTool{Type: groundingToolType})
	}

	body := openAIResponsesRequest{
		Model:           providers.ChooseModel(req, p.openaiCfg.Model, "gpt-5.2"),
		Input:           input,
		MaxOutputTokens: req.MaxTokens,
		Temperature:     req.Temperature,
		TopP:            req.TopP,
		Tools:           tools,
		Store:           true,
	}
	if req.ToolChoice != "" {
		body.ToolChoice = req.ToolChoice
	}
	if req.PreviousResponseID != "" {
		body.PreviousResponseID = req.PreviousResponseID
	} else if prevID, ok := PreviousResponseIDFromContext(ctx); ok {
		body.PreviousResponseID = prevID
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal responses api request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/responses", strings.TrimRight(p.openaiCfg.BaseURL, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	// 复用 OpenAI 的自定义 header（含 Organization）
	if p.Provider.Cfg.BuildHeaders != nil {
		p.Provider.Cfg.BuildHeaders(httpReq, apiKey)
	}

	resp, err := p.Provider.Client.Do(httpReq)
	if err != nil {
		return nil, &llm.Error{
			Code: llm.ErrUpstreamError, Message: err.Error(),
			HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := providers.ReadErrorMessage(resp.Body)
		return nil, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}

	var responsesResp openAIResponsesResponse
	if err := json.NewDecoder(resp.Body).Decode(&responsesResp); err != nil {
		return nil, &llm.Error{
			Code: llm.ErrUpstreamError, Message: err.Error(),
			HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
		}
	}

	chatResp := toResponsesAPIChatResponse(responsesResp, p.Name())

	if req.Grounded {
		items := toCitationOutputItems(responsesResp.Output)
		det := detector.DetectProviderA(items)
		cites, counts := citations.ExtractProviderA(items)
		cites = citations.Finalize(cites, p.openaiCfg.AuthoritySet(), nil)

		chatResp.Vendor = "openai"
		chatResp.ModelVersion = responsesResp.Model
		chatResp.GroundedEffective = det.ToolsUsed
		chatResp.Citations = cites
		chatResp.Metadata = map[string]any{
			"tool_call_count":          counts.ToolCallCount,
			"anchored_citations_count": counts.AnchoredCitationsCount,
			"unlinked_sources_count":   counts.UnlinkedSourcesCount,
			"citations_shape_set":      counts.CitationsShapeSet,
		}

		if req.GroundingMode == "REQUIRED" && !det.ToolsUsed {
			return nil, &llm.Error{
				Code:       llm.ErrGroundingRequiredFailed,
				Message:    "grounding mode REQUIRED but no tool call was observed in the response",
				HTTPStatus: http.StatusUnprocessableEntity,
				Provider:   p.Name(),
			}
		}
		if req.GroundingMode == "REQUIRED" && len(cites) == 0 {
			return nil, &llm.Error{
				Code:       llm.ErrGroundingEmptyResults,
				Message:    "grounding mode REQUIRED but the tool call returned zero citations",
				HTTPStatus: http.StatusUnprocessableEntity,
				Provider:   p.Name(),
			}
		}
	}

	return chatResp, nil
}

// toCitationOutputItems 把 Responses API 的 output[] 投影为 citations 包的
// vendor-agnostic 载荷，供 ExtractProviderA/DetectProviderA 使用。
func toCitationOutputItems(output []openAIResponsesOutput) []citations.ResponsesOutputItem {
	items := make([]citations.ResponsesOutputItem, 0, len(output))
	for _, o := range output {
		item := citations.ResponsesOutputItem{Type: o.Type}
		for _, content := range o.Content {
			part := citations.ResponsesContentPart{Type: content.Type, Text: content.Text}
			for _, ann := range content.Annotations {
				if ann.Type != "url_citation" {
					continue
				}
				part.Annotations = append(part.Annotations, citations.URLCitationAnnotation{
					URL: ann.URL, Title: ann.Title, StartIndex: ann.StartIndex, EndIndex: ann.EndIndex,
				})
			}
			item.Content = append(item.Content, part)
		}
		items = append(items, item)
	}
	return items
}

// toResponsesAPIChatResponse 将 Responses API 响应转换为统一的 llm.ChatResponse.
func toResponsesAPIChatResponse(resp openAIResponsesResponse, provider string) *llm.ChatResponse {
	choices := make([]llm.ChatChoice, 0, len(resp.Output))
	for idx, output := range resp.Output {
		if output.Type != "message" {
			continue
		}
		msg := llm.Message{Role: llm.Role(output.Role)}
		for _, content := range output.Content {
			switch content.Type {
			case "output_text":
				msg.Content += content.Text
			case "tool_call":
				msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{
					ID: content.ID, Name: content.Name, Arguments: content.Arguments,
				})
			}
		}
		choices = append(choices, llm.ChatChoice{
			Index: idx, FinishReason: output.Status, Message: msg,
		})
	}

	chatResp := &llm.ChatResponse{
		ID: resp.ID, Provider: provider, Model: resp.Model, Choices: choices,
	}
	if resp.Usage != nil {
		chatResp.Usage = llm.ChatUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	if resp.CreatedAt != 0 {
		chatResp.CreatedAt = time.Unix(resp.CreatedAt, 0)
	}
	return chatResp
}
