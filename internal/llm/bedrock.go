package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// BedrockConfig configures a BedrockProvider, following
// internal/agent/providers/bedrock.go's BedrockConfig.
type BedrockConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	DefaultModel    string
	Retry           RetryConfig
}

// BedrockProvider adapts AWS Bedrock's Converse API to Provider, collapsed
// from the teacher's ConverseStream to the blocking Converse call since this
// loop needs one full message per iteration rather than a token stream.
type BedrockProvider struct {
	client       *bedrockruntime.Client
	defaultModel string
	retry        RetryConfig
}

// NewBedrockProvider builds a BedrockProvider from config, using the AWS
// default credential chain unless explicit keys are supplied.
func NewBedrockProvider(ctx context.Context, cfg BedrockConfig) (*BedrockProvider, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "anthropic.claude-3-sonnet-20240229-v1:0"
	}

	var awsCfg aws.Config
	var err error
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken,
			)),
		)
	} else {
		awsCfg, err = config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	}
	if err != nil {
		return nil, fmt.Errorf("llm: bedrock: load AWS config: %w", err)
	}

	return &BedrockProvider{
		client:       bedrockruntime.NewFromConfig(awsCfg),
		defaultModel: cfg.DefaultModel,
		retry:        cfg.Retry,
	}, nil
}

func (p *BedrockProvider) Name() string { return "bedrock" }

func (p *BedrockProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	converseReq := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(model),
		Messages: convertBedrockMessages(req.Messages),
	}
	if req.System != "" {
		converseReq.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: req.System},
		}
	}
	if req.MaxTokens > 0 {
		converseReq.InferenceConfig = &types.InferenceConfiguration{
			MaxTokens: aws.Int32(int32(req.MaxTokens)),
		}
	}
	if len(req.Tools) > 0 {
		toolConfig, err := bedrockToolConfig(req.Tools)
		if err != nil {
			return nil, err
		}
		converseReq.ToolConfig = toolConfig
	}

	var out *bedrockruntime.ConverseOutput
	err := withRetry(ctx, p.retry, isRetryableMessage, func() error {
		result, callErr := p.client.Converse(ctx, converseReq)
		if callErr != nil {
			return callErr
		}
		out = result
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("llm: bedrock complete: %w", err)
	}
	return toBedrockResponse(out), nil
}

func convertBedrockMessages(messages []Message) []types.Message {
	var out []types.Message
	for _, m := range messages {
		var content []types.ContentBlock
		if m.Role == "tool" {
			content = append(content, &types.ContentBlockMemberToolResult{
				Value: types.ToolResultBlock{
					ToolUseId: aws.String(m.ToolCallID),
					Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: m.Content}},
				},
			})
		} else if m.Content != "" {
			content = append(content, &types.ContentBlockMemberText{Value: m.Content})
		}
		for _, tc := range m.ToolCalls {
			var input any
			if len(tc.Arguments) > 0 {
				if err := json.Unmarshal(tc.Arguments, &input); err != nil {
					input = map[string]any{}
				}
			}
			content = append(content, &types.ContentBlockMemberToolUse{
				Value: types.ToolUseBlock{
					ToolUseId: aws.String(tc.ID),
					Name:      aws.String(tc.Name),
					Input:     document.NewLazyDocument(input),
				},
			})
		}
		if len(content) == 0 {
			continue
		}
		role := types.ConversationRoleUser
		if m.Role == "assistant" {
			role = types.ConversationRoleAssistant
		}
		out = append(out, types.Message{Role: role, Content: content})
	}
	return out
}

func bedrockToolConfig(tools []ToolSchema) (*types.ToolConfiguration, error) {
	cfg := &types.ToolConfiguration{}
	for _, t := range tools {
		var schema any
		if err := json.Unmarshal(t.Parameters, &schema); err != nil {
			return nil, fmt.Errorf("llm: invalid tool schema for %s: %w", t.Name, err)
		}
		cfg.Tools = append(cfg.Tools, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(t.Name),
				Description: aws.String(t.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
			},
		})
	}
	return cfg, nil
}

func toBedrockResponse(out *bedrockruntime.ConverseOutput) *CompletionResponse {
	resp := &CompletionResponse{}
	if out == nil {
		return resp
	}
	if out.Usage != nil {
		resp.InputTokens = int(out.Usage.InputTokens)
		resp.OutputTokens = int(out.Usage.OutputTokens)
	}
	msgOutput, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return resp
	}
	for _, block := range msgOutput.Value.Content {
		switch variant := block.(type) {
		case *types.ContentBlockMemberText:
			resp.Content += variant.Value
		case *types.ContentBlockMemberToolUse:
			var args json.RawMessage
			if variant.Value.Input != nil {
				if encoded, err := variant.Value.Input.MarshalSmithyDocument(); err == nil {
					args = encoded
				}
			}
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:        aws.ToString(variant.Value.ToolUseId),
				Name:      aws.ToString(variant.Value.Name),
				Arguments: args,
			})
		}
	}
	return resp
}
