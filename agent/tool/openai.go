package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	contractx "github.com/ricmunrom/botAtencionClientes/agent/contract"
)

// OpenAITools renders the tool catalog as chat-completion function tools.
func OpenAITools() []openai.ChatCompletionToolParam {
	tools := make([]openai.ChatCompletionToolParam, len(definitions))
	for i, d := range definitions {
		properties := make(map[string]any, len(d.params))
		required := make([]string, 0, len(d.params))
		for _, p := range d.params {
			properties[p.name] = map[string]any{
				"type":        string(p.typ),
				"description": p.desc,
			}
			if p.required {
				required = append(required, p.name)
			}
		}
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        d.name,
				Description: openai.String(d.desc),
				Parameters: openai.FunctionParameters{
					"type":       "object",
					"properties": properties,
					"required":   required,
				},
			},
		}
	}
	return tools
}

// HandleToolCall runs a model tool call and returns the tool message to
// append to the conversation. Recoverable failures are encoded in the
// message so the model can recover.
func (e Executor) HandleToolCall(ctx context.Context, userID string, call openai.ChatCompletionMessageToolCall) (openai.ChatCompletionMessageParamUnion, error) {
	args := map[string]any{}
	if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
		dec := json.NewDecoder(strings.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&args); err != nil {
			res := contractx.ToolResult{
				Tool:  call.Function.Name,
				Error: fmt.Sprintf("arguments are not a JSON object: %v", err),
				Code:  contractx.CodeValidation,
			}
			return toolMessage(res, call.ID)
		}
	}

	res, err := e(ctx, userID, call.Function.Name, args)
	if err != nil {
		return openai.ChatCompletionMessageParamUnion{}, err
	}
	return toolMessage(res, call.ID)
}

func toolMessage(res contractx.ToolResult, callID string) (openai.ChatCompletionMessageParamUnion, error) {
	body, err := json.Marshal(res)
	if err != nil {
		return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("encode tool result: %w", err)
	}
	return openai.ToolMessage(string(body), callID), nil
}
