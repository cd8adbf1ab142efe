package llm

import "github.com/youruser/wireframe/internal/tree"

// Generation modes. The remote producer emits a complete tree for a fresh
// build and only the operations needed to transform the base tree for a
// delta. The backend only shapes the request; the behavioral difference is
// entirely the producer's.
const (
	ModeFresh = "fresh"
	ModeDelta = "delta"
)

// GenerateRequest is the outbound body for one generation call. BaseTree is
// present only in delta mode.
type GenerateRequest struct {
	Prompt   string     `json:"prompt"`
	System   string     `json:"system,omitempty"`
	Model    string     `json:"model,omitempty"`
	Mode     string     `json:"mode"`
	Stream   bool       `json:"stream"`
	BaseTree *tree.Tree `json:"base_tree,omitempty"`
}

// APIError is the error shape returned by the API on a non-success status.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// BalanceResponse from the /credits endpoint.
type BalanceResponse struct {
	Data struct {
		TotalCredits float64 `json:"total_credits"`
		TotalUsage   float64 `json:"total_usage"`
	} `json:"data"`
}

// ModelInfo from the /models endpoint.
type ModelInfo struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ContextLength int    `json:"context_length"`
}

// ModelsResponse from the /models endpoint.
type ModelsResponse struct {
	Data []ModelInfo `json:"data"`
}
