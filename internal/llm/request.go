package llm

import "github.com/youruser/wireframe/internal/tree"

// BuildRequest shapes the outbound request for one generation. A request is
// a fresh build when no base tree is supplied (or the supplied one is
// empty), and a delta otherwise: the serialized base tree rides along so the
// producer emits only the operations needed to transform it instead of
// re-emitting the whole tree.
func BuildRequest(prompt, model string, base *tree.Tree) GenerateRequest {
	req := GenerateRequest{
		Prompt: prompt,
		Model:  model,
		Mode:   ModeFresh,
		Stream: true,
	}
	if !base.IsEmpty() {
		req.Mode = ModeDelta
		req.BaseTree = base
	}
	return req
}
