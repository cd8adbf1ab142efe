package main

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/spf13/pflag"

	"github.com/youruser/wireframe/internal/config"
	"github.com/youruser/wireframe/internal/llm"
	"github.com/youruser/wireframe/internal/logging"
	"github.com/youruser/wireframe/internal/state"
	"github.com/youruser/wireframe/internal/stream"
	"github.com/youruser/wireframe/internal/tree"
)

//go:embed system_prompt.txt
var systemPrompt string

//go:embed delta_prompt.txt
var deltaPrompt string

//go:embed version.txt
var version string

// buildCommit is set via -ldflags or falls back to VCS info from debug.ReadBuildInfo.
var buildCommit string

var (
	appStore  = state.New()
	appConfig *config.Config
	llmClient *llm.Client
	log       = logging.Get()

	respondMu sync.Mutex
	configMu  sync.Mutex
	stateMu   sync.Mutex

	// currentTree is the last committed tree: the result of the most recent
	// completed generation or the tree of the last loaded document. It seeds
	// delta generations and answers tree_get. Guarded by stateMu.
	currentTree = tree.New()
)

type streamState struct {
	mu        sync.Mutex
	session   *stream.Session
	requestID string
}

var activeStream streamState

// getBuildCommit returns the short commit hash, resolving from VCS build info if needed.
func getBuildCommit() string {
	if buildCommit != "" {
		return buildCommit
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && len(setting.Value) >= 7 {
			return setting.Value[:7]
		}
	}
	return ""
}

func versionString() string {
	v := strings.TrimSpace(version)
	if commit := getBuildCommit(); commit != "" {
		return v + " (" + commit + ")"
	}
	return v
}

func main() {
	showVersion := pflag.BoolP("version", "v", false, "print version and exit")
	showBuild := pflag.Bool("build", false, "print build commit and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Printf("wireframe %s\n", versionString())
		return
	}
	if *showBuild {
		if commit := getBuildCommit(); commit != "" {
			fmt.Println(commit)
		} else {
			fmt.Println("unknown")
		}
		return
	}

	defer appStore.Cleanup()

	if os.Getenv("WIREFRAME_DEBUG") == "1" {
		fmt.Fprintf(os.Stderr, "wireframe: process started with WIREFRAME_DEBUG=1\n")
	}
	logBuildInfo()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		handleRequest(line)
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			respond("", map[string]any{
				"type":    "error",
				"message": "Request too large (max 1MB). Split the request.",
			})
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "stdin error: %v\n", err)
		os.Exit(1)
	}
}

func logBuildInfo() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		log.Info("Build info: unavailable")
		return
	}

	var revision string
	var buildTime string
	var modified string
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.time":
			buildTime = setting.Value
		case "vcs.modified":
			modified = setting.Value
		}
	}

	v := info.Main.Version
	if revision != "" {
		v = revision
	}
	if modified == "true" {
		v += " (modified)"
	}

	if buildTime != "" {
		log.Info("Build: %s; go=%s; time=%s", v, runtime.Version(), buildTime)
		return
	}
	log.Info("Build: %s; go=%s", v, runtime.Version())
}

// ensureConfig loads config lazily on first use.
func ensureConfig() error {
	configMu.Lock()
	defer configMu.Unlock()

	if appConfig != nil {
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	appConfig = cfg
	llmClient = llm.NewClient(cfg.BaseURL, cfg.APIKey)
	return nil
}

func reserveActiveStream(reqID string, session *stream.Session) bool {
	activeStream.mu.Lock()
	defer activeStream.mu.Unlock()
	if activeStream.requestID != "" {
		return false
	}
	activeStream.requestID = reqID
	activeStream.session = session
	return true
}

func clearActiveStream(reqID string) {
	activeStream.mu.Lock()
	defer activeStream.mu.Unlock()
	if activeStream.requestID != reqID {
		return
	}
	activeStream.requestID = ""
	activeStream.session = nil
}

func cancelActiveStream(targetID string) bool {
	activeStream.mu.Lock()
	if activeStream.requestID == "" {
		activeStream.mu.Unlock()
		return false
	}
	if targetID != "" && activeStream.requestID != targetID {
		activeStream.mu.Unlock()
		return false
	}
	session := activeStream.session
	activeStream.mu.Unlock()
	if session == nil {
		return false
	}
	return session.Cancel()
}

func hasActiveStream() bool {
	activeStream.mu.Lock()
	defer activeStream.mu.Unlock()
	return activeStream.requestID != ""
}

// actionUsesDocState returns true for actions that read or mutate the store
// or the committed tree and therefore run under stateMu.
func actionUsesDocState(action string) bool {
	switch action {
	case "project_init",
		"init",
		"tree_get",
		"doc_save",
		"doc_get",
		"doc_list",
		"doc_delete",
		"doc_rename",
		"estimate_tokens":
		return true
	default:
		return false
	}
}

// actionBlockedDuringStream returns true for actions that mutate persistent
// state in ways that conflict with an active generation. Read-only actions
// are allowed through so the UI stays responsive mid-stream.
func actionBlockedDuringStream(action string) bool {
	switch action {
	case "doc_save",
		"doc_delete",
		"doc_rename":
		return true
	default:
		return false
	}
}

func handleRequest(line string) {
	var req map[string]any
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		log.Error("Invalid JSON request: %s", line)
		respond("", map[string]any{"type": "error", "message": "Invalid JSON"})
		return
	}

	action, _ := req["action"].(string)
	log.Request(action, line)
	reqID := requestID(req)

	if hasActiveStream() && actionBlockedDuringStream(action) {
		respond(reqID, map[string]any{"type": "error", "message": "Another request is already in progress"})
		return
	}

	if actionUsesDocState(action) {
		stateMu.Lock()
		defer stateMu.Unlock()
	}

	switch action {
	case "ping":
		respond(reqID, map[string]any{"type": "ok"})

	case "version":
		respond(reqID, map[string]any{"type": "version", "version": versionString()})

	case "project_init":
		projectRoot, _ := req["project_root"].(string)
		if projectRoot == "" {
			respond(reqID, map[string]any{"type": "error", "message": "Missing required field: project_root"})
			return
		}
		if err := appStore.ProjectInit(projectRoot); err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		respond(reqID, map[string]any{"type": "ok"})

	case "init":
		projectRoot, _ := req["project_root"].(string)
		if err := appStore.Init(projectRoot); err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		resp := map[string]any{"type": "ok"}
		if appStore.GlobalOnly {
			resp["global_only"] = true
		}
		if err := ensureConfig(); err == nil {
			resp["default_model"] = appConfig.DefaultModel
		}
		respond(reqID, resp)

	case "tree_get":
		respond(reqID, map[string]any{
			"type":    "tree",
			"tree":    currentTree,
			"version": state.HashTreeVersion(currentTree),
		})

	case "generate":
		handleGenerateRequest(reqID, req)

	case "cancel":
		targetID, _ := req["target_request_id"].(string)
		if !cancelActiveStream(targetID) {
			respond(reqID, map[string]any{"type": "error", "message": "No active request to cancel"})
			return
		}
		respond(reqID, map[string]any{"type": "ok"})

	case "doc_save":
		name, _ := req["name"].(string)
		doc, err := appStore.SaveDocument(name, currentTree)
		if err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		respond(reqID, map[string]any{"type": "ok", "id": doc.ID, "version": doc.Version})

	case "doc_get":
		id, _ := req["id"].(string)
		if id == "" {
			respond(reqID, map[string]any{"type": "error", "message": "Missing required field: id"})
			return
		}
		doc, err := appStore.GetDocument(id)
		if err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		if load, _ := req["load"].(bool); load {
			currentTree = doc.Tree.Clone()
		}
		respond(reqID, map[string]any{"type": "document", "document": doc})

	case "doc_list":
		docs, err := appStore.ListDocuments()
		if err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		respond(reqID, map[string]any{"type": "doc_list", "documents": docs})

	case "doc_delete":
		id, _ := req["id"].(string)
		if id == "" {
			respond(reqID, map[string]any{"type": "error", "message": "Missing required field: id"})
			return
		}
		if err := appStore.DeleteDocument(id); err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		respond(reqID, map[string]any{"type": "ok"})

	case "doc_rename":
		id, _ := req["id"].(string)
		if id == "" {
			respond(reqID, map[string]any{"type": "error", "message": "Missing required field: id"})
			return
		}
		name, _ := req["name"].(string)
		if name == "" {
			respond(reqID, map[string]any{"type": "error", "message": "Missing required field: name"})
			return
		}
		if err := appStore.RenameDocument(id, name); err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		respond(reqID, map[string]any{"type": "ok"})

	case "estimate_tokens":
		handleEstimateTokens(reqID, req)

	case "get_models":
		go handleGetModels(reqID)

	case "get_balance":
		go handleGetBalance(reqID)

	case "shutdown":
		appStore.Cleanup()
		os.Exit(0)

	default:
		respond(reqID, map[string]any{"type": "error", "message": fmt.Sprintf("Unknown action: %s", action)})
	}
}

// resolveBaseTree picks the base for a generation. An explicit fresh flag
// forces an empty base; an inline base_tree or a document_id seeds from the
// frontend or a saved document; otherwise the committed tree carries over.
// Must be called with stateMu held.
func resolveBaseTree(req map[string]any) (*tree.Tree, error) {
	if fresh, _ := req["fresh"].(bool); fresh {
		return tree.New(), nil
	}
	if raw, ok := req["base_tree"]; ok {
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, err
		}
		base := tree.New()
		if err := json.Unmarshal(data, base); err != nil {
			return nil, fmt.Errorf("invalid base_tree: %w", err)
		}
		return base, nil
	}
	if docID, _ := req["document_id"].(string); docID != "" {
		doc, err := appStore.GetDocument(docID)
		if err != nil {
			return nil, err
		}
		return doc.Tree, nil
	}
	return currentTree, nil
}

func handleGenerateRequest(reqID string, req map[string]any) {
	prompt, _ := req["prompt"].(string)
	if prompt == "" {
		respond(reqID, map[string]any{"type": "error", "message": "Missing required field: prompt"})
		return
	}
	if err := ensureConfig(); err != nil {
		respond(reqID, errorResponse(err))
		return
	}

	model, _ := req["model"].(string)
	if model == "" {
		model = appConfig.DefaultModel
	}

	stateMu.Lock()
	base, err := resolveBaseTree(req)
	stateMu.Unlock()
	if err != nil {
		respond(reqID, errorResponse(err))
		return
	}

	session := stream.New(base, stream.Callbacks{
		OnSnapshot: func(t *tree.Tree) {
			respond(reqID, map[string]any{
				"type":     "tree",
				"tree":     t,
				"elements": len(t.Elements),
			})
		},
	})

	if !reserveActiveStream(reqID, session) {
		respond(reqID, map[string]any{"type": "error", "message": "Another request is already in progress"})
		return
	}

	go runGenerate(reqID, session, prompt, model)
}

func runGenerate(reqID string, session *stream.Session, prompt, model string) {
	defer clearActiveStream(reqID)

	genReq := llm.BuildRequest(prompt, model, session.Tree())
	if genReq.Mode == llm.ModeDelta {
		genReq.System = deltaPrompt
	} else {
		genReq.System = systemPrompt
	}

	logRaw := appConfig.LogRawStream != nil && *appConfig.LogRawStream

	err := session.Start(context.Background(), func(ctx context.Context, sink func(chunk string) error) error {
		return llmClient.Generate(ctx, genReq, func(chunk string) error {
			if logRaw {
				log.Stream("chunk", chunk)
			}
			return sink(chunk)
		})
	})

	switch {
	case err == nil:
		final := session.Tree()
		stateMu.Lock()
		currentTree = final
		stateMu.Unlock()
		respond(reqID, map[string]any{
			"type":     "done",
			"tree":     final,
			"version":  state.HashTreeVersion(final),
			"elements": len(final.Elements),
		})
	case errors.Is(err, stream.ErrCancelled):
		respond(reqID, map[string]any{"type": "cancelled", "message": "Generation aborted by user."})
	default:
		respond(reqID, errorResponse(err))
	}
}

func handleEstimateTokens(reqID string, req map[string]any) {
	prompt, _ := req["prompt"].(string)

	base := currentTree
	if docID, _ := req["document_id"].(string); docID != "" {
		doc, err := appStore.GetDocument(docID)
		if err != nil {
			respond(reqID, errorResponse(err))
			return
		}
		base = doc.Tree
	}

	count, err := llm.EstimateRequestTokens(prompt, base)
	if err != nil {
		respond(reqID, errorResponse(err))
		return
	}
	respond(reqID, map[string]any{"type": "token_estimate", "tokens": count})
}

func handleGetModels(reqID string) {
	if err := ensureConfig(); err != nil {
		respond(reqID, errorResponse(err))
		return
	}

	models, err := llmClient.GetModels()
	if err != nil {
		respond(reqID, errorResponse(err))
		return
	}
	respond(reqID, map[string]any{"type": "models", "models": models.Data})
}

func handleGetBalance(reqID string) {
	if err := ensureConfig(); err != nil {
		respond(reqID, errorResponse(err))
		return
	}

	balance, err := llmClient.GetBalance()
	if err != nil {
		respond(reqID, errorResponse(err))
		return
	}
	respond(reqID, map[string]any{
		"type":    "balance",
		"credits": balance.Data.TotalCredits,
		"usage":   balance.Data.TotalUsage,
	})
}

func errorResponse(err error) map[string]any {
	var msg string
	switch {
	case errors.Is(err, state.ErrNotInitialized):
		msg = "Not initialized"
	case errors.Is(err, state.ErrNotProject):
		msg = "Not initialized. Run :WireframeInit"
	case errors.Is(err, state.ErrAlreadyInit):
		msg = "Already initialized"
	case errors.Is(err, state.ErrDocNotFound):
		msg = "Document not found"
	case errors.Is(err, state.ErrDocNameEmpty):
		msg = "Document name cannot be empty"
	case errors.Is(err, state.ErrStoreLocked):
		msg = "Document store is locked by another process"
	case errors.Is(err, config.ErrNoConfig):
		msg = "Config file not found: ~/.config/wireframe/config.json"
	case errors.Is(err, config.ErrNoAPIKey):
		msg = "API key not set in config"
	default:
		msg = err.Error()
	}
	return map[string]any{"type": "error", "message": msg}
}

func respond(reqID string, data map[string]any) {
	out, _ := json.Marshal(addResponseID(reqID, data))
	msgType, _ := data["type"].(string)
	respondMu.Lock()
	defer respondMu.Unlock()
	log.Response(msgType, string(out))
	fmt.Println(string(out))
}

func addResponseID(reqID string, data map[string]any) map[string]any {
	if reqID == "" {
		return data
	}
	data["request_id"] = reqID
	return data
}

func requestID(req map[string]any) string {
	switch v := req["request_id"].(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%v", v)
	case int:
		return fmt.Sprintf("%d", v)
	case int64:
		return fmt.Sprintf("%d", v)
	default:
		return ""
	}
}
