package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/youruser/wireframe/internal/config"
	"github.com/youruser/wireframe/internal/state"
)

func TestRequestID(t *testing.T) {
	cases := []struct {
		name string
		req  map[string]any
		want string
	}{
		{"string id", map[string]any{"request_id": "req-7"}, "req-7"},
		{"integral float", map[string]any{"request_id": float64(42)}, "42"},
		{"fractional float", map[string]any{"request_id": 1.5}, "1.5"},
		{"missing", map[string]any{}, ""},
		{"wrong type", map[string]any{"request_id": true}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := requestID(tc.req); got != tc.want {
				t.Errorf("requestID = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestAddResponseID(t *testing.T) {
	t.Run("empty id leaves data alone", func(t *testing.T) {
		data := map[string]any{"type": "ok"}
		got := addResponseID("", data)
		if _, ok := got["request_id"]; ok {
			t.Error("request_id added for empty id")
		}
	})

	t.Run("id attached", func(t *testing.T) {
		got := addResponseID("req-1", map[string]any{"type": "ok"})
		if got["request_id"] != "req-1" {
			t.Errorf("request_id = %v, want %q", got["request_id"], "req-1")
		}
	})
}

func TestErrorResponse(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{state.ErrNotInitialized, "Not initialized"},
		{state.ErrDocNotFound, "Document not found"},
		{state.ErrDocNameEmpty, "Document name cannot be empty"},
		{config.ErrNoAPIKey, "API key not set in config"},
		{fmt.Errorf("wrapping: %w", state.ErrDocNotFound), "Document not found"},
		{errors.New("something else"), "something else"},
	}
	for _, tc := range cases {
		resp := errorResponse(tc.err)
		if resp["type"] != "error" {
			t.Errorf("type = %v, want error", resp["type"])
		}
		if resp["message"] != tc.want {
			t.Errorf("message for %v = %q, want %q", tc.err, resp["message"], tc.want)
		}
	}
}

func TestActionBlockedDuringStream(t *testing.T) {
	blocked := []string{"doc_save", "doc_delete", "doc_rename"}
	for _, action := range blocked {
		if !actionBlockedDuringStream(action) {
			t.Errorf("%s should be blocked during a stream", action)
		}
	}
	allowed := []string{"ping", "version", "tree_get", "doc_list", "cancel", "estimate_tokens"}
	for _, action := range allowed {
		if actionBlockedDuringStream(action) {
			t.Errorf("%s should be allowed during a stream", action)
		}
	}
}
