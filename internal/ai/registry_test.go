package ai

import (
	"context"
	"strings"
	"testing"
)

func TestRegistry_GetByName(t *testing.T) {
	reg := NewRegistry()
	var gotModel string
	reg.Register(" Fake ", func(_ context.Context, model string) (Provider, error) {
		gotModel = model
		return &recordingProvider{reply: "ok"}, nil
	})

	p, err := reg.Get(context.Background(), "FAKE", "m1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p == nil || gotModel != "m1" {
		t.Fatalf("factory not called with model, got %q", gotModel)
	}

	_, err = reg.Get(context.Background(), "missing", "")
	if err == nil || !strings.Contains(err.Error(), "fake") {
		t.Fatalf("expected unknown provider error listing names, got %v", err)
	}
}
