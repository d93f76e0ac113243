package llm

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		transient bool
		fatal     bool
	}{
		{"nil", nil, false, false},
		{"rate limit", &openai.APIError{HTTPStatusCode: 429}, true, false},
		{"server error", &openai.APIError{HTTPStatusCode: 503}, true, false},
		{"auth", &openai.APIError{HTTPStatusCode: 401}, false, true},
		{"bad request", &openai.APIError{HTTPStatusCode: 400}, false, true},
		{"request 500", &openai.RequestError{HTTPStatusCode: 500}, true, false},
		{"network", errors.New("connection reset"), true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classify(tc.err)
			if tc.err == nil {
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
				return
			}
			if IsTransient(got) != tc.transient {
				t.Errorf("transient=%v, want %v", IsTransient(got), tc.transient)
			}
			if IsFatal(got) != tc.fatal {
				t.Errorf("fatal=%v, want %v", IsFatal(got), tc.fatal)
			}
		})
	}
}

func TestClassify_ContextErrorsPassThrough(t *testing.T) {
	got := classify(context.Canceled)
	if !errors.Is(got, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", got)
	}
	if IsTransient(got) {
		t.Error("cancellation must not be retried")
	}
}
