package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/stellarlinkco/socbot/internal/config"
	"github.com/stellarlinkco/socbot/internal/splunk"
)

// fakeCompletions returns a canned completion and records the params.
type fakeCompletions struct {
	content string
	err     error
	params  openai.ChatCompletionNewParams
}

func (f *fakeCompletions) New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.content}},
		},
	}, nil
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	if _, err := NewClient(config.OpenAIConfig{}); err == nil {
		t.Fatal("want error for missing api key")
	}
	if _, err := NewClient(config.OpenAIConfig{APIKey: "   "}); err == nil {
		t.Fatal("want error for blank api key")
	}
}

func TestGenerateSPL_NormalizesOutput(t *testing.T) {
	fake := &fakeCompletions{content: "```spl\nindex=main action=failure\n```"}
	c := &Client{completions: fake, model: "gpt-4o"}

	spl, err := c.GenerateSPL(context.Background(), "show me failed logins")
	if err != nil {
		t.Fatalf("GenerateSPL failed: %v", err)
	}
	if spl != "search index=main action=failure" {
		t.Errorf("spl = %q", spl)
	}
	if got := fake.params.Model; string(got) != "gpt-4o" {
		t.Errorf("model = %q", got)
	}
}

func TestGenerateSPL_EmptyModelOutputFallsBack(t *testing.T) {
	fake := &fakeCompletions{content: "  "}
	c := &Client{completions: fake, model: "gpt-4o"}

	spl, err := c.GenerateSPL(context.Background(), "anything odd lately?")
	if err != nil {
		t.Fatalf("GenerateSPL failed: %v", err)
	}
	if spl != FallbackSPL {
		t.Errorf("spl = %q, want fallback", spl)
	}
}

func TestGenerateSPL_Error(t *testing.T) {
	fake := &fakeCompletions{err: errors.New("rate limited")}
	c := &Client{completions: fake, model: "gpt-4o"}

	if _, err := c.GenerateSPL(context.Background(), "q"); err == nil {
		t.Fatal("want error from completion failure")
	}
}

func TestComplete_TemperatureOmittedForGPT5(t *testing.T) {
	fake := &fakeCompletions{content: "ok"}
	c := &Client{completions: fake, model: "gpt-5"}

	if _, err := c.complete(context.Background(), "sys", "user", 0.1); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if fake.params.Temperature.Valid() {
		t.Error("temperature should not be set for gpt-5 models")
	}

	c.model = "gpt-4o"
	if _, err := c.complete(context.Background(), "sys", "user", 0.1); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if !fake.params.Temperature.Valid() || fake.params.Temperature.Value != 0.1 {
		t.Errorf("temperature = %+v, want 0.1", fake.params.Temperature)
	}
}

func TestExplainResults_PromptCarriesRows(t *testing.T) {
	fake := &fakeCompletions{content: "Finding: brute force against root.\nRisk: High"}
	c := &Client{completions: fake, model: "gpt-4o"}

	rows := []splunk.Row{{"user": "root", "count": "14"}}
	summary, err := c.ExplainResults(context.Background(), "failed logins?", "search index=main action=failure", rows)
	if err != nil {
		t.Fatalf("ExplainResults failed: %v", err)
	}
	if !strings.Contains(summary, "Risk: High") {
		t.Errorf("summary = %q", summary)
	}

	var userPrompt string
	for _, msg := range fake.params.Messages {
		if msg.OfUser != nil {
			userPrompt = msg.OfUser.Content.OfString.Value
		}
	}
	for _, want := range []string{"failed logins?", "search index=main action=failure", `"user":"root"`} {
		if !strings.Contains(userPrompt, want) {
			t.Errorf("user prompt missing %q:\n%s", want, userPrompt)
		}
	}
}

// TestNewClient_RoundTrip exercises the real SDK transport against a
// local server, the same way the bot talks to a compatible endpoint.
func TestNewClient_RoundTrip(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "cmpl-1",
			"object": "chat.completion",
			"model":  "gpt-4o",
			"choices": []map[string]any{
				{"index": 0, "message": map[string]any{"role": "assistant", "content": "search index=main error"}},
			},
		})
	}))
	defer srv.Close()

	c, err := NewClient(config.OpenAIConfig{
		APIKey:  "sk-test",
		BaseURL: srv.URL,
		Model:   "gpt-4o",
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	spl, err := c.GenerateSPL(context.Background(), "recent errors")
	if err != nil {
		t.Fatalf("GenerateSPL failed: %v", err)
	}
	if spl != "search index=main error" {
		t.Errorf("spl = %q", spl)
	}
	if gotBody["model"] != "gpt-4o" {
		t.Errorf("request model = %v", gotBody["model"])
	}
}
