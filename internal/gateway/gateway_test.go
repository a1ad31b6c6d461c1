package gateway

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stellarlinkco/socbot/internal/bus"
	"github.com/stellarlinkco/socbot/internal/config"
	"github.com/stellarlinkco/socbot/internal/cron"
	"github.com/stellarlinkco/socbot/internal/router"
	"github.com/stellarlinkco/socbot/internal/splunk"
)

type stubSearcher struct {
	job *splunk.Job
	err error
}

func (s *stubSearcher) Search(ctx context.Context, spl string) (*splunk.Job, error) {
	if s.err != nil {
		return nil, s.err
	}
	job := *s.job
	job.Search = spl
	return &job, nil
}

type stubSummarizer struct {
	spl        string
	summary    string
	summaryErr error
}

func (s *stubSummarizer) GenerateSPL(ctx context.Context, question string) (string, error) {
	return s.spl, nil
}

func (s *stubSummarizer) ExplainResults(ctx context.Context, question, spl string, rows []splunk.Row) (string, error) {
	if s.summaryErr != nil {
		return "", s.summaryErr
	}
	return s.summary, nil
}

func testGateway(t *testing.T, searcher router.Searcher, summarizer router.Summarizer) *Gateway {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	cfg := config.DefaultConfig()
	cfg.OpenAI.APIKey = "sk-test"

	g, err := NewWithOptions(cfg, Options{Searcher: searcher, Summarizer: summarizer})
	if err != nil {
		t.Fatalf("NewWithOptions failed: %v", err)
	}
	return g
}

func drainOutbound(t *testing.T, g *Gateway, n int) []bus.OutboundMessage {
	t.Helper()
	msgs := make([]bus.OutboundMessage, 0, n)
	for i := 0; i < n; i++ {
		select {
		case msg := <-g.bus.Outbound:
			msgs = append(msgs, msg)
		case <-time.After(2 * time.Second):
			t.Fatalf("got %d outbound messages, want %d", len(msgs), n)
		}
	}
	return msgs
}

func TestHandleTurn_ReplyDelivered(t *testing.T) {
	searcher := &stubSearcher{job: &splunk.Job{
		SID:    "777.1",
		Status: splunk.StatusDone,
		Rows:   []splunk.Row{{"host": "web01"}},
	}}
	g := testGateway(t, searcher, &stubSummarizer{summary: "One noisy host."})

	g.handleTurn(context.Background(), bus.InboundMessage{
		Channel:  "telegram",
		SenderID: "1001",
		ChatID:   "555",
		Content:  "/errors 15m",
	})

	msgs := drainOutbound(t, g, 2)
	if !strings.Contains(msgs[0].Content, "please wait") {
		t.Errorf("first message = %q, want interim notice", msgs[0].Content)
	}
	reply := msgs[1]
	if reply.Channel != "telegram" || reply.ChatID != "555" {
		t.Errorf("reply addressed to %s/%s", reply.Channel, reply.ChatID)
	}
	if !strings.HasPrefix(reply.Content, "One noisy host.") {
		t.Errorf("reply = %q", reply.Content)
	}
	if !strings.Contains(reply.Content, "SID: 777.1 (rows: 1)") {
		t.Errorf("reply missing SID trailer:\n%s", reply.Content)
	}
}

func TestHandleTurn_ParseErrorShownVerbatim(t *testing.T) {
	g := testGateway(t, &stubSearcher{}, &stubSummarizer{})

	g.handleTurn(context.Background(), bus.InboundMessage{
		Channel: "telegram",
		ChatID:  "555",
		Content: "/failed_logins 30minutes",
	})

	msgs := drainOutbound(t, g, 1)
	if !strings.Contains(msgs[0].Content, "invalid time window") {
		t.Errorf("reply = %q, want the parse error verbatim", msgs[0].Content)
	}
	if strings.Contains(msgs[0].Content, "Request failed") {
		t.Errorf("parse errors should not be wrapped: %q", msgs[0].Content)
	}
}

func TestHandleTurn_InternalErrorWrapped(t *testing.T) {
	searcher := &stubSearcher{err: errors.New("connection refused to 10.0.0.5:8089 while dialing")}
	g := testGateway(t, searcher, &stubSummarizer{})

	g.handleTurn(context.Background(), bus.InboundMessage{
		Channel: "telegram",
		ChatID:  "555",
		Content: "/errors",
	})

	msgs := drainOutbound(t, g, 2)
	reply := msgs[1]
	if !strings.HasPrefix(reply.Content, "Request failed: ") {
		t.Errorf("reply = %q, want wrapped error", reply.Content)
	}
}

func TestUserFacingError_Truncation(t *testing.T) {
	long := strings.Repeat("x", 600)
	got := userFacingError(errors.New(long))
	if len(got) > len("Request failed: ")+503 {
		t.Errorf("error not truncated: %d chars", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated error should end with ellipsis: %q", got)
	}

	multiline := errors.New("line one\nline two")
	if got := userFacingError(multiline); strings.Contains(got, "\n") {
		t.Errorf("newlines should be flattened: %q", got)
	}
}

func TestRun_ContextCancelStops(t *testing.T) {
	g := testGateway(t, &stubSearcher{}, &stubSummarizer{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- g.Run(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestDigestCommandDeliversToChat(t *testing.T) {
	searcher := &stubSearcher{job: &splunk.Job{SID: "88.8", Status: splunk.StatusDone}}
	g := testGateway(t, searcher, &stubSummarizer{summary: "Quiet night."})

	job := cron.DigestJob{
		Name:    "nightly",
		Payload: cron.Payload{Command: "/errors 24h", Channel: "telegram", ChatID: "555", Deliver: true},
		Enabled: true,
	}

	result, err := g.cron.OnCommand(job)
	if err != nil {
		t.Fatalf("OnCommand failed: %v", err)
	}
	if !strings.Contains(result, "SID: 88.8") {
		t.Errorf("result = %q", result)
	}

	msg := drainOutbound(t, g, 1)[0]
	if msg.Channel != "telegram" || msg.ChatID != "555" {
		t.Errorf("digest addressed to %s/%s", msg.Channel, msg.ChatID)
	}
	if !strings.HasPrefix(msg.Content, "[digest nightly]") {
		t.Errorf("digest reply = %q", msg.Content)
	}
}
