package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/stellarlinkco/socbot/internal/ai"
	"github.com/stellarlinkco/socbot/internal/bus"
	"github.com/stellarlinkco/socbot/internal/channel"
	"github.com/stellarlinkco/socbot/internal/config"
	"github.com/stellarlinkco/socbot/internal/cron"
	"github.com/stellarlinkco/socbot/internal/queries"
	"github.com/stellarlinkco/socbot/internal/router"
	"github.com/stellarlinkco/socbot/internal/splunk"
)

// Options allows tests to inject fakes for the external services and
// the shutdown signal.
type Options struct {
	Searcher   router.Searcher
	Summarizer router.Summarizer
	SignalChan chan os.Signal
}

// Gateway wires config, channels, the command router and the digest
// scheduler into one process. Turns are handled strictly one at a
// time: a turn finishes (or fails, or times out inside the Splunk
// client) before the next begins.
type Gateway struct {
	cfg        *config.Config
	bus        *bus.MessageBus
	router     *router.Router
	channels   *channel.ChannelManager
	cron       *cron.Service
	signalChan chan os.Signal
}

func New(cfg *config.Config) (*Gateway, error) {
	return NewWithOptions(cfg, Options{})
}

func NewWithOptions(cfg *config.Config, opts Options) (*Gateway, error) {
	g := &Gateway{cfg: cfg}
	g.bus = bus.NewMessageBus(cfg.Gateway.BufSize)
	g.signalChan = opts.SignalChan

	searcher := opts.Searcher
	if searcher == nil {
		searcher = splunk.NewClient(cfg.Splunk)
	}

	summarizer := opts.Summarizer
	if summarizer == nil {
		client, err := ai.NewClient(cfg.OpenAI)
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		summarizer = client
	}

	custom, err := queries.Load(filepath.Join(config.ConfigDir(), "queries.yaml"))
	if err != nil {
		return nil, fmt.Errorf("load custom queries: %w", err)
	}
	if custom.Len() > 0 {
		log.Printf("[gateway] loaded %d custom queries: %v", custom.Len(), custom.Names())
	}

	g.router = router.New(searcher, summarizer, custom, cfg.Splunk.SummaryRows)

	chMgr, err := channel.NewChannelManager(cfg.Channels, cfg.Subscribers, g.bus)
	if err != nil {
		return nil, fmt.Errorf("create channel manager: %w", err)
	}
	g.channels = chMgr

	g.cron = cron.NewService(filepath.Join(config.ConfigDir(), "data", "digests.json"))
	g.cron.OnCommand = func(job cron.DigestJob) (string, error) {
		result, err := g.router.Route(context.Background(), job.Payload.Command, nil)
		if err != nil {
			return "", err
		}
		if job.Payload.Deliver && job.Payload.Channel != "" {
			g.bus.Outbound <- bus.OutboundMessage{
				Channel: job.Payload.Channel,
				ChatID:  job.Payload.ChatID,
				Content: fmt.Sprintf("[digest %s]\n%s", job.Name, result),
			}
		}
		return result, nil
	}

	return g, nil
}

func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go g.bus.DispatchOutbound(ctx)

	if err := g.channels.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	log.Printf("[gateway] channels started: %v", g.channels.EnabledChannels())

	if err := g.cron.Start(ctx); err != nil {
		log.Printf("[gateway] cron start warning: %v", err)
	}

	go g.processLoop(ctx)

	log.Printf("[gateway] running with %d subscribers", len(g.cfg.Subscribers))

	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	}
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	log.Printf("[gateway] shutting down...")
	return g.Shutdown()
}

// processLoop consumes inbound messages one at a time. The Splunk poll
// loop bounds each turn, so a stuck search cannot wedge the loop
// forever.
func (g *Gateway) processLoop(ctx context.Context) {
	for {
		select {
		case msg := <-g.bus.Inbound:
			log.Printf("[gateway] inbound from %s/%s: %s", msg.Channel, msg.SenderID, truncate(msg.Content, 80))
			g.handleTurn(ctx, msg)
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gateway) handleTurn(ctx context.Context, msg bus.InboundMessage) {
	notify := func(text string) {
		g.bus.Outbound <- bus.OutboundMessage{
			Channel: msg.Channel,
			ChatID:  msg.ChatID,
			Content: text,
		}
	}

	result, err := g.router.Route(ctx, msg.Content, notify)
	if err != nil {
		notify(userFacingError(err))
		return
	}
	if result != "" {
		notify(result)
	}
}

// userFacingError converts a turn failure into chat text. Parse errors
// are shown verbatim; everything else is wrapped and truncated so
// internals do not flood the chat.
func userFacingError(err error) string {
	if errors.Is(err, router.ErrParse) {
		return err.Error()
	}
	log.Printf("[gateway] turn failed: %v", err)
	text := strings.ReplaceAll(err.Error(), "\n", " ")
	return "Request failed: " + truncate(text, 500)
}

func (g *Gateway) Shutdown() error {
	g.cron.Stop()
	_ = g.channels.StopAll()
	log.Printf("[gateway] shutdown complete")
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
