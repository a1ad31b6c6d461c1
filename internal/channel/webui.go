package channel

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/stellarlinkco/socbot/internal/bus"
	"github.com/stellarlinkco/socbot/internal/config"
)

//go:embed static
var staticFiles embed.FS

const webUIChannelName = "webui"

// wsMessage is the frame exchanged with the browser console.
type wsMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	id   string
}

// WebUIChannel is a local operator console: a small embedded page plus
// a websocket that speaks the same commands as Telegram. It binds to
// localhost; when a token is configured every websocket client must
// present it, otherwise access rests on the localhost binding alone.
type WebUIChannel struct {
	BaseChannel
	port    int
	token   string
	server  *http.Server
	clients sync.Map
	nextID  atomic.Int64
}

func NewWebUIChannel(cfg config.WebUIConfig, b *bus.MessageBus) (*WebUIChannel, error) {
	port := cfg.Port
	if port == 0 {
		port = config.DefaultPort
	}
	return &WebUIChannel{
		BaseChannel: NewBaseChannel(webUIChannelName, b, nil),
		port:        port,
		token:       cfg.Token,
	}, nil
}

func (w *WebUIChannel) Start(ctx context.Context) error {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return fmt.Errorf("embed static fs: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(staticFS)))
	mux.HandleFunc("/ws", w.handleWS)

	w.server = &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", w.port),
		Handler: mux,
	}

	go func() {
		log.Printf("[webui] console on http://127.0.0.1:%d", w.port)
		if err := w.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[webui] server error: %v", err)
		}
	}()

	return nil
}

func (w *WebUIChannel) handleWS(wr http.ResponseWriter, r *http.Request) {
	if w.token != "" && r.URL.Query().Get("token") != w.token {
		log.Printf("[webui] rejected websocket client from %s: bad token", r.RemoteAddr)
		http.Error(wr, "Unauthorized user.", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(wr, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("[webui] websocket accept error: %v", err)
		return
	}

	clientID := fmt.Sprintf("webui-%d", w.nextID.Add(1))
	w.clients.Store(clientID, &wsClient{conn: conn, id: clientID})
	log.Printf("[webui] client connected: %s", clientID)

	defer func() {
		w.clients.Delete(clientID)
		conn.CloseNow()
		log.Printf("[webui] client disconnected: %s", clientID)
	}()

	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type != "message" || msg.Content == "" {
			continue
		}

		w.bus.Inbound <- bus.InboundMessage{
			Channel:   webUIChannelName,
			SenderID:  clientID,
			ChatID:    clientID,
			Content:   msg.Content,
			Timestamp: time.Now(),
		}
	}
}

func (w *WebUIChannel) Send(msg bus.OutboundMessage) error {
	data, err := json.Marshal(wsMessage{Type: "message", Content: msg.Content})
	if err != nil {
		return err
	}

	client, ok := w.clients.Load(msg.ChatID)
	if !ok {
		return fmt.Errorf("webui client %q not connected", msg.ChatID)
	}

	c := client.(*wsClient)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (w *WebUIChannel) Stop() error {
	if w.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := w.server.Shutdown(ctx); err != nil {
			log.Printf("[webui] shutdown error: %v", err)
		}
	}
	w.clients.Range(func(key, value any) bool {
		value.(*wsClient).conn.CloseNow()
		return true
	})
	log.Printf("[webui] stopped")
	return nil
}
