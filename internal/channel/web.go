package channel

import (
	"context"
	"crypto/rand"
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"meetly/internal/calendar"
	"meetly/internal/config"
	"meetly/internal/domain"
)

const (
	maxFormSize       = 1 << 20 // 1MB
	maxBodySize       = 1 << 20
	requestTimeout    = 120 * time.Second
	sessionCookieName = "meetly_session"
	sessionMaxAge     = 86400 * 30 // 30 days
)

//go:embed web_templates/*.html
var templateFS embed.FS

// sseEvent is the JSON payload pushed over /chat/stream.
type sseEvent struct {
	Typing  bool   `json:"typing,omitempty"`
	Content string `json:"content,omitempty"`
}

// Web implements domain.Channel for the marketing site and its chat demo.
// The landing page is static; /demo hosts the chat widget that talks to the
// scheduling engine over /chat/send and /chat/stream.
type Web struct {
	host    string
	port    int
	bus     domain.MessageBus
	logger  *slog.Logger
	server  *http.Server
	tmpl    *htmltemplate.Template
	version string

	// Optional meeting source for the per-session ICS feed.
	store domain.Store

	// Config reference for the settings API (protected by cfgMu)
	cfg     *config.Config
	cfgPath string
	cfgMu   sync.RWMutex

	// SSE clients keyed by session ID for targeted delivery
	sseClients   map[string]chan sseEvent
	sseClientsMu sync.RWMutex

	// Pending responses keyed by session ID
	pendingResponses   map[string]chan string
	pendingResponsesMu sync.Mutex
}

type WebConfig struct {
	Host       string
	Port       int
	Logger     *slog.Logger
	Store      domain.Store // optional, enables /meetings.ics
	Config     *config.Config
	ConfigPath string
	Version    string
}

func NewWeb(cfg WebConfig) *Web {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	tmpl := htmltemplate.Must(htmltemplate.ParseFS(templateFS, "web_templates/*.html"))

	return &Web{
		host:             cfg.Host,
		port:             cfg.Port,
		logger:           cfg.Logger,
		tmpl:             tmpl,
		version:          cfg.Version,
		store:            cfg.Store,
		cfg:              cfg.Config,
		cfgPath:          cfg.ConfigPath,
		sseClients:       make(map[string]chan sseEvent),
		pendingResponses: make(map[string]chan string),
	}
}

func (w *Web) Name() string { return "web" }

// SetBus wires the bus and registers the outbound route. Start calls this;
// tests call it directly and exercise Handler without a listener.
func (w *Web) SetBus(bus domain.MessageBus) {
	w.bus = bus
	bus.OnOutbound("web", func(msg domain.OutboundMessage) {
		if msg.Typing {
			w.sendSSE(msg.ChatID, sseEvent{Typing: true})
			return
		}
		w.pendingResponsesMu.Lock()
		ch, ok := w.pendingResponses[msg.ChatID]
		w.pendingResponsesMu.Unlock()
		if ok {
			select {
			case ch <- msg.Content:
			default:
			}
		}
		// SSE goes only to the session that owns this chat.
		w.sendSSE(msg.ChatID, sseEvent{Content: msg.Content})
	})
}

// Handler builds the route table for the site and the chat API.
func (w *Web) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /", w.handleHome)
	mux.HandleFunc("GET /demo", w.handleDemo)
	mux.HandleFunc("POST /chat/send", w.handleSend)
	mux.HandleFunc("GET /chat/stream", w.handleSSE)
	mux.HandleFunc("POST /chat/clear", w.handleClear)
	mux.HandleFunc("GET /meetings.ics", w.handleICS)
	mux.HandleFunc("GET /status", w.handleStatus)

	mux.HandleFunc("GET /api/config", w.handleGetConfig)
	mux.HandleFunc("PUT /api/config", w.handleUpdateConfig)
	mux.HandleFunc("POST /api/config/save", w.handleSaveConfig)

	return mux
}

// Start starts the web server and blocks until the context is cancelled.
func (w *Web) Start(ctx context.Context, bus domain.MessageBus) error {
	w.SetBus(bus)

	addr := fmt.Sprintf("%s:%d", w.host, w.port)
	w.server = &http.Server{
		Addr:    addr,
		Handler: w.Handler(),
	}

	w.logger.Info("web site started", "addr", "http://"+addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		w.server.Shutdown(shutdownCtx)
	}()

	if err := w.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (w *Web) Stop() error {
	if w.server != nil {
		return w.server.Close()
	}
	return nil
}

func (w *Web) Send(ctx context.Context, chatID string, content string) error {
	w.sendSSE(chatID, sseEvent{Content: content})
	return nil
}

// getOrCreateSession returns a persistent session ID from cookies.
// The session ID doubles as the chat ID, so the conversation survives reloads.
func (w *Web) getOrCreateSession(r *http.Request, rw http.ResponseWriter) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		return cookie.Value
	}

	b := make([]byte, 16)
	var sessionID string
	if _, err := rand.Read(b); err != nil {
		sessionID = fmt.Sprintf("web_%d", time.Now().UnixNano())
		w.logger.Warn("rand.Read failed, using fallback session ID", "err", err)
	} else {
		sessionID = "web_" + hex.EncodeToString(b)
	}

	http.SetCookie(rw, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sessionID
}

func (w *Web) handleHome(rw http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(rw, r)
		return
	}
	if err := w.tmpl.ExecuteTemplate(rw, "index.html", map[string]any{
		"Title":   "Meetly",
		"Version": w.version,
	}); err != nil {
		w.logger.Error("template error", "template", "index", "err", err)
	}
}

func (w *Web) handleDemo(rw http.ResponseWriter, r *http.Request) {
	w.getOrCreateSession(r, rw)
	if err := w.tmpl.ExecuteTemplate(rw, "demo.html", map[string]any{
		"Title": "Meetly Demo",
	}); err != nil {
		w.logger.Error("template error", "template", "demo", "err", err)
	}
}

func (w *Web) handleSend(rw http.ResponseWriter, r *http.Request) {
	// Support both application/x-www-form-urlencoded and multipart/form-data
	_ = r.ParseMultipartForm(maxFormSize)
	message := r.FormValue("message")
	if message == "" {
		rw.Header().Set("Content-Type", "application/json; charset=utf-8")
		rw.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(rw).Encode(map[string]string{"error": "empty message"})
		return
	}

	sessionID := w.getOrCreateSession(r, rw)

	responseCh := make(chan string, 4)
	w.pendingResponsesMu.Lock()
	// A previous request still pending for this session gets superseded.
	if oldCh, exists := w.pendingResponses[sessionID]; exists {
		close(oldCh)
	}
	w.pendingResponses[sessionID] = responseCh
	w.pendingResponsesMu.Unlock()
	defer func() {
		w.pendingResponsesMu.Lock()
		if ch, ok := w.pendingResponses[sessionID]; ok && ch == responseCh {
			delete(w.pendingResponses, sessionID)
		}
		w.pendingResponsesMu.Unlock()
	}()

	w.bus.Publish(domain.InboundMessage{
		Channel:   "web",
		ChatID:    sessionID,
		SenderID:  "web_user",
		Content:   message,
		Timestamp: time.Now(),
	})

	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	timeout := time.NewTimer(requestTimeout)
	defer timeout.Stop()
	select {
	case resp, ok := <-responseCh:
		if ok {
			json.NewEncoder(rw).Encode(map[string]string{"content": resp})
		} else {
			rw.WriteHeader(http.StatusConflict)
			json.NewEncoder(rw).Encode(map[string]string{"error": "superseded by a newer request"})
		}
	case <-timeout.C:
		rw.WriteHeader(http.StatusGatewayTimeout)
		json.NewEncoder(rw).Encode(map[string]string{"error": "request timed out"})
	case <-r.Context().Done():
		w.logger.Info("web client disconnected", "session", sessionID)
	}
}

func (w *Web) handleClear(rw http.ResponseWriter, r *http.Request) {
	// Expire the cookie; the next request starts a fresh chat.
	http.SetCookie(rw, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(rw).Encode(map[string]string{"status": "session cleared"})
}

func (w *Web) handleSSE(rw http.ResponseWriter, r *http.Request) {
	flusher, ok := rw.(http.Flusher)
	if !ok {
		http.Error(rw, "SSE not supported", http.StatusInternalServerError)
		return
	}

	sessionID := w.getOrCreateSession(r, rw)

	rw.Header().Set("Content-Type", "text/event-stream")
	rw.Header().Set("Cache-Control", "no-cache")
	rw.Header().Set("Connection", "keep-alive")

	ch := make(chan sseEvent, 10)

	w.sseClientsMu.Lock()
	w.sseClients[sessionID] = ch
	w.sseClientsMu.Unlock()

	defer func() {
		w.sseClientsMu.Lock()
		if existing, ok := w.sseClients[sessionID]; ok && existing == ch {
			delete(w.sseClients, sessionID)
		}
		w.sseClientsMu.Unlock()
	}()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			data, _ := json.Marshal(ev)
			fmt.Fprintf(rw, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// handleICS serves the session's booked meetings as an iCalendar feed so the
// demo can offer a "subscribe in your calendar app" link.
func (w *Web) handleICS(rw http.ResponseWriter, r *http.Request) {
	if w.store == nil {
		http.Error(rw, "calendar feed not available", http.StatusNotFound)
		return
	}
	sessionID := w.getOrCreateSession(r, rw)

	meetings, err := w.store.MeetingsForChat(r.Context(), "web", sessionID)
	if err != nil {
		w.logger.Error("cannot load meetings for feed", "session", sessionID, "err", err)
		http.Error(rw, "cannot load meetings", http.StatusInternalServerError)
		return
	}

	data, err := calendar.EncodeICS(meetings)
	if err != nil {
		w.logger.Error("cannot encode calendar feed", "err", err)
		http.Error(rw, "cannot encode feed", http.StatusInternalServerError)
		return
	}

	rw.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	rw.Header().Set("Content-Disposition", `attachment; filename="meetly.ics"`)
	rw.Write(data)
}

func (w *Web) handleStatus(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json")
	json.NewEncoder(rw).Encode(map[string]any{
		"status":  "ok",
		"version": w.version,
		"time":    time.Now().Format(time.RFC3339),
	})
}

func (w *Web) handleGetConfig(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")

	w.cfgMu.RLock()
	cfg := w.cfg
	w.cfgMu.RUnlock()

	if cfg == nil {
		rw.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(rw).Encode(map[string]string{"error": "config not loaded"})
		return
	}
	json.NewEncoder(rw).Encode(config.Sanitize(cfg))
}

func (w *Web) handleUpdateConfig(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")

	w.cfgMu.Lock()
	defer w.cfgMu.Unlock()

	if w.cfg == nil {
		rw.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(rw).Encode(map[string]string{"error": "config not loaded"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(rw).Encode(map[string]string{"error": "read body: " + err.Error()})
		return
	}
	defer r.Body.Close()

	// Partial update: { "path": "calendar.workdayStartHour", "value": 8 }
	var partial struct {
		Path  string `json:"path"`
		Value any    `json:"value"`
	}
	if err := json.Unmarshal(body, &partial); err == nil && partial.Path != "" {
		if err := config.SetByPath(w.cfg, partial.Path, partial.Value); err != nil {
			rw.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(rw).Encode(map[string]string{"error": err.Error()})
			return
		}
		if err := config.Validate(w.cfg); err != nil {
			rw.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(rw).Encode(map[string]string{"error": "validation: " + err.Error()})
			return
		}
		w.logger.Info("config updated via path", "path", partial.Path, "value", partial.Value)
		json.NewEncoder(rw).Encode(map[string]string{"status": "updated", "path": partial.Path})
		return
	}

	// Full config update, validated on a copy before swapping in.
	var candidate config.Config
	if err := json.Unmarshal(body, &candidate); err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(rw).Encode(map[string]string{"error": "invalid config: " + err.Error()})
		return
	}
	if err := config.Validate(&candidate); err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(rw).Encode(map[string]string{"error": "validation: " + err.Error()})
		return
	}
	*w.cfg = candidate

	w.logger.Info("config updated (full)")
	json.NewEncoder(rw).Encode(map[string]string{"status": "updated"})
}

func (w *Web) handleSaveConfig(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")

	w.cfgMu.RLock()
	cfg := w.cfg
	cfgPath := w.cfgPath
	w.cfgMu.RUnlock()

	if cfg == nil || cfgPath == "" {
		rw.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(rw).Encode(map[string]string{"error": "config not available"})
		return
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		rw.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(rw).Encode(map[string]string{"error": "save failed: " + err.Error()})
		return
	}

	w.logger.Info("config saved to disk", "path", cfgPath)
	json.NewEncoder(rw).Encode(map[string]string{"status": "saved", "path": cfgPath})
}

// sendSSE delivers an event to the SSE client that owns the session.
func (w *Web) sendSSE(sessionID string, ev sseEvent) {
	w.sseClientsMu.RLock()
	ch, ok := w.sseClients[sessionID]
	w.sseClientsMu.RUnlock()
	if ok {
		select {
		case ch <- ev:
		default:
		}
	}
}
