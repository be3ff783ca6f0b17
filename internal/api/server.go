package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"monitorsync/internal/broadcast"
	"monitorsync/internal/events"
	"monitorsync/internal/logger"
	"monitorsync/internal/metrics"
	"monitorsync/internal/monitor"
	"monitorsync/internal/scenario"
)

// relayWaitTimeout は中継リスナーが一回の待機で待つ時間
const relayWaitTimeout = 30 * time.Second

// Server はAPIサーバー
type Server struct {
	addr   string
	bus    *events.Bus
	relay  *broadcast.Broadcaster[string]
	engine *scenario.Engine
	config scenario.Config

	mu        sync.RWMutex
	running   bool
	wsClients map[*websocket.Conn]bool

	server *http.Server
}

// NewServer は新しいAPIサーバーを作成する
func NewServer(addr string) *Server {
	return &Server{
		addr:      addr,
		bus:       events.NewBus(),
		relay:     broadcast.New[string](),
		wsClients: make(map[*websocket.Conn]bool),
	}
}

// Handler はルーティング済みのハンドラを返す
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// API routes
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/metrics", s.handleMetrics)
	mux.HandleFunc("/api/scenario/start", s.handleScenarioStart)
	mux.HandleFunc("/api/scenario/stop", s.handleScenarioStop)
	mux.HandleFunc("/api/presets", s.handlePresets)
	mux.HandleFunc("/api/broadcast", s.handleBroadcast)

	// WebSocket
	mux.Handle("/ws", websocket.Handler(s.handleWebSocket))
	mux.Handle("/ws/broadcast", websocket.Handler(s.handleRelay))

	return mux
}

// Start はサーバーを開始する
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	// バックグラウンドでイベントとステータスを配信
	go s.forwardEvents(ctx)
	go s.statusLoop(ctx)

	logger.Info("api", "API Server starting on http://%s", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.stopScenario()
		_ = s.server.Shutdown(shutdownCtx)
		s.bus.Close()
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StatusResponse はステータスレスポンス
type StatusResponse struct {
	Running          bool             `json:"running"`
	ScenarioName     string           `json:"scenario_name,omitempty"`
	Primitives       *scenario.Status `json:"primitives,omitempty"`
	RelayListeners   int              `json:"relay_listeners"`
	EventSubscribers int              `json:"event_subscribers"`
}

func (s *Server) status() StatusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resp := StatusResponse{
		Running:          s.running,
		ScenarioName:     s.config.Name,
		RelayListeners:   s.relay.Waiting(),
		EventSubscribers: s.bus.SubscriberCount(),
	}
	if s.engine != nil {
		resp.Primitives = s.engine.Status()
	}
	return resp
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, s.status())
}

// MetricsResponse はメトリクスレスポンス
type MetricsResponse struct {
	ScenarioName string                      `json:"scenario_name,omitempty"`
	Sources      map[string]metrics.Snapshot `json:"sources"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	engine, name := s.engine, s.config.Name
	s.mu.RUnlock()

	resp := MetricsResponse{ScenarioName: name, Sources: map[string]metrics.Snapshot{}}
	if engine != nil {
		if snaps := engine.Metrics(); snaps != nil {
			resp.Sources = snaps
		}
	}

	s.writeJSON(w, resp)
}

// ScenarioRequest はシナリオ開始リクエスト
type ScenarioRequest struct {
	Preset   string `json:"preset"`
	Duration string `json:"duration,omitempty"`
}

func (s *Server) handleScenarioStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// プリセット取得
	config, ok := scenario.GetPreset(req.Preset)
	if !ok {
		config = scenario.QuickScenario()
	}

	// オーバーライド
	if req.Duration != "" {
		d, err := time.ParseDuration(req.Duration)
		if err != nil || d <= 0 {
			http.Error(w, "Invalid duration", http.StatusBadRequest)
			return
		}
		config.Duration = d
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		http.Error(w, "Scenario already running", http.StatusConflict)
		return
	}

	engine := scenario.New(config)
	engine.SetEventBus(s.bus)
	s.config = config
	s.engine = engine
	s.running = true
	s.mu.Unlock()

	// バックグラウンドで実行
	go func() {
		result, err := engine.Run(context.Background())

		s.mu.Lock()
		s.running = false
		s.mu.Unlock()

		if err != nil {
			logger.Error("api", "Scenario failed: %v", err)
			s.broadcast(map[string]any{
				"type":  "scenario_failed",
				"error": err.Error(),
			})
			return
		}
		logger.Info("api", "Scenario completed (all terminated: %v)", result.AllTerminated())

		s.broadcast(map[string]any{
			"type":   "scenario_result",
			"result": result,
		})
	}()

	s.writeJSON(w, map[string]string{"status": "started", "scenario": config.Name})
}

func (s *Server) handleScenarioStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.stopScenario() {
		http.Error(w, "No scenario running", http.StatusBadRequest)
		return
	}

	s.writeJSON(w, map[string]string{"status": "stop requested"})
}

// stopScenario は実行中のシナリオに停止を要求する
func (s *Server) stopScenario() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.running || s.engine == nil {
		return false
	}
	return s.engine.Stop()
}

// PresetInfo はプリセット情報
type PresetInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Duration    string `json:"duration"`
	Chaos       bool   `json:"chaos"`
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var presets []PresetInfo
	for _, name := range scenario.ListPresets() {
		config, _ := scenario.GetPreset(name)
		presets = append(presets, PresetInfo{
			Name:        name,
			Description: config.Description,
			Duration:    config.Duration.String(),
			Chaos:       config.EnableChaos,
		})
	}

	s.writeJSON(w, presets)
}

// BroadcastRequest は中継メッセージのリクエスト
type BroadcastRequest struct {
	Message string `json:"message"`
}

// BroadcastResponse は中継結果
type BroadcastResponse struct {
	Delivered int      `json:"delivered"`
	Receivers []string `json:"receivers"`
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req BroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ids := s.relay.SendToAll(req.Message)
	resp := BroadcastResponse{Delivered: len(ids), Receivers: make([]string, 0, len(ids))}
	for _, id := range ids {
		resp.Receivers = append(resp.Receivers, id.Short())
	}
	s.bus.Publish(events.NewBroadcastSentEvent("relay", len(ids)))

	s.writeJSON(w, resp)
}

// WebSocket handling
func (s *Server) handleWebSocket(ws *websocket.Conn) {
	s.mu.Lock()
	s.wsClients[ws] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.wsClients, ws)
		s.mu.Unlock()
		_ = ws.Close()
	}()

	// Keep connection alive
	for {
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			break
		}
	}
}

// handleRelay は接続を中継リスナーとして待機させ、届いたメッセージを書き出す
func (s *Server) handleRelay(ws *websocket.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		_ = ws.Close()
	}()

	// 切断を検知する
	go func() {
		defer cancel()
		for {
			var msg string
			if err := websocket.Message.Receive(ws, &msg); err != nil {
				return
			}
		}
	}()

	for {
		msg, ok, err := s.relay.WaitForMessage(ctx, relayWaitTimeout)
		if err != nil {
			if !errors.Is(err, monitor.ErrCancelled) {
				logger.Warn("api", "relay listener stopped: %v", err)
			}
			return
		}
		if !ok {
			continue
		}
		logger.Debug("api", "relay listener %s received a message", msg.Receiver.Short())
		if err := websocket.Message.Send(ws, msg.Value); err != nil {
			return
		}
	}
}

func (s *Server) broadcast(data any) {
	s.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(s.wsClients))
	for ws := range s.wsClients {
		clients = append(clients, ws)
	}
	s.mu.RUnlock()

	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}

	for _, ws := range clients {
		_ = websocket.Message.Send(ws, string(jsonData))
	}
}

// forwardEvents はイベントバスのイベントをWebSocketクライアントへ転送する
func (s *Server) forwardEvents(ctx context.Context) {
	ch := s.bus.Subscribe()
	defer s.bus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			s.broadcast(map[string]any{
				"type":  "event",
				"event": event,
			})
		}
	}
}

func (s *Server) statusLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := s.status()
			if !status.Running {
				continue
			}

			s.broadcast(map[string]any{
				"type":   "status",
				"status": status,
			})
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("api", "Failed to encode JSON: %v", err)
	}
}
