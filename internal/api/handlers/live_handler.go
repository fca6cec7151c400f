package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/prepmate/prepmate/internal/cache"
	"github.com/prepmate/prepmate/internal/live"
	"github.com/prepmate/prepmate/internal/models"
	"github.com/prepmate/prepmate/internal/providers/stt"
	"github.com/prepmate/prepmate/internal/services"
	"github.com/prepmate/prepmate/internal/utils"
)

// LiveHandler upgrades one client to a websocket and hands the connection
// to a live.Loop. The loop is the only writer for the session it starts.
type LiveHandler struct {
	interviews services.InterviewService
	stt        stt.Provider
	cache      cache.Cache
	redis      *redis.Client
	log        *logrus.Logger
	upgrader   websocket.Upgrader
}

func NewLiveHandler(interviews services.InterviewService, sttProv stt.Provider, c cache.Cache, rdb *redis.Client, log *logrus.Logger) *LiveHandler {
	return &LiveHandler{
		interviews: interviews,
		stt:        sttProv,
		cache:      c,
		redis:      rdb,
		log:        log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin in prod
		},
	}
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) Send(msg live.OutMessage) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

// sessionRunner binds the interview service to one authenticated
// user+plan so the loop never sees identity.
type sessionRunner struct {
	svc    services.InterviewService
	userID string
	planID string
}

func (r *sessionRunner) Start(ctx context.Context, in services.StartSessionInput) (*services.StartSessionResult, error) {
	return r.svc.Start(ctx, r.userID, r.planID, in)
}

func (r *sessionRunner) Next(ctx context.Context, sessionID string, t []models.TranscriptEntry) (string, error) {
	return r.svc.Next(ctx, r.userID, r.planID, sessionID, t)
}

func (r *sessionRunner) Warning(ctx context.Context, sessionID string, t []models.TranscriptEntry) (string, error) {
	return r.svc.Warning(ctx, r.userID, r.planID, sessionID, t)
}

func (r *sessionRunner) End(ctx context.Context, sessionID string, t []models.TranscriptEntry) (*services.EndSessionResult, error) {
	return r.svc.End(ctx, r.userID, r.planID, sessionID, t)
}

type redisStatusPublisher struct {
	rdb *redis.Client
}

func (p *redisStatusPublisher) PublishStatus(ctx context.Context, sessionID, status string) error {
	payload, _ := json.Marshal(map[string]string{"type": "status", "status": status})
	return p.rdb.Publish(ctx, "session:"+sessionID+":status", string(payload)).Err()
}

func (h *LiveHandler) SessionWS(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	planID := c.Param("plan_id")
	if planID == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, "LiveHandler.SessionWS", "missing plan_id", nil))
		return
	}

	resumeNeeded := c.Query("type") == services.InterviewTypeResume

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote the response in most cases
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	loop := live.NewLoop(live.Config{
		Runner:       &sessionRunner{svc: h.interviews, userID: userID, planID: planID},
		Sink:         wc,
		Transcriber:  h.stt,
		Guard:        h.cache,
		Publisher:    &redisStatusPublisher{rdb: h.redis},
		Logger:       h.log.WithFields(logrus.Fields{"plan_id": planID, "user_id": userID}),
		TimeLimit:    liveTimeLimit(),
		ResumeNeeded: resumeNeeded,
	})

	// connection drop mid-interview counts as leaving the interview view
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 30*time.Second)
		defer done()
		loop.Shutdown(shutdownCtx)
	}()

	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, data, rerr := conn.ReadMessage()
		if rerr != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		var ev live.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			_ = wc.Send(live.OutMessage{Type: "error", Text: "invalid json"})
			continue
		}

		loop.HandleEvent(ctx, ev)

		if loop.State() == live.StateFeedback {
			return
		}
	}
}

func liveTimeLimit() time.Duration {
	if s := os.Getenv("INTERVIEW_TIME_LIMIT_SECONDS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return live.DefaultTimeLimit
}
