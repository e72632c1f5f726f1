package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"StemFM/cache"
	"StemFM/config"
	"StemFM/core/channel"
	"StemFM/core/clock"
	"StemFM/core/player"
	"StemFM/core/queue"
	"StemFM/core/session"
	"StemFM/core/trackstate"
	"StemFM/core/transport"
	"StemFM/db"
	"StemFM/logger"
	"StemFM/model"
	"StemFM/repository"
	"StemFM/storage"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Start 装配并启动播放服务
func Start() {
	cfg := config.Load()

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if err := storage.InitMinio(); err != nil {
		logger.Fatal("MinIO 初始化失败", logger.ErrorField(err))
	}

	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("数据库连接失败", logger.ErrorField(err))
	}
	defer db.DB.Close()

	if err := db.InitDB(); err != nil {
		logger.Fatal("数据库初始化失败", logger.ErrorField(err))
	}

	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("GORM 连接失败", logger.ErrorField(err))
	}
	defer db.CloseGormDB()

	if err := db.ConnectRedis(cfg); err != nil {
		logger.Fatal("Redis 连接失败", logger.ErrorField(err))
	}
	defer db.CloseRedis()

	// 持久层与同步层
	songRepo := repository.NewGormSongRepository(db.GormDB)
	mixRepo := repository.NewGormMixStateRepository(db.GormDB)
	mixCache := cache.NewMixStateCache(db.RedisClient)
	sessionCache := cache.NewSessionCache(db.RedisClient)
	store := trackstate.NewStore(mixRepo, mixCache)

	deviceID := cfg.DeviceID
	if deviceID == "" {
		deviceID = uuid.NewString()
		logger.Info("未配置设备ID，使用随机标识", logger.String("deviceId", deviceID))
	}

	// 播放链路
	clk := clock.New()
	engine := channel.NewSimEngine(clk)
	tuning := cfg.Tuning
	tp := transport.New(engine, time.Duration(tuning().ProgressTickMs)*time.Millisecond)
	svc := player.NewService(tp, store, songRepo, storage.StemURL, cfg.DefaultUserID, clk, tuning)
	qc := queue.New(tp, svc)
	sm := session.NewManager(sessionCache, tp, deviceID, clk, tuning)

	// 事件推送：连接建立时重放当前状态
	hub := NewEventHub(func() []Event {
		events := []Event{
			{Type: "transport", Data: tp.Snapshot()},
			{Type: "queue", Data: qc.Snapshot()},
		}
		if mx := svc.Mixer(); mx != nil {
			events = append(events, Event{Type: "mix", Data: mx.EffectiveGains()})
		}
		return events
	})
	tp.OnChange(func(snap model.TransportSnapshot) {
		hub.Broadcast(Event{Type: "transport", Data: snap})
	})
	svc.OnMixChanged(func() {
		if mx := svc.Mixer(); mx != nil {
			hub.Broadcast(Event{Type: "mix", Data: mx.EffectiveGains()})
		}
	})
	qc.OnComplete(func() {
		hub.Broadcast(Event{Type: "queue", Data: qc.Snapshot()})
	})

	// 路由
	router := mux.NewRouter()
	router.Use(corsMiddleware)

	RegisterSongRoutes(router, NewSongHandler(songRepo, mixRepo, storage.StemURL))
	RegisterPlaybackRoutes(router, NewPlaybackHandler(svc, sm))
	RegisterMixerRoutes(router, NewMixerHandler(svc))
	RegisterQueueRoutes(router, NewQueueHandler(qc, sm))
	RegisterSessionRoutes(router, NewSessionHandler(sm))
	router.HandleFunc("/ws/events", hub.EventsHandler)

	server.Handler = router

	// 同步节流参数热加载
	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	if err := cfg.WatchTuning(watchCtx); err != nil {
		logger.Warn("同步参数热加载未启用", logger.ErrorField(err))
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("服务启动", logger.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("服务启动失败", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("正在关闭服务")

	// 离开会话，管理端退出时结束会话
	leaveCtx, cancelLeave := context.WithTimeout(context.Background(), 3*time.Second)
	if err := sm.Leave(leaveCtx); err != nil {
		logger.Warn("退出会话失败", logger.ErrorField(err))
	}
	cancelLeave()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("服务关闭超时", logger.ErrorField(err))
	}
	logger.Info("服务已停止")
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
