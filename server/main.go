// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"speedcad/server/competition"
	"speedcad/server/config"
	"speedcad/server/leaderboard"
	"speedcad/server/logs"
	"speedcad/server/metrics"
	"speedcad/server/participant"
	"speedcad/server/realtime"
	"speedcad/server/storage"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	secret := []byte(cfg.JWTSecret)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("failed to ping database: %v", err)
	}

	if err := ensureSchema(db); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	compStore := competition.NewPGStore(db)
	if err := compStore.Ensure(context.Background()); err != nil {
		log.Fatalf("failed to ensure competition row: %v", err)
	}

	if err := ensureAdmin(db, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		log.Fatalf("failed to ensure admin user: %v", err)
	}

	metrics.Register()

	hub := realtime.NewHub()
	audit := logs.NewWriter(db, hub, realtime.TopicLogs)
	files := storage.NewDiskStore(cfg.StorageDir, cfg.PublicBaseURL)

	compSvc := competition.NewService(compStore, files, hub, cfg.StoreTimeout)
	partSvc := participant.NewService(participant.NewPGStore(db), compStore, files, hub, cfg.StoreTimeout, cfg.SubmissionTimeout)
	board := leaderboard.NewBroadcaster(partSvc, hub, cfg.PollInterval)
	observer := competition.NewObserver(compStore, hub, cfg.PollInterval)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 计时推送和排行榜推送
	go observer.Run(ctx)
	go board.Run(ctx)

	r := gin.Default()

	r.GET("/healthz", func(c *gin.Context) {
		hctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(hctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		tick, loaded := observer.Snapshot()
		c.JSON(http.StatusOK, gin.H{"status": "ok", "competition": tick.Status, "timerReady": loaded})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 上传文件（图纸、选手模型）
	r.Static(storage.URLPrefix, cfg.StorageDir)

	api := r.Group("/api")
	{
		api.POST("/login", func(c *gin.Context) {
			handleLogin(c, db, secret, audit)
		})

		// ========== 公开API（无需认证）==========
		api.GET("/competition", func(c *gin.Context) {
			competition.HandleGetPublic(c, compSvc)
		})
		api.GET("/leaderboard", func(c *gin.Context) {
			leaderboard.HandleGet(c, board)
		})
		api.GET("/stats", func(c *gin.Context) {
			participant.HandleStats(c, partSvc)
		})
		api.GET("/ws", hub.HandleWebSocket)
		api.POST("/participants/register", func(c *gin.Context) {
			participant.HandleRegister(c, partSvc, participantTokenIssuer(secret), audit)
		})

		// ========== 选手API ==========
		me := api.Group("/participants/me")
		me.Use(participantAuthMiddleware(secret))
		{
			me.GET("", func(c *gin.Context) {
				participant.HandleMe(c, partSvc)
			})
			me.POST("/submission", func(c *gin.Context) {
				participant.HandleSubmit(c, partSvc, audit)
			})
			me.POST("/submission/complete", func(c *gin.Context) {
				participant.HandleCompleteSubmission(c, partSvc, audit)
			})
		}

		// ========== 管理员API ==========
		adminAPI := api.Group("/admin")
		adminAPI.Use(authMiddleware(secret))
		{
			adminAPI.GET("/competition", func(c *gin.Context) {
				competition.HandleGetAdmin(c, compSvc)
			})
			adminAPI.POST("/competition/start", func(c *gin.Context) {
				competition.HandleStart(c, compSvc, audit)
			})
			adminAPI.POST("/competition/pause", func(c *gin.Context) {
				competition.HandlePause(c, compSvc, audit)
			})
			adminAPI.POST("/competition/resume", func(c *gin.Context) {
				competition.HandleResume(c, compSvc, audit)
			})
			adminAPI.POST("/competition/stop", func(c *gin.Context) {
				competition.HandleStop(c, compSvc, audit)
			})
			adminAPI.POST("/competition/reset", func(c *gin.Context) {
				competition.HandleReset(c, compSvc, audit)
			})
			adminAPI.PUT("/competition/material", func(c *gin.Context) {
				competition.HandleUpdateMaterial(c, compSvc, audit)
			})
			adminAPI.PUT("/competition/tolerance", func(c *gin.Context) {
				competition.HandleUpdateTolerance(c, compSvc, audit)
			})
			adminAPI.POST("/competition/drawing", func(c *gin.Context) {
				competition.HandleUploadDrawing(c, compSvc, audit)
			})

			adminAPI.GET("/participants", func(c *gin.Context) {
				participant.HandleList(c, partSvc)
			})
			adminAPI.POST("/participants/reset", func(c *gin.Context) {
				participant.HandleReset(c, partSvc, audit)
			})
			adminAPI.GET("/leaderboard/export", func(c *gin.Context) {
				leaderboard.HandleExport(c, board, audit)
			})

			adminAPI.GET("/logs", func(c *gin.Context) {
				logs.HandleGetLogs(c, db)
			})
			adminAPI.GET("/logs/ws", func(c *gin.Context) {
				hub.ServeTopic(c, realtime.TopicLogs)
			})
		}
	}

	// 前端静态页面托管
	r.NoRoute(func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "NOT_FOUND"})
			return
		}
		if path == "/" || strings.HasSuffix(path, ".html") {
			c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
		}
		if path == "/" {
			c.File("./web/index.html")
			return
		}
		c.File("./web" + path)
	})

	handler := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}).Handler(r)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: handler}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown: %v", err)
		}
	}()

	log.Printf("[Server] 监听端口 %s，文件目录 %s", cfg.Port, cfg.StorageDir)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server exited: %v", err)
	}
}
