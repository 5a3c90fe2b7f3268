//go:build !cli

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"mes.GO/api"
	_ "mes.GO/api/health"
	_ "mes.GO/api/pipeline"
	_ "mes.GO/api/reports"
	_ "mes.GO/api/workorders"
	graphqlApi "mes.GO/api/graphql"
	"mes.GO/config"
	"mes.GO/core/auth"
	"mes.GO/core/container"
	"mes.GO/core/metrics"
	"mes.GO/cron"
	_ "mes.GO/custom"
)

func main() {
	config.LoadEnv()
	cfg := config.App()
	log := config.InitLogger()
	defer log.Sync()

	config.InitRedis()
	if config.PingRedis() {
		log.Info("redis connection successful, using redis locks")
	} else {
		log.Info("redis not configured or not reachable, using database locks")
	}

	db, err := config.NewDB()
	if err != nil {
		log.Fatal("failed to connect to DB", zap.Error(err))
	}
	sqldb, err := db.DB()
	if err != nil {
		log.Fatal("failed to get DB instance", zap.Error(err))
	}
	if err := sqldb.Ping(); err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	log.Info("database connection successful")
	_ = metrics.UpdateDatabaseConnections(db)

	cont := container.New(db, cfg, log, container.Options{Redis: config.RedisClient})

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Gzip())
	e.Use(middleware.Decompress())
	e.Use(api.RequestMetrics())

	authMW := auth.Middleware()
	apiGroup := e.Group("/api")
	apiGroup.Use(authMW)
	api.ApplyModules(apiGroup, cont)
	api.ApplyRoutes(e, cont)
	graphqlApi.RegisterGraphQLRoutes(e, cont, authMW)

	var sched *cron.Scheduler
	if cfg.Scheduler.Enabled {
		sched = cron.NewScheduler(cont)
		if err := sched.AddRegistered(""); err != nil {
			log.Fatal("scheduler setup failed", zap.Error(err))
		}
		sched.Start()
		log.Info("scheduler started", zap.Strings("jobs", sched.Names()))
	}

	figure.NewFigure("MES", "slant", true).Print()
	fmt.Println()

	port := cfg.Port
	if port == "" {
		port = "8080"
	}
	go func() {
		log.Info("server running", zap.String("port", port))
		if err := e.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if sched != nil {
		sched.Stop()
	}
	if err := e.Shutdown(ctx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
	_ = sqldb.Close()
}
