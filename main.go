package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"moneytrack/config"
	"moneytrack/database"
	"moneytrack/events"
	"moneytrack/ledger"
	"moneytrack/logger"
	"moneytrack/media"
	"moneytrack/middleware"
	"moneytrack/repository"
	"moneytrack/router"
	"moneytrack/service"
	"moneytrack/session"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// @title MoneyTrack 记账 API
// @version 1.0
// @description 个人收支记账：收支记录、实时列表推送、统计汇总与数据导出
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

var (
	configFile  string
	port        string
	showVersion bool
)

func init() {
	flag.StringVar(&configFile, "config", "", "外部配置文件路径（可选）")
	flag.StringVar(&configFile, "c", "", "外部配置文件路径（简写）")
	flag.StringVar(&port, "port", "", "监听端口，如: 8080 或 :8080")
	flag.StringVar(&port, "p", "", "监听端口（简写）")
	flag.BoolVar(&showVersion, "version", false, "显示版本信息")
	flag.BoolVar(&showVersion, "v", false, "显示版本信息（简写）")
}

func main() {
	flag.Parse()

	if showVersion {
		fmt.Println("moneytrack v1.0.0")
		return
	}

	// .env 中的变量先于配置加载，可被 MONEYTRACK_ 前缀的环境变量读取
	if err := godotenv.Load(); err == nil {
		log.Info().Msg("已加载 .env")
	}

	// 加载配置（内置配置 + 可选的外部配置覆盖）
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("加载配置失败")
	}
	logger.Init(cfg.Log)

	// 命令行参数覆盖端口配置
	if port != "" {
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		cfg.Server.Port = port
		log.Info().Str("port", port).Msg("命令行指定端口")
	}

	config.PrintConfig()

	if err := database.Init(cfg); err != nil {
		log.Fatal().Err(err).Msg("数据库初始化失败")
	}

	middleware.InitJWT(cfg)

	categories := repository.NewCategoryRepository(database.DB)
	transactions := repository.NewTransactionRepository(database.DB)

	var opts []ledger.Option

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Events.Enabled {
		p, err := events.NewAMQPPublisher(cfg.Events)
		if err != nil {
			log.Warn().Err(err).Msg("连接消息队列失败，变更事件不会发布")
		} else {
			publisher = p
			opts = append(opts, ledger.WithListener(events.NewListener(p)))
		}
	}

	var alert *service.BudgetAlert
	if cfg.BudgetAlert.Enabled {
		emailService := service.NewEmailService(&cfg.Email)
		if emailService.Enabled() {
			alert = service.NewBudgetAlert(cfg.BudgetAlert, cfg.Analytics, emailService, service.LookupUser(database.DB))
			opts = append(opts, ledger.WithListener(alert))
		} else {
			log.Warn().Msg("预算提醒已开启但邮件服务未启用，忽略")
		}
	}

	sessions := session.NewManager(session.NewOpener(transactions, categories, opts...))

	mediaFs, err := media.NewDirFs(cfg.Media.Dir)
	if err != nil {
		log.Fatal().Err(err).Msg("初始化上传目录失败")
	}
	uploader := media.NewLocalUploader(mediaFs, cfg.Server.BaseURL, cfg.Media)

	r := router.SetupRouter(cfg, router.Deps{
		Sessions:   sessions,
		Categories: categories,
		Uploader:   uploader,
	})
	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().
			Str("api", "http://localhost"+cfg.Server.Port+"/api/v1/").
			Str("swagger", "http://localhost"+cfg.Server.Port+"/swagger/index.html").
			Msg("MoneyTrack 已启动")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("服务器启动失败: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("正在关闭服务")

		// 先结束全部会话，SSE 连接随订阅关闭而返回
		sessions.CloseAll()

		timeout := time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("服务退出异常")
	}

	if alert != nil {
		alert.Wait()
	}
	if err := publisher.Close(); err != nil {
		log.Warn().Err(err).Msg("关闭消息队列连接失败")
	}
	log.Info().Msg("服务已关闭")
}
