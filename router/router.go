package router

import (
	"net/http"

	"moneytrack/api"
	"moneytrack/config"
	_ "moneytrack/docs"
	"moneytrack/ledger"
	"moneytrack/media"
	"moneytrack/middleware"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Deps 路由依赖的运行时组件
type Deps struct {
	Sessions   api.StoreProvider
	Categories ledger.CategorySource
	Uploader   *media.LocalUploader
}

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, deps Deps) *gin.Engine {
	// 设置运行模式
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())

	// CORS 中间件
	r.Use(CORSMiddleware())

	// 上传的头像
	if deps.Uploader != nil {
		r.StaticFS(cfg.Media.URLPrefix, afero.NewHttpFs(deps.Uploader.Fs()))
	}

	// Swagger 文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")
	{
		// 认证相关路由（无需登录）
		authHandler := api.NewAuthHandler(cfg, deps.Sessions, deps.Uploader)
		auth := v1.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", middleware.LoginRateLimitFromConfig(cfg.RateLimit), authHandler.Login)
		}

		// 收支类别（无需登录）
		categoryHandler := api.NewCategoryHandler()
		v1.GET("/categories", categoryHandler.List)

		// 需要 JWT 认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth())
		{
			// 用户相关
			authorized.POST("/auth/logout", authHandler.Logout)
			authorized.GET("/auth/profile", authHandler.GetProfile)
			authorized.PUT("/auth/profile", authHandler.UpdateProfile)
			authorized.PUT("/auth/password", authHandler.ChangePassword)
			authorized.POST("/auth/avatar", authHandler.UploadAvatar)

			// 收支记录
			transactionHandler := api.NewTransactionHandler(deps.Sessions, deps.Categories)
			transactions := authorized.Group("/transactions")
			{
				transactions.POST("", transactionHandler.Create)
				transactions.GET("", transactionHandler.List)
				transactions.GET("/stream", transactionHandler.Stream)
				transactions.POST("/reload", transactionHandler.Reload)
				transactions.GET("/:id", transactionHandler.Get)
				transactions.PUT("/:id", transactionHandler.Update)
				transactions.DELETE("/:id", transactionHandler.Delete)
			}

			// 统计
			statisticsHandler := api.NewStatisticsHandler(cfg, deps.Sessions)
			statistics := authorized.Group("/statistics")
			{
				statistics.GET("/dashboard", statisticsHandler.Dashboard)
				statistics.GET("/monthly", statisticsHandler.Monthly)
				statistics.GET("/categories", statisticsHandler.Categories)
				statistics.GET("/summary", statisticsHandler.Summary)
			}

			// 导出相关
			exportHandler := api.NewExportHandler(deps.Sessions)
			export := authorized.Group("/export")
			{
				export.GET("/csv", exportHandler.ExportCSV)
				export.GET("/json", exportHandler.ExportJSON)
				export.GET("/excel", exportHandler.ExportExcel)
			}
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	return r
}

// CORSMiddleware CORS 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
