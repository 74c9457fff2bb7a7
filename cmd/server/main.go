// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"recipe-book-go/internal/config"
	"recipe-book-go/internal/handler"
	"recipe-book-go/internal/middleware"
	"recipe-book-go/internal/model"
	"recipe-book-go/internal/reindex"
	"recipe-book-go/internal/repository"
	"recipe-book-go/internal/searchindex"
	"recipe-book-go/internal/service"
	"recipe-book-go/pkg/database"
	"recipe-book-go/pkg/embedding"
	"recipe-book-go/pkg/es"
	"recipe-book-go/pkg/kafka"
	"recipe-book-go/pkg/llm"
	"recipe-book-go/pkg/log"
	"recipe-book-go/pkg/storage"
	"recipe-book-go/pkg/token"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load("./configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "配置加载失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 构造外部依赖的连接句柄，失败即退出，不带病启动
	db, err := database.NewMySQL(cfg.Database.MySQL.DSN)
	if err != nil {
		log.Fatalf("MySQL 初始化失败: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.Recipe{}); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}

	rdb, err := database.NewRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	if err != nil {
		log.Fatalf("Redis 初始化失败: %v", err)
	}

	esClient, err := es.NewClient(cfg.Elasticsearch)
	if err != nil {
		log.Fatalf("Elasticsearch 初始化失败: %v", err)
	}

	minioClient, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		log.Fatalf("MinIO 初始化失败: %v", err)
	}

	// 4. 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	recipeRepo := repository.NewRecipeRepository(db)
	conversationRepo := repository.NewConversationRepository(rdb)

	// 5. 初始化搜索索引客户端并确保索引存在
	indexClient := searchindex.NewClient(esClient, cfg.Elasticsearch.IndexName, cfg.Embedding.Dimensions)
	if err := indexClient.EnsureIndex(context.Background()); err != nil {
		log.Fatalf("搜索索引初始化失败: %v", err)
	}

	// 6. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)
	producer := kafka.NewProducer(cfg.Kafka)
	defer producer.Close()

	userService := service.NewUserService(userRepo, jwtManager, cfg.Auth.AllowedEmailDomain)
	searchService := service.NewSearchService(indexClient, embeddingClient)
	recipeService := service.NewRecipeService(recipeRepo, indexClient, embeddingClient, producer)
	photoService := service.NewPhotoService(recipeRepo, minioClient, cfg.MinIO.BucketName)
	chatService := service.NewChatService(searchService, llmClient, conversationRepo)

	// 7. 启动后台 Kafka 消费者，补齐写路径上失败的索引投影
	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	defer cancelConsumer()
	go kafka.StartConsumer(consumerCtx, cfg.Kafka, rdb, reindex.NewProcessor(recipeRepo, indexClient, embeddingClient))

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := middleware.NewMetrics(registry)

	r.Use(middleware.RequestLogger(), metrics.Handler(), gin.Recovery())

	userHandler := handler.NewUserHandler(userService)
	recipeHandler := handler.NewRecipeHandler(recipeService, photoService)
	searchHandler := handler.NewSearchHandler(searchService)
	chatHandler := handler.NewChatHandler(chatService, jwtManager)
	systemHandler := handler.NewSystemHandler(recipeRepo)

	// 9. 注册路由
	r.GET("/healthz", systemHandler.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	// 浏览器的 WebSocket API 无法设置请求头，token 放在路径上
	r.GET("/chat/stream/:token", chatHandler.Stream)

	apiV1 := r.Group("/api/v1")
	{
		auth := apiV1.Group("/auth")
		{
			auth.POST("/refreshToken", userHandler.RefreshToken)
		}

		users := apiV1.Group("/users")
		{
			// 无需认证的路由 (公开访问)
			users.POST("/register", userHandler.Register)
			users.POST("/login", userHandler.Login)

			// 需要认证的路由 (仅限登录用户访问)
			authed := users.Group("/")
			authed.Use(middleware.AuthMiddleware(jwtManager))
			{
				authed.GET("/me", userHandler.Me)
			}
		}

		recipes := apiV1.Group("/recipes")
		recipes.Use(middleware.AuthMiddleware(jwtManager))
		{
			recipes.GET("", recipeHandler.List)
			recipes.POST("", recipeHandler.Create)
			recipes.POST("/search", searchHandler.Search)
			recipes.GET("/:id", recipeHandler.Get)
			recipes.PUT("/:id", recipeHandler.Update)
			recipes.DELETE("/:id", recipeHandler.Delete)
			recipes.POST("/:id/photo", recipeHandler.UploadPhoto)
			recipes.GET("/:id/photo", recipeHandler.GetPhotoURL)
		}

		chat := apiV1.Group("/chat")
		chat.Use(middleware.AuthMiddleware(jwtManager))
		{
			chat.POST("", chatHandler.Chat)
			chat.POST("/reformulate", chatHandler.Reformulate)
			chat.DELETE("/history", chatHandler.ClearHistory)
		}

		system := apiV1.Group("/system")
		system.Use(middleware.AuthMiddleware(jwtManager))
		{
			system.GET("/db-time", systemHandler.DBTime)
		}
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	cancelConsumer()

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已退出")
}
