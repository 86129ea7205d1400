package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // 确保在精简镜像中也能识别时区

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/user/flixplay/internal/config"
	"github.com/user/flixplay/internal/handler"
	"github.com/user/flixplay/internal/middleware"
	"github.com/user/flixplay/internal/router"
	"github.com/user/flixplay/internal/service"
	"github.com/user/flixplay/internal/store"
	"github.com/user/flixplay/internal/utils"
)

func main() {
	// 加载环境变量
	if err := godotenv.Load(); err != nil {
		log.Println("未找到 .env 文件，使用系统环境变量")
	}

	// 加载配置
	cfg := config.Load()

	// 初始化存储（用户 + 片库，首次启动写入默认数据）
	stores, err := store.NewStores(cfg.DataDir)
	if err != nil {
		log.Fatalf("存储初始化失败: %v", err)
	}

	// 初始化媒体服务
	media, err := service.NewMediaService(cfg.MediaDir)
	if err != nil {
		log.Fatalf("媒体目录初始化失败: %v", err)
	}

	// 初始化缓存
	utils.InitCache()

	// 初始化 Gin
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	// 中间件
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(middleware.NewOriginPolicy(cfg)))

	// 启用 gzip；流媒体和上传路径排除在外，
	// 压缩字节范围响应会破坏 Content-Length/Content-Range 语义
	r.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPaths([]string{"/videos/stream", "/upload", "/thumbnails"})))

	// 初始化 Handler
	h := handler.NewHandler(stores, cfg, media)

	// 注册路由
	router.RegisterRoutes(r, h)

	// 配置 HTTP 服务器
	// 不设全局 WriteTimeout：会掐断长时间的视频流，
	// 流媒体连接由逐块滚动写超时兜底
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    1 << 20,
	}

	// 在 goroutine 中启动服务器，这样我们就可以监听信号
	go func() {
		log.Printf("服务器启动于 http://localhost:%s (媒体目录: %s)", cfg.Port, media.Root())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务器启动失败: %v", err)
		}
	}()

	// 等待中断信号以优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("正在关闭服务器...")

	// 5 秒超时上下文用于关闭过程
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("服务器强制关闭:", err)
	}

	log.Println("服务器已退出")
}
