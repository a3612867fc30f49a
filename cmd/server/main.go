// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Corphon/SceneStudio/internal/api"
	"github.com/Corphon/SceneStudio/internal/app"
	"github.com/Corphon/SceneStudio/internal/config"
	"github.com/Corphon/SceneStudio/internal/di"
	"github.com/Corphon/SceneStudio/internal/storage"
)

func main() {
	log.Println("🚀 启动 SceneStudio 服务器...")

	// 1. 首先加载基础配置
	baseConfig, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	log.Printf("✅ 基础配置加载完成，端口: %s", baseConfig.Port)

	// 2. 创建必要的目录
	createDirectories(baseConfig)
	log.Println("✅ 目录结构创建完成")

	// 3. 初始化所有服务（按依赖顺序）
	if err := app.InitServices(); err != nil {
		log.Fatalf("初始化服务失败: %v", err)
	}
	log.Println("✅ 所有服务初始化完成")

	// 4. 服务健康检查
	if err := performHealthCheck(); err != nil {
		log.Printf("⚠️ 服务健康检查警告: %v", err)
	}

	// 5. 设置路由（只获取服务，不创建）
	router, err := api.SetupRouter()
	if err != nil {
		log.Fatalf("❌ 设置路由失败: %v", err)
	}
	log.Println("✅ 路由设置完成")

	// 6. 启动服务器
	log.Printf("🌐 服务器启动在端口 %s", baseConfig.Port)
	log.Printf("🔗 访问地址: http://localhost:%s", baseConfig.Port)

	if err := run(router, baseConfig.Port); err != nil {
		log.Fatalf("❌ 服务器退出: %v", err)
	}

	log.Println("✅ 服务器优雅关闭完成")
}

// run 运行服务器与后台任务直到收到停止信号
func run(handler http.Handler, port string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container := di.GetContainer()
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler,
	}

	g, ctx := errgroup.WithContext(ctx)

	// HTTP 服务器
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("启动服务器失败: %w", err)
		}
		return nil
	})

	// 快照流管理器
	if streams, ok := di.Lookup[*api.StreamManager](container, "streams"); ok {
		g.Go(func() error {
			streams.Run()
			return nil
		})
	}

	// 数据目录监视器
	if watcher, ok := di.Lookup[*storage.Watcher](container, "watcher"); ok {
		g.Go(func() error {
			watcher.Run()
			return nil
		})
	}

	// 停止信号到达后优雅关闭
	g.Go(func() error {
		<-ctx.Done()
		log.Println("🛑 正在关闭服务器...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("服务器强制关闭: %w", err)
		}

		app.Cleanup()
		return nil
	})

	return g.Wait()
}

// performHealthCheck 检查关键服务是否已注册
func performHealthCheck() error {
	container := di.GetContainer()

	criticalServices := []string{"store", "blobs", "identity", "project", "scene", "character"}

	for _, serviceName := range criticalServices {
		if service := container.Get(serviceName); service == nil {
			return fmt.Errorf("关键服务未注册: %s", serviceName)
		}
	}

	log.Println("✅ 服务健康检查通过")
	return nil
}

// createDirectories 创建应用所需的目录结构
func createDirectories(cfg *config.Config) {
	dirs := []string{
		cfg.DataDir,
		filepath.Join(cfg.DataDir, "users"),
		cfg.BlobDir,
		cfg.LogDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("创建目录失败 %s: %v", dir, err)
		}
	}
}
