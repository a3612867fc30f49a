// internal/app/app.go
package app

import (
	"fmt"
	"path/filepath"

	"github.com/Corphon/SceneStudio/internal/api"
	"github.com/Corphon/SceneStudio/internal/config"
	"github.com/Corphon/SceneStudio/internal/di"
	"github.com/Corphon/SceneStudio/internal/identity"
	"github.com/Corphon/SceneStudio/internal/selection"
	"github.com/Corphon/SceneStudio/internal/services"
	"github.com/Corphon/SceneStudio/internal/storage"
	"github.com/Corphon/SceneStudio/internal/utils"
)

// InitServices 按依赖顺序初始化所有服务并注册到容器
// 顺序：存储 → 认证 → 领域服务 → 快照流
func InitServices() error {
	cfg := config.GetCurrentConfig()
	container := di.GetContainer()

	// 日志系统
	if err := utils.InitLogger(filepath.Join(cfg.LogDir, "scenestudio.log")); err != nil {
		return fmt.Errorf("初始化日志系统失败: %w", err)
	}

	// 1. 文档存储
	store, err := storage.NewDocStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("初始化文档存储失败: %w", err)
	}
	container.Register("store", store)

	// 2. 对象存储（downloadUrl 经 /blobs 路由提供）
	blobs, err := storage.NewBlobStore(cfg.BlobDir, "/blobs")
	if err != nil {
		return fmt.Errorf("初始化对象存储失败: %w", err)
	}
	container.Register("blobs", blobs)

	// 3. 数据目录监视器（可选）
	if cfg.WatchDataDir {
		watcher, err := storage.NewWatcher(store)
		if err != nil {
			// 监视器失败不阻止启动
			utils.GetLogger().Warn("初始化数据目录监视器失败，外部写入将不会触发订阅扇出", map[string]interface{}{"err": err.Error()})
		} else {
			container.Register("watcher", watcher)
		}
	}

	// 4. 认证与身份
	tokenConfig, err := api.InitializeAuth(cfg)
	if err != nil {
		return fmt.Errorf("初始化认证失败: %w", err)
	}
	container.Register("token_config", tokenConfig)

	identityProvider := identity.NewProvider(store, tokenConfig, cfg.AuthFreshness)
	container.Register("identity", identityProvider)

	// 5. 选择状态存储
	selectionStore, err := selection.NewStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("初始化选择状态存储失败: %w", err)
	}
	container.Register("selection", selectionStore)

	// 6. 领域服务
	container.Register("project", services.NewProjectService(store))
	container.Register("scene", services.NewSceneService(store))
	container.Register("generated", services.NewGeneratedSceneService(store))
	container.Register("combined", services.NewCombinedSceneService(store))
	container.Register("character", services.NewCharacterService(store, blobs))
	container.Register("settings", services.NewSettingsService(store))
	container.Register("account", services.NewAccountService(store, blobs, identityProvider))

	// 7. 快照流管理器
	container.Register("streams", api.NewStreamManager(store))

	return nil
}

// Cleanup 释放容器中持有后台资源的服务
func Cleanup() {
	container := di.GetContainer()

	if watcher, ok := di.Lookup[*storage.Watcher](container, "watcher"); ok {
		watcher.Close()
	}

	if streams, ok := di.Lookup[*api.StreamManager](container, "streams"); ok {
		streams.Stop()
	}

	if store, ok := di.Lookup[*storage.DocStore](container, "store"); ok {
		store.Close()
	}
}
