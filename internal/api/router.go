// internal/api/router.go
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/SceneStudio/internal/config"
	"github.com/Corphon/SceneStudio/internal/di"
	"github.com/Corphon/SceneStudio/internal/identity"
	"github.com/Corphon/SceneStudio/internal/selection"
	"github.com/Corphon/SceneStudio/internal/services"
	"github.com/Corphon/SceneStudio/internal/storage"
)

// SetupRouter 配置HTTP路由
func SetupRouter() (*gin.Engine, error) {
	cfg := config.GetCurrentConfig()

	// 获取依赖注入容器
	container := di.GetContainer()

	// ✅ 只从容器获取服务，不再创建新实例
	projectService, ok := container.Get("project").(*services.ProjectService)
	if !ok {
		return nil, fmt.Errorf("项目服务未正确初始化")
	}

	sceneService, ok := container.Get("scene").(*services.SceneService)
	if !ok {
		return nil, fmt.Errorf("场景服务未正确初始化")
	}

	generatedService, ok := container.Get("generated").(*services.GeneratedSceneService)
	if !ok {
		return nil, fmt.Errorf("生成场景服务未正确初始化")
	}

	combinedService, ok := container.Get("combined").(*services.CombinedSceneService)
	if !ok {
		return nil, fmt.Errorf("合成场景服务未正确初始化")
	}

	characterService, ok := container.Get("character").(*services.CharacterService)
	if !ok {
		return nil, fmt.Errorf("角色服务未正确初始化")
	}

	settingsService, ok := container.Get("settings").(*services.SettingsService)
	if !ok {
		return nil, fmt.Errorf("设置服务未正确初始化")
	}

	accountService, ok := container.Get("account").(*services.AccountService)
	if !ok {
		return nil, fmt.Errorf("账户服务未正确初始化")
	}

	identityProvider, ok := container.Get("identity").(*identity.Provider)
	if !ok {
		return nil, fmt.Errorf("身份服务未正确初始化")
	}

	selectionStore, ok := container.Get("selection").(*selection.Store)
	if !ok {
		return nil, fmt.Errorf("选择状态存储未正确初始化")
	}

	blobStore, ok := container.Get("blobs").(*storage.BlobStore)
	if !ok {
		return nil, fmt.Errorf("对象存储未正确初始化")
	}

	streamManager, ok := container.Get("streams").(*StreamManager)
	if !ok {
		return nil, fmt.Errorf("快照流管理器未正确初始化")
	}

	// ✅ 创建API处理器 - 只传递从容器获取的服务
	handler := NewHandler(
		projectService,
		sceneService,
		generatedService,
		combinedService,
		characterService,
		settingsService,
		accountService,
		identityProvider,
		selectionStore,
		blobStore,
		streamManager,
	)

	// 创建路由
	r := gin.Default()

	// 启用CORS
	r.Use(corsMiddleware())
	r.Use(requestIDMiddleware())

	// HTTPS重定向（生产环境）
	if !cfg.DebugMode {
		r.Use(func(c *gin.Context) {
			if c.Request.Header.Get("X-Forwarded-Proto") != "https" {
				c.Redirect(http.StatusPermanentRedirect,
					"https://"+c.Request.Host+c.Request.URL.Path)
				return
			}
			c.Next()
		})
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// 对象下载（上传时生成的 downloadUrl 指向这里）
	r.GET("/blobs/*path", handler.ServeBlob)

	// WebSocket 快照流
	ws := r.Group("/ws")
	ws.Use(AuthMiddleware())
	{
		ws.GET("/projects", handler.ProjectListStream)
		ws.GET("/projects/:id", handler.ProjectStream)
	}

	// ===============================
	// API路由组
	// ===============================
	api := r.Group("/api")
	api.Use(DefaultRateLimit())
	{
		// ===============================
		// 认证相关路由
		// ===============================
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/signin", handler.SignIn)
			authGroup.POST("/signout", AuthMiddleware(), handler.SignOut)
			authGroup.GET("/me", AuthMiddleware(), handler.GetCurrentUser)
			authGroup.DELETE("/account", AuthMiddleware(), handler.DeleteAccount)
		}

		// 以下路由均要求有效令牌
		authed := api.Group("")
		authed.Use(AuthMiddleware())

		// ===============================
		// 项目相关路由
		// ===============================
		projectsGroup := authed.Group("/projects")
		{
			projectsGroup.GET("", handler.GetProjects)
			projectsGroup.POST("", handler.CreateProject)
			projectsGroup.PUT("/:id", handler.UpdateProject)
			projectsGroup.DELETE("/:id", handler.DeleteProject)

			// 场景相关路由
			scenesGroup := projectsGroup.Group("/:id/scenes")
			{
				scenesGroup.GET("", handler.GetScenes)
				scenesGroup.POST("", handler.CreateScene)
				scenesGroup.PUT("/reorder", handler.ReorderScenes)
				scenesGroup.PUT("/:sceneId", handler.UpdateScene)
				scenesGroup.DELETE("/:sceneId", handler.DeleteScene)
			}

			// 生成场景路由
			generatedGroup := projectsGroup.Group("/:id/generated")
			{
				generatedGroup.GET("", handler.GetGeneratedScenes)
				generatedGroup.POST("", handler.CreateGeneratedScene)
				generatedGroup.DELETE("/:generatedId", handler.DeleteGeneratedScene)
			}

			// 合成场景路由
			combinedGroup := projectsGroup.Group("/:id/combined")
			{
				combinedGroup.GET("", handler.GetCombinedScenes)
				combinedGroup.POST("", handler.CreateCombinedScene)
				combinedGroup.DELETE("/:combinedId", handler.DeleteCombinedScene)
			}
		}

		// ===============================
		// 角色相关路由
		// ===============================
		charactersGroup := authed.Group("/characters")
		{
			charactersGroup.GET("", handler.GetCharacters)
			charactersGroup.POST("", UploadRateLimit(), handler.UploadCharacter)
			charactersGroup.PUT("/:id", handler.UpdateCharacter)
			charactersGroup.DELETE("/:id", handler.DeleteCharacter)
		}

		// ===============================
		// 设置相关路由
		// ===============================
		settingsGroup := authed.Group("/settings")
		{
			settingsGroup.GET("", handler.GetSettings)
			settingsGroup.PUT("/kling", handler.SaveKlingKey)
			settingsGroup.DELETE("/kling", handler.DeleteKlingKey)
		}

		// ===============================
		// 选择状态路由
		// ===============================
		authed.GET("/selection", handler.GetSelection)
		authed.PUT("/selection", handler.SetSelection)

		// 调试路由
		authed.GET("/ws/status", handler.StreamStatus)
	}

	return r, nil
}
