// internal/api/handlers.go
package api

import (
	"github.com/Corphon/SceneStudio/internal/identity"
	"github.com/Corphon/SceneStudio/internal/selection"
	"github.com/Corphon/SceneStudio/internal/services"
	"github.com/Corphon/SceneStudio/internal/storage"
)

// Handler 处理API请求
type Handler struct {
	Projects   *services.ProjectService
	Scenes     *services.SceneService
	Generated  *services.GeneratedSceneService
	Combined   *services.CombinedSceneService
	Characters *services.CharacterService
	Settings   *services.SettingsService
	Account    *services.AccountService
	Identity   *identity.Provider
	Selection  *selection.Store
	Blobs      *storage.BlobStore
	Streams    *StreamManager

	Response *ResponseHelper
}

// NewHandler 创建API处理器
func NewHandler(
	projects *services.ProjectService,
	scenes *services.SceneService,
	generated *services.GeneratedSceneService,
	combined *services.CombinedSceneService,
	characters *services.CharacterService,
	settings *services.SettingsService,
	account *services.AccountService,
	idp *identity.Provider,
	sel *selection.Store,
	blobs *storage.BlobStore,
	streams *StreamManager,
) *Handler {
	return &Handler{
		Projects:   projects,
		Scenes:     scenes,
		Generated:  generated,
		Combined:   combined,
		Characters: characters,
		Settings:   settings,
		Account:    account,
		Identity:   idp,
		Selection:  sel,
		Blobs:      blobs,
		Streams:    streams,
		Response:   NewResponseHelper(),
	}
}
