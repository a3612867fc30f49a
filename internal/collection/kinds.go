// internal/collection/kinds.go
package collection

import (
	"fmt"

	"github.com/Corphon/SceneStudio/internal/models"
	"github.com/Corphon/SceneStudio/internal/storage"
)

// 五种实体类型的同步配置
// 区别只在路径模板、排序键和默认字段

// NewProjects 项目集合，按创建时间升序
func NewProjects(store *storage.DocStore) *Sync[models.Project] {
	return New(store, Config[models.Project]{
		Kind:         "project",
		PathTemplate: "users/{uid}/projects",
		Less: func(a, b models.Project) bool {
			return a.CreatedAt < b.CreatedAt
		},
		Defaults: func(fields map[string]interface{}, current []models.Project) {
			if str(fields["name"]) == "" {
				fields["name"] = models.DefaultProjectName
			}
			defaultString(fields, "cameraRules")
			defaultString(fields, "videoStyleNotes")
			defaultString(fields, "characterId")
		},
		Decode: DecodeJSON[models.Project],
	})
}

// NewScenes 场景集合，按 order 排序，createdAt 作为次级排序键
// 并发写入者可能产生重复的 order 值，次级键保证排序仍然稳定，
// 下一次显式重排序会恢复密集序号
func NewScenes(store *storage.DocStore) *Sync[models.Scene] {
	return New(store, Config[models.Scene]{
		Kind:         "scene",
		PathTemplate: "users/{uid}/projects/{pid}/scenes",
		NeedsProject: true,
		Less: func(a, b models.Scene) bool {
			if a.Order != b.Order {
				return a.Order < b.Order
			}
			return a.CreatedAt < b.CreatedAt
		},
		Defaults: func(fields map[string]interface{}, current []models.Scene) {
			if str(fields["name"]) == "" {
				fields["name"] = fmt.Sprintf("Scene %d", len(current)+1)
			}
			defaultString(fields, "location")
			defaultString(fields, "description")
			defaultString(fields, "dialog")
			defaultString(fields, "characterId")
			if _, ok := fields["durationSeconds"]; !ok {
				fields["durationSeconds"] = models.DefaultSceneDuration
			}
			if _, ok := fields["enabled"]; !ok {
				fields["enabled"] = true
			}
			if _, ok := fields["order"]; !ok {
				fields["order"] = len(current)
			}
		},
		Decode: DecodeJSON[models.Scene],
	})
}

// NewGeneratedScenes 生成场景集合，按创建时间升序，只追加
func NewGeneratedScenes(store *storage.DocStore) *Sync[models.GeneratedScene] {
	return New(store, Config[models.GeneratedScene]{
		Kind:         "generatedScene",
		PathTemplate: "users/{uid}/projects/{pid}/generatedScenes",
		NeedsProject: true,
		Less: func(a, b models.GeneratedScene) bool {
			return a.CreatedAt < b.CreatedAt
		},
		Defaults: func(fields map[string]interface{}, current []models.GeneratedScene) {
			if str(fields["name"]) == "" {
				fields["name"] = fmt.Sprintf("Scene %d", len(current)+1)
			}
			defaultString(fields, "note")
		},
		Decode: DecodeJSON[models.GeneratedScene],
	})
}

// NewCombinedScenes 组合场景集合，按创建时间升序，只追加
func NewCombinedScenes(store *storage.DocStore) *Sync[models.CombinedScene] {
	return New(store, Config[models.CombinedScene]{
		Kind:         "combinedScene",
		PathTemplate: "users/{uid}/projects/{pid}/combinedScenes",
		NeedsProject: true,
		Less: func(a, b models.CombinedScene) bool {
			return a.CreatedAt < b.CreatedAt
		},
		Defaults: func(fields map[string]interface{}, current []models.CombinedScene) {
			defaultString(fields, "note")
		},
		Decode: DecodeJSON[models.CombinedScene],
	})
}

// NewCharacters 角色集合，按创建时间降序（最新在前）
func NewCharacters(store *storage.DocStore) *Sync[models.Character] {
	return New(store, Config[models.Character]{
		Kind:         "character",
		PathTemplate: "users/{uid}/characters",
		Less: func(a, b models.Character) bool {
			return a.CreatedAt > b.CreatedAt
		},
		Defaults: func(fields map[string]interface{}, current []models.Character) {
			defaultString(fields, "name")
			defaultString(fields, "downloadUrl")
			defaultString(fields, "storagePath")
		},
		Decode: DecodeJSON[models.Character],
	})
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

func defaultString(fields map[string]interface{}, key string) {
	if _, ok := fields[key]; !ok {
		fields[key] = ""
	}
}
