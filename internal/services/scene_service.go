// internal/services/scene_service.go
package services

import (
	"fmt"

	"github.com/Corphon/SceneStudio/internal/collection"
	apperrors "github.com/Corphon/SceneStudio/internal/errors"
	"github.com/Corphon/SceneStudio/internal/models"
	"github.com/Corphon/SceneStudio/internal/storage"
)

// SceneService 处理场景相关的业务逻辑
// 场景的 order 在项目内保持 {0..n-1} 的密集序号，
// 由 Reorder 的原子批量更新维护
type SceneService struct {
	store *storage.DocStore
}

// NewSceneService 创建场景服务
func NewSceneService(store *storage.DocStore) *SceneService {
	return &SceneService{store: store}
}

func (s *SceneService) scenes(userID, projectID string) (*collection.Sync[models.Scene], error) {
	c := collection.NewScenes(s.store)
	if err := c.Select(userID, projectID); err != nil {
		return nil, err
	}
	return c, nil
}

// List 返回项目的场景列表，按 order 排序
func (s *SceneService) List(userID, projectID string) ([]models.Scene, error) {
	c, err := s.scenes(userID, projectID)
	if err != nil {
		return nil, err
	}
	defer c.Deselect()

	return c.Snapshot(), nil
}

// Create 创建新场景
// 默认 enabled=true，order=当前长度，时长取默认值
func (s *SceneService) Create(userID, projectID string, fields map[string]interface{}) (string, error) {
	c, err := s.scenes(userID, projectID)
	if err != nil {
		return "", err
	}
	defer c.Deselect()

	if err := validateSceneFields(fields); err != nil {
		return "", err
	}
	return c.Create(fields)
}

// Update 部分字段更新
func (s *SceneService) Update(userID, projectID, sceneID string, fields map[string]interface{}) error {
	c, err := s.scenes(userID, projectID)
	if err != nil {
		return err
	}
	defer c.Deselect()

	if err := validateSceneFields(fields); err != nil {
		return err
	}
	return c.Update(sceneID, fields)
}

// Delete 删除场景，已删除的场景再次删除不报错
func (s *SceneService) Delete(userID, projectID, sceneID string) error {
	c, err := s.scenes(userID, projectID)
	if err != nil {
		return err
	}
	defer c.Deselect()

	return c.Delete(sceneID)
}

// Reorder 按给定排列重写全部场景的 order
// orderedIds 必须是当前场景ID集合的完整排列
func (s *SceneService) Reorder(userID, projectID string, orderedIds []string) error {
	c, err := s.scenes(userID, projectID)
	if err != nil {
		return err
	}
	defer c.Deselect()

	return c.Reorder(orderedIds)
}

var sceneFields = map[string]bool{
	"name":            true,
	"location":        true,
	"description":     true,
	"dialog":          true,
	"characterId":     true,
	"durationSeconds": true,
	"enabled":         true,
}

func validateSceneFields(fields map[string]interface{}) error {
	if err := validateFields(fields, sceneFields); err != nil {
		return err
	}
	if raw, ok := fields["durationSeconds"]; ok {
		seconds, valid := asDuration(raw)
		if !valid || !models.ValidSceneDuration(seconds) {
			return apperrors.NewValidationError(
				fmt.Sprintf("场景时长必须是 %v 之一", models.SceneDurations), nil)
		}
		fields["durationSeconds"] = seconds
	}
	return nil
}

// asDuration JSON 数字解码为 float64，这里归一化为 int
func asDuration(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

// GeneratedSceneService 处理生成场景：只追加，无更新
type GeneratedSceneService struct {
	store *storage.DocStore
}

// NewGeneratedSceneService 创建生成场景服务
func NewGeneratedSceneService(store *storage.DocStore) *GeneratedSceneService {
	return &GeneratedSceneService{store: store}
}

func (s *GeneratedSceneService) generated(userID, projectID string) (*collection.Sync[models.GeneratedScene], error) {
	c := collection.NewGeneratedScenes(s.store)
	if err := c.Select(userID, projectID); err != nil {
		return nil, err
	}
	return c, nil
}

// List 返回生成场景列表，按创建时间升序
func (s *GeneratedSceneService) List(userID, projectID string) ([]models.GeneratedScene, error) {
	c, err := s.generated(userID, projectID)
	if err != nil {
		return nil, err
	}
	defer c.Deselect()

	return c.Snapshot(), nil
}

// Create 追加一条生成场景
func (s *GeneratedSceneService) Create(userID, projectID string, fields map[string]interface{}) (string, error) {
	c, err := s.generated(userID, projectID)
	if err != nil {
		return "", err
	}
	defer c.Deselect()

	if err := validateFields(fields, map[string]bool{"name": true, "note": true}); err != nil {
		return "", err
	}
	return c.Create(fields)
}

// Delete 删除单条生成场景
func (s *GeneratedSceneService) Delete(userID, projectID, generatedID string) error {
	c, err := s.generated(userID, projectID)
	if err != nil {
		return err
	}
	defer c.Deselect()

	return c.Delete(generatedID)
}

// CombinedSceneService 处理组合场景：只追加，无更新
type CombinedSceneService struct {
	store *storage.DocStore
}

// NewCombinedSceneService 创建组合场景服务
func NewCombinedSceneService(store *storage.DocStore) *CombinedSceneService {
	return &CombinedSceneService{store: store}
}

func (s *CombinedSceneService) combined(userID, projectID string) (*collection.Sync[models.CombinedScene], error) {
	c := collection.NewCombinedScenes(s.store)
	if err := c.Select(userID, projectID); err != nil {
		return nil, err
	}
	return c, nil
}

// List 返回组合场景列表，按创建时间升序
func (s *CombinedSceneService) List(userID, projectID string) ([]models.CombinedScene, error) {
	c, err := s.combined(userID, projectID)
	if err != nil {
		return nil, err
	}
	defer c.Deselect()

	return c.Snapshot(), nil
}

// Create 追加一条组合场景，note 为派生的摘要字符串
func (s *CombinedSceneService) Create(userID, projectID string, fields map[string]interface{}) (string, error) {
	c, err := s.combined(userID, projectID)
	if err != nil {
		return "", err
	}
	defer c.Deselect()

	if err := validateFields(fields, map[string]bool{"note": true}); err != nil {
		return "", err
	}
	return c.Create(fields)
}

// Delete 删除单条组合场景
func (s *CombinedSceneService) Delete(userID, projectID, combinedID string) error {
	c, err := s.combined(userID, projectID)
	if err != nil {
		return err
	}
	defer c.Deselect()

	return c.Delete(combinedID)
}
