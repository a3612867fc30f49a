// internal/services/project_service.go
package services

import (
	"fmt"

	"github.com/Corphon/SceneStudio/internal/collection"
	apperrors "github.com/Corphon/SceneStudio/internal/errors"
	"github.com/Corphon/SceneStudio/internal/models"
	"github.com/Corphon/SceneStudio/internal/storage"
)

// 项目子集合，级联删除时按此顺序清空
var projectChildCollections = []string{"scenes", "generatedScenes", "combinedScenes"}

// ProjectService 处理项目相关的业务逻辑
type ProjectService struct {
	store *storage.DocStore
}

// NewProjectService 创建项目服务
func NewProjectService(store *storage.DocStore) *ProjectService {
	return &ProjectService{store: store}
}

// projects 绑定一个用户范围的项目同步实例
func (s *ProjectService) projects(userID string) (*collection.Sync[models.Project], error) {
	c := collection.NewProjects(s.store)
	if err := c.Select(userID, ""); err != nil {
		return nil, err
	}
	return c, nil
}

// List 返回用户的项目列表，按创建时间升序
func (s *ProjectService) List(userID string) ([]models.Project, error) {
	c, err := s.projects(userID)
	if err != nil {
		return nil, err
	}
	defer c.Deselect()

	return c.Snapshot(), nil
}

// Create 创建新项目并返回存储分配的键
func (s *ProjectService) Create(userID string, fields map[string]interface{}) (string, error) {
	c, err := s.projects(userID)
	if err != nil {
		return "", err
	}
	defer c.Deselect()

	if err := validateFields(fields, projectFields); err != nil {
		return "", err
	}
	return c.Create(fields)
}

// Update 部分字段更新，未提及的字段保持不变
func (s *ProjectService) Update(userID, projectID string, fields map[string]interface{}) error {
	c, err := s.projects(userID)
	if err != nil {
		return err
	}
	defer c.Deselect()

	if err := validateFields(fields, projectFields); err != nil {
		return err
	}
	return c.Update(projectID, fields)
}

// Delete 删除项目并级联清空其全部子集合
// 顺序删除，无回滚：失败前已删除的记录保持已删除
func (s *ProjectService) Delete(userID, projectID string) error {
	if userID == "" || projectID == "" {
		return nil
	}

	basePath := fmt.Sprintf("users/%s/projects/%s", userID, projectID)
	for _, child := range projectChildCollections {
		if err := deleteCollectionDocs(s.store, basePath+"/"+child); err != nil {
			return err
		}
	}

	return s.store.Delete(basePath)
}

// deleteCollectionDocs 逐条删除集合下的全部文档
// 每一步都是幂等的，部分失败后重试是安全的
func deleteCollectionDocs(store *storage.DocStore, collectionPath string) error {
	docs, err := store.List(collectionPath)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if err := store.Delete(collectionPath + "/" + doc.ID); err != nil {
			return err
		}
	}
	return nil
}

// 各实体允许通过部分更新写入的字段
var projectFields = map[string]bool{
	"name":            true,
	"cameraRules":     true,
	"videoStyleNotes": true,
	"characterId":     true,
}

// validateFields 拒绝包含未知字段的部分更新
func validateFields(fields map[string]interface{}, allowed map[string]bool) error {
	for key := range fields {
		if !allowed[key] {
			return apperrors.NewValidationError(fmt.Sprintf("不支持的字段: %s", key), nil)
		}
	}
	return nil
}
