package services

import (
	"testing"
	"time"

	"github.com/Corphon/SceneStudio/internal/auth"
	apperrors "github.com/Corphon/SceneStudio/internal/errors"
	"github.com/Corphon/SceneStudio/internal/identity"
	"github.com/Corphon/SceneStudio/internal/models"
	"github.com/Corphon/SceneStudio/internal/storage"
)

func newTestStore(t *testing.T) *storage.DocStore {
	t.Helper()

	store, err := storage.NewDocStore(t.TempDir())
	if err != nil {
		t.Fatalf("创建文档存储失败: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func newTestBlobStore(t *testing.T) *storage.BlobStore {
	t.Helper()

	blobs, err := storage.NewBlobStore(t.TempDir(), "/blobs")
	if err != nil {
		t.Fatalf("创建对象存储失败: %v", err)
	}
	return blobs
}

func newTestIdentity(t *testing.T, store *storage.DocStore, freshness time.Duration) *identity.Provider {
	t.Helper()

	tokens := &auth.TokenConfig{
		Secret:     []byte("test_secret_key_0123456789abcdef"),
		Expiration: time.Hour,
	}
	return identity.NewProvider(store, tokens, freshness)
}

func TestProjectCreateAndList(t *testing.T) {
	store := newTestStore(t)
	svc := NewProjectService(store)

	id, err := svc.Create("u1", nil)
	if err != nil {
		t.Fatalf("创建项目失败: %v", err)
	}
	if id == "" {
		t.Fatal("应该返回项目标识")
	}

	projects, err := svc.List("u1")
	if err != nil {
		t.Fatalf("列出项目失败: %v", err)
	}
	if len(projects) != 1 {
		t.Fatalf("项目数量不正确: %d", len(projects))
	}
	if projects[0].Name != models.DefaultProjectName {
		t.Errorf("默认名称不正确: %s", projects[0].Name)
	}

	// 其他用户看不到该项目
	others, err := svc.List("u2")
	if err != nil {
		t.Fatalf("列出项目失败: %v", err)
	}
	if len(others) != 0 {
		t.Errorf("用户数据应该隔离: %+v", others)
	}
}

func TestProjectUpdateValidatesFields(t *testing.T) {
	store := newTestStore(t)
	svc := NewProjectService(store)

	id, err := svc.Create("u1", map[string]interface{}{"name": "原名"})
	if err != nil {
		t.Fatalf("创建项目失败: %v", err)
	}

	if err := svc.Update("u1", id, map[string]interface{}{"name": "新名"}); err != nil {
		t.Fatalf("更新项目失败: %v", err)
	}

	// 允许列表外的字段被拒绝
	err = svc.Update("u1", id, map[string]interface{}{"owner": "我"})
	if !apperrors.IsValidationError(err) {
		t.Errorf("非法字段应该返回验证错误: %v", err)
	}

	projects, err := svc.List("u1")
	if err != nil {
		t.Fatalf("列出项目失败: %v", err)
	}
	if projects[0].Name != "新名" {
		t.Errorf("名称应该已更新: %s", projects[0].Name)
	}
}

func TestProjectDeleteCascadesChildren(t *testing.T) {
	store := newTestStore(t)
	projects := NewProjectService(store)
	scenes := NewSceneService(store)

	pid, err := projects.Create("u1", nil)
	if err != nil {
		t.Fatalf("创建项目失败: %v", err)
	}
	if _, err := scenes.Create("u1", pid, nil); err != nil {
		t.Fatalf("创建场景失败: %v", err)
	}
	if _, err := store.Create("users/u1/projects/"+pid+"/generatedScenes", map[string]interface{}{"name": "g"}); err != nil {
		t.Fatalf("创建生成场景失败: %v", err)
	}

	if err := projects.Delete("u1", pid); err != nil {
		t.Fatalf("删除项目失败: %v", err)
	}

	// 项目记录与全部子集合记录都应消失
	remaining, err := projects.List("u1")
	if err != nil {
		t.Fatalf("列出项目失败: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("项目应该已删除: %+v", remaining)
	}

	childScenes, err := scenes.List("u1", pid)
	if err != nil {
		t.Fatalf("列出场景失败: %v", err)
	}
	if len(childScenes) != 0 {
		t.Errorf("场景子集合应该已清空: %+v", childScenes)
	}

	generated, err := store.List("users/u1/projects/" + pid + "/generatedScenes")
	if err != nil {
		t.Fatalf("列出生成场景失败: %v", err)
	}
	if len(generated) != 0 {
		t.Errorf("生成场景子集合应该已清空: %d", len(generated))
	}
}

func TestProjectDeleteMissingIsNoop(t *testing.T) {
	store := newTestStore(t)
	svc := NewProjectService(store)

	if err := svc.Delete("u1", "missing"); err != nil {
		t.Errorf("删除不存在的项目应该成功: %v", err)
	}
}
