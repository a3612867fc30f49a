package services

import (
	"testing"

	apperrors "github.com/Corphon/SceneStudio/internal/errors"
	"github.com/Corphon/SceneStudio/internal/models"
)

func TestSceneCreateDefaults(t *testing.T) {
	store := newTestStore(t)
	svc := NewSceneService(store)

	for i := 0; i < 3; i++ {
		if _, err := svc.Create("u1", "p1", nil); err != nil {
			t.Fatalf("创建场景失败: %v", err)
		}
	}

	scenes, err := svc.List("u1", "p1")
	if err != nil {
		t.Fatalf("列出场景失败: %v", err)
	}
	if len(scenes) != 3 {
		t.Fatalf("场景数量不正确: %d", len(scenes))
	}
	for i, scene := range scenes {
		if scene.Order != i {
			t.Errorf("第 %d 个场景的 order 应该是 %d，实际: %d", i, i, scene.Order)
		}
		if scene.DurationSeconds != models.DefaultSceneDuration {
			t.Errorf("默认时长不正确: %d", scene.DurationSeconds)
		}
		if !scene.Enabled {
			t.Error("场景应该默认启用")
		}
	}
}

func TestSceneDurationValidation(t *testing.T) {
	store := newTestStore(t)
	svc := NewSceneService(store)

	tests := []struct {
		name     string
		duration interface{}
		wantErr  bool
	}{
		{"合法时长3", 3, false},
		{"合法时长5", 5, false},
		{"合法时长10", 10, false},
		{"JSON浮点数归一化", float64(10), false},
		{"枚举之外", 7, true},
		{"非整数", 5.5, true},
		{"非数值", "5", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create("u1", "p1", map[string]interface{}{
				"durationSeconds": tt.duration,
			})
			if tt.wantErr {
				if !apperrors.IsValidationError(err) {
					t.Errorf("应该返回验证错误: %v", err)
				}
			} else if err != nil {
				t.Errorf("合法时长不应报错: %v", err)
			}
		})
	}
}

func TestSceneUpdateRejectsUnknownFields(t *testing.T) {
	store := newTestStore(t)
	svc := NewSceneService(store)

	id, err := svc.Create("u1", "p1", nil)
	if err != nil {
		t.Fatalf("创建场景失败: %v", err)
	}

	if err := svc.Update("u1", "p1", id, map[string]interface{}{"enabled": false}); err != nil {
		t.Fatalf("更新场景失败: %v", err)
	}

	err = svc.Update("u1", "p1", id, map[string]interface{}{"order": 0})
	if !apperrors.IsValidationError(err) {
		t.Errorf("order 只能通过重排序修改: %v", err)
	}
}

func TestSceneReorder(t *testing.T) {
	store := newTestStore(t)
	svc := NewSceneService(store)

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := svc.Create("u1", "p1", nil)
		if err != nil {
			t.Fatalf("创建场景失败: %v", err)
		}
		ids = append(ids, id)
	}

	reversed := []string{ids[2], ids[1], ids[0]}
	if err := svc.Reorder("u1", "p1", reversed); err != nil {
		t.Fatalf("重排序失败: %v", err)
	}

	scenes, err := svc.List("u1", "p1")
	if err != nil {
		t.Fatalf("列出场景失败: %v", err)
	}
	for i, scene := range scenes {
		if scene.ID != reversed[i] {
			t.Errorf("第 %d 个场景应该是 %s，实际: %s", i, reversed[i], scene.ID)
		}
		if scene.Order != i {
			t.Errorf("第 %d 个场景的 order 应该是 %d，实际: %d", i, i, scene.Order)
		}
	}

	// 非完整排列被拒绝
	err = svc.Reorder("u1", "p1", []string{ids[0]})
	if !apperrors.IsValidationError(err) {
		t.Errorf("不完整的排列应该返回验证错误: %v", err)
	}
}

func TestGeneratedScenesAppendOnly(t *testing.T) {
	store := newTestStore(t)
	svc := NewGeneratedSceneService(store)

	id, err := svc.Create("u1", "p1", map[string]interface{}{"note": "来自场景 Scene 1"})
	if err != nil {
		t.Fatalf("创建生成场景失败: %v", err)
	}

	items, err := svc.List("u1", "p1")
	if err != nil {
		t.Fatalf("列出生成场景失败: %v", err)
	}
	if len(items) != 1 || items[0].ID != id {
		t.Fatalf("生成场景列表不正确: %+v", items)
	}

	if err := svc.Delete("u1", "p1", id); err != nil {
		t.Fatalf("删除生成场景失败: %v", err)
	}
	items, err = svc.List("u1", "p1")
	if err != nil {
		t.Fatalf("列出生成场景失败: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("生成场景应该已删除: %+v", items)
	}
}

func TestCombinedScenes(t *testing.T) {
	store := newTestStore(t)
	svc := NewCombinedSceneService(store)

	id, err := svc.Create("u1", "p1", map[string]interface{}{"note": "Scene 1 + Scene 2"})
	if err != nil {
		t.Fatalf("创建合成场景失败: %v", err)
	}

	items, err := svc.List("u1", "p1")
	if err != nil {
		t.Fatalf("列出合成场景失败: %v", err)
	}
	if len(items) != 1 || items[0].ID != id {
		t.Fatalf("合成场景列表不正确: %+v", items)
	}
}
