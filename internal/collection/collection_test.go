package collection

import (
	"testing"
	"time"

	apperrors "github.com/Corphon/SceneStudio/internal/errors"
	"github.com/Corphon/SceneStudio/internal/models"
	"github.com/Corphon/SceneStudio/internal/storage"
)

func newTestDocStore(t *testing.T) *storage.DocStore {
	t.Helper()

	store, err := storage.NewDocStore(t.TempDir())
	if err != nil {
		t.Fatalf("创建文档存储失败: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

// waitCondition 轮询等待异步扇出把列表更新到期望状态
func waitCondition(t *testing.T, desc string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("等待条件超时: %s", desc)
}

func TestSelectLoadsExistingItems(t *testing.T) {
	store := newTestDocStore(t)

	if _, err := store.Create("users/u1/projects", map[string]interface{}{
		"name": "已有项目", "createdAt": 1,
	}); err != nil {
		t.Fatalf("预置数据失败: %v", err)
	}

	projects := NewProjects(store)
	defer projects.Deselect()

	if err := projects.Select("u1", ""); err != nil {
		t.Fatalf("选择失败: %v", err)
	}

	// 初始快照在 Select 返回前同步装载
	items := projects.Snapshot()
	if len(items) != 1 || items[0].Name != "已有项目" {
		t.Fatalf("初始快照不正确: %+v", items)
	}
	if projects.State() != StateSynced {
		t.Errorf("状态应该是 synced: %s", projects.State())
	}
}

func TestSelectWithEmptyKeys(t *testing.T) {
	store := newTestDocStore(t)

	tests := []struct {
		name      string
		userID    string
		projectID string
	}{
		{"缺少用户", "", ""},
		{"场景集合缺少项目", "u1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenes := NewScenes(store)
			if err := scenes.Select(tt.userID, tt.projectID); err != nil {
				t.Fatalf("空键选择不应报错: %v", err)
			}
			if scenes.State() != StateUnselected {
				t.Errorf("空键选择应该保持 unselected: %s", scenes.State())
			}

			// 未选择时写操作是空操作
			id, err := scenes.Create(map[string]interface{}{"name": "x"})
			if err != nil || id != "" {
				t.Errorf("未选择时创建应该是空操作: id=%q err=%v", id, err)
			}
		})
	}
}

func TestCreateAppliesProjectDefaults(t *testing.T) {
	store := newTestDocStore(t)

	projects := NewProjects(store)
	defer projects.Deselect()
	if err := projects.Select("u1", ""); err != nil {
		t.Fatalf("选择失败: %v", err)
	}

	id, err := projects.Create(nil)
	if err != nil {
		t.Fatalf("创建项目失败: %v", err)
	}

	doc, err := store.Get("users/u1/projects/" + id)
	if err != nil {
		t.Fatalf("读取项目失败: %v", err)
	}
	if doc.Fields["name"] != models.DefaultProjectName {
		t.Errorf("默认名称不正确: %v", doc.Fields["name"])
	}
	if _, ok := doc.Fields["createdAt"]; !ok {
		t.Error("创建时间应该已填充")
	}
	for _, key := range []string{"cameraRules", "videoStyleNotes", "characterId"} {
		if _, ok := doc.Fields[key]; !ok {
			t.Errorf("字段 %s 应该有默认值", key)
		}
	}
}

func TestSequentialCreatesGetDenseOrders(t *testing.T) {
	store := newTestDocStore(t)

	scenes := NewScenes(store)
	defer scenes.Deselect()
	if err := scenes.Select("u1", "p1"); err != nil {
		t.Fatalf("选择失败: %v", err)
	}

	const n = 4
	for i := 0; i < n; i++ {
		if _, err := scenes.Create(map[string]interface{}{"createdAt": i + 1}); err != nil {
			t.Fatalf("创建第 %d 个场景失败: %v", i, err)
		}
	}

	waitCondition(t, "场景列表装载完成", func() bool {
		return len(scenes.Snapshot()) == n
	})

	// 顺序创建得到密集序号 0..n-1
	items := scenes.Snapshot()
	for i, item := range items {
		if item.Order != i {
			t.Errorf("第 %d 个场景的 order 应该是 %d，实际: %d", i, i, item.Order)
		}
		if item.Name == "" {
			t.Errorf("第 %d 个场景应该有默认名称", i)
		}
		if item.DurationSeconds != models.DefaultSceneDuration {
			t.Errorf("第 %d 个场景应该使用默认时长: %d", i, item.DurationSeconds)
		}
		if !item.Enabled {
			t.Errorf("第 %d 个场景应该默认启用", i)
		}
	}
	if items[0].Name != "Scene 1" || items[n-1].Name != "Scene 4" {
		t.Errorf("默认名称编号不正确: %s ... %s", items[0].Name, items[n-1].Name)
	}
}

func TestSelectionSwitchClearsSynchronously(t *testing.T) {
	store := newTestDocStore(t)

	if _, err := store.Create("users/u1/projects", map[string]interface{}{
		"name": "甲的项目", "createdAt": 1,
	}); err != nil {
		t.Fatalf("预置数据失败: %v", err)
	}

	projects := NewProjects(store)
	defer projects.Deselect()

	var published [][]models.Project
	projects.OnSnapshot(func(items []models.Project) {
		published = append(published, items)
	})

	if err := projects.Select("u1", ""); err != nil {
		t.Fatalf("选择失败: %v", err)
	}
	if len(projects.Snapshot()) != 1 {
		t.Fatal("应该装载了第一个用户的数据")
	}

	// 切换选择：旧数据必须在新数据出现前清空
	if err := projects.Select("u2", ""); err != nil {
		t.Fatalf("切换选择失败: %v", err)
	}

	items := projects.Snapshot()
	for _, item := range items {
		if item.Name == "甲的项目" {
			t.Error("切换选择后不应残留旧选择的数据")
		}
	}

	// 回调序列里清空发生在新快照之前
	sawClear := false
	for _, snap := range published[1:] {
		if len(snap) == 0 {
			sawClear = true
			break
		}
		if snap[0].Name == "甲的项目" {
			t.Fatal("清空之前不应再次发布旧选择的数据")
		}
	}
	if !sawClear {
		t.Error("切换选择应该先发布一次空列表")
	}
}

func TestDeselectClearsState(t *testing.T) {
	store := newTestDocStore(t)

	projects := NewProjects(store)
	if err := projects.Select("u1", ""); err != nil {
		t.Fatalf("选择失败: %v", err)
	}
	if _, err := projects.Create(nil); err != nil {
		t.Fatalf("创建项目失败: %v", err)
	}

	projects.Deselect()

	if got := projects.Snapshot(); len(got) != 0 {
		t.Errorf("取消选择后列表应该为空: %+v", got)
	}
	if projects.State() != StateUnselected {
		t.Errorf("取消选择后状态应该是 unselected: %s", projects.State())
	}

	// 重复取消选择是安全的
	projects.Deselect()
}

func TestUpdateAndDeleteFlowThroughSubscription(t *testing.T) {
	store := newTestDocStore(t)

	projects := NewProjects(store)
	defer projects.Deselect()
	if err := projects.Select("u1", ""); err != nil {
		t.Fatalf("选择失败: %v", err)
	}

	id, err := projects.Create(map[string]interface{}{"name": "原名"})
	if err != nil {
		t.Fatalf("创建项目失败: %v", err)
	}

	waitCondition(t, "项目出现在列表中", func() bool {
		return len(projects.Snapshot()) == 1
	})

	if err := projects.Update(id, map[string]interface{}{"name": "改名"}); err != nil {
		t.Fatalf("更新项目失败: %v", err)
	}
	waitCondition(t, "更新经扇出回传", func() bool {
		items := projects.Snapshot()
		return len(items) == 1 && items[0].Name == "改名"
	})

	if err := projects.Delete(id); err != nil {
		t.Fatalf("删除项目失败: %v", err)
	}
	waitCondition(t, "删除经扇出回传", func() bool {
		return len(projects.Snapshot()) == 0
	})

	// 再次删除同一标识是成功的空操作
	if err := projects.Delete(id); err != nil {
		t.Errorf("重复删除应该成功: %v", err)
	}
}

func TestReorderAssignsIndexOrder(t *testing.T) {
	store := newTestDocStore(t)

	scenes := NewScenes(store)
	defer scenes.Deselect()
	if err := scenes.Select("u1", "p1"); err != nil {
		t.Fatalf("选择失败: %v", err)
	}

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := scenes.Create(map[string]interface{}{"createdAt": i + 1})
		if err != nil {
			t.Fatalf("创建场景失败: %v", err)
		}
		ids = append(ids, id)
	}
	waitCondition(t, "场景列表装载完成", func() bool {
		return len(scenes.Snapshot()) == 3
	})

	// 逆序重排：order 重写为排列中的下标
	reversed := []string{ids[2], ids[1], ids[0]}
	if err := scenes.Reorder(reversed); err != nil {
		t.Fatalf("重排序失败: %v", err)
	}

	waitCondition(t, "重排序经扇出回传", func() bool {
		items := scenes.Snapshot()
		return len(items) == 3 && items[0].ID == ids[2]
	})

	items := scenes.Snapshot()
	for i, item := range items {
		if item.ID != reversed[i] {
			t.Errorf("第 %d 个场景应该是 %s，实际: %s", i, reversed[i], item.ID)
		}
		if item.Order != i {
			t.Errorf("第 %d 个场景的 order 应该是 %d，实际: %d", i, i, item.Order)
		}
	}
}

func TestReorderRejectsInvalidPermutations(t *testing.T) {
	store := newTestDocStore(t)

	scenes := NewScenes(store)
	defer scenes.Deselect()
	if err := scenes.Select("u1", "p1"); err != nil {
		t.Fatalf("选择失败: %v", err)
	}

	var ids []string
	for i := 0; i < 2; i++ {
		id, err := scenes.Create(nil)
		if err != nil {
			t.Fatalf("创建场景失败: %v", err)
		}
		ids = append(ids, id)
	}

	tests := []struct {
		name string
		ids  []string
	}{
		{"数量不足", []string{ids[0]}},
		{"未知记录", []string{ids[0], "不存在"}},
		{"重复记录", []string{ids[0], ids[0]}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := scenes.Reorder(tt.ids)
			if !apperrors.IsValidationError(err) {
				t.Errorf("应该返回验证错误: %v", err)
			}
		})
	}
}

func TestCharactersSortedNewestFirst(t *testing.T) {
	store := newTestDocStore(t)

	characters := NewCharacters(store)
	defer characters.Deselect()
	if err := characters.Select("u1", ""); err != nil {
		t.Fatalf("选择失败: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := characters.Create(map[string]interface{}{
			"name": string(rune('a' + i)), "createdAt": i + 1,
		}); err != nil {
			t.Fatalf("创建角色失败: %v", err)
		}
	}

	waitCondition(t, "角色列表装载完成", func() bool {
		return len(characters.Snapshot()) == 3
	})

	items := characters.Snapshot()
	if items[0].Name != "c" || items[2].Name != "a" {
		t.Errorf("角色应该按创建时间降序排列: %+v", items)
	}
}

func TestDecodeJSONInjectsID(t *testing.T) {
	doc := storage.Document{
		ID: "s1",
		Fields: map[string]interface{}{
			"name":            "场景",
			"order":           float64(2),
			"durationSeconds": float64(10),
			"enabled":         true,
		},
	}

	scene, err := DecodeJSON[models.Scene](doc)
	if err != nil {
		t.Fatalf("解码失败: %v", err)
	}
	if scene.ID != "s1" || scene.Name != "场景" || scene.Order != 2 || scene.DurationSeconds != 10 || !scene.Enabled {
		t.Errorf("解码结果不正确: %+v", scene)
	}
}
