// internal/models/scene.go
package models

// Scene 表示项目中的一个场景
// 存储路径: users/{uid}/projects/{pid}/scenes/{sid}
type Scene struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Location        string `json:"location"`
	Description     string `json:"description"`
	Dialog          string `json:"dialog"`
	CharacterID     string `json:"characterId"` // 可选的角色引用
	DurationSeconds int    `json:"durationSeconds"`
	Enabled         bool   `json:"enabled"`
	Order           int    `json:"order"` // 项目内从0开始的密集序号
	CreatedAt       int64  `json:"createdAt"`
}

// 场景时长的可选值（秒）
var SceneDurations = []int{3, 5, 10}

// DefaultSceneDuration 新场景的默认时长
const DefaultSceneDuration = 5

// ValidSceneDuration 检查时长是否在枚举集合内
func ValidSceneDuration(seconds int) bool {
	for _, d := range SceneDurations {
		if d == seconds {
			return true
		}
	}
	return false
}

// GeneratedScene 表示由源场景派生的生成场景
// 存储路径: users/{uid}/projects/{pid}/generatedScenes/{gid}
// 只追加：没有更新操作，删除只移除单行
type GeneratedScene struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Note      string `json:"note"` // 自由文本，例如复制的源场景名称
	CreatedAt int64  `json:"createdAt"`
}

// CombinedScene 表示由多个场景选择合并而成的组合场景
// 存储路径: users/{uid}/projects/{pid}/combinedScenes/{cid}
type CombinedScene struct {
	ID        string `json:"id"`
	Note      string `json:"note"` // 派生的摘要字符串
	CreatedAt int64  `json:"createdAt"`
}
