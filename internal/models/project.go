// internal/models/project.go
package models

// Project 表示一个用户项目
// 存储路径: users/{uid}/projects/{pid}
type Project struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	CameraRules     string `json:"cameraRules"`
	VideoStyleNotes string `json:"videoStyleNotes"`
	CharacterID     string `json:"characterId"` // 可选的角色引用，空表示无
	CreatedAt       int64  `json:"createdAt"`   // 毫秒时间戳，插入顺序标记
}

// DefaultProjectName 未命名项目的默认名称
const DefaultProjectName = "Untitled Project"
