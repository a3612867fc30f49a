// internal/models/character.go
package models

// Character 表示用户上传的角色图片
// 存储路径: users/{uid}/characters/{cid}
// 删除角色时必须同时删除元数据记录与 StoragePath 指向的文件，
// 只删其一会造成泄漏
type Character struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DownloadURL string `json:"downloadUrl"` // 可访问的图片下载地址
	StoragePath string `json:"storagePath"` // 删除底层文件所需的句柄
	CreatedAt   int64  `json:"createdAt"`
	UpdatedAt   int64  `json:"updatedAt"`
}
