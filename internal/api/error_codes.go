// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorConflict      = "CONFLICT"
	ErrorUnauthorized  = "UNAUTHORIZED"

	// 认证相关错误
	ErrorRequiresRecentLogin = "REQUIRES_RECENT_LOGIN"
	ErrorTokenMissing        = "TOKEN_MISSING"

	// 项目相关错误
	ErrorProjectNotFound     = "PROJECT_NOT_FOUND"
	ErrorProjectCreateFailed = "PROJECT_CREATE_FAILED"

	// 场景相关错误
	ErrorSceneNotFound     = "SCENE_NOT_FOUND"
	ErrorSceneCreateFailed = "SCENE_CREATE_FAILED"
	ErrorReorderInvalid    = "REORDER_INVALID"

	// 角色相关错误
	ErrorCharacterNotFound = "CHARACTER_NOT_FOUND"
	ErrorFileUploadFailed  = "FILE_UPLOAD_FAILED"
	ErrorFileInvalid       = "FILE_INVALID"

	// 设置相关错误
	ErrorSettingsSaveFailed = "SETTINGS_SAVE_FAILED"
)
