// internal/api/scene_handlers.go
package api

import (
	"github.com/gin-gonic/gin"
)

// ===============================
// 场景
// ===============================

// GetScenes 获取项目的场景列表（按 order 排序）
func (h *Handler) GetScenes(c *gin.Context) {
	userID := c.GetString("user_id")
	projectID := c.Param("id")

	scenes, err := h.Scenes.List(userID, projectID)
	if err != nil {
		h.Response.FromError(c, err, "获取场景列表失败")
		return
	}

	h.Response.Success(c, scenes)
}

// CreateScene 创建新场景
func (h *Handler) CreateScene(c *gin.Context) {
	userID := c.GetString("user_id")
	projectID := c.Param("id")

	var fields map[string]interface{}
	if err := c.ShouldBindJSON(&fields); err != nil {
		h.Response.BadRequest(c, "请求参数错误", err.Error())
		return
	}

	id, err := h.Scenes.Create(userID, projectID, fields)
	if err != nil {
		h.Response.FromError(c, err, "创建场景失败")
		return
	}

	h.Response.Created(c, gin.H{"id": id}, "场景创建成功")
}

// UpdateScene 部分字段更新
func (h *Handler) UpdateScene(c *gin.Context) {
	userID := c.GetString("user_id")
	projectID := c.Param("id")
	sceneID := c.Param("sceneId")

	var fields map[string]interface{}
	if err := c.ShouldBindJSON(&fields); err != nil {
		h.Response.BadRequest(c, "请求参数错误", err.Error())
		return
	}

	if err := h.Scenes.Update(userID, projectID, sceneID, fields); err != nil {
		h.Response.FromError(c, err, "更新场景失败")
		return
	}

	h.Response.Success(c, nil, "场景更新成功")
}

// DeleteScene 删除场景
func (h *Handler) DeleteScene(c *gin.Context) {
	userID := c.GetString("user_id")
	projectID := c.Param("id")
	sceneID := c.Param("sceneId")

	if err := h.Scenes.Delete(userID, projectID, sceneID); err != nil {
		h.Response.FromError(c, err, "删除场景失败")
		return
	}

	h.Response.Success(c, nil, "场景已删除")
}

// ReorderScenes 按给定排列原子性重写全部场景的 order
func (h *Handler) ReorderScenes(c *gin.Context) {
	userID := c.GetString("user_id")
	projectID := c.Param("id")

	var req struct {
		OrderedIds []string `json:"orderedIds" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求参数错误", err.Error())
		return
	}

	if err := h.Scenes.Reorder(userID, projectID, req.OrderedIds); err != nil {
		h.Response.FromError(c, err, "场景重排序失败")
		return
	}

	h.Response.Success(c, nil, "场景顺序已更新")
}

// ===============================
// 生成场景
// ===============================

// GetGeneratedScenes 获取生成场景列表
func (h *Handler) GetGeneratedScenes(c *gin.Context) {
	userID := c.GetString("user_id")
	projectID := c.Param("id")

	generated, err := h.Generated.List(userID, projectID)
	if err != nil {
		h.Response.FromError(c, err, "获取生成场景列表失败")
		return
	}

	h.Response.Success(c, generated)
}

// CreateGeneratedScene 追加一条生成场景
func (h *Handler) CreateGeneratedScene(c *gin.Context) {
	userID := c.GetString("user_id")
	projectID := c.Param("id")

	var fields map[string]interface{}
	if err := c.ShouldBindJSON(&fields); err != nil {
		h.Response.BadRequest(c, "请求参数错误", err.Error())
		return
	}

	id, err := h.Generated.Create(userID, projectID, fields)
	if err != nil {
		h.Response.FromError(c, err, "创建生成场景失败")
		return
	}

	h.Response.Created(c, gin.H{"id": id}, "生成场景创建成功")
}

// DeleteGeneratedScene 删除单条生成场景
func (h *Handler) DeleteGeneratedScene(c *gin.Context) {
	userID := c.GetString("user_id")
	projectID := c.Param("id")
	generatedID := c.Param("generatedId")

	if err := h.Generated.Delete(userID, projectID, generatedID); err != nil {
		h.Response.FromError(c, err, "删除生成场景失败")
		return
	}

	h.Response.Success(c, nil, "生成场景已删除")
}

// ===============================
// 组合场景
// ===============================

// GetCombinedScenes 获取组合场景列表
func (h *Handler) GetCombinedScenes(c *gin.Context) {
	userID := c.GetString("user_id")
	projectID := c.Param("id")

	combined, err := h.Combined.List(userID, projectID)
	if err != nil {
		h.Response.FromError(c, err, "获取组合场景列表失败")
		return
	}

	h.Response.Success(c, combined)
}

// CreateCombinedScene 追加一条组合场景
func (h *Handler) CreateCombinedScene(c *gin.Context) {
	userID := c.GetString("user_id")
	projectID := c.Param("id")

	var fields map[string]interface{}
	if err := c.ShouldBindJSON(&fields); err != nil {
		h.Response.BadRequest(c, "请求参数错误", err.Error())
		return
	}

	id, err := h.Combined.Create(userID, projectID, fields)
	if err != nil {
		h.Response.FromError(c, err, "创建组合场景失败")
		return
	}

	h.Response.Created(c, gin.H{"id": id}, "组合场景创建成功")
}

// DeleteCombinedScene 删除单条组合场景
func (h *Handler) DeleteCombinedScene(c *gin.Context) {
	userID := c.GetString("user_id")
	projectID := c.Param("id")
	combinedID := c.Param("combinedId")

	if err := h.Combined.Delete(userID, projectID, combinedID); err != nil {
		h.Response.FromError(c, err, "删除组合场景失败")
		return
	}

	h.Response.Success(c, nil, "组合场景已删除")
}
