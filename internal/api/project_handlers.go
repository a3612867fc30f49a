// internal/api/project_handlers.go
package api

import (
	"github.com/gin-gonic/gin"
)

// GetProjects 获取当前用户的项目列表
// 顺带对持久化的项目选择做自愈：选择的ID不在列表中则清除
func (h *Handler) GetProjects(c *gin.Context) {
	userID := c.GetString("user_id")

	projects, err := h.Projects.List(userID)
	if err != nil {
		h.Response.FromError(c, err, "获取项目列表失败")
		return
	}

	ids := make([]string, len(projects))
	for i, p := range projects {
		ids[i] = p.ID
	}
	// 过期的选择视同未选择，自愈失败不影响列表返回
	h.Selection.Heal(userID, ids)

	h.Response.Success(c, projects)
}

// CreateProject 创建新项目
func (h *Handler) CreateProject(c *gin.Context) {
	userID := c.GetString("user_id")

	var fields map[string]interface{}
	if err := c.ShouldBindJSON(&fields); err != nil {
		h.Response.BadRequest(c, "请求参数错误", err.Error())
		return
	}

	id, err := h.Projects.Create(userID, fields)
	if err != nil {
		h.Response.FromError(c, err, "创建项目失败")
		return
	}

	h.Response.Created(c, gin.H{"id": id}, "项目创建成功")
}

// UpdateProject 部分字段更新
func (h *Handler) UpdateProject(c *gin.Context) {
	userID := c.GetString("user_id")
	projectID := c.Param("id")

	var fields map[string]interface{}
	if err := c.ShouldBindJSON(&fields); err != nil {
		h.Response.BadRequest(c, "请求参数错误", err.Error())
		return
	}

	if err := h.Projects.Update(userID, projectID, fields); err != nil {
		h.Response.FromError(c, err, "更新项目失败")
		return
	}

	h.Response.Success(c, nil, "项目更新成功")
}

// DeleteProject 删除项目并级联清空子集合
func (h *Handler) DeleteProject(c *gin.Context) {
	userID := c.GetString("user_id")
	projectID := c.Param("id")

	if err := h.Projects.Delete(userID, projectID); err != nil {
		h.Response.FromError(c, err, "删除项目失败")
		return
	}

	// 删除的是当前选择的项目时同步清除选择
	if h.Selection.Get(userID) == projectID {
		h.Selection.Set(userID, "")
	}

	h.Response.Success(c, nil, "项目已删除")
}

// GetSelection 返回当前用户选择的项目ID
func (h *Handler) GetSelection(c *gin.Context) {
	userID := c.GetString("user_id")
	h.Response.Success(c, gin.H{"selectedProjectId": h.Selection.Get(userID)})
}

// SetSelection 更新当前用户选择的项目ID，空值表示清除
func (h *Handler) SetSelection(c *gin.Context) {
	userID := c.GetString("user_id")

	var req struct {
		SelectedProjectID string `json:"selectedProjectId"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求参数错误", err.Error())
		return
	}

	if err := h.Selection.Set(userID, req.SelectedProjectID); err != nil {
		h.Response.InternalError(c, "保存选择状态失败", err.Error())
		return
	}

	h.Response.Success(c, gin.H{"selectedProjectId": req.SelectedProjectID})
}
