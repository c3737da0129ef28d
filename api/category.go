package api

import (
	"moneytrack/database"
	"moneytrack/models"
	"moneytrack/repository"

	"github.com/gin-gonic/gin"
)

// CategoryHandler 收支类别
type CategoryHandler struct{}

// NewCategoryHandler 创建类别处理器
func NewCategoryHandler() *CategoryHandler {
	return &CategoryHandler{}
}

// List 类别列表
// @Summary 获取收支类别
// @Description 收入与支出各有独立的类别列表；不传 type 返回全部，按 sort 升序
// @Tags 类别
// @Produce json
// @Param type query string false "income | expense"
// @Success 200 {object} Response{data=[]models.Category} "获取成功"
// @Failure 400 {object} Response "type 参数错误"
// @Router /api/v1/categories [get]
func (h *CategoryHandler) List(c *gin.Context) {
	t := models.TransactionType(c.Query("type"))
	if t != "" && !t.Valid() {
		BadRequest(c, "type 只能为 income 或 expense")
		return
	}

	list, err := repository.NewCategoryRepository(database.DB).List(c.Request.Context(), t)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "查询类别失败"))
		return
	}
	Success(c, list)
}
