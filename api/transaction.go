package api

import (
	"context"
	"net/http"
	"time"

	"moneytrack/analytics"
	"moneytrack/ledger"
	"moneytrack/models"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// TransactionHandler 收支记录处理器
type TransactionHandler struct {
	sessions  StoreProvider
	cats      ledger.CategorySource
	now       func() time.Time
	heartbeat time.Duration
}

// NewTransactionHandler 创建收支记录处理器
func NewTransactionHandler(sessions StoreProvider, cats ledger.CategorySource) *TransactionHandler {
	return &TransactionHandler{sessions: sessions, cats: cats, now: time.Now, heartbeat: 30 * time.Second}
}

// TransactionListRequest 历史记录查询
type TransactionListRequest struct {
	Q        string `form:"q" example:"groceries"`
	Category string `form:"category" example:"Food"`
	Type     string `form:"type" example:"expense"` // income | expense | all
	Page     int    `form:"page" example:"1"`
	PageSize int    `form:"page_size" example:"20"`
}

// TransactionListResponse 历史记录分页结果
type TransactionListResponse struct {
	PageResponse
	Categories []string `json:"categories"` // 用于筛选下拉框
}

// parseInput 解析并校验表单；存在解析错误时合并其余字段的校验结果后返回
func (h *TransactionHandler) parseInput(ctx context.Context, in ledger.Input) (ledger.Draft, ledger.FieldErrors, error) {
	d, perrs := in.Parse()
	if len(perrs) == 0 {
		return d, nil, nil
	}
	_, err := ledger.Validate(ctx, d, h.cats)
	if err != nil {
		fe, ok := ledger.AsFieldErrors(err)
		if !ok {
			return d, nil, err
		}
		return d, perrs.Merge(fe), nil
	}
	return d, perrs, nil
}

// Create 新增收支记录
// @Summary 新增收支记录
// @Description 类型为 income 或 expense；金额必须为正数，最多两位小数；类别需在该类型的类别列表中。校验失败时 data.errors 按字段返回错误。
// @Tags 收支记录
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ledger.Input true "记录信息"
// @Success 200 {object} Response{data=models.Transaction} "创建成功"
// @Failure 400 {object} Response{data=ValidationData} "参数校验失败"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/transactions [post]
func (h *TransactionHandler) Create(c *gin.Context) {
	var in ledger.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}
	store, ok := currentStore(c, h.sessions)
	if !ok {
		return
	}

	d, fe, err := h.parseInput(c.Request.Context(), in)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "加载类别失败"))
		return
	}
	if len(fe) > 0 {
		ValidationError(c, fe)
		return
	}

	tx, err := store.Add(c.Request.Context(), d)
	if err != nil {
		respondStoreError(c, err, "保存记录失败")
		return
	}
	SuccessWithMessage(c, "创建成功", tx)
}

// List 历史记录
// @Summary 历史记录
// @Description 按描述或类别关键字、类别、类型筛选（all 或不传表示不过滤），按日期倒序分页返回
// @Tags 收支记录
// @Produce json
// @Security BearerAuth
// @Param q query string false "关键字（匹配描述或类别，不区分大小写）"
// @Param category query string false "类别"
// @Param type query string false "类型 income | expense | all"
// @Param page query int false "页码，默认 1"
// @Param page_size query int false "每页条数，默认 20，最大 100"
// @Success 200 {object} Response{data=TransactionListResponse} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/transactions [get]
func (h *TransactionHandler) List(c *gin.Context) {
	var req TransactionListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}
	if req.Type != "" && req.Type != analytics.FilterAll && !models.TransactionType(req.Type).Valid() {
		BadRequest(c, "type 只能为 income、expense 或 all")
		return
	}
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	store, ok := currentStore(c, h.sessions)
	if !ok {
		return
	}
	all := store.List()
	filtered := analytics.Filter(all, analytics.Query{Text: req.Q, Category: req.Category, Type: req.Type})
	sortNewestFirst(filtered)

	total := len(filtered)
	start := (req.Page - 1) * req.PageSize
	if start > total {
		start = total
	}
	end := start + req.PageSize
	if end > total {
		end = total
	}

	Success(c, TransactionListResponse{
		PageResponse: PageResponse{
			Total:    int64(total),
			Page:     req.Page,
			PageSize: req.PageSize,
			List:     filtered[start:end],
		},
		Categories: analytics.DistinctCategories(all),
	})
}

// Get 记录详情
// @Summary 记录详情
// @Tags 收支记录
// @Produce json
// @Security BearerAuth
// @Param id path string true "记录 ID"
// @Success 200 {object} Response{data=models.Transaction} "获取成功"
// @Failure 404 {object} Response "记录不存在"
// @Router /api/v1/transactions/{id} [get]
func (h *TransactionHandler) Get(c *gin.Context) {
	store, ok := currentStore(c, h.sessions)
	if !ok {
		return
	}
	tx, err := store.Get(c.Param("id"))
	if err != nil {
		respondStoreError(c, err, "获取记录失败")
		return
	}
	Success(c, tx)
}

// Update 整体替换一条记录
// @Summary 更新收支记录
// @Description 按 ID 整体替换记录内容，ID 与创建时间不变
// @Tags 收支记录
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "记录 ID"
// @Param request body ledger.Input true "记录信息"
// @Success 200 {object} Response{data=models.Transaction} "更新成功"
// @Failure 400 {object} Response{data=ValidationData} "参数校验失败"
// @Failure 404 {object} Response "记录不存在"
// @Router /api/v1/transactions/{id} [put]
func (h *TransactionHandler) Update(c *gin.Context) {
	var in ledger.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}
	store, ok := currentStore(c, h.sessions)
	if !ok {
		return
	}

	d, fe, err := h.parseInput(c.Request.Context(), in)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "加载类别失败"))
		return
	}
	if len(fe) > 0 {
		ValidationError(c, fe)
		return
	}

	tx, err := store.Update(c.Request.Context(), c.Param("id"), d)
	if err != nil {
		respondStoreError(c, err, "更新记录失败")
		return
	}
	SuccessWithMessage(c, "更新成功", tx)
}

// Delete 删除记录
// @Summary 删除收支记录
// @Tags 收支记录
// @Produce json
// @Security BearerAuth
// @Param id path string true "记录 ID"
// @Success 200 {object} Response "删除成功"
// @Failure 404 {object} Response "记录不存在"
// @Router /api/v1/transactions/{id} [delete]
func (h *TransactionHandler) Delete(c *gin.Context) {
	store, ok := currentStore(c, h.sessions)
	if !ok {
		return
	}
	if err := store.Remove(c.Request.Context(), c.Param("id")); err != nil {
		respondStoreError(c, err, "删除记录失败")
		return
	}
	SuccessWithMessage(c, "删除成功", nil)
}

// Reload 从数据库重新加载记录列表
// @Summary 重新加载收支记录
// @Description 以数据库为准刷新当前会话的记录列表，并推送给实时订阅
// @Tags 收支记录
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response "加载成功"
// @Router /api/v1/transactions/reload [post]
func (h *TransactionHandler) Reload(c *gin.Context) {
	store, ok := currentStore(c, h.sessions)
	if !ok {
		return
	}
	if err := store.Reload(c.Request.Context()); err != nil {
		respondStoreError(c, err, "重新加载记录失败")
		return
	}
	SuccessWithMessage(c, "加载成功", gin.H{"count": store.Len()})
}

// snapshotFrame SSE 推送帧
type snapshotFrame struct {
	Type         string               `json:"type"` // snapshot | closed
	Count        int                  `json:"count"`
	Transactions []models.Transaction `json:"transactions"`
	Summary      *analytics.Summary   `json:"summary,omitempty"`
}

// Stream 实时推送记录列表
// @Summary 实时记录列表（SSE）
// @Description 连接后立即推送当前完整列表，之后每次变更推送一次完整列表（data: JSON 帧，type=snapshot）。会话结束（登出）时推送 type=closed 并断开。无法设置请求头时可用 access_token 查询参数认证。
// @Tags 收支记录
// @Produce text/event-stream
// @Security BearerAuth
// @Success 200 {string} string "SSE 流"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/transactions/stream [get]
func (h *TransactionHandler) Stream(c *gin.Context) {
	store, ok := currentStore(c, h.sessions)
	if !ok {
		return
	}
	sub := store.Subscribe()
	defer sub.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // 禁用nginx缓冲
	c.Status(http.StatusOK)

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = c.Writer.WriteString(": ping\n\n")
			c.Writer.Flush()
		case snap, ok := <-sub.C:
			if !ok {
				writeSSEJSON(c, snapshotFrame{Type: "closed"})
				return
			}
			summary := analytics.Summarize(snap, h.now())
			writeSSEJSON(c, snapshotFrame{
				Type:         "snapshot",
				Count:        len(snap),
				Transactions: snap,
				Summary:      &summary,
			})
		}
	}
}
