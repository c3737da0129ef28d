package api

import (
	"strconv"
	"time"

	"moneytrack/analytics"
	"moneytrack/config"
	"moneytrack/models"

	"github.com/gin-gonic/gin"
)

const (
	recentCount = 5
	maxMonths   = 24
)

// StatisticsHandler 统计
type StatisticsHandler struct {
	cfg      *config.Config
	sessions StoreProvider
	now      func() time.Time
}

// NewStatisticsHandler 创建统计处理器
func NewStatisticsHandler(cfg *config.Config, sessions StoreProvider) *StatisticsHandler {
	return &StatisticsHandler{cfg: cfg, sessions: sessions, now: time.Now}
}

// DashboardResponse 首页数据
type DashboardResponse struct {
	Summary        analytics.Summary      `json:"summary"`
	ExpenseSlices  []analytics.PieSlice   `json:"expense_slices"`
	Budget         analytics.BudgetStatus `json:"budget"`
	Recent         []models.Transaction   `json:"recent"`
	CurrencySymbol string                 `json:"currency_symbol"`
}

// CategoryStatisticsResponse 类别统计
type CategoryStatisticsResponse struct {
	Type       models.TransactionType    `json:"type"`
	Order      string                    `json:"order"`
	Total      float64                   `json:"total"`
	Categories []analytics.CategoryTotal `json:"categories"`
}

// Dashboard 首页汇总
// @Summary 首页汇总
// @Description 收入、支出、结余、今日收支、本月储蓄率、支出类别饼图、本月预算使用情况、最近 5 条记录
// @Tags 统计
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=DashboardResponse} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/statistics/dashboard [get]
func (h *StatisticsHandler) Dashboard(c *gin.Context) {
	store, ok := currentStore(c, h.sessions)
	if !ok {
		return
	}
	txs := store.List()
	summary := analytics.Summarize(txs, h.now())

	recent := make([]models.Transaction, len(txs))
	copy(recent, txs)
	sortNewestFirst(recent)
	if len(recent) > recentCount {
		recent = recent[:recentCount]
	}

	Success(c, DashboardResponse{
		Summary:        summary,
		ExpenseSlices:  analytics.PieSlices(analytics.CategoryTotals(txs, models.TypeExpense)),
		Budget:         analytics.Budget(h.cfg.Analytics.Budget, summary.MonthExpense),
		Recent:         recent,
		CurrencySymbol: h.cfg.Analytics.CurrencySymbol,
	})
}

// Monthly 月度趋势
// @Summary 月度收支趋势
// @Description 截止本月的连续 N 个自然月，按时间升序；没有记录的月份为 0
// @Tags 统计
// @Produce json
// @Security BearerAuth
// @Param months query int false "月数 1-24，默认取配置 analytics.months"
// @Success 200 {object} Response{data=[]analytics.MonthEntry} "获取成功"
// @Failure 400 {object} Response "参数错误"
// @Router /api/v1/statistics/monthly [get]
func (h *StatisticsHandler) Monthly(c *gin.Context) {
	months := h.cfg.Analytics.Months
	if s := c.Query("months"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxMonths {
			BadRequest(c, "months 必须为 1 到 24 之间的整数")
			return
		}
		months = n
	}

	store, ok := currentStore(c, h.sessions)
	if !ok {
		return
	}
	Success(c, analytics.MonthlySeries(store.List(), h.now(), months))
}

// Categories 类别统计
// @Summary 类别统计
// @Description 按类别汇总金额。order=rank 按金额降序（默认），order=legend 按类别首次出现顺序
// @Tags 统计
// @Produce json
// @Security BearerAuth
// @Param type query string false "income | expense，默认 expense"
// @Param order query string false "rank | legend"
// @Param start_date query string false "开始日期 (YYYY-MM-DD)"
// @Param end_date query string false "结束日期 (YYYY-MM-DD)"
// @Success 200 {object} Response{data=CategoryStatisticsResponse} "获取成功"
// @Failure 400 {object} Response "参数错误"
// @Router /api/v1/statistics/categories [get]
func (h *StatisticsHandler) Categories(c *gin.Context) {
	t := models.TransactionType(c.DefaultQuery("type", string(models.TypeExpense)))
	if !t.Valid() {
		BadRequest(c, "type 只能为 income 或 expense")
		return
	}
	order := c.DefaultQuery("order", "rank")
	if order != "rank" && order != "legend" {
		BadRequest(c, "order 只能为 rank 或 legend")
		return
	}
	from, to, ok := parseDateRange(c)
	if !ok {
		return
	}

	store, ok := currentStore(c, h.sessions)
	if !ok {
		return
	}
	txs := analytics.Between(store.List(), from, to)
	totals := analytics.CategoryTotals(txs, t)
	if order == "rank" {
		totals = analytics.RankCategories(totals)
	}

	total := analytics.TotalExpense(txs)
	if t == models.TypeIncome {
		total = analytics.TotalIncome(txs)
	}
	Success(c, CategoryStatisticsResponse{Type: t, Order: order, Total: total, Categories: totals})
}

// Summary 汇总指标
// @Summary 汇总指标
// @Description 指定日期范围内的收入、支出、结余、笔数、平均金额；今日与本月指标以服务器当前日期计算
// @Tags 统计
// @Produce json
// @Security BearerAuth
// @Param start_date query string false "开始日期 (YYYY-MM-DD)"
// @Param end_date query string false "结束日期 (YYYY-MM-DD)"
// @Success 200 {object} Response{data=analytics.Summary} "获取成功"
// @Failure 400 {object} Response "参数错误"
// @Router /api/v1/statistics/summary [get]
func (h *StatisticsHandler) Summary(c *gin.Context) {
	from, to, ok := parseDateRange(c)
	if !ok {
		return
	}
	store, ok := currentStore(c, h.sessions)
	if !ok {
		return
	}
	Success(c, analytics.Summarize(analytics.Between(store.List(), from, to), h.now()))
}
