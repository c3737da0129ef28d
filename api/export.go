package api

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"moneytrack/analytics"
	"moneytrack/models"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// ExportHandler 导出处理器
type ExportHandler struct {
	sessions StoreProvider
}

// NewExportHandler 创建导出处理器
func NewExportHandler(sessions StoreProvider) *ExportHandler {
	return &ExportHandler{sessions: sessions}
}

var exportHeaders = []string{"ID", "Date", "Type", "Category", "Description", "Amount", "Created At"}

// exportRows 按日期范围取记录并按日期倒序；失败时已写入响应
func (h *ExportHandler) exportRows(c *gin.Context) ([]models.Transaction, string, bool) {
	from, to, ok := parseDateRange(c)
	if !ok {
		return nil, "", false
	}
	store, ok := currentStore(c, h.sessions)
	if !ok {
		return nil, "", false
	}
	txs := analytics.Between(store.List(), from, to)
	sortNewestFirst(txs)
	return txs, exportSuffix(from, to), true
}

func exportSuffix(from, to time.Time) string {
	f, t := "all", "all"
	if !from.IsZero() {
		f = from.Format(models.DateLayout)
	}
	if !to.IsZero() {
		t = to.Format(models.DateLayout)
	}
	return f + "_" + t
}

// ExportCSV 导出为 CSV
// @Summary 导出收支记录（CSV）
// @Description 按日期范围导出，不传日期则导出全部
// @Tags 导出
// @Produce text/csv
// @Security BearerAuth
// @Param start_date query string false "开始日期 (2024-01-01)"
// @Param end_date query string false "结束日期 (2024-12-31)"
// @Success 200 {file} file "CSV 文件"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/export/csv [get]
func (h *ExportHandler) ExportCSV(c *gin.Context) {
	txs, suffix, ok := h.exportRows(c)
	if !ok {
		return
	}

	buf := new(bytes.Buffer)
	// 添加 BOM 以便 Excel 正确识别 UTF-8
	buf.WriteString("\xEF\xBB\xBF")
	writer := csv.NewWriter(buf)

	if err := writer.Write(exportHeaders); err != nil {
		InternalError(c, "生成 CSV 失败")
		return
	}
	for _, tx := range txs {
		row := []string{
			tx.ID,
			tx.DateString(),
			string(tx.Type),
			tx.Category,
			tx.Description,
			fmt.Sprintf("%.2f", tx.Amount),
			tx.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		if err := writer.Write(row); err != nil {
			InternalError(c, "生成 CSV 失败")
			return
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		InternalError(c, "生成 CSV 失败")
		return
	}

	filename := fmt.Sprintf("transactions_%s.csv", suffix)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// ExportJSONResponse JSON 导出结果
type ExportJSONResponse struct {
	StartDate    string               `json:"start_date"`
	EndDate      string               `json:"end_date"`
	TotalCount   int                  `json:"total_count"`
	TotalIncome  float64              `json:"total_income"`
	TotalExpense float64              `json:"total_expense"`
	NetBalance   float64              `json:"net_balance"`
	Transactions []models.Transaction `json:"transactions"`
}

// ExportJSON 导出为 JSON
// @Summary 导出收支记录（JSON）
// @Tags 导出
// @Produce json
// @Security BearerAuth
// @Param start_date query string false "开始日期 (2024-01-01)"
// @Param end_date query string false "结束日期 (2024-12-31)"
// @Success 200 {object} Response{data=ExportJSONResponse} "导出成功"
// @Failure 400 {object} Response "请求参数错误"
// @Router /api/v1/export/json [get]
func (h *ExportHandler) ExportJSON(c *gin.Context) {
	txs, _, ok := h.exportRows(c)
	if !ok {
		return
	}
	income := analytics.TotalIncome(txs)
	expense := analytics.TotalExpense(txs)
	Success(c, ExportJSONResponse{
		StartDate:    c.Query("start_date"),
		EndDate:      c.Query("end_date"),
		TotalCount:   len(txs),
		TotalIncome:  income,
		TotalExpense: expense,
		NetBalance:   income - expense,
		Transactions: txs,
	})
}

// ExportExcel 导出为 Excel
// @Summary 导出收支记录（Excel）
// @Description 明细表后附收入、支出、结余汇总行
// @Tags 导出
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param start_date query string false "开始日期 (2024-01-01)"
// @Param end_date query string false "结束日期 (2024-12-31)"
// @Success 200 {file} file "Excel 文件"
// @Failure 400 {object} Response "请求参数错误"
// @Router /api/v1/export/excel [get]
func (h *ExportHandler) ExportExcel(c *gin.Context) {
	txs, suffix, ok := h.exportRows(c)
	if !ok {
		return
	}

	f, err := buildWorkbook(txs)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "生成 Excel 失败"))
		return
	}
	defer f.Close()

	filename := fmt.Sprintf("transactions_%s.xlsx", suffix)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", filename))
	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "生成 Excel 失败")
		return
	}
}

const exportSheet = "Transactions"

func buildWorkbook(txs []models.Transaction) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		f.Close()
		return nil, err
	}

	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"3B82F6"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border,
	})
	dataStyle, _ := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "center"},
		Border:    border,
	})
	amountStyle, _ := f.NewStyle(&excelize.Style{NumFmt: 4, Border: border})
	summaryStyle, _ := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Size: 11},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"FFC000"}, Pattern: 1},
		Border: border,
	})

	widths := map[string]float64{"A": 38, "B": 12, "C": 10, "D": 16, "E": 32, "F": 14, "G": 20}
	for col, w := range widths {
		f.SetColWidth(exportSheet, col, col, w)
	}

	for i, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(exportSheet, cell, header)
		f.SetCellStyle(exportSheet, cell, cell, headerStyle)
	}

	for i, tx := range txs {
		row := i + 2
		f.SetCellValue(exportSheet, fmt.Sprintf("A%d", row), tx.ID)
		f.SetCellValue(exportSheet, fmt.Sprintf("B%d", row), tx.DateString())
		f.SetCellValue(exportSheet, fmt.Sprintf("C%d", row), string(tx.Type))
		f.SetCellValue(exportSheet, fmt.Sprintf("D%d", row), tx.Category)
		f.SetCellValue(exportSheet, fmt.Sprintf("E%d", row), tx.Description)
		f.SetCellValue(exportSheet, fmt.Sprintf("F%d", row), tx.Amount)
		f.SetCellValue(exportSheet, fmt.Sprintf("G%d", row), tx.CreatedAt.Format("2006-01-02 15:04:05"))
		f.SetCellStyle(exportSheet, fmt.Sprintf("A%d", row), fmt.Sprintf("G%d", row), dataStyle)
		f.SetCellStyle(exportSheet, fmt.Sprintf("F%d", row), fmt.Sprintf("F%d", row), amountStyle)
	}

	// 汇总行
	income := analytics.TotalIncome(txs)
	expense := analytics.TotalExpense(txs)
	summary := [][2]any{
		{"Total income", income},
		{"Total expense", expense},
		{"Net balance", income - expense},
	}
	start := len(txs) + 3
	for i, kv := range summary {
		row := start + i
		f.SetCellValue(exportSheet, fmt.Sprintf("E%d", row), kv[0])
		f.SetCellValue(exportSheet, fmt.Sprintf("F%d", row), kv[1])
		f.SetCellStyle(exportSheet, fmt.Sprintf("E%d", row), fmt.Sprintf("F%d", row), summaryStyle)
	}
	return f, nil
}
