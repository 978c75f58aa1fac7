package handlers

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	applog "bodega/internal/log"
	"bodega/internal/services"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type DashboardHandler struct {
	Reports *services.ReportService
}

// GET /
func (h *DashboardHandler) Dashboard(c *fiber.Ctx) error {
	d, err := h.Reports.Dashboard(c.UserContext())
	if err != nil {
		return err
	}
	return render(c, "dashboard", fiber.Map{"D": d})
}

type ReportHandler struct {
	Reports *services.ReportService
	Now     func() time.Time
}

// GET /reports/sales.xlsx
func (h *ReportHandler) SalesExcel(c *fiber.Ctx) error {
	data, err := h.Reports.ExportSales(c.UserContext())
	if err != nil {
		return err
	}
	applog.Audit(c, "report.sales.export", map[string]any{"bytes": len(data)})
	c.Set(fiber.HeaderContentType, xlsxMIME)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="sales.xlsx"`)
	return c.Send(data)
}

// GET /api/v1/chart-data
func (h *ReportHandler) ChartData(c *fiber.Ctx) error {
	d, err := h.Reports.ChartData(c.UserContext())
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(d)
}

// GET /backup
func (h *ReportHandler) Backup(c *fiber.Ctx) error {
	data, name, err := h.Reports.Backup(c.UserContext(), h.Now())
	if err != nil {
		return err
	}
	applog.Audit(c, "backup.download", map[string]any{"file": name, "bytes": len(data)})
	c.Set(fiber.HeaderContentType, "application/vnd.sqlite3")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Send(data)
}
