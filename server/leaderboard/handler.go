// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package leaderboard

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"speedcad/server/apperr"
	"speedcad/server/logs"
)

// HandleGet 获取排行榜（公开API）
func HandleGet(c *gin.Context, b *Broadcaster) {
	entries, err := b.Compute(c.Request.Context())
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// HandleExport 导出排行榜为 Excel（管理后台）
func HandleExport(c *gin.Context, b *Broadcaster, audit *logs.Writer) {
	entries, err := b.Compute(c.Request.Context())
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, entries); err != nil {
		apperr.Respond(c, apperr.System("EXPORT_FAILED", "Failed to generate the spreadsheet", err))
		return
	}

	filename := fmt.Sprintf("leaderboard_%s.xlsx", time.Now().Format("20060102_150405"))
	audit.Write(logs.TypeAdminOp, logs.LevelInfo, c.GetString("username"), c.ClientIP(),
		fmt.Sprintf("导出排行榜，共 %d 条记录", len(entries)), nil)

	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
