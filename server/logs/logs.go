// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package logs

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// 日志类型常量
const (
	TypeLogin      = "login"
	TypeRegister   = "register"
	TypeSubmission = "submission"
	TypeUpload     = "upload"
	TypeAdminOp    = "admin_op"
)

// 日志级别常量
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
	LevelSuccess = "success"
)

// LogEntry 日志条目
type LogEntry struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	Level     string          `json:"level"`
	Actor     string          `json:"actor,omitempty"`
	IPAddress string          `json:"ipAddress,omitempty"`
	Message   string          `json:"message"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt string          `json:"createdAt"`
}

// Publisher 实时推送
type Publisher interface {
	Publish(topic string, payload interface{})
}

// Writer 系统日志写入：入库并推送给管理端
type Writer struct {
	db    *sql.DB
	pub   Publisher
	topic string
	now   func() time.Time
}

// NewWriter 创建日志写入器，db 为 nil 时只推送不入库
func NewWriter(db *sql.DB, pub Publisher, topic string) *Writer {
	return &Writer{db: db, pub: pub, topic: topic, now: time.Now}
}

// Write 写入日志（供其他模块调用），失败只记录不向上抛
func (w *Writer) Write(logType, level, actor, ipAddress, message string, details interface{}) {
	if w == nil {
		return
	}

	var detailsJSON []byte
	if details != nil {
		if data, err := json.Marshal(details); err == nil && string(data) != "null" {
			detailsJSON = data
		}
	}

	if w.db != nil {
		_, err := w.db.Exec(`
			INSERT INTO system_logs (type, level, actor, ip_address, message, details)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			logType, level, actor, ipAddress, message, detailsJSON)
		if err != nil {
			log.Printf("[Logs] 写入系统日志失败: %v", err)
		}
	}

	if w.pub != nil {
		w.pub.Publish(w.topic, LogEntry{
			Type:      logType,
			Level:     level,
			Actor:     actor,
			IPAddress: ipAddress,
			Message:   message,
			Details:   detailsJSON,
			CreatedAt: w.now().Format("2006-01-02 15:04:05"),
		})
	}
}

// Filter 日志查询条件
type Filter struct {
	Type     string
	Level    string
	Search   string
	Page     int
	PageSize int
}

// ParseFilter 从查询参数解析分页和过滤条件
func ParseFilter(c *gin.Context) Filter {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "50"))
	if page < 1 {
		page = 1
	}
	if pageSize < 10 || pageSize > 100 {
		pageSize = 50
	}
	return Filter{
		Type:     c.Query("type"),
		Level:    c.Query("level"),
		Search:   c.Query("search"),
		Page:     page,
		PageSize: pageSize,
	}
}

// buildQuery 生成分页查询和计数查询，args 末尾两个参数为 LIMIT/OFFSET
func buildQuery(f Filter) (query, countQuery string, args []interface{}) {
	where := " WHERE 1=1"
	argIdx := 1
	if f.Type != "" {
		where += " AND type = $" + strconv.Itoa(argIdx)
		args = append(args, f.Type)
		argIdx++
	}
	if f.Level != "" {
		where += " AND level = $" + strconv.Itoa(argIdx)
		args = append(args, f.Level)
		argIdx++
	}
	if f.Search != "" {
		where += " AND (message ILIKE $" + strconv.Itoa(argIdx) + " OR actor ILIKE $" + strconv.Itoa(argIdx) + ")"
		args = append(args, "%"+f.Search+"%")
		argIdx++
	}

	countQuery = `SELECT COUNT(*) FROM system_logs` + where
	query = `
		SELECT id, type, level, COALESCE(actor, ''), COALESCE(ip_address, ''), message, details, created_at
		FROM system_logs` + where +
		" ORDER BY created_at DESC LIMIT $" + strconv.Itoa(argIdx) + " OFFSET $" + strconv.Itoa(argIdx+1)
	args = append(args, f.PageSize, (f.Page-1)*f.PageSize)
	return query, countQuery, args
}

// HandleGetLogs 获取日志列表（管理后台API）
func HandleGetLogs(c *gin.Context, db *sql.DB) {
	f := ParseFilter(c)
	query, countQuery, args := buildQuery(f)

	var total int
	if err := db.QueryRowContext(c.Request.Context(), countQuery, args[:len(args)-2]...).Scan(&total); err != nil {
		log.Printf("[Logs] 统计日志失败: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "STORE_UNAVAILABLE", "message": "Could not read system logs"})
		return
	}

	rows, err := db.QueryContext(c.Request.Context(), query, args...)
	if err != nil {
		log.Printf("[Logs] 查询日志失败: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "STORE_UNAVAILABLE", "message": "Could not read system logs"})
		return
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		var details []byte
		var createdAt time.Time
		if err := rows.Scan(&e.ID, &e.Type, &e.Level, &e.Actor, &e.IPAddress, &e.Message, &details, &createdAt); err != nil {
			continue
		}
		if len(details) > 0 {
			e.Details = details
		}
		e.CreatedAt = createdAt.Format("2006-01-02 15:04:05")
		entries = append(entries, e)
	}

	if entries == nil {
		entries = []LogEntry{}
	}

	totalPages := (total + f.PageSize - 1) / f.PageSize
	c.JSON(http.StatusOK, gin.H{
		"logs":       entries,
		"total":      total,
		"page":       f.Page,
		"pageSize":   f.PageSize,
		"totalPages": totalPages,
	})
}
