// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package participant

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"speedcad/server/apperr"
	"speedcad/server/logs"
	"speedcad/server/storage"
)

// TokenIssuer 为选手签发会话令牌
type TokenIssuer func(email string) (string, error)

// RegisterRequest 报名请求
type RegisterRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	College string `json:"college"`
}

// CompleteRequest 补记提交请求
type CompleteRequest struct {
	FileURL string  `json:"fileUrl"`
	Weight  float64 `json:"weight"`
}

// ResetRequest 批量重置请求
type ResetRequest struct {
	Mode string `json:"mode"`
}

// HandleRegister 选手报名（公开API），返回选手信息和令牌
func HandleRegister(c *gin.Context, svc *Service, issue TokenIssuer, audit *logs.Writer) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Validation("INVALID_REQUEST", "Name, email and college are required"))
		return
	}

	p, err := svc.Register(c.Request.Context(), req.Name, req.Email, req.College)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	token, err := issue(p.Email)
	if err != nil {
		apperr.Respond(c, apperr.System("TOKEN_ERROR", "Failed to create session", err))
		return
	}

	audit.Write(logs.TypeRegister, logs.LevelInfo, p.Email, c.ClientIP(), fmt.Sprintf("选手报名: %s (%s)", p.Name, p.College), nil)
	c.JSON(http.StatusOK, gin.H{"participant": p, "token": token})
}

// HandleMe 当前选手信息
func HandleMe(c *gin.Context, svc *Service) {
	p, err := svc.Get(c.Request.Context(), c.GetString("email"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// HandleSubmit 上传模型文件并提交称重结果（multipart: file, weight）
func HandleSubmit(c *gin.Context, svc *Service, audit *logs.Writer) {
	email := c.GetString("email")

	if err := storage.LimitMultipart(c.Writer, c.Request, storage.MaxRequestSize); err != nil {
		apperr.Respond(c, err)
		return
	}

	weight, err := strconv.ParseFloat(strings.TrimSpace(c.PostForm("weight")), 64)
	if err != nil {
		apperr.Respond(c, apperr.Validation("WEIGHT_INVALID", "Weight must be a positive number"))
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		apperr.Respond(c, apperr.Validation("FILE_REQUIRED", "Please select a file to upload"))
		return
	}
	defer file.Close()

	p, err := svc.Submit(c.Request.Context(), email, header.Filename, header.Size, file, weight)
	if err != nil {
		logSubmissionFailure(c, audit, email, err)
		apperr.Respond(c, err)
		return
	}

	audit.Write(logs.TypeSubmission, logs.LevelSuccess, email, c.ClientIP(),
		fmt.Sprintf("提交成功，重量 %.4f，得分 %.2f", weight, p.Score),
		gin.H{"filename": header.Filename, "size": header.Size, "fileUrl": p.FileURL})
	c.JSON(http.StatusOK, p)
}

// HandleCompleteSubmission 上传成功但记录失败后，用返回的文件地址重新记录
func HandleCompleteSubmission(c *gin.Context, svc *Service, audit *logs.Writer) {
	email := c.GetString("email")

	var req CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Validation("INVALID_REQUEST", "fileUrl and weight are required"))
		return
	}

	p, err := svc.CompleteSubmission(c.Request.Context(), email, req.FileURL, req.Weight)
	if err != nil {
		logSubmissionFailure(c, audit, email, err)
		apperr.Respond(c, err)
		return
	}

	audit.Write(logs.TypeSubmission, logs.LevelSuccess, email, c.ClientIP(),
		fmt.Sprintf("补记提交成功，得分 %.2f", p.Score), gin.H{"fileUrl": req.FileURL})
	c.JSON(http.StatusOK, p)
}

// HandleStats 报名和提交统计（公开API）
func HandleStats(c *gin.Context, svc *Service) {
	st, err := svc.Stats(c.Request.Context())
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// HandleList 选手列表（管理后台）
func HandleList(c *gin.Context, svc *Service) {
	list, err := svc.List(c.Request.Context())
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// HandleReset 批量重置提交（管理后台）
func HandleReset(c *gin.Context, svc *Service, audit *logs.Writer) {
	var req ResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Validation("INVALID_REQUEST", "Reset mode is required"))
		return
	}

	n, err := svc.ResetSubmissions(c.Request.Context(), req.Mode)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	audit.Write(logs.TypeAdminOp, logs.LevelWarning, c.GetString("username"), c.ClientIP(),
		fmt.Sprintf("批量重置选手提交 (%s)，影响 %d 条记录", req.Mode, n), nil)
	c.JSON(http.StatusOK, gin.H{"mode": req.Mode, "affected": n})
}

func logSubmissionFailure(c *gin.Context, audit *logs.Writer, email string, err error) {
	appErr := apperr.As(err)
	if appErr == nil {
		return
	}
	level := logs.LevelWarning
	if appErr.Type == apperr.TypeTransientIO || appErr.Type == apperr.TypePartialFailure {
		level = logs.LevelError
	}
	var details interface{}
	if appErr.FileURL != "" {
		details = gin.H{"fileUrl": appErr.FileURL}
	}
	audit.Write(logs.TypeSubmission, level, email, c.ClientIP(), "提交失败: "+appErr.Code, details)
}
