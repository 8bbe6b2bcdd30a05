// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package competition

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"speedcad/server/apperr"
	"speedcad/server/logs"
	"speedcad/server/storage"
)

// StartRequest 开始比赛请求
type StartRequest struct {
	Material        string  `json:"material"`
	ReferenceWeight float64 `json:"referenceWeight"`
}

// UpdateMaterialRequest 修改材料请求
type UpdateMaterialRequest struct {
	Material        string   `json:"material"`
	ReferenceWeight *float64 `json:"referenceWeight"`
}

// UpdateToleranceRequest 修改容差请求
type UpdateToleranceRequest struct {
	Tolerance float64 `json:"tolerance"`
}

// HandleGetPublic 获取比赛状态（公开API，不含参考重量）
func HandleGetPublic(c *gin.Context, svc *Service) {
	v, err := svc.Current(c.Request.Context())
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, v.PublicView())
}

// HandleGetAdmin 获取完整比赛状态（管理后台）
func HandleGetAdmin(c *gin.Context, svc *Service) {
	v, err := svc.Current(c.Request.Context())
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// HandleStart 开始比赛
func HandleStart(c *gin.Context, svc *Service, audit *logs.Writer) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Validation("INVALID_REQUEST", "Material and reference weight are required"))
		return
	}
	v, err := svc.Start(c.Request.Context(), req.Material, req.ReferenceWeight)
	respond(c, audit, "start", v, err, gin.H{"material": req.Material, "referenceWeight": req.ReferenceWeight})
}

// HandlePause 暂停比赛
func HandlePause(c *gin.Context, svc *Service, audit *logs.Writer) {
	v, err := svc.Pause(c.Request.Context())
	respond(c, audit, "pause", v, err, gin.H{"elapsed": v.Elapsed})
}

// HandleResume 恢复比赛
func HandleResume(c *gin.Context, svc *Service, audit *logs.Writer) {
	v, err := svc.Resume(c.Request.Context())
	respond(c, audit, "resume", v, err, gin.H{"elapsed": v.Elapsed})
}

// HandleStop 结束比赛
func HandleStop(c *gin.Context, svc *Service, audit *logs.Writer) {
	v, err := svc.Stop(c.Request.Context())
	respond(c, audit, "stop", v, err, gin.H{"elapsed": v.Elapsed})
}

// HandleReset 重置比赛
func HandleReset(c *gin.Context, svc *Service, audit *logs.Writer) {
	v, err := svc.Reset(c.Request.Context())
	respond(c, audit, "reset", v, err, nil)
}

// HandleUpdateMaterial 修改材料和参考重量
func HandleUpdateMaterial(c *gin.Context, svc *Service, audit *logs.Writer) {
	var req UpdateMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Validation("INVALID_REQUEST", "Material is required"))
		return
	}
	v, err := svc.UpdateMaterial(c.Request.Context(), req.Material, req.ReferenceWeight)
	respond(c, audit, "update_material", v, err, gin.H{"material": req.Material, "referenceWeight": req.ReferenceWeight})
}

// HandleUpdateTolerance 修改容差
func HandleUpdateTolerance(c *gin.Context, svc *Service, audit *logs.Writer) {
	var req UpdateToleranceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Validation("INVALID_REQUEST", "Tolerance is required"))
		return
	}
	v, err := svc.UpdateTolerance(c.Request.Context(), req.Tolerance)
	respond(c, audit, "update_tolerance", v, err, gin.H{"tolerance": req.Tolerance})
}

// HandleUploadDrawing 上传参考图纸
func HandleUploadDrawing(c *gin.Context, svc *Service, audit *logs.Writer) {
	if err := storage.LimitMultipart(c.Writer, c.Request, storage.MaxRequestSize); err != nil {
		apperr.Respond(c, err)
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		apperr.Respond(c, apperr.Validation("FILE_REQUIRED", "Please select a drawing to upload"))
		return
	}
	defer file.Close()

	v, err := svc.UploadDrawing(c.Request.Context(), header.Filename, header.Size, file)
	respond(c, audit, "upload_drawing", v, err, gin.H{"filename": header.Filename, "size": header.Size})
}

func respond(c *gin.Context, audit *logs.Writer, action string, v View, err error, details gin.H) {
	actor := c.GetString("username")
	if err != nil {
		if apperr.Is(err, apperr.TypeTransientIO) || apperr.Is(err, apperr.TypePartialFailure) {
			audit.Write(logs.TypeAdminOp, logs.LevelError, actor, c.ClientIP(), fmt.Sprintf("比赛操作 %s 失败: %v", action, err), details)
		}
		apperr.Respond(c, err)
		return
	}
	audit.Write(logs.TypeAdminOp, logs.LevelInfo, actor, c.ClientIP(), fmt.Sprintf("比赛操作 %s，当前状态 %s", action, v.Status), details)
	c.JSON(http.StatusOK, v)
}
