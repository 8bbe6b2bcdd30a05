// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package storage

import (
	"fmt"
	"path/filepath"
	"strings"

	"speedcad/server/apperr"
)

// MaxFileSize 上传文件大小上限（50MB）
const MaxFileSize int64 = 50 * 1024 * 1024

// Kind 文件类别（对应存储目录）
type Kind string

const (
	KindDrawing    Kind = "drawings"
	KindSubmission Kind = "submissions"
)

// 允许的扩展名
var (
	SubmissionExtensions = []string{".step", ".stp", ".stl", ".iges", ".igs", ".zip", ".rar"}
	DrawingExtensions    = []string{".pdf", ".png", ".jpg", ".jpeg", ".dwg", ".dxf", ".step", ".stp"}
)

// Policy 上传准入策略：在任何上传之前检查大小和扩展名
type Policy struct {
	MaxSize    int64
	Extensions []string
}

// PolicyFor 返回某类文件的准入策略
func PolicyFor(kind Kind) Policy {
	if kind == KindDrawing {
		return Policy{MaxSize: MaxFileSize, Extensions: DrawingExtensions}
	}
	return Policy{MaxSize: MaxFileSize, Extensions: SubmissionExtensions}
}

// Check 校验文件名和大小
func (p Policy) Check(filename string, size int64) error {
	if strings.TrimSpace(filename) == "" || size <= 0 {
		return apperr.Validation("FILE_REQUIRED", "No file selected")
	}
	if size > p.MaxSize {
		return apperr.Validation("FILE_TOO_LARGE", fmt.Sprintf("File is too large. Maximum size is %dMB.", p.MaxSize/(1024*1024)))
	}
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range p.Extensions {
		if ext == allowed {
			return nil
		}
	}
	return apperr.Validation("FILE_TYPE_NOT_ALLOWED", "File type not allowed. Accepted formats: "+strings.Join(p.Extensions, ", "))
}
