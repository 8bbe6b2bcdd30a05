// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package storage

import (
	"errors"
	"fmt"
	"net/http"

	"speedcad/server/apperr"
)

// MaxRequestSize multipart 请求体上限：文件上限加 1MB 表单字段余量
const MaxRequestSize = MaxFileSize + 1<<20

// multipartMemory 解析表单时留在内存中的部分，超出写入临时文件
const multipartMemory = 8 << 20

// LimitMultipart 在读取请求体前限制大小并解析 multipart 表单，超限时中断读取
func LimitMultipart(w http.ResponseWriter, r *http.Request, limit int64) error {
	tooLarge := apperr.Validation("FILE_TOO_LARGE", fmt.Sprintf("File is too large. Maximum size is %dMB.", MaxFileSize/(1024*1024)))
	if r.ContentLength > limit {
		return tooLarge
	}

	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return tooLarge
		}
		return apperr.Validation("FILE_REQUIRED", "Please select a file to upload")
	}
	return nil
}
