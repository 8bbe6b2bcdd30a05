// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// URLPrefix 对外访问的路由前缀
const URLPrefix = "/files"

// Object 上传成功后的对象
type Object struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// Store 对象存储
type Store interface {
	Put(ctx context.Context, kind Kind, owner, filename string, r io.Reader) (Object, error)
	Owns(kind Kind, owner, url string) bool
}

// DiskStore 本地磁盘存储，目录结构 <root>/<kind>/<owner>/<ts>-<uuid>-<name>
type DiskStore struct {
	Root    string
	BaseURL string
	now     func() time.Time
}

// NewDiskStore 创建磁盘存储
func NewDiskStore(root, baseURL string) *DiskStore {
	return &DiskStore{Root: root, BaseURL: strings.TrimRight(baseURL, "/"), now: time.Now}
}

var (
	unsafeChars    = regexp.MustCompile(`[^a-zA-Z0-9]`)
	unsafeFileName = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)
)

// ownerReadable 目录名中可读部分的最大长度
const ownerReadable = 32

// OwnerDir 将 owner（如邮箱）转为目录名：可读前缀 + owner 原文的 sha256 前缀。
// 可读部分会合并字符（a.b 与 a_b），唯一性由哈希部分保证。
func OwnerDir(owner string) string {
	readable := unsafeChars.ReplaceAllString(owner, "_")
	if len(readable) > ownerReadable {
		readable = readable[:ownerReadable]
	}
	sum := sha256.Sum256([]byte(owner))
	return readable + "-" + hex.EncodeToString(sum[:16])
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	stem = strings.Trim(unsafeFileName.ReplaceAllString(stem, "_"), "._")
	if stem == "" {
		stem = "file"
	}
	return stem + strings.ToLower(ext)
}

// Put 写入文件；ctx 取消或超时时中止并删除半成品
func (s *DiskStore) Put(ctx context.Context, kind Kind, owner, filename string, r io.Reader) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}

	dir := filepath.Join(s.Root, string(kind), OwnerDir(owner))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Object{}, fmt.Errorf("create dir: %w", err)
	}

	name := fmt.Sprintf("%d-%s-%s", s.now().UnixMilli(), uuid.NewString()[:8], sanitizeFilename(filename))
	full := filepath.Join(dir, name)
	dst, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return Object{}, fmt.Errorf("create file: %w", err)
	}

	n, copyErr := io.Copy(dst, &ctxReader{ctx: ctx, r: r})
	closeErr := dst.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		os.Remove(full)
		return Object{}, fmt.Errorf("write file: %w", copyErr)
	}

	key := path.Join(string(kind), OwnerDir(owner), name)
	return Object{Key: key, URL: s.BaseURL + URLPrefix + "/" + key, Size: n}, nil
}

// Owns 判断 url 是否位于 owner 的 kind 目录下
func (s *DiskStore) Owns(kind Kind, owner, url string) bool {
	prefix := s.BaseURL + URLPrefix + "/" + path.Join(string(kind), OwnerDir(owner)) + "/"
	if !strings.HasPrefix(url, prefix) {
		return false
	}
	rest := strings.TrimPrefix(url, prefix)
	if rest == "" || strings.Contains(rest, "/") || strings.Contains(rest, "..") {
		return false
	}
	_, err := os.Stat(filepath.Join(s.Root, string(kind), OwnerDir(owner), rest))
	return err == nil
}

// ctxReader 每次读取前检查 ctx，使大文件拷贝可被超时中断
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
