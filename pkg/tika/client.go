// Package tika 封装 Apache Tika 服务器的纯文本提取接口，供参考资源文档导入使用。
package tika

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"pedia-assist-go/internal/config"
)

// maxTextBytes 限制单个文档提取出的文本大小，超出部分截断。
const maxTextBytes = 16 << 20

// Client 是 Tika 服务器的客户端。
type Client struct {
	serverURL  string
	httpClient *http.Client
}

// NewClient 创建 Tika 客户端。大文档解析较慢，超时比其他外部调用更宽松。
func NewClient(cfg config.TikaConfig) *Client {
	return &Client{
		serverURL:  strings.TrimRight(cfg.ServerURL, "/"),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// ExtractText 以 PUT /tika 提交文档并返回纯文本，MIME 类型由文件名推断。
func (c *Client) ExtractText(ctx context.Context, r io.Reader, fileName string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.serverURL+"/tika", r)
	if err != nil {
		return "", fmt.Errorf("创建 Tika 请求失败: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Content-Type", mimeTypeFor(fileName))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("调用 Tika 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("Tika 返回错误 [%d] %s: %s", resp.StatusCode, filepath.Base(fileName), strings.TrimSpace(string(detail)))
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, io.LimitReader(resp.Body, maxTextBytes)); err != nil {
		return "", fmt.Errorf("读取 Tika 响应失败: %w", err)
	}
	return sb.String(), nil
}

func mimeTypeFor(fileName string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName))); t != "" {
		return t
	}
	return "application/octet-stream"
}
