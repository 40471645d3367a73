// Package stream 将推理服务的流式HTTP响应解码为增量文本序列
package stream

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"
)

// TransportError 读取记录之前发生的传输错误
type TransportError struct {
	StatusCode int    // HTTP状态码，响应体缺失时为0
	Status     string // 状态描述
	Body       string // 错误响应体（截断）
}

// Error 实现error接口
func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("stream transport error: %s", e.Status)
	}
	if e.Body != "" {
		return fmt.Sprintf("stream transport error: status %d (%s): %s", e.StatusCode, e.Status, e.Body)
	}
	return fmt.Sprintf("stream transport error: status %d (%s)", e.StatusCode, e.Status)
}

// ErrNilBody 响应没有可读的响应体
var ErrNilBody = &TransportError{Status: "response has no body"}

const maxErrorBody = 1024

// CheckResponse 校验响应状态码和响应体
// 先检查状态码：非2xx时读取部分响应体作为错误信息并关闭响应体，空响应体同样返回带状态码的错误；
// 2xx的空响应体（http.NoBody）视为空流
func CheckResponse(resp *http.Response) error {
	if resp == nil {
		return ErrNilBody
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body []byte
		if resp.Body != nil {
			defer resp.Body.Close()
			body, _ = io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		}
		return &TransportError{
			StatusCode: resp.StatusCode,
			Status:     http.StatusText(resp.StatusCode),
			Body:       string(body),
		}
	}
	if resp.Body == nil {
		return ErrNilBody
	}
	return nil
}

// Option 解码器选项
type Option func(*Decoder)

// WithLogger 设置记录被丢弃时使用的日志器
func WithLogger(logger logrus.FieldLogger) Option {
	return func(d *Decoder) {
		d.logger = logger
	}
}

// Decoder 按行拆分响应体并提取增量文本
// 分帧在字节层面完成，跨读取边界的多字节字符不会被破坏
type Decoder struct {
	body   io.ReadCloser
	reader *bufio.Reader
	logger logrus.FieldLogger

	err       error
	closeOnce sync.Once
	closeErr  error
}

// NewDecoder 创建解码器，调用方负责在结束后调用Close
func NewDecoder(body io.ReadCloser, opts ...Option) *Decoder {
	d := &Decoder{
		body:   body,
		reader: bufio.NewReader(body),
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Next 返回下一段增量文本
// 流正常结束时返回io.EOF，格式错误的记录会被跳过
func (d *Decoder) Next() (string, error) {
	for {
		if d.err != nil {
			return "", d.err
		}

		line, err := d.reader.ReadBytes('\n')
		if err != nil {
			// 末尾没有换行符的剩余内容按同样规则处理
			if errors.Is(err, io.EOF) {
				d.err = io.EOF
			} else {
				d.err = fmt.Errorf("read stream: %w", err)
			}
		}

		if delta, ok := d.decode(line); ok {
			return delta, nil
		}
	}
}

func (d *Decoder) decode(line []byte) (string, bool) {
	delta, kind := parseRecord(line)
	switch kind {
	case recordDelta:
		return delta, true
	case recordMalformed:
		d.logger.WithField("record", truncate(line, 200)).Debug("Skipping malformed stream record")
	case recordNoPayload:
		d.logger.WithField("record", truncate(line, 200)).Debug("Skipping stream record without delta")
	}
	return "", false
}

// Close 关闭响应体，可重复调用
func (d *Decoder) Close() error {
	d.closeOnce.Do(func() {
		if d.body != nil {
			d.closeErr = d.body.Close()
		}
	})
	return d.closeErr
}

// Deltas 返回响应体的增量文本序列
// 序列只能消费一次；无论正常结束、提前停止还是读取出错，响应体都会被关闭
func Deltas(body io.ReadCloser, opts ...Option) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if body == nil {
			yield("", ErrNilBody)
			return
		}

		d := NewDecoder(body, opts...)
		defer d.Close()

		for {
			delta, err := d.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
			if !yield(delta, nil) {
				return
			}
		}
	}
}

// FromResponse 校验响应后返回其增量文本序列
func FromResponse(resp *http.Response, opts ...Option) (iter.Seq2[string, error], error) {
	if err := CheckResponse(resp); err != nil {
		return nil, err
	}
	return Deltas(resp.Body, opts...), nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
