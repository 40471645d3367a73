package stream

import (
	"bytes"

	"github.com/tidwall/gjson"
)

// deltaPaths 按顺序探测的增量文本路径，第一个非空字符串生效
// 分别对应chat completion增量、旧版completion和部分兼容服务的格式
var deltaPaths = []string{
	"choices.0.delta.content",
	"choices.0.text",
	"choices.0.delta.text",
}

var dataPrefix = []byte("data:")

// recordKind 单条记录的解析结果
type recordKind int

const (
	recordEmpty     recordKind = iota // 空行
	recordDelta                       // 含增量文本
	recordNoPayload                   // 合法JSON但没有增量文本
	recordMalformed                   // 不是JSON对象
)

// ExtractDelta 从一条记录中提取增量文本
// 记录可带 "data: " 前缀；不是JSON对象或没有增量文本时返回false
func ExtractDelta(record []byte) (string, bool) {
	delta, kind := parseRecord(record)
	return delta, kind == recordDelta
}

func parseRecord(record []byte) (string, recordKind) {
	payload := bytes.TrimSpace(record)
	if len(payload) == 0 {
		return "", recordEmpty
	}
	if bytes.HasPrefix(payload, dataPrefix) {
		payload = bytes.TrimSpace(payload[len(dataPrefix):])
	}

	if !gjson.ValidBytes(payload) {
		return "", recordMalformed
	}
	result := gjson.ParseBytes(payload)
	if !result.IsObject() {
		return "", recordMalformed
	}

	for _, path := range deltaPaths {
		v := result.Get(path)
		if v.Type == gjson.String && v.Str != "" {
			return v.Str, recordDelta
		}
	}
	return "", recordNoPayload
}
