package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const docxBodyPart = "word/document.xml"

// DocxParser Word文档解析器
// 只读取word/document.xml中的正文，每个<w:p>作为一个段落
type DocxParser struct{}

// NewDocxParser 创建一个新的DOCX解析器
func NewDocxParser() Parser {
	return &DocxParser{}
}

// Parse 解析DOCX文件
func (p *DocxParser) Parse(filePath string) (string, error) {
	return parseFile(p, filePath)
}

// ParseReader 从Reader解析DOCX内容
// 旧版二进制.doc不是zip格式，会返回解析错误
func (p *DocxParser) ParseReader(r io.Reader, filename string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read docx %s: %w", filename, err)
	}

	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open docx %s: %w", filename, err)
	}

	for _, f := range archive.File {
		if f.Name != docxBodyPart {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open %s in %s: %w", docxBodyPart, filename, err)
		}
		defer rc.Close()
		return extractDocxText(rc)
	}

	return "", fmt.Errorf("failed to parse docx %s: %s not found", filename, docxBodyPart)
}

// extractDocxText 遍历XML token，收集<w:t>中的文本
func extractDocxText(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)

	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to decode %s: %w", docxBodyPart, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteString("\t")
			case "br", "cr":
				current.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if text := strings.TrimSpace(current.String()); text != "" {
					paragraphs = append(paragraphs, text)
				}
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}

	if text := strings.TrimSpace(current.String()); text != "" {
		paragraphs = append(paragraphs, text)
	}
	return strings.Join(paragraphs, paragraphSeparator), nil
}
