package document

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedType 不支持的文件类型
var ErrUnsupportedType = errors.New("Unsupported file type. Please use PDF, DOCX, or TXT files.")

// Parser 文档解析器接口
// 负责将不同格式的文档解析为纯文本，段落之间以空行分隔
type Parser interface {
	// Parse 解析文档，返回文本内容
	Parse(filePath string) (string, error)

	// ParseReader 从Reader解析文档，返回文本内容
	// filename用于确定文档类型
	ParseReader(r io.Reader, filename string) (string, error)
}

// ContentType 表示文档的内容类型
type ContentType string

const (
	// PDF 文档类型
	PDF ContentType = "pdf"
	// DOCX Word文档类型
	DOCX ContentType = "docx"
	// Markdown 文档类型
	Markdown ContentType = "markdown"
	// PlainText 纯文本类型
	PlainText ContentType = "plaintext"
	// Unknown 未知类型
	Unknown ContentType = "unknown"
)

// ParserFactory 解析器工厂函数，根据文件扩展名创建对应的解析器
func ParserFactory(filename string) (Parser, error) {
	switch DetectContentType(filename) {
	case PDF:
		return NewPDFParser(), nil
	case DOCX:
		return NewDocxParser(), nil
	case Markdown:
		return NewMarkdownParser(), nil
	case PlainText:
		return NewPlainTextParser(), nil
	default:
		return nil, fmt.Errorf("%w (%s)", ErrUnsupportedType, filepath.Ext(filename))
	}
}

// DetectContentType 根据文件扩展名检测内容类型
func DetectContentType(filename string) ContentType {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".pdf":
		return PDF
	case ".docx", ".doc":
		return DOCX
	case ".md", ".markdown":
		return Markdown
	case ".txt":
		return PlainText
	default:
		return Unknown
	}
}

// ExtractText 根据文件名选择解析器并提取文本
func ExtractText(r io.Reader, filename string) (string, error) {
	parser, err := ParserFactory(filename)
	if err != nil {
		return "", err
	}
	return parser.ParseReader(r, filename)
}

// parseFile 打开文件并交给ParseReader处理
func parseFile(p Parser, filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return p.ParseReader(file, filePath)
}
