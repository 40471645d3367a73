package document

import (
	"fmt"
	stdhtml "html"
	"io"
	"regexp"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// MarkdownParser Markdown文档解析器
type MarkdownParser struct{}

// NewMarkdownParser 创建新的Markdown解析器
func NewMarkdownParser() Parser {
	return &MarkdownParser{}
}

// Parse 解析Markdown文件并提取文本内容
func (p *MarkdownParser) Parse(filePath string) (string, error) {
	return parseFile(p, filePath)
}

// ParseReader 从Reader解析Markdown内容
func (p *MarkdownParser) ParseReader(r io.Reader, filename string) (string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read markdown content %s: %w", filename, err)
	}

	extensions := parser.CommonExtensions | parser.AutoHeadingIDs
	mdParser := parser.NewWithExtensions(extensions)
	doc := mdParser.Parse(content)

	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	htmlContent := markdown.Render(doc, renderer)

	return extractTextFromHTML(string(htmlContent)), nil
}

// extractTextFromHTML 从渲染后的HTML中提取纯文本
// 块级元素转换为段落分隔，其余标签移除
func extractTextFromHTML(content string) string {
	replacements := []struct {
		Old string
		New string
	}{
		{"<br>", "\n"},
		{"<br/>", "\n"},
		{"<br />", "\n"},
		{"</p>", "\n\n"},
		{"<li>", "- "},
		{"</li>", "\n"},
		{"</ul>", "\n\n"},
		{"</ol>", "\n\n"},
		{"</pre>", "\n\n"},
		{"</blockquote>", "\n\n"},
		{"</tr>", "\n"},
	}

	result := content
	for _, r := range replacements {
		result = strings.ReplaceAll(result, r.Old, r.New)
	}
	for level := 1; level <= 6; level++ {
		result = strings.ReplaceAll(result, fmt.Sprintf("</h%d>", level), "\n\n")
	}

	result = htmlTagPattern.ReplaceAllString(result, " ")
	result = stdhtml.UnescapeString(result)

	return normalizeWhitespace(result)
}

// normalizeWhitespace 合并行内空白，保留段落之间的空行
func normalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	text = strings.Join(lines, "\n")
	text = extraNewlinePattern.ReplaceAllString(text, paragraphSeparator)
	return strings.TrimSpace(text)
}
