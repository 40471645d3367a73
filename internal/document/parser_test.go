package document

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTempFile(t *testing.T, content, ext string) string {
	path := filepath.Join(t.TempDir(), "goalmap-test"+ext)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// createPDF 使用gofpdf生成PDF，每个元素占一页
func createPDF(t *testing.T, pages ...string) []byte {
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetFont("Arial", "", 12)
	for _, text := range pages {
		doc.AddPage()
		doc.MultiCell(0, 10, text, "", "", false)
	}

	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

// createDocx 构造最小的DOCX压缩包
func createDocx(t *testing.T, body string) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, err := zw.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"></Types>`))
	require.NoError(t, err)

	w, err = zw.Create(docxBodyPart)
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`))
	require.NoError(t, err)

	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// TestPlainTextParser 测试纯文本解析
func TestPlainTextParser(t *testing.T) {
	content := "Hello, this is a plain text file.\nSecond line."

	t.Run("file", func(t *testing.T) {
		file := createTempFile(t, content, ".txt")
		text, err := NewPlainTextParser().Parse(file)
		require.NoError(t, err)
		assert.Equal(t, content, text)
	})

	t.Run("reader", func(t *testing.T) {
		text, err := NewPlainTextParser().ParseReader(strings.NewReader(content), "test.txt")
		require.NoError(t, err)
		assert.Equal(t, content, text)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewPlainTextParser().Parse(filepath.Join(t.TempDir(), "missing.txt"))
		assert.Error(t, err)
	})
}

// TestMarkdownParser 测试Markdown解析，段落结构应保留
func TestMarkdownParser(t *testing.T) {
	content := "# Title\n\nThis is a **markdown** file &amp; more.\n\n- Item 1\n- Item 2"
	file := createTempFile(t, content, ".md")

	text, err := NewMarkdownParser().Parse(file)
	require.NoError(t, err)

	assert.Contains(t, text, "This is a markdown file & more.")
	assert.Contains(t, text, "- Item 1")
	assert.True(t, strings.HasPrefix(text, "Title\n\n"), "标题应独立成段: %q", text)
	assert.NotContains(t, text, "<")
	assert.NotContains(t, text, "\n\n\n")
}

// TestPDFParser 测试PDF解析
func TestPDFParser(t *testing.T) {
	t.Run("single page", func(t *testing.T) {
		data := createPDF(t, "This is a PDF test.")
		text, err := NewPDFParser().ParseReader(bytes.NewReader(data), "test.pdf")
		require.NoError(t, err)
		assert.Contains(t, text, "PDF test")
	})

	t.Run("pages are separated by blank line", func(t *testing.T) {
		data := createPDF(t, "First page content.", "Second page content.")
		file := createTempFile(t, string(data), ".pdf")

		text, err := NewPDFParser().Parse(file)
		require.NoError(t, err)

		parts := strings.Split(text, "\n\n")
		require.Len(t, parts, 2)
		assert.Contains(t, parts[0], "First page")
		assert.Contains(t, parts[1], "Second page")
	})

	t.Run("invalid pdf", func(t *testing.T) {
		_, err := NewPDFParser().ParseReader(strings.NewReader("not a pdf"), "broken.pdf")
		assert.Error(t, err)
	})
}

// TestDocxParser 测试DOCX解析
func TestDocxParser(t *testing.T) {
	t.Run("paragraphs and runs", func(t *testing.T) {
		body := `<w:p><w:r><w:t>Hello </w:t></w:r><w:r><w:t>world.</w:t></w:r></w:p>` +
			`<w:p><w:r><w:t>Second</w:t><w:tab/><w:t>paragraph</w:t><w:br/><w:t>line two</w:t></w:r></w:p>` +
			`<w:p></w:p>` +
			`<w:p><w:r><w:t>中文段落。</w:t></w:r></w:p>`
		data := createDocx(t, body)

		text, err := NewDocxParser().ParseReader(bytes.NewReader(data), "test.docx")
		require.NoError(t, err)
		assert.Equal(t, "Hello world.\n\nSecond\tparagraph\nline two\n\n中文段落。", text)
	})

	t.Run("legacy doc", func(t *testing.T) {
		_, err := NewDocxParser().ParseReader(bytes.NewReader([]byte{0xD0, 0xCF, 0x11, 0xE0}), "old.doc")
		assert.Error(t, err)
	})

	t.Run("missing body part", func(t *testing.T) {
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		_, err := zw.Create("other.xml")
		require.NoError(t, err)
		require.NoError(t, zw.Close())

		_, err = NewDocxParser().ParseReader(&buf, "empty.docx")
		assert.Error(t, err)
	})
}

// TestParserFactory 测试按扩展名选择解析器
func TestParserFactory(t *testing.T) {
	tests := []struct {
		filename string
		expected ContentType
	}{
		{"a.pdf", PDF},
		{"A.PDF", PDF},
		{"a.docx", DOCX},
		{"a.doc", DOCX},
		{"a.txt", PlainText},
		{"a.md", Markdown},
		{"a.markdown", Markdown},
		{"a.xlsx", Unknown},
		{"noext", Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectContentType(tt.filename))

			parser, err := ParserFactory(tt.filename)
			if tt.expected == Unknown {
				assert.ErrorIs(t, err, ErrUnsupportedType)
				assert.Nil(t, parser)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, parser)
			}
		})
	}
}

// TestExtractText 测试提取后直接分块
func TestExtractText(t *testing.T) {
	text, err := ExtractText(strings.NewReader("Para one.\n\nPara two."), "notes.txt")
	require.NoError(t, err)

	chunks, err := ChunkText(text, DefaultChunkerConfig())
	require.NoError(t, err)
	assert.Equal(t, []string{"Para one.\n\nPara two."}, chunks)

	_, err = ExtractText(strings.NewReader("x"), "sheet.xlsx")
	assert.ErrorIs(t, err, ErrUnsupportedType)

	empty, err := ExtractText(strings.NewReader(""), "empty.txt")
	require.NoError(t, err)
	chunks, err = ChunkText(empty, DefaultChunkerConfig())
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
