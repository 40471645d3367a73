package document

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// paragraphSeparator 段落分隔符，也用于拼接段落
	paragraphSeparator = "\n\n"
	// sentenceSeparator 句子拼接符
	sentenceSeparator = " "
)

// ErrInvalidChunkConfig 分块参数不合法
var ErrInvalidChunkConfig = errors.New("invalid chunker config")

var (
	blankLinePattern    = regexp.MustCompile(`(?m)^[ \t]+$`)
	extraNewlinePattern = regexp.MustCompile(`\n{3,}`)
)

// ChunkerConfig 分块器配置
// 长度均按字符(rune)计算
type ChunkerConfig struct {
	MinSize       int  // 分块最小长度（软约束）
	MaxSize       int  // 分块最大长度
	Overlap       int  // 相邻分块的重叠字符数
	KeepShortTail bool // 是否保留不足MinSize的末尾分块
}

// DefaultChunkerConfig 返回默认分块配置
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		MinSize: 500,
		MaxSize: 800,
		Overlap: 125,
	}
}

// Validate 校验 0 <= Overlap < MinSize < MaxSize
func (c ChunkerConfig) Validate() error {
	if c.MinSize <= 0 {
		return fmt.Errorf("%w: min size must be positive, got %d", ErrInvalidChunkConfig, c.MinSize)
	}
	if c.MaxSize <= c.MinSize {
		return fmt.Errorf("%w: max size (%d) must be greater than min size (%d)",
			ErrInvalidChunkConfig, c.MaxSize, c.MinSize)
	}
	if c.Overlap < 0 || c.Overlap >= c.MinSize {
		return fmt.Errorf("%w: overlap (%d) must be in [0, %d)",
			ErrInvalidChunkConfig, c.Overlap, c.MinSize)
	}
	return nil
}

// Chunker 段落/句子感知的滑动窗口分块器
// 优先在段落边界切分，超长段落退化为按句子切分，
// 新分块以上一分块末尾的Overlap个字符开头
type Chunker struct {
	config ChunkerConfig
}

// NewChunker 创建分块器，参数不合法时返回ErrInvalidChunkConfig
func NewChunker(config ChunkerConfig) (*Chunker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{config: config}, nil
}

// Config 返回分块器配置
func (c *Chunker) Config() ChunkerConfig {
	return c.config
}

// Chunk 将文本切分为有序的分块序列
// 空文本或纯空白文本返回空序列
func (c *Chunker) Chunk(text string) ([]string, error) {
	return ChunkText(text, c.config)
}

// ChunkText 使用给定配置对文本分块
func ChunkText(text string, config ChunkerConfig) ([]string, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 0 {
		return []string{}, nil
	}

	f := &chunkFold{config: config}
	for _, para := range paragraphs {
		f.addParagraph(para)
	}
	return f.finish(), nil
}

// chunkFold 分块过程的累积状态：已输出的分块和当前缓冲区
type chunkFold struct {
	config ChunkerConfig
	chunks []string
	buf    string
}

func (f *chunkFold) addParagraph(para string) {
	candidate := joinUnits(f.buf, para, paragraphSeparator)

	switch {
	case runeLen(candidate) <= f.config.MaxSize:
		f.buf = candidate

	case runeLen(f.buf) >= f.config.MinSize:
		// 输出当前分块，新缓冲区以其末尾重叠部分开头
		prev := f.buf
		f.chunks = append(f.chunks, prev)
		f.buf = tailRunes(prev, f.config.Overlap)
		if runeLen(para) > f.config.MaxSize {
			f.addSentences(para)
		} else {
			f.buf = joinUnits(f.buf, para, paragraphSeparator)
		}

	case runeLen(para) > f.config.MaxSize:
		if f.buf != "" {
			f.chunks = append(f.chunks, f.buf)
		}
		f.buf = ""
		f.addSentences(para)

	default:
		// 缓冲区不足MinSize时允许超过MaxSize
		f.buf = candidate
	}
}

// addSentences 以句子为单位累积超长段落，结果留在缓冲区中
func (f *chunkFold) addSentences(para string) {
	sep := paragraphSeparator
	for _, sentence := range splitSentences(para) {
		candidate := joinUnits(f.buf, sentence, sep)
		sep = sentenceSeparator

		switch {
		case runeLen(candidate) <= f.config.MaxSize:
			f.buf = candidate
		case runeLen(f.buf) >= f.config.MinSize:
			prev := f.buf
			f.chunks = append(f.chunks, prev)
			f.buf = joinUnits(tailRunes(prev, f.config.Overlap), sentence, sentenceSeparator)
		default:
			f.buf = candidate
		}
	}
}

func (f *chunkFold) finish() []string {
	if strings.TrimSpace(f.buf) != "" &&
		(runeLen(f.buf) >= f.config.MinSize || len(f.chunks) == 0 || f.config.KeepShortTail) {
		f.chunks = append(f.chunks, strings.TrimSpace(f.buf))
	}
	if f.chunks == nil {
		return []string{}
	}
	return f.chunks
}

// splitParagraphs 规范化换行并按空行切分段落
func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = blankLinePattern.ReplaceAllString(text, "")
	text = extraNewlinePattern.ReplaceAllString(text, paragraphSeparator)
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var paragraphs []string
	for _, p := range strings.Split(text, paragraphSeparator) {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

// splitSentences 按句末标点切分句子
// '.', '!', '?' 需后接空白或位于末尾；全角句号、叹号、问号直接断句
func splitSentences(para string) []string {
	var sentences []string
	start := 0

	for i := 0; i < len(para); {
		r, size := utf8.DecodeRuneInString(para[i:])
		if !isTerminator(r) {
			i += size
			continue
		}

		// 连续的句末标点视为一个整体
		end := i + size
		fullWidth := isFullWidthTerminator(r)
		for end < len(para) {
			next, n := utf8.DecodeRuneInString(para[end:])
			if !isTerminator(next) {
				break
			}
			fullWidth = fullWidth || isFullWidthTerminator(next)
			end += n
		}

		if end < len(para) && !fullWidth {
			next, _ := utf8.DecodeRuneInString(para[end:])
			if !unicode.IsSpace(next) {
				i = end
				continue
			}
		}

		if s := strings.TrimSpace(para[start:end]); s != "" {
			sentences = append(sentences, s)
		}
		start = end
		i = end
	}

	if s := strings.TrimSpace(para[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?':
		return true
	}
	return isFullWidthTerminator(r)
}

func isFullWidthTerminator(r rune) bool {
	switch r {
	case '。', '！', '？':
		return true
	}
	return false
}

func joinUnits(buf, unit, sep string) string {
	if buf == "" {
		return unit
	}
	return buf + sep + unit
}

// tailRunes 返回s末尾的n个字符
func tailRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
