package content

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/clipperhouse/uax29/v2/words"
	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"bookview/common"
)

// Splitter segments document text into sentences for selection extension.
// Only the English model is compiled in - for other languages sentence
// granularity degrades to paragraph granularity.
type Splitter struct {
	tok *sentences.DefaultSentenceTokenizer
}

// NewSplitter prepares sentence tokenizer for the given book language.
func NewSplitter(lang language.Tag, log *zap.Logger) *Splitter {
	base, _ := lang.Base()
	if base.String() != "en" && base.String() != "und" {
		log.Debug("No sentence tokenizer data for language, sentence granularity disabled", zap.Stringer("tag", lang))
		return &Splitter{}
	}
	tok, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		log.Warn("Unable to load sentence tokenizer data", zap.Error(err))
		return &Splitter{}
	}
	return &Splitter{tok: tok}
}

// SentenceAt returns the rune interval of the sentence containing off.
// Returns false when the tokenizer is unavailable, text is empty, or the
// offset falls on inter-sentence whitespace.
func (s *Splitter) SentenceAt(text string, off int) (int, int, bool) {
	if s == nil || s.tok == nil || len(text) == 0 {
		return 0, 0, false
	}

	byteCursor := 0
	runeCursor := 0
	for _, sent := range s.tok.Tokenize(text) {
		// tokens carry the separator whitespace of the preceding boundary,
		// which must not become part of the selected interval
		trimmed := strings.TrimSpace(sent.Text)
		if trimmed == "" {
			continue
		}
		idx := strings.Index(text[byteCursor:], trimmed)
		if idx < 0 {
			continue
		}
		startByte := byteCursor + idx
		runeCursor += utf8.RuneCountInString(text[byteCursor:startByte])
		n := utf8.RuneCountInString(trimmed)
		if off >= runeCursor && off < runeCursor+n {
			return runeCursor, runeCursor + n, true
		}
		runeCursor += n
		byteCursor = startByte + len(trimmed)
	}
	return 0, 0, false
}

// WordAt returns the rune interval of the word containing off. UAX29
// segmentation is exhaustive, so offsets are tracked by accumulating token
// lengths. Returns false when the token at point has no letters or digits -
// punctuation and whitespace are not words.
func WordAt(text string, off int) (int, int, bool) {
	if len(text) == 0 || off < 0 {
		return 0, 0, false
	}

	cursor := 0
	tokens := words.FromString(text)
	for tokens.Next() {
		tok := tokens.Value()
		n := utf8.RuneCountInString(tok)
		if off < cursor+n {
			if !isWordLike(tok) {
				return 0, 0, false
			}
			return cursor, cursor + n, true
		}
		cursor += n
	}
	return 0, 0, false
}

func isWordLike(tok string) bool {
	for _, r := range tok {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// Expand grows the absolute rune interval [start,end) to the requested
// granularity boundaries. Each granularity is probed explicitly and the
// first one that produces a usable interval wins, degrading from paragraph
// through sentence and word down to the interval itself.
func Expand(d *Document, sp *Splitter, start, end int, g common.Granularity) (int, int) {
	if end < start {
		start, end = end, start
	}
	last := end
	if last > start {
		last--
	}

	switch g {
	case common.GranularityParagraph:
		blocks := d.Blocks()
		if len(blocks) > 0 {
			return blocks[d.BlockAt(start)].Start, blocks[d.BlockAt(last)].End
		}
		return Expand(d, sp, start, end, common.GranularitySentence)

	case common.GranularitySentence:
		blocks := d.Blocks()
		if len(blocks) > 0 && sp != nil {
			sb := blocks[d.BlockAt(start)]
			eb := blocks[d.BlockAt(last)]
			text := d.Text()
			s1, _, ok1 := sp.SentenceAt(sliceRunes(text, sb.Start, sb.End), start-sb.Start)
			_, e2, ok2 := sp.SentenceAt(sliceRunes(text, eb.Start, eb.End), last-eb.Start)
			if ok1 && ok2 {
				return sb.Start + s1, eb.Start + e2
			}
		}
		return Expand(d, sp, start, end, common.GranularityWord)

	case common.GranularityWord:
		text := d.Text()
		s1, _, ok1 := WordAt(text, start)
		_, e2, ok2 := WordAt(text, last)
		if ok1 && ok2 {
			return s1, e2
		}
		return start, end

	default:
		return start, end
	}
}

// sliceRunes returns the substring between rune offsets.
func sliceRunes(s string, from, to int) string {
	runes := []rune(s)
	if from < 0 {
		from = 0
	}
	if to > len(runes) {
		to = len(runes)
	}
	if from >= to {
		return ""
	}
	return string(runes[from:to])
}
