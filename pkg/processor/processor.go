package processor

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/xhad/docchat/internal/models"
)

// DefaultSeparators lists split points from most to least preferred:
// paragraph, line, sentence, word. A hard cut is used when none fits.
var DefaultSeparators = []string{"\n\n", "\n", ". ", "! ", "? ", " "}

// chunkNamespace scopes the deterministic chunk IDs.
var chunkNamespace = uuid.MustParse("6f1c2b8e-3d4a-5e6f-8a9b-0c1d2e3f4a5b")

type ProcessorConfig struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

type Processor struct {
	config     ProcessorConfig
	separators [][]rune
}

// Segment is a piece of split text with its rune offset in the source.
type Segment struct {
	Text    string
	Start   int
	Overlap int
}

func NewWithConfig(config ProcessorConfig) (*Processor, error) {
	if config.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", config.ChunkSize, config.ChunkOverlap)
	}
	if len(config.Separators) == 0 {
		config.Separators = DefaultSeparators
	}

	separators := make([][]rune, 0, len(config.Separators))
	for _, sep := range config.Separators {
		if sep == "" {
			return nil, fmt.Errorf("separators cannot be empty")
		}
		separators = append(separators, []rune(sep))
	}

	return &Processor{
		config:     config,
		separators: separators,
	}, nil
}

func (p *Processor) Config() ProcessorConfig {
	return p.config
}

// Process splits a document into chunks ordered by SequenceIndex.
func (p *Processor) Process(doc models.Document) []models.Chunk {
	segments := p.Split(doc.Text)
	chunks := make([]models.Chunk, 0, len(segments))

	for i, seg := range segments {
		chunks = append(chunks, models.Chunk{
			ID:                  ChunkID(doc.ID, i),
			DocumentID:          doc.ID,
			ParentSourcePath:    doc.SourcePath,
			Extension:           doc.Extension,
			SequenceIndex:       i,
			Text:                seg.Text,
			OverlapWithPrevious: seg.Overlap,
			Metadata:            doc.Metadata,
		})
	}

	return chunks
}

// Split cuts text into segments of at most ChunkSize runes. Each segment
// after the first repeats exactly ChunkOverlap runes of its predecessor.
// The text is never trimmed, so Reassemble restores it exactly.
func (p *Processor) Split(text string) []Segment {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	size, overlap := p.config.ChunkSize, p.config.ChunkOverlap
	var segments []Segment

	start := 0
	for {
		if len(runes)-start <= size {
			segments = append(segments, p.segment(runes, start, len(runes), len(segments)))
			return segments
		}

		// The cut must add at least one new rune beyond the overlap.
		end := p.findCut(runes, start+overlap+1, start+size)
		segments = append(segments, p.segment(runes, start, end, len(segments)))
		start = end - overlap
	}
}

func (p *Processor) segment(runes []rune, start, end, index int) Segment {
	seg := Segment{
		Text:  string(runes[start:end]),
		Start: start,
	}
	if index > 0 {
		seg.Overlap = p.config.ChunkOverlap
	}
	return seg
}

// findCut returns the cut position in [minEnd, maxEnd] that sits right
// after the highest-priority separator, or maxEnd when none fits.
func (p *Processor) findCut(runes []rune, minEnd, maxEnd int) int {
	for _, sep := range p.separators {
		for cut := maxEnd; cut >= minEnd; cut-- {
			if cut < len(sep) {
				break
			}
			if hasSeparatorAt(runes, cut-len(sep), sep) {
				return cut
			}
		}
	}
	return maxEnd
}

func hasSeparatorAt(runes []rune, pos int, sep []rune) bool {
	if pos+len(sep) > len(runes) {
		return false
	}
	for i, r := range sep {
		if runes[pos+i] != r {
			return false
		}
	}
	return true
}

// Reassemble joins chunk texts, dropping each chunk's overlap prefix.
func Reassemble(chunks []models.Chunk) string {
	var out []rune
	for _, c := range chunks {
		runes := []rune(c.Text)
		out = append(out, runes[min(c.OverlapWithPrevious, len(runes)):]...)
	}
	return string(out)
}

// ChunkID derives a stable UUID from a document ID and a chunk position.
func ChunkID(documentID string, index int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(documentID+"#"+strconv.Itoa(index))).String()
}
