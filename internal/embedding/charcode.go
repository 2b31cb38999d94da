package embedding

// DefaultCharCodeDimension is the vector length of the character-code embedding.
const DefaultCharCodeDimension = 300

// CharCode embeds text as the code points of its first Dimension runes,
// zero-padded. It carries no meaning beyond a positional signature of the
// characters; runes past Dimension are dropped.
type CharCode struct {
	Dimension int
}

func NewCharCode(dimension int) CharCode {
	if dimension <= 0 {
		dimension = DefaultCharCodeDimension
	}
	return CharCode{Dimension: dimension}
}

func (c CharCode) Embed(text string) []float64 {
	vec := make([]float64, c.Dimension)
	i := 0
	for _, r := range text {
		if i == c.Dimension {
			break
		}
		vec[i] = float64(r)
		i++
	}
	return vec
}
