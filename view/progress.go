package view

// progressFrac computes the whole-book progress fraction:
// (lengthBefore + docLength*frac) / totalLength. lengthBefore stays 0 until
// the position within the spine is known; an empty book reads as 0.
func progressFrac(lengthBefore, docLength, totalLength int, frac float64) float64 {
	if totalLength <= 0 {
		return 0
	}
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	p := (float64(lengthBefore) + float64(docLength)*frac) / float64(totalLength)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
