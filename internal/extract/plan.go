package extract

// Segment is a half-open frame range [From, To) fed to the model in one call.
type Segment struct {
	From int64
	To   int64
}

// Frames returns To - From.
func (s Segment) Frames() int64 { return s.To - s.From }

// Plan cuts total frames into windows of window frames. Every window but
// the last is extended by overlap frames so consecutive feature frames
// line up across the seam. Windows that would run past the end, and tails
// of no more than hop frames, are dropped.
func Plan(total int64, window, overlap, hop int) []Segment {
	if total <= 0 || window <= 0 {
		return nil
	}
	w := int64(window)
	n := (total + w - 1) / w
	segs := make([]Segment, 0, n)
	for i := int64(0); i < n; i++ {
		from := i * w
		to := from + w + int64(overlap)
		if i == n-1 {
			to = total
		}
		if to <= total && to-from > int64(hop) {
			segs = append(segs, Segment{From: from, To: to})
		}
	}
	return segs
}
