package core

// BranchPredictorStats holds statistics for the branch predictor.
type BranchPredictorStats struct {
	// Predictions is the total number of predictions made.
	Predictions uint64
	// Correct is the number of fully correct predictions (direction and,
	// when taken, target).
	Correct uint64
	// Mispredictions is the number of incorrect predictions.
	Mispredictions uint64
	// BTBHits is the number of BTB hits.
	BTBHits uint64
	// BTBMisses is the number of BTB misses.
	BTBMisses uint64
}

// Accuracy returns the prediction accuracy as a percentage.
func (s BranchPredictorStats) Accuracy() float64 {
	if s.Predictions == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Predictions) * 100
}

// BTBHitRate returns the BTB hit rate as a percentage.
func (s BranchPredictorStats) BTBHitRate() float64 {
	total := s.BTBHits + s.BTBMisses
	if total == 0 {
		return 0
	}
	return float64(s.BTBHits) / float64(total) * 100
}

// Prediction represents a branch prediction result.
type Prediction struct {
	// Taken indicates whether the branch is predicted to be taken.
	Taken bool
	// Target is the predicted target address (if known from BTB).
	Target uint64
	// TargetKnown indicates whether the target address is known.
	TargetKnown bool
}

// Correct reports whether the prediction matches the actual outcome. A
// taken prediction is only correct when the BTB supplied the right target.
func (p Prediction) Correct(taken bool, target uint64) bool {
	if p.Taken != taken {
		return false
	}
	return !taken || (p.TargetKnown && p.Target == target)
}

// BranchPredictor is a bimodal predictor (2-bit saturating counters) with
// a direct-mapped Branch Target Buffer.
type BranchPredictor struct {
	// 0=strongly not taken .. 3=strongly taken
	bht []uint8

	btb      []btbEntry
	btbValid []bool

	bhtMask uint64
	btbMask uint64

	stats BranchPredictorStats
}

type btbEntry struct {
	pc     uint64
	target uint64
}

// NewBranchPredictor creates a predictor. Both sizes must be powers of 2;
// zero selects 512 BHT and 64 BTB entries.
func NewBranchPredictor(bhtSize, btbSize uint32) *BranchPredictor {
	if bhtSize == 0 {
		bhtSize = 512
	}
	if btbSize == 0 {
		btbSize = 64
	}

	bp := &BranchPredictor{
		bht:      make([]uint8, bhtSize),
		btb:      make([]btbEntry, btbSize),
		btbValid: make([]bool, btbSize),
		bhtMask:  uint64(bhtSize - 1),
		btbMask:  uint64(btbSize - 1),
	}
	bp.Reset()

	return bp
}

// Instructions are 4-byte aligned, so the two low PC bits carry no
// information.
func (bp *BranchPredictor) bhtIndex(pc uint64) uint64 { return (pc >> 2) & bp.bhtMask }
func (bp *BranchPredictor) btbIndex(pc uint64) uint64 { return (pc >> 2) & bp.btbMask }

// Predict makes a prediction for the control-flow instruction at pc.
func (bp *BranchPredictor) Predict(pc uint64) Prediction {
	pred := Prediction{Taken: bp.bht[bp.bhtIndex(pc)] >= 2}

	idx := bp.btbIndex(pc)
	if bp.btbValid[idx] && bp.btb[idx].pc == pc {
		pred.Target = bp.btb[idx].target
		pred.TargetKnown = true
		bp.stats.BTBHits++
	} else {
		bp.stats.BTBMisses++
	}

	bp.stats.Predictions++
	return pred
}

// Update trains the predictor with the actual outcome of a prediction
// previously returned by Predict, and reports whether it was correct.
func (bp *BranchPredictor) Update(pc uint64, pred Prediction, taken bool, target uint64) bool {
	correct := pred.Correct(taken, target)
	if correct {
		bp.stats.Correct++
	} else {
		bp.stats.Mispredictions++
	}

	idx := bp.bhtIndex(pc)
	counter := bp.bht[idx]
	if taken && counter < 3 {
		bp.bht[idx] = counter + 1
	} else if !taken && counter > 0 {
		bp.bht[idx] = counter - 1
	}

	if taken {
		btbIdx := bp.btbIndex(pc)
		bp.btb[btbIdx] = btbEntry{pc: pc, target: target}
		bp.btbValid[btbIdx] = true
	}

	return correct
}

// Stats returns the branch predictor statistics.
func (bp *BranchPredictor) Stats() BranchPredictorStats {
	return bp.stats
}

// Reset sets every counter to weakly taken, empties the BTB and clears
// the statistics.
func (bp *BranchPredictor) Reset() {
	for i := range bp.bht {
		bp.bht[i] = 2
	}
	for i := range bp.btbValid {
		bp.btbValid[i] = false
	}
	bp.stats = BranchPredictorStats{}
}
