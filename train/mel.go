package train

import "math"

// The minimum encoding length (MEL) of two skeletons is the total increment
// in encoding length if both clusters are replaced by one merged skeleton.
// It is computed by a dynamic program over the two strings: state[i][j] is
// the MEL over the prefixes a[:i], b[:j], and typ[i][j] records whether
// position (i,j) sits inside a shared literal (typePattern) or inside a
// wildcard gap (typeFiller). Escape pairs ("\*", "\\") are atomic: indices
// step by two across them and their inner cells keep the srcEsc marker the
// merge walkback uses to re-emit the escape.

// melInf marks a pruned or hopeless pair.
const melInf = math.MaxInt32

const (
	typePattern = iota
	typeFiller
)

const (
	srcEsc   = iota // inner cell of an escape pair; also the zero value
	srcTakeA        // consume one unit of a into a gap
	srcTakeB        // consume one unit of b into a gap
	srcDiag         // shared literal
)

type dpTables struct {
	la, lb int
	w      int // row width, lb+1
	state  []int
	typ    []byte
	src    []byte
}

// noThreshold disables the early exit; used when the tables are needed for
// merge reconstruction.
func noThreshold() int { return melInf }

// constructTables fills the DP tables. threshold is re-read after every row
// so the multi-threaded caller can feed in a bound that tightens while the
// computation runs; once the minimum over the row just filled reaches it the
// pair cannot win and the tables are abandoned.
func constructTables(a, b []byte, na, nb int, threshold func() int) (*dpTables, int) {
	la, lb := len(a), len(b)
	w := lb + 1
	t := &dpTables{
		la: la, lb: lb, w: w,
		state: make([]int, (la+1)*w),
		typ:   make([]byte, (la+1)*w),
		src:   make([]byte, (la+1)*w),
	}
	state, typ, src := t.state, t.typ, t.src

	// Boundary column: everything consumed from a alone is gap.
	for i := 1; i <= la; i++ {
		typ[i*w] = typeFiller
		switch a[i-1] {
		case '\\':
			i++
			state[i*w] = updateState(state[(i-2)*w], typ[(i-2)*w], false, na, nb)
		case '*':
			state[i*w] = updateState(state[(i-1)*w], typ[(i-1)*w], true, na, nb)
		default:
			state[i*w] = updateState(state[(i-1)*w], typ[(i-1)*w], false, na, nb)
		}
	}
	// Boundary row.
	for j := 1; j <= lb; j++ {
		typ[j] = typeFiller
		switch b[j-1] {
		case '\\':
			j++
			state[j] = updateState(state[j-2], typ[j-2], false, nb, na)
		case '*':
			state[j] = updateState(state[j-1], typ[j-1], true, nb, na)
		default:
			state[j] = updateState(state[j-1], typ[j-1], false, nb, na)
		}
	}

	for i := 1; i <= la; i++ {
		minEL := melInf
		escA := 0
		if a[i-1] == '\\' {
			escA = 1
			i++
		}
		lastA := i - 1 - escA
		for j := 1; j <= lb; j++ {
			escB := 0
			if b[j-1] == '\\' {
				escB = 1
				j++
			}
			lastB := j - 1 - escB
			cell := i*w + j
			if a[i-1] == b[j-1] && (a[i-1] != '*' || escA != 0) {
				up := updateState(state[lastA*w+j], typ[lastA*w+j], false, na, nb)
				left := updateState(state[i*w+lastB], typ[i*w+lastB], false, nb, na)
				diag := state[lastA*w+lastB]
				if up <= diag || left <= diag {
					// A tie keeps the wildcard open rather than committing
					// the character to the shared literal.
					typ[cell] = typeFiller
					if up >= left {
						state[cell] = left
						src[cell] = srcTakeB
					} else {
						state[cell] = up
						src[cell] = srcTakeA
					}
				} else {
					state[cell] = diag
					typ[cell] = typePattern
					src[cell] = srcDiag
				}
			} else {
				wildA := a[i-1] == '*' && escA == 0
				wildB := b[j-1] == '*' && escB == 0
				up := updateState(state[lastA*w+j], typ[lastA*w+j], wildA, na, nb)
				left := updateState(state[i*w+lastB], typ[i*w+lastB], wildB, nb, na)
				typ[cell] = typeFiller
				if up >= left {
					state[cell] = left
					src[cell] = srcTakeB
				} else {
					state[cell] = up
					src[cell] = srcTakeA
				}
			}
			if state[cell] < minEL {
				minEL = state[cell]
			}
		}
		if minEL >= threshold() {
			return nil, melInf
		}
	}
	return t, state[la*w+lb]
}

// updateState extends a DP state by one unit on one side. Closing a shared
// literal opens a wildcard for both clusters; extending an existing
// wildcard with a wildcard character costs nothing and cancels the unit's
// own count; any other unit joins the gap at one count per owning record.
func updateState(s int, suffix byte, wildcard bool, nSelf, nOther int) int {
	if suffix == typePattern {
		s += nSelf + nOther
	}
	if wildcard {
		s -= nSelf
	} else {
		s += nSelf
	}
	return s
}

// minEncodingLength computes MEL(a, b) with the early-exit threshold.
func minEncodingLength(a, b []byte, na, nb int, threshold func() int) int {
	_, v := constructTables(a, b, na, nb, threshold)
	return v
}
