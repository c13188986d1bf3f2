package train

// mergePatterns builds the merged skeleton of a and b by walking the DP
// source table back from (la, lb). Shared literals are kept; runs of
// consumed characters collapse into a single '*' emitted at each
// pattern-to-gap transition; escape-pair inner cells re-emit their '\'. If
// the walk leaves one string unconsumed, the merged skeleton opens with a
// wildcard to cover the leftover prefix.
func mergePatterns(a, b []byte, na, nb int) (merged []byte, mel int) {
	t, v := constructTables(a, b, na, nb, noThreshold)
	la, lb, w := t.la, t.lb, t.w

	posA, posB := la, lb
	lastType := t.typ[la*w+lb]
	var rev []byte // merged skeleton, reversed
	if lastType != typePattern {
		rev = append(rev, '*')
	}
	for posA > 0 && posB > 0 {
		switch t.src[posA*w+posB] {
		case srcDiag:
			rev = append(rev, a[posA-1])
			lastType = typePattern
			posA--
			posB--
			for posA > 0 && posB > 0 && t.src[posA*w+posB] == srcEsc {
				if lastType == typePattern {
					rev = append(rev, '\\')
				}
				posA--
				posB--
			}
		case srcTakeB:
			if lastType == typePattern {
				rev = append(rev, '*')
				lastType = typeFiller
			}
			posB--
			for posA > 0 && posB > 0 && t.src[posA*w+posB] == srcEsc {
				if lastType == typePattern {
					rev = append(rev, '\\')
				}
				posB--
			}
		case srcTakeA:
			if lastType == typePattern {
				rev = append(rev, '*')
				lastType = typeFiller
			}
			posA--
			for posA > 0 && posB > 0 && t.src[posA*w+posB] == srcEsc {
				if lastType == typePattern {
					rev = append(rev, '\\')
				}
				posA--
			}
		}
	}
	if posA != posB && (len(rev) == 0 || rev[len(rev)-1] != '*') {
		rev = append(rev, '*')
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev, v
}
