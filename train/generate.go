package train

import "math/rand"

// GenerateRecords produces a synthetic corpus of dataNum records spread over
// patternNum shared skeletons. Each skeleton is a random byte prefix (never
// containing '\n') seasoned with a '\' and a '*' and, when withNUL is set, a
// NUL byte, so the escape handling gets exercised; each record is its
// skeleton followed by random filler up to a length in [dataMinLen,
// dataMaxLen).
func GenerateRecords(rng *rand.Rand, dataNum, dataMinLen, dataMaxLen,
	patternNum, patternMinLen, patternMaxLen int, withNUL bool) [][]byte {

	randByte := func() byte {
		for {
			b := byte(1 + rng.Intn(255))
			if b != '\n' {
				return b
			}
		}
	}

	records := make([][]byte, 0, dataNum)
	perPattern := dataNum / patternNum
	for i := 0; i < patternNum; i++ {
		plen := patternMinLen + rng.Intn(patternMaxLen-patternMinLen)
		skeleton := make([]byte, plen)
		for j := range skeleton {
			switch {
			case j == plen/4:
				skeleton[j] = '\\'
			case j == plen/3:
				skeleton[j] = '*'
			case withNUL && j == plen/2:
				skeleton[j] = 0
			default:
				skeleton[j] = randByte()
			}
		}
		count := perPattern
		if i == patternNum-1 {
			count = dataNum - len(records)
		}
		for j := 0; j < count; j++ {
			dlen := dataMinLen + rng.Intn(dataMaxLen-dataMinLen)
			record := make([]byte, 0, dlen)
			record = append(record, skeleton...)
			for len(record) < dlen {
				record = append(record, randByte())
			}
			records = append(records, record)
		}
	}
	return records
}
