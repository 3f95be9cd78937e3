package message

import "sort"

type entry struct {
	msg    Normalized
	epoch  float64
	parsed bool
}

type byTimestamp []entry

func (m byTimestamp) Len() int      { return len(m) }
func (m byTimestamp) Swap(i, j int) { m[i], m[j] = m[j], m[i] }

// Less puts unparseable timestamps after every parseable one.
func (m byTimestamp) Less(i, j int) bool {
	if m[i].parsed != m[j].parsed {
		return m[i].parsed
	}
	return m[i].parsed && m[i].epoch < m[j].epoch
}

func sortChronological(entries []entry) {
	sort.Stable(byTimestamp(entries))
}
