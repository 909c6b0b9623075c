package cartstore

import "go-marketplace/models"

// preImage is the state of one line before an optimistic mutation.
type preImage struct {
	key     models.LineKey
	existed bool
	line    models.CartLine
	index   int
}

func capture(lines []models.CartLine, key models.LineKey) preImage {
	i := indexOf(lines, key)
	p := preImage{key: key, existed: i >= 0, index: i}
	if i >= 0 {
		p.line = lines[i]
	}
	return p
}

// restore puts the line back exactly as captured. A removed line returns to
// its old index, or the end if the cart has since shrunk below it.
func (p preImage) restore(lines []models.CartLine) []models.CartLine {
	i := indexOf(lines, p.key)
	switch {
	case !p.existed && i >= 0:
		return append(lines[:i], lines[i+1:]...)
	case !p.existed:
		return lines
	case i >= 0:
		lines[i] = p.line
		return lines
	}
	at := p.index
	if at > len(lines) {
		at = len(lines)
	}
	lines = append(lines, models.CartLine{})
	copy(lines[at+1:], lines[at:])
	lines[at] = p.line
	return lines
}

func indexOf(lines []models.CartLine, key models.LineKey) int {
	for i, l := range lines {
		if l.Key() == key {
			return i
		}
	}
	return -1
}
