package orderbook

// ladder is a red-black tree of price levels keyed by price. One ladder per
// book side gives O(log P) level lookup/insert/delete and O(1)-ish access to
// the best price, replacing linear scans over a flat order list.
type ladder struct {
	root     *ladderNode
	sentinel *ladderNode // shared black leaf
	size     int
}

type ladderColor uint8

const (
	colorRed ladderColor = iota
	colorBlack
)

type ladderNode struct {
	price  int64
	level  *PriceLevel
	color  ladderColor
	left   *ladderNode
	right  *ladderNode
	parent *ladderNode
}

func newLadder() *ladder {
	leaf := &ladderNode{color: colorBlack}
	return &ladder{root: leaf, sentinel: leaf}
}

func (l *ladder) Len() int { return l.size }

// Find returns the level at price, or nil.
func (l *ladder) Find(price int64) *PriceLevel {
	n := l.root
	for n != l.sentinel {
		switch {
		case price < n.price:
			n = n.left
		case price > n.price:
			n = n.right
		default:
			return n.level
		}
	}
	return nil
}

// Upsert returns the level at price, creating an empty one if absent.
func (l *ladder) Upsert(price int64) *PriceLevel {
	parent := l.sentinel
	n := l.root
	for n != l.sentinel {
		parent = n
		switch {
		case price < n.price:
			n = n.left
		case price > n.price:
			n = n.right
		default:
			return n.level
		}
	}

	level := &PriceLevel{Price: price}
	fresh := &ladderNode{
		price:  price,
		level:  level,
		color:  colorRed,
		left:   l.sentinel,
		right:  l.sentinel,
		parent: parent,
	}
	switch {
	case parent == l.sentinel:
		l.root = fresh
	case price < parent.price:
		parent.left = fresh
	default:
		parent.right = fresh
	}
	l.insertFixup(fresh)
	l.size++
	return level
}

// Delete removes the level at price. Returns false if absent.
func (l *ladder) Delete(price int64) bool {
	n := l.search(price)
	if n == l.sentinel {
		return false
	}
	l.deleteNode(n)
	l.size--
	return true
}

// Min returns the lowest-priced level, or nil on an empty ladder.
func (l *ladder) Min() *PriceLevel {
	n := l.minNode(l.root)
	if n == l.sentinel {
		return nil
	}
	return n.level
}

// Max returns the highest-priced level, or nil on an empty ladder.
func (l *ladder) Max() *PriceLevel {
	n := l.maxNode(l.root)
	if n == l.sentinel {
		return nil
	}
	return n.level
}

// Ascend visits levels in increasing price order until fn returns false.
func (l *ladder) Ascend(fn func(*PriceLevel) bool) {
	for n := l.minNode(l.root); n != l.sentinel; n = l.successor(n) {
		if !fn(n.level) {
			return
		}
	}
}

// Descend visits levels in decreasing price order until fn returns false.
func (l *ladder) Descend(fn func(*PriceLevel) bool) {
	for n := l.maxNode(l.root); n != l.sentinel; n = l.predecessor(n) {
		if !fn(n.level) {
			return
		}
	}
}

// Internals: standard red-black rebalancing.

func (l *ladder) search(price int64) *ladderNode {
	n := l.root
	for n != l.sentinel {
		switch {
		case price < n.price:
			n = n.left
		case price > n.price:
			n = n.right
		default:
			return n
		}
	}
	return l.sentinel
}

func (l *ladder) minNode(n *ladderNode) *ladderNode {
	if n == l.sentinel {
		return l.sentinel
	}
	for n.left != l.sentinel {
		n = n.left
	}
	return n
}

func (l *ladder) maxNode(n *ladderNode) *ladderNode {
	if n == l.sentinel {
		return l.sentinel
	}
	for n.right != l.sentinel {
		n = n.right
	}
	return n
}

func (l *ladder) successor(n *ladderNode) *ladderNode {
	if n.right != l.sentinel {
		return l.minNode(n.right)
	}
	p := n.parent
	for p != l.sentinel && n == p.right {
		n = p
		p = p.parent
	}
	return p
}

func (l *ladder) predecessor(n *ladderNode) *ladderNode {
	if n.left != l.sentinel {
		return l.maxNode(n.left)
	}
	p := n.parent
	for p != l.sentinel && n == p.left {
		n = p
		p = p.parent
	}
	return p
}

func (l *ladder) rotateLeft(x *ladderNode) {
	y := x.right
	x.right = y.left
	if y.left != l.sentinel {
		y.left.parent = x
	}
	y.parent = x.parent
	switch {
	case x.parent == l.sentinel:
		l.root = y
	case x == x.parent.left:
		x.parent.left = y
	default:
		x.parent.right = y
	}
	y.left = x
	x.parent = y
}

func (l *ladder) rotateRight(y *ladderNode) {
	x := y.left
	y.left = x.right
	if x.right != l.sentinel {
		x.right.parent = y
	}
	x.parent = y.parent
	switch {
	case y.parent == l.sentinel:
		l.root = x
	case y == y.parent.right:
		y.parent.right = x
	default:
		y.parent.left = x
	}
	x.right = y
	y.parent = x
}

func (l *ladder) insertFixup(z *ladderNode) {
	for z.parent.color == colorRed {
		if z.parent == z.parent.parent.left {
			uncle := z.parent.parent.right
			if uncle.color == colorRed {
				z.parent.color = colorBlack
				uncle.color = colorBlack
				z.parent.parent.color = colorRed
				z = z.parent.parent
			} else {
				if z == z.parent.right {
					z = z.parent
					l.rotateLeft(z)
				}
				z.parent.color = colorBlack
				z.parent.parent.color = colorRed
				l.rotateRight(z.parent.parent)
			}
		} else {
			uncle := z.parent.parent.left
			if uncle.color == colorRed {
				z.parent.color = colorBlack
				uncle.color = colorBlack
				z.parent.parent.color = colorRed
				z = z.parent.parent
			} else {
				if z == z.parent.left {
					z = z.parent
					l.rotateRight(z)
				}
				z.parent.color = colorBlack
				z.parent.parent.color = colorRed
				l.rotateLeft(z.parent.parent)
			}
		}
	}
	l.root.color = colorBlack
}

func (l *ladder) transplant(u, v *ladderNode) {
	switch {
	case u.parent == l.sentinel:
		l.root = v
	case u == u.parent.left:
		u.parent.left = v
	default:
		u.parent.right = v
	}
	v.parent = u.parent
}

func (l *ladder) deleteNode(z *ladderNode) {
	y := z
	yColor := y.color
	var x *ladderNode

	switch {
	case z.left == l.sentinel:
		x = z.right
		l.transplant(z, z.right)
	case z.right == l.sentinel:
		x = z.left
		l.transplant(z, z.left)
	default:
		y = l.minNode(z.right)
		yColor = y.color
		x = y.right
		if y.parent == z {
			x.parent = y
		} else {
			l.transplant(y, y.right)
			y.right = z.right
			y.right.parent = y
		}
		l.transplant(z, y)
		y.left = z.left
		y.left.parent = y
		y.color = z.color
	}

	if yColor == colorBlack {
		l.deleteFixup(x)
	}
}

func (l *ladder) deleteFixup(x *ladderNode) {
	for x != l.root && x.color == colorBlack {
		if x == x.parent.left {
			w := x.parent.right
			if w.color == colorRed {
				w.color = colorBlack
				x.parent.color = colorRed
				l.rotateLeft(x.parent)
				w = x.parent.right
			}
			if w.left.color == colorBlack && w.right.color == colorBlack {
				w.color = colorRed
				x = x.parent
			} else {
				if w.right.color == colorBlack {
					w.left.color = colorBlack
					w.color = colorRed
					l.rotateRight(w)
					w = x.parent.right
				}
				w.color = x.parent.color
				x.parent.color = colorBlack
				w.right.color = colorBlack
				l.rotateLeft(x.parent)
				x = l.root
			}
		} else {
			w := x.parent.left
			if w.color == colorRed {
				w.color = colorBlack
				x.parent.color = colorRed
				l.rotateRight(x.parent)
				w = x.parent.left
			}
			if w.right.color == colorBlack && w.left.color == colorBlack {
				w.color = colorRed
				x = x.parent
			} else {
				if w.left.color == colorBlack {
					w.right.color = colorBlack
					w.color = colorRed
					l.rotateLeft(w)
					w = x.parent.left
				}
				w.color = x.parent.color
				x.parent.color = colorBlack
				w.left.color = colorBlack
				l.rotateRight(x.parent)
				x = l.root
			}
		}
	}
	x.color = colorBlack
}
