package rbtree

type color uint8

const (
	red   color = 0
	black color = 1
)

// Node is an entry of a Tree. A node belongs to the tree that created it
// until it is removed.
type Node[V any] struct {
	key    int64
	Value  V
	color  color
	left   *Node[V]
	right  *Node[V]
	parent *Node[V]
}

// Key returns the ordering key the node was inserted with.
func (n *Node[V]) Key() int64 { return n.key }

type Tree[V any] struct {
	root *Node[V]
	nil  *Node[V] // sentinel (black)
	size int
}

// New constructs an empty tree with a black sentinel.
func New[V any]() *Tree[V] {
	nilNode := &Node[V]{color: black}
	return &Tree[V]{
		root: nilNode,
		nil:  nilNode,
	}
}

func (t *Tree[V]) Len() int { return t.size }

func (t *Tree[V]) Empty() bool { return t.size == 0 }

// Insert adds value under key and returns the new node with inserted true.
// When key is already present the tree is left unchanged and the existing
// node is returned with inserted false.
func (t *Tree[V]) Insert(key int64, value V) (n *Node[V], inserted bool) {
	y := t.nil
	x := t.root
	for x != t.nil {
		y = x
		if key < x.key {
			x = x.left
		} else if key > x.key {
			x = x.right
		} else {
			return x, false
		}
	}

	z := &Node[V]{
		key:    key,
		Value:  value,
		color:  red,
		left:   t.nil,
		right:  t.nil,
		parent: y,
	}

	if y == t.nil {
		t.root = z
	} else if key < y.key {
		y.left = z
	} else {
		y.right = z
	}
	t.insertFixup(z)
	t.size++
	return z, true
}

func (t *Tree[V]) Find(key int64) *Node[V] {
	n := t.root
	for n != t.nil {
		if key < n.key {
			n = n.left
		} else if key > n.key {
			n = n.right
		} else {
			return n
		}
	}
	return nil
}

// PFind returns the node matching key or, when there is none, the node that
// would become the parent of key on insertion. It returns nil only when the
// tree is empty.
func (t *Tree[V]) PFind(key int64) *Node[V] {
	n := t.root
	p := t.nil
	for n != t.nil {
		p = n
		if key < n.key {
			n = n.left
		} else if key > n.key {
			n = n.right
		} else {
			return n
		}
	}
	return t.out(p)
}

// NFind returns the node with the smallest key >= key.
func (t *Tree[V]) NFind(key int64) *Node[V] {
	n := t.root
	res := t.nil
	for n != t.nil {
		if key <= n.key {
			res = n
			if key == n.key {
				break
			}
			n = n.left
		} else {
			n = n.right
		}
	}
	return t.out(res)
}

// Remove detaches n from the tree. n must belong to t.
func (t *Tree[V]) Remove(n *Node[V]) {
	t.deleteNode(n)
	n.left, n.right, n.parent = nil, nil, nil
	t.size--
}

func (t *Tree[V]) First() *Node[V] { return t.out(t.minNode(t.root)) }

func (t *Tree[V]) Last() *Node[V] { return t.out(t.maxNode(t.root)) }

// Next returns the in-order successor of n, or nil at the end.
func (t *Tree[V]) Next(n *Node[V]) *Node[V] {
	if n.right != t.nil {
		return t.minNode(n.right)
	}
	p := n.parent
	for p != t.nil && n == p.right {
		n = p
		p = p.parent
	}
	return t.out(p)
}

// Prev returns the in-order predecessor of n, or nil at the beginning.
func (t *Tree[V]) Prev(n *Node[V]) *Node[V] {
	if n.left != t.nil {
		return t.maxNode(n.left)
	}
	p := n.parent
	for p != t.nil && n == p.left {
		n = p
		p = p.parent
	}
	return t.out(p)
}

// Ascend calls fn for each node in key order until fn returns false.
// fn must not insert into or remove from the tree.
func (t *Tree[V]) Ascend(fn func(*Node[V]) bool) {
	for n := t.First(); n != nil; n = t.Next(n) {
		if !fn(n) {
			return
		}
	}
}

// Clear resets the tree without visiting its nodes.
func (t *Tree[V]) Clear() {
	t.root = t.nil
	t.size = 0
}

/******************** Internal helpers ********************/

func (t *Tree[V]) out(n *Node[V]) *Node[V] {
	if n == t.nil {
		return nil
	}
	return n
}

func (t *Tree[V]) minNode(n *Node[V]) *Node[V] {
	if n == t.nil {
		return t.nil
	}
	for n.left != t.nil {
		n = n.left
	}
	return n
}

func (t *Tree[V]) maxNode(n *Node[V]) *Node[V] {
	if n == t.nil {
		return t.nil
	}
	for n.right != t.nil {
		n = n.right
	}
	return n
}

func (t *Tree[V]) leftRotate(x *Node[V]) {
	y := x.right
	x.right = y.left
	if y.left != t.nil {
		y.left.parent = x
	}
	y.parent = x.parent
	if x.parent == t.nil {
		t.root = y
	} else if x == x.parent.left {
		x.parent.left = y
	} else {
		x.parent.right = y
	}
	y.left = x
	x.parent = y
}

func (t *Tree[V]) rightRotate(y *Node[V]) {
	x := y.left
	y.left = x.right
	if x.right != t.nil {
		x.right.parent = y
	}
	x.parent = y.parent
	if y.parent == t.nil {
		t.root = x
	} else if y == y.parent.right {
		y.parent.right = x
	} else {
		y.parent.left = x
	}
	x.right = y
	y.parent = x
}

func (t *Tree[V]) insertFixup(z *Node[V]) {
	for z.parent.color == red {
		if z.parent == z.parent.parent.left {
			y := z.parent.parent.right
			if y.color == red {
				z.parent.color = black
				y.color = black
				z.parent.parent.color = red
				z = z.parent.parent
			} else {
				if z == z.parent.right {
					z = z.parent
					t.leftRotate(z)
				}
				z.parent.color = black
				z.parent.parent.color = red
				t.rightRotate(z.parent.parent)
			}
		} else {
			y := z.parent.parent.left
			if y.color == red {
				z.parent.color = black
				y.color = black
				z.parent.parent.color = red
				z = z.parent.parent
			} else {
				if z == z.parent.left {
					z = z.parent
					t.rightRotate(z)
				}
				z.parent.color = black
				z.parent.parent.color = red
				t.leftRotate(z.parent.parent)
			}
		}
	}
	t.root.color = black
}

func (t *Tree[V]) transplant(u, v *Node[V]) {
	if u.parent == t.nil {
		t.root = v
	} else if u == u.parent.left {
		u.parent.left = v
	} else {
		u.parent.right = v
	}
	v.parent = u.parent
}

func (t *Tree[V]) deleteNode(z *Node[V]) {
	y := z
	yOrigColor := y.color
	var x *Node[V]

	if z.left == t.nil {
		x = z.right
		t.transplant(z, z.right)
	} else if z.right == t.nil {
		x = z.left
		t.transplant(z, z.left)
	} else {
		y = t.minNode(z.right)
		yOrigColor = y.color
		x = y.right
		if y.parent == z {
			x.parent = y
		} else {
			t.transplant(y, y.right)
			y.right = z.right
			y.right.parent = y
		}
		t.transplant(z, y)
		y.left = z.left
		y.left.parent = y
		y.color = z.color
	}

	if yOrigColor == black {
		t.deleteFixup(x)
	}
}

func (t *Tree[V]) deleteFixup(x *Node[V]) {
	for x != t.root && x.color == black {
		if x == x.parent.left {
			w := x.parent.right
			if w.color == red {
				w.color = black
				x.parent.color = red
				t.leftRotate(x.parent)
				w = x.parent.right
			}
			if w.left.color == black && w.right.color == black {
				w.color = red
				x = x.parent
			} else {
				if w.right.color == black {
					w.left.color = black
					w.color = red
					t.rightRotate(w)
					w = x.parent.right
				}
				w.color = x.parent.color
				x.parent.color = black
				w.right.color = black
				t.leftRotate(x.parent)
				x = t.root
			}
		} else {
			w := x.parent.left
			if w.color == red {
				w.color = black
				x.parent.color = red
				t.rightRotate(x.parent)
				w = x.parent.left
			}
			if w.right.color == black && w.left.color == black {
				w.color = red
				x = x.parent
			} else {
				if w.left.color == black {
					w.right.color = black
					w.color = red
					t.leftRotate(w)
					w = x.parent.left
				}
				w.color = x.parent.color
				x.parent.color = black
				w.left.color = black
				t.rightRotate(x.parent)
				x = t.root
			}
		}
	}
	x.color = black
}
