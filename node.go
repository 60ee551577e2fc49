package psd

import (
	"strings"
)

// Node types
const (
	NodeTypeRoot  = "root"
	NodeTypeGroup = "group"
	NodeTypeLayer = "layer"
)

// Node is an entry of the layer hierarchy. Groups are delimited in the
// layer list by section divider blocks.
type Node struct {
	Type     string
	Name     string
	Layer    *LayerInfo // nil for the root
	Parent   *Node
	Children []*Node

	Visible   bool
	Opacity   uint8
	BlendMode string
	Left      int32
	Top       int32
	Right     int32
	Bottom    int32
}

// buildTree groups layers into a hierarchy. Records are stored bottom-most
// first, so the walk runs backwards: a group's opening record comes before
// its children and the bounding divider after them.
func buildTree(layers []*LayerInfo, width, height int) *Node {
	root := &Node{
		Type:    NodeTypeRoot,
		Name:    "Root",
		Right:   int32(width),
		Bottom:  int32(height),
		Visible: true,
		Opacity: 255,
	}

	stack := []*Node{root}
	for i := len(layers) - 1; i >= 0; i-- {
		layer := layers[i]
		parent := stack[len(stack)-1]
		switch {
		case layer.IsGroupEnd():
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case layer.IsGroup():
			node := newNode(NodeTypeGroup, layer, parent)
			parent.Children = append(parent.Children, node)
			stack = append(stack, node)
		default:
			parent.Children = append(parent.Children, newNode(NodeTypeLayer, layer, parent))
		}
	}

	root.UpdateDimensions()
	return root
}

func newNode(typ string, layer *LayerInfo, parent *Node) *Node {
	return &Node{
		Type:      typ,
		Name:      layer.Name,
		Layer:     layer,
		Parent:    parent,
		Visible:   layer.Visible(),
		Opacity:   layer.BlendMode.Opacity,
		BlendMode: layer.BlendMode.ModeName(),
		Left:      layer.Left,
		Top:       layer.Top,
		Right:     layer.Right,
		Bottom:    layer.Bottom,
	}
}

// IsRoot returns whether this is the root node
func (n *Node) IsRoot() bool {
	return n.Type == NodeTypeRoot
}

// HasChildren returns whether this node has children
func (n *Node) HasChildren() bool {
	return len(n.Children) > 0
}

// Descendants returns all descendant nodes (not including this node)
func (n *Node) Descendants() []*Node {
	var result []*Node
	for _, child := range n.Children {
		result = append(result, child)
		result = append(result, child.Descendants()...)
	}
	return result
}

// DescendantLayers returns all descendant layer nodes
func (n *Node) DescendantLayers() []*Node {
	var result []*Node
	for _, node := range n.Descendants() {
		if node.Type == NodeTypeLayer {
			result = append(result, node)
		}
	}
	return result
}

// DescendantGroups returns all descendant group nodes
func (n *Node) DescendantGroups() []*Node {
	var result []*Node
	for _, node := range n.Descendants() {
		if node.Type == NodeTypeGroup {
			result = append(result, node)
		}
	}
	return result
}

// Depth returns the depth of this node in the tree (root is 0)
func (n *Node) Depth() int {
	depth := 0
	for cur := n; cur.Parent != nil; cur = cur.Parent {
		depth++
	}
	return depth
}

// Path returns the slash separated names from the root to n.
func (n *Node) Path() string {
	var parts []string
	for cur := n; cur.Parent != nil; cur = cur.Parent {
		parts = append([]string{cur.Name}, parts...)
	}
	return strings.Join(parts, "/")
}

// ChildrenAtPath finds the nodes below n matching a slash separated path.
func (n *Node) ChildrenAtPath(path string) []*Node {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return n.findAtPath(strings.Split(path, "/"))
}

func (n *Node) findAtPath(parts []string) []*Node {
	var results []*Node
	for _, child := range n.Children {
		if child.Name != parts[0] {
			continue
		}
		if len(parts) == 1 {
			results = append(results, child)
		} else {
			results = append(results, child.findAtPath(parts[1:])...)
		}
	}
	return results
}

// ToMap converts the subtree to nested maps for serialization.
func (n *Node) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"type":          n.Type,
		"name":          n.Name,
		"visible":       n.Visible,
		"opacity":       float64(n.Opacity) / 255.0,
		"blending_mode": n.BlendMode,
		"left":          n.Left,
		"top":           n.Top,
		"right":         n.Right,
		"bottom":        n.Bottom,
		"width":         n.Width(),
		"height":        n.Height(),
	}
	if n.Layer != nil {
		result["index"] = n.Layer.Index
		result["fill_opacity"] = float64(n.Layer.FillOpacity) / 255.0
		if n.Layer.LayerID != 0 {
			result["id"] = n.Layer.LayerID
		}
	}

	if len(n.Children) > 0 {
		children := make([]map[string]interface{}, len(n.Children))
		for i, child := range n.Children {
			children[i] = child.ToMap()
		}
		result["children"] = children
	}
	return result
}

// Width returns the width of the node
func (n *Node) Width() int32 {
	return n.Right - n.Left
}

// Height returns the height of the node
func (n *Node) Height() int32 {
	return n.Bottom - n.Top
}

// IsEmpty returns whether this node is empty (zero size)
func (n *Node) IsEmpty() bool {
	return n.Width() <= 0 || n.Height() <= 0
}

// UpdateDimensions recursively sets group bounds to the union of their
// non-empty children.
func (n *Node) UpdateDimensions() {
	if n.Type == NodeTypeLayer {
		return
	}
	for _, child := range n.Children {
		child.UpdateDimensions()
	}
	if n.Type == NodeTypeRoot {
		return
	}

	first := true
	n.Left, n.Top, n.Right, n.Bottom = 0, 0, 0, 0
	for _, child := range n.Children {
		if child.IsEmpty() {
			continue
		}
		if first {
			n.Left, n.Top, n.Right, n.Bottom = child.Left, child.Top, child.Right, child.Bottom
			first = false
			continue
		}
		n.Left = min(n.Left, child.Left)
		n.Top = min(n.Top, child.Top)
		n.Right = max(n.Right, child.Right)
		n.Bottom = max(n.Bottom, child.Bottom)
	}
}
