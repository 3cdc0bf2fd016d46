package refstore

import (
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// treeNode is an intermediate representation used to fold a flat list
// of full-path tree entries (what threeWayMerge produces, one entry per
// blob regardless of directory depth) back into go-git's nested tree
// object format.
type treeNode struct {
	mode     filemode.FileMode
	oid      OID
	children map[string]*treeNode
}

// nestTree takes a synthetic flat tree (entries named by full path, as
// object.Tree.Files() would enumerate them) and writes the real, nested
// tree objects git expects, returning the root tree's OID.
func nestTree(store *Store, flat *object.Tree) (OID, error) {
	root := &treeNode{children: map[string]*treeNode{}}
	for _, e := range flat.Entries {
		parts := strings.Split(e.Name, "/")
		cur := root
		for i, part := range parts {
			if i == len(parts)-1 {
				cur.children[part] = &treeNode{mode: e.Mode, oid: e.Hash}
				continue
			}
			child, ok := cur.children[part]
			if !ok || child.children == nil {
				child = &treeNode{mode: filemode.Dir, children: map[string]*treeNode{}}
				cur.children[part] = child
			}
			cur = child
		}
	}
	return writeTreeNode(store, root)
}

func writeTreeNode(store *Store, n *treeNode) (OID, error) {
	if n.children == nil {
		return n.oid, nil
	}
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)

	tree := &object.Tree{}
	for _, name := range names {
		child := n.children[name]
		oid, err := writeTreeNode(store, child)
		if err != nil {
			return ZeroOID, err
		}
		mode := child.mode
		if child.children != nil {
			mode = filemode.Dir
		}
		tree.Entries = append(tree.Entries, object.TreeEntry{Name: name, Mode: mode, Hash: oid})
	}

	obj := store.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.TreeObject)
	if err := tree.Encode(obj); err != nil {
		return ZeroOID, err
	}
	return store.repo.Storer.SetEncodedObject(obj)
}
