package editor

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"golang.org/x/tools/go/ast/astutil"
)

// GoStructure is a StructureService over a parsed Go source file.
type GoStructure struct {
	fset *token.FileSet
	file *ast.File
	tf   *token.File
}

// ParseGo parses src. Files with syntax errors still yield a structure as
// long as the parser recovered a file node.
func ParseGo(path string, src []byte) (*GoStructure, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, path, src, parser.ParseComments|parser.AllErrors)
	if f == nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	tf := fset.File(f.Package)
	if tf == nil {
		return nil, fmt.Errorf("failed to parse %s: no file position information", path)
	}
	return &GoStructure{fset: fset, file: f, tf: tf}, nil
}

type goElement struct {
	node ast.Node
}

func (e goElement) Text() string {
	switch n := e.node.(type) {
	case *ast.Ident:
		return n.Name
	case *ast.BasicLit:
		return n.Value
	case *ast.Comment:
		return n.Text
	}
	return ""
}

func (e goElement) Kind() string { return nodeKind(e.node) }

func nodeKind(n ast.Node) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", n), "*ast.")
}

func nodeLabel(n ast.Node) string {
	kind := nodeKind(n)
	var name string
	switch n := n.(type) {
	case *ast.Ident:
		name = n.Name
	case *ast.FuncDecl:
		name = n.Name.Name
	case *ast.TypeSpec:
		name = n.Name.Name
	case *ast.BasicLit:
		name = n.Value
	case *ast.SelectorExpr:
		name = n.Sel.Name
	}
	if name == "" {
		return kind
	}
	return kind + ":" + name
}

// ElementAt returns the innermost node covering the character at offset.
func (g *GoStructure) ElementAt(offset int) (Element, bool) {
	if offset < 0 || offset >= g.tf.Size() {
		return nil, false
	}
	pos := g.tf.Pos(offset)
	if pos < g.file.Pos() {
		// leading comments before the package clause
		for _, cg := range g.file.Comments {
			for _, c := range cg.List {
				if c.Pos() <= pos && pos < c.End() {
					return goElement{node: c}, true
				}
			}
		}
		return nil, false
	}
	path, _ := astutil.PathEnclosingInterval(g.file, pos, pos+1)
	if len(path) == 0 {
		return nil, false
	}
	return goElement{node: path[0]}, true
}

// AncestorsOf walks from e up to, but not including, the file node.
func (g *GoStructure) AncestorsOf(e Element) []Ancestor {
	ge, ok := e.(goElement)
	if !ok {
		return nil
	}
	if _, isComment := ge.node.(*ast.Comment); isComment {
		return []Ancestor{g.ancestor(ge.node)}
	}
	path, _ := astutil.PathEnclosingInterval(g.file, ge.node.Pos(), ge.node.End())
	out := make([]Ancestor, 0, len(path))
	for _, n := range path {
		if _, isFile := n.(*ast.File); isFile {
			break
		}
		out = append(out, g.ancestor(n))
	}
	return out
}

func (g *GoStructure) ancestor(n ast.Node) Ancestor {
	return Ancestor{
		Label:       nodeLabel(n),
		StartOffset: g.tf.Offset(n.Pos()),
		EndOffset:   g.tf.Offset(n.End()),
	}
}
