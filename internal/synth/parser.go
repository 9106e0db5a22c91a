package synth

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"
)

// ErrNotGenerated is returned by Parse for Go files droidrec did not write.
var ErrNotGenerated = errors.New("not a droidrec test file")

// Parse reads a generated test file back into its Module. Segment labels
// are the test function names without the Test_ prefix.
func Parse(src []byte) (*Module, error) {
	if !strings.HasPrefix(string(src), Header) {
		return nil, ErrNotGenerated
	}
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", src, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to parse test file: %w", err)
	}

	m := &Module{}
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			if d.Tok != token.CONST {
				continue
			}
			for _, spec := range d.Specs {
				vs, ok := spec.(*ast.ValueSpec)
				if !ok || len(vs.Names) != 1 || len(vs.Values) != 1 {
					continue
				}
				v, ok := stringLit(vs.Values[0])
				if !ok {
					continue
				}
				switch vs.Names[0].Name {
				case "appPackage":
					m.Package = v
				case "launcher":
					m.Launcher = v
				}
			}
		case *ast.FuncDecl:
			label, ok := strings.CutPrefix(d.Name.Name, "Test_")
			if !ok || d.Body == nil {
				continue
			}
			seg := Segment{Label: label}
			for _, stmt := range d.Body.List {
				if line, ok := doLine(stmt); ok {
					seg.Lines = append(seg.Lines, line)
				}
			}
			m.Segments = append(m.Segments, seg)
		}
	}
	return m, nil
}

// doLine extracts the argument of a `d.Do("...")` statement.
func doLine(stmt ast.Stmt) (string, bool) {
	es, ok := stmt.(*ast.ExprStmt)
	if !ok {
		return "", false
	}
	call, ok := es.X.(*ast.CallExpr)
	if !ok || len(call.Args) != 1 {
		return "", false
	}
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != "Do" {
		return "", false
	}
	return stringLit(call.Args[0])
}

func stringLit(e ast.Expr) (string, bool) {
	lit, ok := e.(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return "", false
	}
	s, err := strconv.Unquote(lit.Value)
	if err != nil {
		return "", false
	}
	return s, true
}
