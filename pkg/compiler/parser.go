package compiler

import "strings"

// Node is one statement of the parse tree: its tokens up to the terminating
// ';' or '{', plus the statements of the '{ }' block that followed, if any.
//
//	int main() { x = 1; }
//	└─ Node{Tokens: [int main ()], Block: true}
//	   └─ Node{Tokens: [x = 1]}
type Node struct {
	Tokens   []Token
	Children []*Node
	Block    bool // true when a '{ }' block followed the tokens, even if empty
	Line     int
}

func (n *Node) empty() bool {
	return len(n.Tokens) == 0 && !n.Block
}

func (n *Node) add(tok Token) {
	if len(n.Tokens) == 0 {
		n.Line = tok.Line
	}
	n.Tokens = append(n.Tokens, tok)
}

// String renders the tree one statement per line, indented by depth.
func (n *Node) String() string {
	var sb strings.Builder
	var walk func(*Node, int)
	walk = func(n *Node, depth int) {
		for _, c := range n.Children {
			sb.WriteString(strings.Repeat("  ", depth))
			sb.WriteString(joinTokens(c.Tokens))
			if c.Block {
				sb.WriteString(" {")
			}
			sb.WriteByte('\n')
			walk(c, depth+1)
		}
	}
	walk(n, 0)
	return sb.String()
}

// Parse splits a grouped token stream into statements. Statement boundaries
// come only from ';' and blocks only from '{ }' at the current depth.
func Parse(tokens []Token) (*Node, error) {
	root := &Node{Block: true, Line: 1}
	owners := []*Node{root} // statements whose block is still open
	cur := &Node{}

	for _, tok := range tokens {
		switch {
		case tok.is(STRUCTURE, "{"):
			if cur.Line == 0 {
				cur.Line = tok.Line
			}
			cur.Block = true
			owners = append(owners, cur)
			cur = &Node{}

		case tok.is(STRUCTURE, "}"):
			if len(owners) == 1 {
				return nil, parseErrorf(tok.Line, "unexpected '}'")
			}
			owner := owners[len(owners)-1]
			if !cur.empty() {
				owner.Children = append(owner.Children, cur)
			}
			owners = owners[:len(owners)-1]
			parent := owners[len(owners)-1]
			parent.Children = append(parent.Children, owner)
			cur = &Node{}

		case tok.Type == SEMICOLON:
			if !cur.empty() {
				top := owners[len(owners)-1]
				top.Children = append(top.Children, cur)
			}
			cur = &Node{}

		default:
			cur.add(tok)
		}
	}

	if len(owners) > 1 {
		open := owners[len(owners)-1]
		return nil, parseErrorf(open.Line, "unbalanced '{': block is never closed")
	}
	if !cur.empty() {
		return nil, parseErrorf(cur.Line, "expected ';' after %s", joinTokens(cur.Tokens))
	}
	return root, nil
}
