package errors

import (
	"github.com/kr/pretty"

	"github.com/cwbudde/go-sdpl/internal/pdv"
)

// DumpPDV renders a PDV snapshot with kr/pretty's %#v-style formatter, used
// by `sdpl run --trace` to log the final variable bindings of each DATA
// step and by test failure output that needs a readable diff.
func DumpPDV(p *pdv.PDV) string {
	var out []string
	for _, s := range p.Slots() {
		idx, _ := p.Lookup(s.Name)
		out = append(out, s.Name+" = "+pretty.Sprint(p.Get(idx)))
	}
	joined := ""
	for i, s := range out {
		if i > 0 {
			joined += "\n"
		}
		joined += s
	}
	return joined
}
