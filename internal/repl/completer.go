package repl

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/samber/lo"

	"github.com/eclair-lang/eclair-cli/internal/interp"
)

// completer suggests identifiers from the live environment plus the
// language keywords, ranked by fuzzy match.
type completer struct {
	ip *interp.Interp
}

func newCompleter(ip *interp.Interp) *completer {
	return &completer{ip: ip}
}

var keywordCandidates = []string{
	"function", "return", "if", "else", "for", "while", "break", "continue",
	"true", "false", "keccak256", "type", "format",
}

func (c *completer) candidates() []string {
	names := c.ip.Env().Names()
	all := append(append([]string{}, names...), keywordCandidates...)
	all = lo.Uniq(all)
	sort.Strings(all)
	return all
}

// Do implements readline.AutoCompleter.
func (c *completer) Do(line []rune, pos int) ([][]rune, int) {
	head := string(line[:pos])
	start := strings.LastIndexFunc(head, func(r rune) bool {
		return !isWordRune(r)
	}) + 1
	word := head[start:]
	if word == "" {
		return nil, 0
	}

	all := c.candidates()
	var out [][]rune
	if matches := fuzzy.Find(word, all); len(matches) > 0 {
		for _, match := range matches {
			candidate := all[match.Index]
			if strings.HasPrefix(candidate, word) {
				out = append(out, []rune(candidate[len(word):]))
			}
		}
	}
	return out, len(word)
}

func isWordRune(r rune) bool {
	return r == '_' || r == '$' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
