package gitx

import "strings"

// WorktreeCounts summarizes the output of `git status --porcelain=v1`.
type WorktreeCounts struct {
	Staged    int
	Unstaged  int
	Untracked int
}

// Dirty reports whether the working tree has any local modifications.
func (w WorktreeCounts) Dirty() bool {
	return w.Staged > 0 || w.Unstaged > 0 || w.Untracked > 0
}

// ParsePorcelainStatus parses the output of `git status --porcelain=v1`.
func ParsePorcelainStatus(output string) WorktreeCounts {
	var wt WorktreeCounts
	for _, line := range strings.Split(output, "\n") {
		if len(line) < 2 {
			continue
		}
		x := line[0]
		y := line[1]

		if x == '?' && y == '?' {
			wt.Untracked++
			continue
		}
		if x != ' ' && x != '?' {
			wt.Staged++
		}
		if y != ' ' && y != '?' {
			wt.Unstaged++
		}
	}
	return wt
}
