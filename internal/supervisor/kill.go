package supervisor

import (
	"github.com/shirou/gopsutil/v4/process"
)

// killTree kills pid and every descendant. Descendants are collected before
// the parent dies, since orphans are reparented and no longer reachable.
func killTree(pid int) error {
	root, err := process.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	descendants := collect(root)
	if err := root.Kill(); err != nil {
		return err
	}
	for _, p := range descendants {
		_ = p.Kill()
	}
	return nil
}

func collect(p *process.Process) []*process.Process {
	children, err := p.Children()
	if err != nil {
		return nil
	}
	out := make([]*process.Process, 0, len(children))
	for _, c := range children {
		out = append(out, c)
		out = append(out, collect(c)...)
	}
	return out
}
