package pcapfile

import (
	"fmt"

	"golang.org/x/net/bpf"
)

// udpDstPortProgram matches untagged Ethernet/IPv4 frames carrying an
// unfragmented UDP datagram addressed to port.
func udpDstPortProgram(port uint16) []bpf.Instruction {
	return []bpf.Instruction{
		bpf.LoadAbsolute{Off: 12, Size: 2},                          // ethertype
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x0800, SkipFalse: 8},  // IPv4
		bpf.LoadAbsolute{Off: 23, Size: 1},                          // IP protocol
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 17, SkipFalse: 6},      // UDP
		bpf.LoadAbsolute{Off: 20, Size: 2},                          // flags + fragment offset
		bpf.JumpIf{Cond: bpf.JumpBitsSet, Val: 0x1fff, SkipTrue: 4}, // not a later fragment
		bpf.LoadMemShift{Off: 14},                                   // X = IP header length
		bpf.LoadIndirect{Off: 16, Size: 2},                          // UDP dst port
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(port), SkipFalse: 1},
		bpf.RetConstant{Val: 0x40000},
		bpf.RetConstant{Val: 0},
	}
}

// portFilter runs the prefilter in user space over captured link-layer frames.
type portFilter struct {
	vm *bpf.VM
}

func newPortFilter(port uint16) (*portFilter, error) {
	vm, err := bpf.NewVM(udpDstPortProgram(port))
	if err != nil {
		return nil, fmt.Errorf("failed to load BPF filter: %w", err)
	}
	return &portFilter{vm: vm}, nil
}

// match reports whether frame passes the filter. Frames too short for the
// program are rejected.
func (f *portFilter) match(frame []byte) bool {
	n, err := f.vm.Run(frame)
	return err == nil && n > 0
}
