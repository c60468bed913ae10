package riscv

// ControlFlowOp classifies a control-flow instruction, matching the
// ControlFlowOp enum in ember/uarch/mop.py.
type ControlFlowOp uint8

// Control-flow operation kinds (spec.md section 3.5 / section 4.8).
const (
	CFNone ControlFlowOp = iota
	CFBranch
	CFJumpDir
	CFJumpInd
	CFCallDir
	CFCallInd
	CFRet
)

func (op ControlFlowOp) String() string {
	switch op {
	case CFNone:
		return "NONE"
	case CFBranch:
		return "BRANCH"
	case CFJumpDir:
		return "JUMP_DIR"
	case CFJumpInd:
		return "JUMP_IND"
	case CFCallDir:
		return "CALL_DIR"
	case CFCallInd:
		return "CALL_IND"
	case CFRet:
		return "RET"
	default:
		return "UNKNOWN"
	}
}

// PDInfo is the predecode result for a single word (spec.md section 3.5).
type PDInfo struct {
	Ill      bool
	IsCF     bool
	CFOp     ControlFlowOp
	Rd       uint8
	Rs1      uint8
	Imm      int32
	Tgt      uint32
	TgtValid bool
}

// Predecode implements the single-instruction predecoder of spec.md
// section 4.8 / ember/front/predecode.py's Rv32Predecoder. It is a pure
// function of the instruction word and its own PC: Predecode(Predecode(w))
// == Predecode(w) trivially holds because the output never feeds back into
// the input (spec.md section 8.2).
func Predecode(word uint32, pc uint32) PDInfo {
	info := PDInfo{
		Ill: IsIllegal(word),
		Rd:  Rd(word),
		Rs1: Rs1(word),
	}

	readLR := info.Rs1 == LinkRegRA || info.Rs1 == LinkRegT0
	writeLR := info.Rd == LinkRegRA || info.Rd == LinkRegT0

	switch OpcodeField(word) {
	case OpcodeBranch:
		info.IsCF = true
		info.CFOp = CFBranch
		info.Imm = BSext32(word)
		info.Tgt = pc + uint32(info.Imm)
		info.TgtValid = true

	case OpcodeJAL:
		info.IsCF = true
		if writeLR {
			info.CFOp = CFCallDir
		} else {
			info.CFOp = CFJumpDir
		}
		info.Imm = JSext32(word)
		info.Tgt = pc + uint32(info.Imm)
		info.TgtValid = true

	case OpcodeJALR:
		info.IsCF = true
		switch {
		case readLR && info.Rd == 0:
			info.CFOp = CFRet
		case writeLR:
			info.CFOp = CFCallInd
		default:
			info.CFOp = CFJumpInd
		}
		info.Imm = ISext32(word)
		// Target depends on rs1's register value, unknown at predecode time.
		info.Tgt = 0
		info.TgtValid = false

	default:
		info.IsCF = false
		info.CFOp = CFNone
	}

	// An illegal encoding is never eligible to cause a resteer (spec.md
	// section 7): downstream logic must check Ill before acting on IsCF.
	return info
}

// Resteerable reports whether a control-flow op can be resolved by the
// predecoder alone (the target is computable without register values or
// prediction), per spec.md section 4.3 stage 3.
func (op ControlFlowOp) Resteerable() bool {
	switch op {
	case CFCallDir, CFJumpDir, CFRet:
		return true
	default:
		return false
	}
}

// DecodeLine predecodes every word of a cacheline, skipping words before
// startIdx (spec.md section 4.8: "only words at or after the request's
// start_idx participate; lower words are marked invalid"). blockPC is the
// cacheline-aligned base address; word i's PC is blockPC + i*4.
func DecodeLine(line []uint32, startIdx int, blockPC uint32) (info []PDInfo, valid []bool) {
	info = make([]PDInfo, len(line))
	valid = make([]bool, len(line))

	for i, word := range line {
		if i < startIdx {
			continue
		}
		wordPC := blockPC + uint32(i*4)
		info[i] = Predecode(word, wordPC)
		valid[i] = true
	}

	return info, valid
}

// FirstControlFlow returns the index of the first word in info/valid that
// is a non-illegal control-flow instruction, and whether one was found
// (spec.md section 4.3 stage 3: "priority-encode the first word that
// is_cf & ~ill").
func FirstControlFlow(info []PDInfo, valid []bool) (idx int, found bool) {
	for i := range info {
		if !valid[i] {
			continue
		}
		if info[i].IsCF && !info[i].Ill {
			return i, true
		}
	}
	return 0, false
}
