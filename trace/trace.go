// Package trace loads memory operation traces.
//
// A trace is a text file with one operation per line:
//
//	L  <addr> <size> [<addr> <size> ...]   load
//	S  <addr> <size> [<addr> <size> ...]   store
//	LS <addr> <size> [<addr> <size> ...]   combined load and store
//	LB [<addr> <size> ...]                 load barrier
//	SB [<addr> <size> ...]                 store barrier
//
// Addresses and sizes accept decimal or 0x-prefixed hex. Additional
// address/size pairs on a line bundle into one compound access. Lines
// starting with '#' and blank lines are skipped.
//
// Loading a trace produces the instruction stream plus a metadata registry
// holding one memory access per instruction that names at least one range.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sarchlab/oosim/insts"
	"github.com/sarchlab/oosim/metadata"
	"github.com/sarchlab/oosim/timing/lsu"
)

// Program is a parsed trace.
type Program struct {
	// Instructions is the operation stream in program order.
	Instructions []*insts.Instruction
	// Registry holds the memory-access metadata for the instructions.
	Registry *metadata.Registry
}

// Load reads a trace from a file.
func Load(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	defer f.Close()

	prog, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return prog, nil
}

// Parse reads a trace from a reader.
func Parse(r io.Reader) (*Program, error) {
	prog := &Program{
		Registry: metadata.NewRegistry(),
	}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		inst, ma, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		inst.SourceIndex = len(prog.Instructions)
		if ma != nil {
			token := uint32(inst.SourceIndex)
			prog.Registry.Put(metadata.CategoryLSUMemAccess, token, ma)
			inst.SetMetadataToken(token)
		}
		prog.Instructions = append(prog.Instructions, inst)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}

	return prog, nil
}

func parseLine(line string) (*insts.Instruction, *lsu.MemoryAccess, error) {
	fields := strings.Fields(line)
	op := strings.ToUpper(fields[0])

	inst := &insts.Instruction{}
	maIsStore := false
	switch op {
	case "L":
		inst.Desc.MayLoad = true
	case "S":
		inst.Desc.MayStore = true
		maIsStore = true
	case "LS":
		inst.Desc.MayLoad = true
		inst.Desc.MayStore = true
		maIsStore = true
	case "LB":
		inst.Desc.MayLoad = true
		inst.IsLoadBarrier = true
	case "SB":
		inst.Desc.MayStore = true
		inst.IsStoreBarrier = true
		maIsStore = true
	default:
		return nil, nil, fmt.Errorf("unknown operation %q", fields[0])
	}

	operands := fields[1:]
	if len(operands)%2 != 0 {
		return nil, nil, fmt.Errorf("operands must come in address/size pairs")
	}
	if (op == "L" || op == "S" || op == "LS") && len(operands) == 0 {
		return nil, nil, fmt.Errorf("%s requires at least one address/size pair", op)
	}

	var ma *lsu.MemoryAccess
	for i := 0; i < len(operands); i += 2 {
		addr, err := strconv.ParseUint(operands[i], 0, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("bad address %q: %w", operands[i], err)
		}
		size, err := strconv.ParseUint(operands[i+1], 0, 32)
		if err != nil {
			return nil, nil, fmt.Errorf("bad size %q: %w", operands[i+1], err)
		}
		if size == 0 {
			return nil, nil, fmt.Errorf("size must be > 0")
		}

		if ma == nil {
			ma = lsu.NewMemoryAccess(maIsStore, addr, uint32(size))
		} else {
			ma.Append(maIsStore, addr, uint32(size))
		}
	}

	return inst, ma, nil
}
