package process

import (
	"errors"

	"github.com/shirou/gopsutil/v4/process"
)

// ErrNoSuchProcess is returned by Table.Find when the PID is not running.
var ErrNoSuchProcess = errors.New("no such process")

// Proc is one entry of the process table.
type Proc interface {
	PID() int32
	Name() (string, error)
	Kill() error
	OpenFiles() ([]string, error)
}

// Table enumerates the OS process table.
type Table interface {
	Processes() ([]Proc, error)
	Find(pid int32) (Proc, error)
}

// SystemTable is the live process table, backed by gopsutil.
type SystemTable struct{}

func (SystemTable) Processes() ([]Proc, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}
	out := make([]Proc, len(procs))
	for i, p := range procs {
		out[i] = systemProc{p}
	}
	return out, nil
}

func (SystemTable) Find(pid int32) (Proc, error) {
	exists, err := process.PidExists(pid)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNoSuchProcess
	}
	p, err := process.NewProcess(pid)
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return nil, ErrNoSuchProcess
		}
		return nil, err
	}
	return systemProc{p}, nil
}

type systemProc struct {
	p *process.Process
}

func (s systemProc) PID() int32 { return s.p.Pid }

func (s systemProc) Name() (string, error) { return s.p.Name() }

func (s systemProc) Kill() error { return s.p.Kill() }

func (s systemProc) OpenFiles() ([]string, error) {
	files, err := s.p.OpenFiles()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out, nil
}
