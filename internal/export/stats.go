package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Report summarizes one export run.
type Report struct {
	JobID        string        `json:"job_id"`
	Output       string        `json:"output"`
	Encoder      string        `json:"encoder"`
	Frames       int           `json:"frames"`
	Width        int           `json:"width"`
	Height       int           `json:"height"`
	Total        time.Duration `json:"total"`
	Rendering    time.Duration `json:"rendering"`
	Finalizing   time.Duration `json:"finalizing"`
	PeakRSS      uint64        `json:"peak_rss"`
	MemUsedPct   float64       `json:"mem_used_pct"`
	EffectiveFPS float64       `json:"effective_fps"`
}

// memSampler tracks the peak resident size of this process.
type memSampler struct {
	proc *process.Process
	peak uint64
}

func newMemSampler() *memSampler {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return &memSampler{}
	}
	return &memSampler{proc: proc}
}

func (s *memSampler) sample() {
	if s.proc == nil {
		return
	}
	info, err := s.proc.MemoryInfo()
	if err != nil {
		return
	}
	if info.RSS > s.peak {
		s.peak = info.RSS
	}
}

func systemMemUsed() float64 {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0
	}
	return vm.UsedPercent
}

// Print writes the human readable performance report.
func (r *Report) Print(build string) {
	fmt.Printf("--- [PERFORMANCE REPORT] ---\n"+
		"Build: %s\n"+
		"Job: %s\n"+
		"Frames: %d (%dx%d, %s)\n"+
		"Total Time: %.2fs\n"+
		"Rendering: %.2fs\n"+
		"Finalizing: %.2fs\n"+
		"Effective FPS: %.2f\n"+
		"Peak RSS: %.1f MiB | System memory used: %.1f%%\n"+
		"----------------------------\n",
		build, r.JobID, r.Frames, r.Width, r.Height, r.Encoder,
		r.Total.Seconds(), r.Rendering.Seconds(), r.Finalizing.Seconds(), r.EffectiveFPS,
		float64(r.PeakRSS)/(1<<20), r.MemUsedPct)
}

// AppendLog adds a one-line entry to the benchmark log at path.
func (r *Report) AppendLog(path, build string) error {
	entry := fmt.Sprintf("[%s] Build: %s | Output: %s | Frames: %d | Total: %.2fs | Render: %.2fs | FPS: %.2f | RSS: %.1fMiB\n",
		time.Now().Format("2006-01-02 15:04:05"),
		build,
		filepath.Base(r.Output),
		r.Frames,
		r.Total.Seconds(),
		r.Rendering.Seconds(),
		r.EffectiveFPS,
		float64(r.PeakRSS)/(1<<20),
	)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(entry)
	return err
}
