package importance

// Probe reads runtime signals of live processes. Every call may be slow and
// may fail; the monitor treats failures as "retry next cycle".
type Probe interface {
	FocusedProcess() (int32, bool)
	Parent(pid int32) (int32, bool)
	Exists(pid int32) bool
	Processes() ([]int32, error)
	Describe(pid int32) (name, cmdline string, err error)

	CPUPercent(pid int32) (float64, error)
	MemoryKB(pid int32) (int64, error)
	ProducingAudio(pid int32) bool
	UsingGPU(pid int32) bool
	UsingNetwork(pid int32) bool
	SystemService(pid int32) bool
	MemoryPressure() bool
}

// Enforcer applies class decisions to the operating system. It never sees
// a TrackedProcess, only identifiers and values.
type Enforcer interface {
	Setup(groups []string) error
	AssignGroup(group string, pid int32) error
	SetKillPriority(pid int32, value int) error
	Launch(argv []string) (int32, error)
	Terminate(pid int32) error
}
