package util

type RackCmdError = int

// Process exit codes shared by the rpower command and rpowerd.
const (
	ErrorSuccess RackCmdError = 0
	ErrorGeneric RackCmdError = 1
	ErrorCmdArg  RackCmdError = 2
	ErrorNetwork RackCmdError = 3
	ErrorBackend RackCmdError = 4
)
