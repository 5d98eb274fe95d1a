package backend

// Status is the terminal classification returned by the backend for a
// scanned artifact.
type Status string

const (
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusUnknown Status = "unknown"
)

// ScanVerdict is immutable once obtained and drives the process exit code.
type ScanVerdict struct {
	Status Status
	Report []byte
}

func (v ScanVerdict) Passed() bool {
	return v.Status == StatusPass
}
