package fs

// Status folds a result into the value returned to user space: n on
// success and -1 on any failure.
func Status(n int64, err error) int64 {
	if err != nil {
		return -1
	}
	return n
}
