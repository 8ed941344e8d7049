package jobs

const (
	PermJobRead       = "job:read"
	PermJobWrite      = "job:write"
	PermJobTransition = "job:transition"
	PermJobCapture    = "job:capture"
	PermJobSubmit     = "job:submit"
)
