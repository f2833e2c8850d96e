package crawler

// State is a step of the per-page crawl loop
type State int

const (
	StateInit State = iota
	StateFetchPage
	StateVerifySession
	StateExtract
	StateEnqueueDrain
	StateCheckpoint
	StateHalt
	StateRecoverableError
)

var stateNames = [...]string{
	StateInit:             "init",
	StateFetchPage:        "fetch_page",
	StateVerifySession:    "verify_session",
	StateExtract:          "extract",
	StateEnqueueDrain:     "enqueue_drain",
	StateCheckpoint:       "checkpoint",
	StateHalt:             "halt",
	StateRecoverableError: "recoverable_error",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
