package splunk

// Status is the lifecycle state of a search job as the bot sees it.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Row is one result row. Splunk can return multivalue fields, so the
// values stay untyped.
type Row map[string]any

// Job is the outcome of one search: the SID Splunk assigned, the final
// status and the (capped) result rows.
type Job struct {
	Search string
	SID    string
	Status Status
	Rows   []Row
}

type loginResponse struct {
	SessionKey string `json:"sessionKey"`
}

type createJobResponse struct {
	SID string `json:"sid"`
}

type jobStatusResponse struct {
	Entry []jobEntry `json:"entry"`
}

type jobEntry struct {
	Name    string     `json:"name"`
	ID      string     `json:"id"`
	Content jobContent `json:"content"`
}

type jobContent struct {
	IsDone        bool    `json:"isDone"`
	IsFailed      bool    `json:"isFailed"`
	DispatchState string  `json:"dispatchState"`
	DoneProgress  float64 `json:"doneProgress"`
	ResultCount   int     `json:"resultCount"`
}

type resultsResponse struct {
	Preview    bool  `json:"preview"`
	InitOffset int   `json:"init_offset"`
	Results    []Row `json:"results"`
}
