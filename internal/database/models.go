package database

// File match flags stored in snapshot file lists.
const (
	Match   = "match"
	NoMatch = "no_match"
)

// FileRecord is one discovered file inside a weekly folder. Hash is the
// content fingerprint and is empty when the name did not match any filter.
type FileRecord struct {
	Filename           string `json:"filename"`
	Hash               string `json:"hash"`
	NamingFilter       string `json:"naming_filter"`
	DatasetFingerprint string `json:"dataset_fingerprint"`
}

// Valid reports whether both the name filter and the header fingerprint matched.
func (f FileRecord) Valid() bool {
	return f.NamingFilter == Match && f.DatasetFingerprint == Match
}

// SnapshotEntry is the scan result of one (project, data week) folder.
type SnapshotEntry struct {
	ID            int64
	SnapshotID    int64
	CreatedAt     string
	ProjectID     string
	ProjectName   string
	DataWeek      string
	FolderHash    string
	HasAnyData    bool
	HasWeeklyData bool
	Files         []FileRecord
	ValidFiles    []FileRecord
}

// Snapshot summarizes one scan.
type Snapshot struct {
	ID            int64
	CreatedAt     string
	Entries       int
	Projects      int
	WeeksWithData int
	ValidFiles    int
}

// Transform statuses.
const (
	StatusEnqueued    = "enqueued"
	StatusProcessing  = "processing"
	StatusTransformed = "transformed"
	StatusFailed      = "failed"
)

// Queue selection modes. ModeSyncReady selects transformed items whose
// sync marker is unset.
const (
	ModeEnqueued   = StatusEnqueued
	ModeProcessing = StatusProcessing
	ModeFailed     = StatusFailed
	ModeSyncReady  = "olap_sync_ready"
)

// Completion fields accepted by Complete.
const (
	FieldTransformInfo   = "transform_info"
	FieldOutputFilenames = "output_filenames"
	FieldContentWeeks    = "content_weeks"
)

// NewItem is what Push needs to enqueue a file.
type NewItem struct {
	SnapshotID  int64
	ProjectID   string
	ProjectName string
	DataWeek    string
	Filename    string
	FileHash    string
}

// QueueItem is a work queue row.
type QueueItem struct {
	ID              int64
	CreatedAt       string
	SnapshotID      int64
	ProjectID       string
	ProjectName     string
	DataWeek        string
	Filename        string
	FileHash        string
	Status          string
	TransformInfo   string
	OutputFilenames []string
	ContentWeeks    []string
	OlapSync        bool
	StartedAt       *string
	FinishedAt      *string
}

// RunReport holds the outcome of a pipeline run.
type RunReport struct {
	ID         string
	Mode       string
	DryRun     bool
	OK         bool
	StartedAt  string
	FinishedAt string
	Markdown   string
}

// QueueStats counts queue items by state.
type QueueStats struct {
	Enqueued    int
	Processing  int
	Transformed int
	Failed      int
	SyncReady   int
	Synced      int
}
