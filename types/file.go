package types

import "time"

// File categories recognized by the listing filters and the space report.
const (
	FileTypeDocument = "document"
	FileTypeImage    = "image"
	FileTypeVideo    = "video"
	FileTypeAudio    = "audio"
	FileTypeOther    = "other"
)

// File is the metadata record for an uploaded object. The bytes live in
// object storage under BucketFileID; this row is what listings filter over.
type File struct {
	ID           string    `json:"id" db:"id"`
	OwnerID      string    `json:"ownerId" db:"owner_id"`
	AccountID    string    `json:"accountId" db:"account_id"`
	Name         string    `json:"name" db:"name"`
	Extension    string    `json:"extension" db:"extension"`
	Type         string    `json:"type" db:"type"`
	Size         int64     `json:"size" db:"size"`
	URL          string    `json:"url" db:"url"`
	BucketFileID string    `json:"bucketFileId" db:"bucket_file_id"`

	// SharedWith carries the emails the owner shared the file with. It is
	// presentation-layer data; the visibility predicate does not consult it.
	SharedWith []string `json:"users" db:"shared_with"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// FileQuery captures the caller-supplied listing parameters. The requester's
// keyword restriction is applied on top of these, never instead of them.
type FileQuery struct {
	Types      []string
	SearchText string
	SortField  string
	SortAsc    bool
	Limit      int
}

// TypeSummary aggregates usage for one file category.
type TypeSummary struct {
	Size       int64      `json:"size"`
	LatestDate *time.Time `json:"latestDate"`
}

// SpaceSummary reports per-category usage against the overall budget.
type SpaceSummary struct {
	Document TypeSummary `json:"document"`
	Image    TypeSummary `json:"image"`
	Video    TypeSummary `json:"video"`
	Audio    TypeSummary `json:"audio"`
	Other    TypeSummary `json:"other"`
	Used     int64       `json:"used"`
	All      int64       `json:"all"`
}

// TotalSpaceBudget is the overall bucket size reported to the dashboard.
const TotalSpaceBudget = 2 << 30
