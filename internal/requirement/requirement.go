package requirement

// Kind is the requirement type as it appears on the wire.
type Kind string

const (
	KindFunctional    Kind = "F"
	KindNonFunctional Kind = "NF"
)

// IssueType maps a kind to the Jira issue type it is imported as.
func (k Kind) IssueType() string {
	if k == KindFunctional {
		return "Story"
	}
	return "Task"
}

// MoSCoW is the prioritization bucket as it appears on the wire.
type MoSCoW string

const (
	MustHave   MoSCoW = "M"
	ShouldHave MoSCoW = "S"
	CouldHave  MoSCoW = "C"
	WontHave   MoSCoW = "W"
)

// Label returns the human-readable bucket name.
func (m MoSCoW) Label() string {
	switch m {
	case MustHave:
		return "Must"
	case ShouldHave:
		return "Should"
	case CouldHave:
		return "Could"
	case WontHave:
		return "Won't"
	default:
		return "-"
	}
}

// Status is the lifecycle state of a requirement version.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusApproved   Status = "approved"
	StatusDeprecated Status = "deprecated"
)

// Version is one immutable revision of a logical requirement.
type Version struct {
	// Number is derived by the store: 1 for the first version, then max+1.
	Number int `json:"versionNumber"`

	// AuthorID is the user who created this version (nullable for system writes)
	AuthorID *string `json:"userId,omitempty"`

	// CreatedAt is the Unix timestamp of the version
	CreatedAt int64 `json:"timestamp"`

	Feature       string  `json:"feature"`
	Description   *string `json:"description,omitempty"`
	Kind          Kind    `json:"type,omitempty"`
	Priority      *int    `json:"priority,omitempty"`
	MoSCoW        *MoSCoW `json:"moscow,omitempty"`
	Notes         *string `json:"notes,omitempty"`
	Status        Status  `json:"status"`
	SourceInputID *string `json:"sourceInputId,omitempty"`
}

// Draft is the caller-supplied content of a new version. It has no version
// number: numbers are always assigned by the store.
type Draft struct {
	AuthorID      *string `json:"userId,omitempty"`
	Feature       string  `json:"feature"`
	Description   *string `json:"description,omitempty"`
	Kind          Kind    `json:"type,omitempty"`
	Priority      *int    `json:"priority,omitempty"`
	MoSCoW        *MoSCoW `json:"moscow,omitempty"`
	Notes         *string `json:"notes,omitempty"`
	Status        Status  `json:"status,omitempty"`
	SourceInputID *string `json:"sourceInputId,omitempty"`
}

// ToVersion stamps a validated draft with its number and creation time.
func (d Draft) ToVersion(number int, createdAt int64) Version {
	status := d.Status
	if status == "" {
		status = StatusDraft
	}
	return Version{
		Number:        number,
		AuthorID:      d.AuthorID,
		CreatedAt:     createdAt,
		Feature:       d.Feature,
		Description:   d.Description,
		Kind:          d.Kind,
		Priority:      d.Priority,
		MoSCoW:        d.MoSCoW,
		Notes:         d.Notes,
		Status:        status,
		SourceInputID: d.SourceInputID,
	}
}

// Requirement is a logical requirement: a stable identity within a project
// and its append-only version history.
type Requirement struct {
	// ID is a ULID assigned at creation
	ID string

	// ProjectID is the owning project; the only key requirements are queried by
	ProjectID string

	// Versions in insertion order
	Versions []Version

	CreatedAt int64
	UpdatedAt int64
}

// LatestVersionNumber is the highest version number, or 0 without versions.
func (r *Requirement) LatestVersionNumber() int {
	v, ok := LatestVersion(r.Versions)
	if !ok {
		return 0
	}
	return v.Number
}

// Latest returns the version with the highest number.
func (r *Requirement) Latest() (Version, bool) {
	return LatestVersion(r.Versions)
}

// LatestVersion picks the version with the highest number regardless of the
// order of the slice. Ties resolve to the first occurrence.
func LatestVersion(versions []Version) (Version, bool) {
	if len(versions) == 0 {
		return Version{}, false
	}
	best := versions[0]
	for _, v := range versions[1:] {
		if v.Number > best.Number {
			best = v
		}
	}
	return best, true
}

// Project groups requirements, batches and exports under one owner.
type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	OwnerUserID string `json:"ownerUserId"`
	CreatedAt   int64  `json:"createdAt"`
	UpdatedAt   int64  `json:"updatedAt"`
}
