package reporter

import "time"

// NoImage is written to the ImagePath column when no photo was attached.
const NoImage = "N/A"

// AnonymousEmployee is stored when the submitter leaves the employee ID blank.
const AnonymousEmployee = "Anonymous"

// MaxSpecificAreaLen matches the form's max_chars on the area/machine field.
const MaxSpecificAreaLen = 100

// Columns is the exact header row of the reports log.
var Columns = []string{
	"ReportID", "Timestamp", "EmployeeID", "Entity",
	"SpecificArea", "Urgency", "Description", "ImagePath",
}

// TimestampLayout formats the Timestamp column.
const TimestampLayout = "2006-01-02 15:04:05"

// DefaultEntities are the locations offered by the form. The last one is the open choice.
var DefaultEntities = []string{
	"BCF (Biscuit Company)",
	"Flour Mill",
	"Feed Mill",
	"Corporate Office",
	"Warehouse",
	"Other",
}

// HazardReport is one row of the reports log. It is never modified once appended.
type HazardReport struct {
	ReportID     string
	CreatedAt    time.Time
	EmployeeID   string
	Entity       string
	SpecificArea string
	Urgency      string
	Description  string
	ImagePath    string
}

// Row returns the CSV fields in Columns order.
func (r HazardReport) Row() []string {
	return []string{
		r.ReportID,
		r.CreatedAt.Format(TimestampLayout),
		r.EmployeeID,
		r.Entity,
		r.SpecificArea,
		r.Urgency,
		r.Description,
		r.ImagePath,
	}
}

// HasImage reports whether the record links to a stored photo.
func (r HazardReport) HasImage() bool {
	return r.ImagePath != "" && r.ImagePath != NoImage
}

// Photo is an uploaded image together with the name it had on the client.
type Photo struct {
	Filename string
	Data     []byte
}

// FormInput is what the form posts. Photo is nil when nothing was attached.
type FormInput struct {
	EmployeeID   string
	Entity       string
	SpecificArea string
	Description  string
	Urgency      string
	Photo        *Photo
}

// ReportIndex mirrors appended rows into SQLite for ID and duplicate bookkeeping.
// The CSV log stays the record of truth.
type ReportIndex struct {
	ID          uint      `gorm:"primaryKey"`
	ReportID    string    `gorm:"uniqueIndex;size:64"`
	CreatedAt   time.Time `gorm:"index"`
	Entity      string    `gorm:"index;size:128"`
	Urgency     string    `gorm:"index;size:16"`
	ImagePath   string    `gorm:"size:1024"`
	ContentHash string    `gorm:"index;size:64"`
	IndexedAt   time.Time
}
