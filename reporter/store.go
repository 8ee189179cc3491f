package reporter

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func OpenDB(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&ReportIndex{}); err != nil {
		return nil, err
	}
	return db, nil
}

// Index is the SQLite side index of appended reports.
type Index struct {
	db      *gorm.DB
	hashLen int
}

func NewIndex(db *gorm.DB) *Index {
	return &Index{db: db, hashLen: 24}
}

// Exists reports whether id was already indexed. Lookup errors are logged and count as
// "not found"; the image store still refuses to replace an existing photo.
func (x *Index) Exists(id string) bool {
	var n int64
	if err := x.db.Model(&ReportIndex{}).Where("report_id = ?", id).Count(&n).Error; err != nil {
		log.Printf("index lookup id=%s failed: %v", id, err)
		return false
	}
	return n > 0
}

// Record indexes an appended report and returns the IDs of earlier reports with the same
// normalized description at the same entity and area.
func (x *Index) Record(r HazardReport) ([]string, error) {
	hash := HashNormalized(NormalizeText(r.Entity+" "+r.SpecificArea+" "+r.Description), x.hashLen)

	var dups []string
	if err := x.db.Model(&ReportIndex{}).Where("content_hash = ?", hash).Order("id asc").Pluck("report_id", &dups).Error; err != nil {
		return nil, err
	}

	row := ReportIndex{
		ReportID:    r.ReportID,
		CreatedAt:   r.CreatedAt,
		Entity:      r.Entity,
		Urgency:     r.Urgency,
		ImagePath:   r.ImagePath,
		ContentHash: hash,
		IndexedAt:   time.Now().UTC(),
	}
	if err := x.db.Create(&row).Error; err != nil {
		return dups, err
	}
	return dups, nil
}

func (x *Index) Close() error {
	if x == nil || x.db == nil {
		return nil
	}
	sqlDB, err := x.db.DB()
	if err != nil {
		return err
	}
	err = sqlDB.Close()
	x.db = nil
	return err
}
