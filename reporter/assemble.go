package reporter

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Assembler turns form input into a HazardReport. It never touches storage.
type Assembler struct {
	Now      func() time.Time
	Minter   *IDMinter
	Entities []string
}

func NewAssembler(minter *IDMinter, entities []string) *Assembler {
	if minter == nil {
		minter = NewIDMinter(nil)
	}
	if len(entities) == 0 {
		entities = DefaultEntities
	}
	return &Assembler{Now: time.Now, Minter: minter, Entities: entities}
}

// Validate checks the form without side effects. Every missing required field is named.
func (a *Assembler) Validate(in FormInput) error {
	var missing []string
	area := strings.TrimSpace(in.SpecificArea)
	if area == "" {
		missing = append(missing, "specific_area")
	}
	if strings.TrimSpace(in.Description) == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	if n := utf8.RuneCountInString(area); n > MaxSpecificAreaLen {
		return &ValidationError{
			Fields: []string{"specific_area"},
			Reason: fmt.Sprintf("specific_area is %d characters, at most %d allowed", n, MaxSpecificAreaLen),
		}
	}
	if in.Photo != nil {
		if _, err := ImageExt(in.Photo.Filename); err != nil {
			return &ValidationError{Fields: []string{"photo"}, Reason: err.Error()}
		}
	}
	return nil
}

// Assemble validates in and, on success, stamps it with a creation time and a fresh report ID.
// ImagePath is left as NoImage; the submitter fills it once the photo is stored.
func (a *Assembler) Assemble(in FormInput) (HazardReport, error) {
	if err := a.Validate(in); err != nil {
		return HazardReport{}, err
	}

	now := a.Now().Truncate(time.Second)
	employee := strings.TrimSpace(in.EmployeeID)
	if employee == "" {
		employee = AnonymousEmployee
	}
	entity := strings.TrimSpace(in.Entity)
	if entity == "" {
		entity = a.Entities[0]
	}

	return HazardReport{
		ReportID:     a.Minter.Mint(now),
		CreatedAt:    now,
		EmployeeID:   employee,
		Entity:       entity,
		SpecificArea: strings.TrimSpace(in.SpecificArea),
		Urgency:      NormalizeUrgency(in.Urgency),
		Description:  strings.TrimSpace(in.Description),
		ImagePath:    NoImage,
	}, nil
}
