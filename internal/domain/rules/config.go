// Package rules implements the deterministic business-rule filter applied to
// ranked session recommendations.
package rules

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Stage names one filter stage.
type Stage string

const (
	StagePracticeType Stage = "practice_type"
	StageRole         Stage = "role"
)

// Config holds every keyword list the filter consults. Lists are matched
// case-insensitively as substrings of the candidate's stream field.
type Config struct {
	// Priority is the order in which stages run. Stages not listed are skipped.
	Priority []Stage `koanf:"priority" validate:"dive,oneof=practice_type role"`

	// EquineMixedTriggers select the equine/mixed branch of the practice stage.
	EquineMixedTriggers []string `koanf:"equine_mixed_triggers" validate:"dive,required"`
	// EquineMixedExclusions are dropped for equine or mixed practices.
	EquineMixedExclusions []string `koanf:"equine_mixed_exclusions" validate:"dive,required"`

	// SmallAnimalTriggers select the small-animal branch of the practice stage.
	SmallAnimalTriggers []string `koanf:"small_animal_triggers" validate:"dive,required"`
	// SmallAnimalExclusions are dropped for small-animal practices.
	SmallAnimalExclusions []string `koanf:"small_animal_exclusions" validate:"dive,required"`

	// VetRoles and NurseRoles are compared to the job role, case-insensitively.
	VetRoles   []string `koanf:"vet_roles" validate:"dive,required"`
	NurseRoles []string `koanf:"nurse_roles" validate:"dive,required"`

	// VetExclusions are dropped for veterinarians.
	VetExclusions []string `koanf:"vet_exclusions" validate:"dive,required"`
	// NurseAllowed is the allowlist kept for nurses.
	NurseAllowed []string `koanf:"nurse_allowed" validate:"dive,required"`
}

// DefaultConfig returns the rule set used by the show.
func DefaultConfig() Config {
	return Config{
		Priority:              []Stage{StagePracticeType, StageRole},
		EquineMixedTriggers:   []string{"equine", "mixed"},
		EquineMixedExclusions: []string{"exotics", "feline", "exotic animal", "farm", "small animal"},
		SmallAnimalTriggers:   []string{"small animal"},
		SmallAnimalExclusions: []string{"equine", "farm animal", "farm", "large animal"},
		VetRoles:              []string{"Vet/Vet Surgeon", "Assistant Vet", "Vet/Owner"},
		NurseRoles:            []string{"Head Nurse/Senior Nurse", "Vet Nurse", "Nurse Manager", "Student Vet Nurse"},
		VetExclusions:         []string{"nursing"},
		NurseAllowed:          []string{"nursing", "wellbeing", "welfare"},
	}
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks stage names and rejects blank keywords.
func (c Config) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	seen := make(map[Stage]struct{}, len(c.Priority))
	for _, s := range c.Priority {
		if _, dup := seen[s]; dup {
			return fmt.Errorf("%w: stage %q listed twice", ErrInvalidConfig, s)
		}
		seen[s] = struct{}{}
	}
	return nil
}

// IsVet reports whether role belongs to the veterinarian group.
func (c Config) IsVet(role string) bool { return inSet(role, c.VetRoles) }

// IsNurse reports whether role belongs to the nurse group.
func (c Config) IsNurse(role string) bool { return inSet(role, c.NurseRoles) }

func inSet(v string, set []string) bool {
	v = strings.TrimSpace(v)
	for _, s := range set {
		if strings.EqualFold(v, strings.TrimSpace(s)) {
			return true
		}
	}
	return false
}
