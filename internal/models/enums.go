package models

import (
	"database/sql/driver"
	"fmt"
)

func scanBytes(src interface{}) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported column type %T", src)
	}
}

func scanString(src interface{}) (string, error) {
	b, err := scanBytes(src)
	return string(b), err
}

// ResearchStatus is the per-village state of a research node.
type ResearchStatus uint8

const (
	ResearchLocked ResearchStatus = iota + 1
	ResearchAvailable
	ResearchInProgress
	ResearchCompleted
)

var researchStatusNames = map[ResearchStatus]string{
	ResearchLocked:     "LOCKED",
	ResearchAvailable:  "AVAILABLE",
	ResearchInProgress: "IN_PROGRESS",
	ResearchCompleted:  "COMPLETED",
}

func (s ResearchStatus) String() string {
	if name, ok := researchStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ResearchStatus(%d)", uint8(s))
}

func ParseResearchStatus(s string) (ResearchStatus, error) {
	for k, v := range researchStatusNames {
		if v == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown research status %q", s)
}

func (s ResearchStatus) Value() (driver.Value, error) {
	if _, ok := researchStatusNames[s]; !ok {
		return nil, fmt.Errorf("invalid research status %d", uint8(s))
	}
	return s.String(), nil
}

func (s *ResearchStatus) Scan(src interface{}) error {
	str, err := scanString(src)
	if err != nil {
		return err
	}
	*s, err = ParseResearchStatus(str)
	return err
}

// MissionStatus is the lifecycle state of a mission.
type MissionStatus uint8

const (
	MissionPreparing MissionStatus = iota + 1
	MissionInProgress
	MissionCompleted
	MissionFailed
	MissionRecalled
)

var missionStatusNames = map[MissionStatus]string{
	MissionPreparing:  "PREPARING",
	MissionInProgress: "IN_PROGRESS",
	MissionCompleted:  "COMPLETED",
	MissionFailed:     "FAILED",
	MissionRecalled:   "RECALLED",
}

func (s MissionStatus) String() string {
	if name, ok := missionStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("MissionStatus(%d)", uint8(s))
}

func (s MissionStatus) Terminal() bool {
	return s == MissionCompleted || s == MissionFailed || s == MissionRecalled
}

// CanTransition reports whether the lifecycle allows moving from s to next.
func (s MissionStatus) CanTransition(next MissionStatus) bool {
	switch s {
	case MissionPreparing:
		return next == MissionInProgress
	case MissionInProgress:
		return next == MissionCompleted || next == MissionFailed || next == MissionRecalled
	default:
		return false
	}
}

func ParseMissionStatus(s string) (MissionStatus, error) {
	for k, v := range missionStatusNames {
		if v == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown mission status %q", s)
}

func (s MissionStatus) Value() (driver.Value, error) {
	if _, ok := missionStatusNames[s]; !ok {
		return nil, fmt.Errorf("invalid mission status %d", uint8(s))
	}
	return s.String(), nil
}

func (s *MissionStatus) Scan(src interface{}) error {
	str, err := scanString(src)
	if err != nil {
		return err
	}
	*s, err = ParseMissionStatus(str)
	return err
}

type MissionType uint8

const (
	MissionHarvest MissionType = iota + 1
	MissionRescue
	MissionExploration
)

var missionTypeNames = map[MissionType]string{
	MissionHarvest:     "harvest",
	MissionRescue:      "rescue",
	MissionExploration: "exploration",
}

func (t MissionType) String() string {
	if name, ok := missionTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("MissionType(%d)", uint8(t))
}

func MissionTypes() []MissionType {
	return []MissionType{MissionHarvest, MissionRescue, MissionExploration}
}

func ParseMissionType(s string) (MissionType, error) {
	for k, v := range missionTypeNames {
		if v == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown mission type %q", s)
}

func (t MissionType) Value() (driver.Value, error) {
	if _, ok := missionTypeNames[t]; !ok {
		return nil, fmt.Errorf("invalid mission type %d", uint8(t))
	}
	return t.String(), nil
}

func (t *MissionType) Scan(src interface{}) error {
	str, err := scanString(src)
	if err != nil {
		return err
	}
	*t, err = ParseMissionType(str)
	return err
}

type CharacterClass uint8

const (
	ClassWarrior CharacterClass = iota + 1
	ClassScout
	ClassCraftsman
	ClassLeader
	ClassSurvivor
)

var characterClassNames = map[CharacterClass]string{
	ClassWarrior:   "warrior",
	ClassScout:     "scout",
	ClassCraftsman: "craftsman",
	ClassLeader:    "leader",
	ClassSurvivor:  "survivor",
}

func (c CharacterClass) String() string {
	if name, ok := characterClassNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CharacterClass(%d)", uint8(c))
}

func ParseCharacterClass(s string) (CharacterClass, error) {
	for k, v := range characterClassNames {
		if v == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown character class %q", s)
}

func (c CharacterClass) Value() (driver.Value, error) {
	if _, ok := characterClassNames[c]; !ok {
		return nil, fmt.Errorf("invalid character class %d", uint8(c))
	}
	return c.String(), nil
}

func (c *CharacterClass) Scan(src interface{}) error {
	str, err := scanString(src)
	if err != nil {
		return err
	}
	*c, err = ParseCharacterClass(str)
	return err
}
