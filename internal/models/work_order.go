package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

type WorkOrderStatus string

const (
	StatusPending    WorkOrderStatus = "pending"
	StatusInProgress WorkOrderStatus = "in-progress"
	StatusCompleted  WorkOrderStatus = "completed"
	StatusCancelled  WorkOrderStatus = "cancelled"
)

var WorkOrderStatuses = []WorkOrderStatus{StatusPending, StatusInProgress, StatusCompleted, StatusCancelled}

func (s WorkOrderStatus) IsValid() bool {
	for _, v := range WorkOrderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) IsValid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// YesNo is the Y/N answer used by every survey assessment field.
type YesNo string

const (
	Yes YesNo = "Y"
	No  YesNo = "N"
)

func (v YesNo) IsValid() bool {
	return v == Yes || v == No
}

func (v YesNo) Bool() bool {
	return v == Yes
}

const DateLayout = "2006-01-02"

// Date is a calendar date serialized as YYYY-MM-DD. RFC3339 input is
// accepted and truncated to the day.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(DateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*d = Date{}
		return nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, s); err != nil {
			return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
		}
	}
	*d = NewDate(t.Year(), t.Month(), t.Day())
	return nil
}

// WorkOrder is the confined-space survey and job record.
type WorkOrder struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedBy uuid.UUID `json:"createdBy" db:"created_by"`

	Title       string          `json:"title" db:"title"`
	Description string          `json:"description" db:"description"`
	Status      WorkOrderStatus `json:"status" db:"status"`
	Priority    Priority        `json:"priority" db:"priority"`
	AssignedTo  string          `json:"assignedTo" db:"assigned_to"` // free text technician name
	DueDate     Date            `json:"dueDate" db:"due_date"`

	CustomerName    string `json:"customerName" db:"customer_name"`
	CustomerContact string `json:"customerContact" db:"customer_contact"`
	Location        string `json:"location" db:"location"`

	DateOfSurvey             Date   `json:"dateOfSurvey" db:"date_of_survey"`
	Surveyors                string `json:"surveyors" db:"surveyors"`
	ConfinedSpaceName        string `json:"confinedSpaceName" db:"confined_space_name"`
	Building                 string `json:"building" db:"building"`
	LocationDescription      string `json:"locationDescription" db:"location_description"`
	ConfinedSpaceDescription string `json:"confinedSpaceDescription" db:"confined_space_description"`

	Assessment

	NumberOfEntryPoints int      `json:"numberOfEntryPoints" db:"number_of_entry_points"`
	Notes               string   `json:"notes" db:"notes"`
	Pictures            []string `json:"pictures" db:"pictures"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Assessment holds the Y/N survey answers and their justifications.
type Assessment struct {
	IsConfinedSpace YesNo `json:"isConfinedSpace" db:"is_confined_space"`
	PermitRequired  YesNo `json:"permitRequired" db:"permit_required"`

	HasAtmosphericHazard           YesNo  `json:"hasAtmosphericHazard" db:"has_atmospheric_hazard"`
	AtmosphericHazardDescription   string `json:"atmosphericHazardDescription" db:"atmospheric_hazard_description"`
	HasEngulfmentHazard            YesNo  `json:"hasEngulfmentHazard" db:"has_engulfment_hazard"`
	EngulfmentHazardDescription    string `json:"engulfmentHazardDescription" db:"engulfment_hazard_description"`
	HasConfigurationHazard         YesNo  `json:"hasConfigurationHazard" db:"has_configuration_hazard"`
	ConfigurationHazardDescription string `json:"configurationHazardDescription" db:"configuration_hazard_description"`
	HasOtherHazards                YesNo  `json:"hasOtherHazards" db:"has_other_hazards"`
	OtherHazardsDescription        string `json:"otherHazardsDescription" db:"other_hazards_description"`
	RequiresPPE                    YesNo  `json:"requiresPPE" db:"requires_ppe"`
	PPEList                        string `json:"ppeList" db:"ppe_list"`

	ForcedAirVentilationSufficient YesNo `json:"forcedAirVentilationSufficient" db:"forced_air_ventilation_sufficient"`
	DedicatedAirMonitor            YesNo `json:"dedicatedAirMonitor" db:"dedicated_air_monitor"`
	WarningSignPosted              YesNo `json:"warningSignPosted" db:"warning_sign_posted"`
	OtherPeopleWorkingNearby       YesNo `json:"otherPeopleWorkingNearby" db:"other_people_working_nearby"`
	VisibilityIntoSpace            YesNo `json:"visibilityIntoSpace" db:"visibility_into_space"`
	ContractorsEnter               YesNo `json:"contractorsEnter" db:"contractors_enter"`
}

// AssessmentItem is one Y/N question with its optional justification.
type AssessmentItem struct {
	Field            string
	Label            string
	Answer           YesNo
	DescriptionField string // empty when the question has no justification text
	Description      string
}

// Hazards lists the permit-required hazard questions in report order.
func (a *Assessment) Hazards() []AssessmentItem {
	return []AssessmentItem{
		{"hasAtmosphericHazard", "Does the space contain or have the potential to contain a hazardous atmosphere?", a.HasAtmosphericHazard, "atmosphericHazardDescription", a.AtmosphericHazardDescription},
		{"hasEngulfmentHazard", "Does the space contain a material that could engulf an entrant?", a.HasEngulfmentHazard, "engulfmentHazardDescription", a.EngulfmentHazardDescription},
		{"hasConfigurationHazard", "Does the space have an internal configuration that could trap or asphyxiate an entrant?", a.HasConfigurationHazard, "configurationHazardDescription", a.ConfigurationHazardDescription},
		{"hasOtherHazards", "Does the space contain any other recognized serious safety or health hazards?", a.HasOtherHazards, "otherHazardsDescription", a.OtherHazardsDescription},
	}
}

// Characteristics lists the confined-space characteristic questions.
func (a *Assessment) Characteristics() []AssessmentItem {
	return []AssessmentItem{
		{Field: "isConfinedSpace", Label: "Is this a confined space?", Answer: a.IsConfinedSpace},
		{Field: "permitRequired", Label: "Is a permit required for entry?", Answer: a.PermitRequired},
		{Field: "forcedAirVentilationSufficient", Label: "Is forced air ventilation sufficient to maintain safe entry?", Answer: a.ForcedAirVentilationSufficient},
		{Field: "dedicatedAirMonitor", Label: "Is a dedicated continuous air monitor required?", Answer: a.DedicatedAirMonitor},
		{Field: "warningSignPosted", Label: "Is a warning sign posted?", Answer: a.WarningSignPosted},
		{Field: "otherPeopleWorkingNearby", Label: "Are other people working near the space?", Answer: a.OtherPeopleWorkingNearby},
		{Field: "visibilityIntoSpace", Label: "Can others see into the space?", Answer: a.VisibilityIntoSpace},
		{Field: "contractorsEnter", Label: "Do contractors enter the space?", Answer: a.ContractorsEnter},
	}
}

// Safety lists the PPE question.
func (a *Assessment) Safety() []AssessmentItem {
	return []AssessmentItem{
		{"requiresPPE", "Does entry require personal protective equipment?", a.RequiresPPE, "ppeList", a.PPEList},
	}
}

// answers returns pointers to every Y/N field keyed by JSON name.
func (a *Assessment) answers() map[string]*YesNo {
	return map[string]*YesNo{
		"isConfinedSpace":                &a.IsConfinedSpace,
		"permitRequired":                 &a.PermitRequired,
		"hasAtmosphericHazard":           &a.HasAtmosphericHazard,
		"hasEngulfmentHazard":            &a.HasEngulfmentHazard,
		"hasConfigurationHazard":         &a.HasConfigurationHazard,
		"hasOtherHazards":                &a.HasOtherHazards,
		"requiresPPE":                    &a.RequiresPPE,
		"forcedAirVentilationSufficient": &a.ForcedAirVentilationSufficient,
		"dedicatedAirMonitor":            &a.DedicatedAirMonitor,
		"warningSignPosted":              &a.WarningSignPosted,
		"otherPeopleWorkingNearby":       &a.OtherPeopleWorkingNearby,
		"visibilityIntoSpace":            &a.VisibilityIntoSpace,
		"contractorsEnter":               &a.ContractorsEnter,
	}
}

// ApplyDefaults sets every empty answer to N and returns the JSON names of
// answers that are neither Y nor N.
func (a *Assessment) ApplyDefaults() (invalid []string) {
	for name, v := range a.answers() {
		*v = YesNo(strings.ToUpper(strings.TrimSpace(string(*v))))
		if *v == "" {
			*v = No
		}
		if !v.IsValid() {
			invalid = append(invalid, name)
		}
	}
	sort.Strings(invalid)
	return invalid
}

// WorkOrderFilter narrows List. Zero values mean no restriction.
type WorkOrderFilter struct {
	Status     WorkOrderStatus
	Priority   Priority
	AssignedTo string
	CreatedBy  *uuid.UUID
	Limit      int
	Offset     int
}

// FieldWarning is a soft validation finding that does not block a write.
type FieldWarning struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

const MaxNotesLength = 500
