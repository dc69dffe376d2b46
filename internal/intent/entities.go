package intent

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Entities is the typed form of a payload's entity object.
type Entities interface {
	Intent() Intent
}

type CreateEvent struct {
	Summary          string  `json:"summary"`
	StartTime        string  `json:"start_time"`
	EndTime          string  `json:"end_time"`
	Description      string  `json:"description"`
	Location         string  `json:"location"`
	Attendees        Strings `json:"attendees"`
	CreateConference Flag    `json:"create_conference"`
}

// CreateEvents is the batch form, sent as {"events": [...]}.
type CreateEvents struct {
	Events []CreateEvent `json:"events"`
}

// ListEvents becomes a keyword search when QueryKeywords is set.
type ListEvents struct {
	StartDate     string
	EndDate       string
	QueryKeywords []string
}

type FindEvent struct {
	Keywords  []string
	StartDate string
	EndDate   string
}

// ModifyAction is what to do with the event a ModifyEvent finds.
type ModifyAction string

const (
	ActionUpdate ModifyAction = "update"
	ActionCancel ModifyAction = "cancel"
)

type ModifyEvent struct {
	Action      ModifyAction
	Keywords    []string
	SearchStart string
	SearchEnd   string
	// Fields uses the friendly names: summary/title, description, location,
	// start_time, end_time, attendees.
	Fields             map[string]any
	ConfirmationNeeded bool
}

type CancelEvent struct {
	Keywords    []string
	SearchStart string
	SearchEnd   string
}

type AskAvailability struct {
	StartTime string
	EndTime   string
}

// None is the variant of intents that carry no entities.
type None struct {
	Of Intent
}

func (CreateEvent) Intent() Intent     { return Create }
func (CreateEvents) Intent() Intent    { return Create }
func (ListEvents) Intent() Intent      { return List }
func (FindEvent) Intent() Intent       { return Find }
func (ModifyEvent) Intent() Intent     { return Modify }
func (CancelEvent) Intent() Intent     { return Cancel }
func (AskAvailability) Intent() Intent { return Availability }
func (n None) Intent() Intent          { return n.Of }

// MissingEntitiesError names every required key the payload lacks.
type MissingEntitiesError struct {
	Intent  Intent
	Missing []string
}

func (e *MissingEntitiesError) Error() string {
	return fmt.Sprintf("intent %s missing entities: %s", e.Intent, strings.Join(e.Missing, ", "))
}

// rawEntities accepts every spelling the translator has been seen to use.
type rawEntities struct {
	Summary          string  `json:"summary"`
	Title            string  `json:"title"`
	StartTime        string  `json:"start_time"`
	EndTime          string  `json:"end_time"`
	Description      string  `json:"description"`
	Location         string  `json:"location"`
	Attendees        Strings `json:"attendees"`
	CreateConference Flag    `json:"create_conference"`

	Events []CreateEvent `json:"events"`

	StartDate       string  `json:"start_date"`
	EndDate         string  `json:"end_date"`
	SearchStartTime string  `json:"search_start_time"`
	SearchEndTime   string  `json:"search_end_time"`
	QueryKeywords   Strings `json:"query_keywords"`
	Keywords        Strings `json:"keywords"`

	Action             string         `json:"action"`
	Actions            []rawAction    `json:"actions"`
	UpdateFields       map[string]any `json:"update_fields"`
	NewStartTime       string         `json:"new_start_time"`
	NewEndTime         string         `json:"new_end_time"`
	NewSummary         string         `json:"new_summary"`
	ConfirmationNeeded Flag           `json:"confirmation_needed"`
}

type rawAction struct {
	Action          string         `json:"action"`
	Keywords        Strings        `json:"keywords"`
	UpdateFields    map[string]any `json:"update_fields"`
	SearchStartTime string         `json:"search_start_time"`
	SearchEndTime   string         `json:"search_end_time"`
}

// Decode converts the payload's loose entity object into the intent's typed
// variant. Missing required keys yield a *MissingEntitiesError listing all of
// them.
func Decode(p Payload) (Entities, error) {
	var raw rawEntities
	if len(p.Entities) > 0 {
		b, err := json.Marshal(p.Entities)
		if err != nil {
			return nil, fmt.Errorf("marshal entities: %w", err)
		}
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil, fmt.Errorf("decode %s entities: %w", p.Intent, err)
		}
	}

	switch p.Intent {
	case Create:
		return decodeCreate(raw)
	case List:
		return ListEvents{
			StartDate:     firstNonEmpty(raw.StartDate, raw.SearchStartTime, raw.StartTime),
			EndDate:       firstNonEmpty(raw.EndDate, raw.SearchEndTime, raw.EndTime),
			QueryKeywords: append(raw.QueryKeywords, raw.Keywords...),
		}, nil
	case Find:
		kw := append(raw.Keywords, raw.QueryKeywords...)
		if len(kw) == 0 {
			return nil, &MissingEntitiesError{Intent: Find, Missing: []string{"keywords"}}
		}
		return FindEvent{
			Keywords:  kw,
			StartDate: firstNonEmpty(raw.SearchStartTime, raw.StartDate),
			EndDate:   firstNonEmpty(raw.SearchEndTime, raw.EndDate),
		}, nil
	case Modify:
		return decodeModify(raw)
	case Cancel:
		kw := append(raw.Keywords, raw.QueryKeywords...)
		if len(kw) == 0 && len(raw.Actions) > 0 {
			kw = raw.Actions[0].Keywords
		}
		if len(kw) == 0 {
			return nil, &MissingEntitiesError{Intent: Cancel, Missing: []string{"keywords"}}
		}
		return CancelEvent{
			Keywords:    kw,
			SearchStart: firstNonEmpty(raw.SearchStartTime, raw.StartDate),
			SearchEnd:   firstNonEmpty(raw.SearchEndTime, raw.EndDate),
		}, nil
	case Availability:
		return AskAvailability{
			StartTime: firstNonEmpty(raw.StartTime, raw.StartDate, raw.SearchStartTime),
			EndTime:   firstNonEmpty(raw.EndTime, raw.EndDate, raw.SearchEndTime),
		}, nil
	default:
		return None{Of: p.Intent}, nil
	}
}

func decodeCreate(raw rawEntities) (Entities, error) {
	if len(raw.Events) > 0 {
		events := make([]CreateEvent, len(raw.Events))
		for i, ev := range raw.Events {
			events[i] = inferEnd(ev)
		}
		return CreateEvents{Events: events}, nil
	}

	ev := inferEnd(CreateEvent{
		Summary:          firstNonEmpty(raw.Summary, raw.Title),
		StartTime:        raw.StartTime,
		EndTime:          raw.EndTime,
		Description:      raw.Description,
		Location:         raw.Location,
		Attendees:        raw.Attendees,
		CreateConference: raw.CreateConference,
	})
	if missing := ev.Missing(); len(missing) > 0 {
		return nil, &MissingEntitiesError{Intent: Create, Missing: missing}
	}
	return ev, nil
}

// Missing lists the required keys absent from a single event entry.
func (c CreateEvent) Missing() []string {
	var missing []string
	if strings.TrimSpace(c.Summary) == "" {
		missing = append(missing, "summary")
	}
	if strings.TrimSpace(c.StartTime) == "" {
		missing = append(missing, "start_time")
	}
	if strings.TrimSpace(c.EndTime) == "" {
		missing = append(missing, "end_time")
	}
	return missing
}

// inferEnd fills a missing end time with start + 1h when the start is a
// timestamp this package can read.
func inferEnd(c CreateEvent) CreateEvent {
	if strings.TrimSpace(c.EndTime) != "" || strings.TrimSpace(c.StartTime) == "" {
		return c
	}
	start := strings.TrimSpace(c.StartTime)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02 15:04"} {
		t, err := time.Parse(layout, start)
		if err != nil {
			continue
		}
		c.EndTime = t.Add(time.Hour).Format(layout)
		return c
	}
	return c
}

func decodeModify(raw rawEntities) (Entities, error) {
	m := ModifyEvent{
		Action:             ModifyAction(strings.ToLower(strings.TrimSpace(raw.Action))),
		Keywords:           append(raw.Keywords, raw.QueryKeywords...),
		SearchStart:        raw.SearchStartTime,
		SearchEnd:          raw.SearchEndTime,
		Fields:             map[string]any{},
		ConfirmationNeeded: bool(raw.ConfirmationNeeded),
	}

	if len(raw.Actions) > 0 {
		a := raw.Actions[0]
		if a.Action != "" {
			m.Action = ModifyAction(strings.ToLower(strings.TrimSpace(a.Action)))
		}
		if len(a.Keywords) > 0 {
			m.Keywords = a.Keywords
		}
		m.SearchStart = firstNonEmpty(a.SearchStartTime, m.SearchStart)
		m.SearchEnd = firstNonEmpty(a.SearchEndTime, m.SearchEnd)
		for k, v := range a.UpdateFields {
			m.Fields[k] = v
		}
	}
	for k, v := range raw.UpdateFields {
		m.Fields[k] = v
	}
	if raw.NewStartTime != "" {
		m.Fields["start_time"] = raw.NewStartTime
	}
	if raw.NewEndTime != "" {
		m.Fields["end_time"] = raw.NewEndTime
	}
	if raw.NewSummary != "" {
		m.Fields["summary"] = raw.NewSummary
	}
	if m.Action == "" {
		m.Action = ActionUpdate
	}

	var missing []string
	if len(m.Keywords) == 0 {
		missing = append(missing, "keywords")
	}
	if m.Action == ActionUpdate && len(m.Fields) == 0 {
		missing = append(missing, "update_fields")
	}
	if len(missing) > 0 {
		return nil, &MissingEntitiesError{Intent: Modify, Missing: missing}
	}
	return m, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
