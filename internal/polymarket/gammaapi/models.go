package gammaapi

import (
	"encoding/json"

	"github.com/liamashdown/polysignal/internal/polymarket/fetch"
)

// Market is a Gamma API market. Event listings embed partial markets, so any
// field may be missing; the raw object is kept for merging.
type Market struct {
	ID            fetch.Text       `json:"id"`
	ConditionID   fetch.Text       `json:"conditionId"`
	Slug          fetch.Text       `json:"slug"`
	Question      fetch.Text       `json:"question"`
	Outcomes      fetch.StringList `json:"outcomes"`      // e.g. ["Yes","No"] or "[\"Yes\",\"No\"]"
	OutcomePrices fetch.StringList `json:"outcomePrices"` // fractions, or percentages on some markets
	Active        fetch.Bool       `json:"active"`
	Closed        fetch.Bool       `json:"closed"`

	EndDate      fetch.Timestamp `json:"endDate"`
	EndDateIso   fetch.Timestamp `json:"endDateIso"`
	ClosedTime   fetch.Timestamp `json:"closedTime"`
	CloseTime    fetch.Timestamp `json:"closeTime"`
	ResolvedTime fetch.Timestamp `json:"resolvedTime"`

	raw json.RawMessage
}

func (m *Market) UnmarshalJSON(data []byte) error {
	type plain Market
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*m = Market(p)
	m.raw = append(json.RawMessage(nil), data...)
	return nil
}

// EndTimes returns the end-time candidates in lookup order
func (m Market) EndTimes() []fetch.Timestamp {
	return []fetch.Timestamp{m.EndDate, m.EndDateIso, m.ClosedTime, m.CloseTime, m.ResolvedTime}
}

// MergeOver returns full overlaid with every field m carries. Fields present
// on m win, including ones this type does not model.
func (m Market) MergeOver(full Market) (Market, error) {
	fields := map[string]json.RawMessage{}
	if len(full.raw) > 0 {
		if err := json.Unmarshal(full.raw, &fields); err != nil {
			return Market{}, err
		}
	}
	if len(m.raw) > 0 {
		var own map[string]json.RawMessage
		if err := json.Unmarshal(m.raw, &own); err != nil {
			return Market{}, err
		}
		for k, v := range own {
			fields[k] = v
		}
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return Market{}, err
	}
	var merged Market
	if err := json.Unmarshal(data, &merged); err != nil {
		return Market{}, err
	}
	return merged, nil
}

// Event is a Gamma API event with its markets in catalog order
type Event struct {
	ID      fetch.Text `json:"id"`
	Slug    fetch.Text `json:"slug"`
	Title   fetch.Text `json:"title"`
	Markets []Market   `json:"-"`
}

func (e *Event) UnmarshalJSON(data []byte) error {
	type plain Event
	var p struct {
		plain
		Markets json.RawMessage `json:"markets"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = Event(p.plain)
	for _, obj := range fetch.Objects(p.Markets) {
		var m Market
		if err := json.Unmarshal(obj, &m); err == nil {
			e.Markets = append(e.Markets, m)
		}
	}
	return nil
}
