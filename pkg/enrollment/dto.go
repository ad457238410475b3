package enrollment

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// looseString accepts a JSON string, number, boolean or null. The ERP is
// not consistent about quoting numeric fields.
type looseString string

// UnmarshalJSON implements json.Unmarshaler.
func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*s = ""
	case len(data) > 0 && data[0] == '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = looseString(str)
	default:
		*s = looseString(data)
	}
	return nil
}

// memberDTO is one ERP member as the members endpoint returns it.
type memberDTO struct {
	ID               looseString `json:"id"`
	FirstName        string      `json:"firstname"`
	LastName         string      `json:"lastname"`
	Login            string      `json:"login"`
	Email            string      `json:"email"`
	DateEnd          looseString `json:"datefin"`
	NeedSubscription looseString `json:"need_subscription"`
	ArrayOptions     struct {
		Student looseString `json:"options_student"`
	} `json:"array_options"`
}

func (m memberDTO) toRecord(now time.Time) Record {
	return Record{
		ExternalID:  NormalizeExternalID(string(m.ArrayOptions.Student)),
		FirstName:   strings.TrimSpace(m.FirstName),
		LastName:    strings.TrimSpace(m.LastName),
		Login:       strings.TrimSpace(m.Login),
		Email:       strings.TrimSpace(m.Email),
		Contributor: IsContributor(string(m.DateEnd), string(m.NeedSubscription), now),
	}
}
