package ztmapi

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// keyValueRecord is the row shape of the dbstore and dbtimetable endpoints.
type keyValueRecord struct {
	Values []struct {
		Key   string     `json:"key"`
		Value FlexString `json:"value"`
	} `json:"values"`
}

func (r keyValueRecord) Map() map[string]string {
	values := make(map[string]string, len(r.Values))
	for _, item := range r.Values {
		values[item.Key] = string(item.Value)
	}
	return values
}

// FlexString decodes JSON strings, numbers and null into a string. The operator API is
// not consistent about quoting numeric identifiers.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}

	*f = FlexString(string(data))
	return nil
}

func (f FlexString) Float() (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(string(f)), 64)
}
