// Package ids generates the K-sortable identifiers used as primary keys.
package ids

import "github.com/segmentio/ksuid"

func New() string {
	return ksuid.New().String()
}

func Valid(id string) bool {
	_, err := ksuid.Parse(id)
	return err == nil
}
