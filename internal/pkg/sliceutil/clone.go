package sliceutil

import "sigtrader/internal/model"

// Strings returns a copy of the string slice.
func Strings(src []string) []string {
	if len(src) == 0 {
		return nil
	}
	dst := make([]string, len(src))
	copy(dst, src)
	return dst
}

// Records returns a shallow copy of the record slice.
func Records(src []*model.Record) []*model.Record {
	if len(src) == 0 {
		return nil
	}
	dst := make([]*model.Record, len(src))
	copy(dst, src)
	return dst
}
